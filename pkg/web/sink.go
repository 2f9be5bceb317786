package web

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/pipeline"
)

var _ pipeline.Sink = (*Server)(nil)

// boxColor is used when the catalog has no colour for the displayed emotion.
var boxColor = color.RGBA{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff}

const boxThickness = 2

// OnFrameReady encodes the frame with its face boxes and sends it to camera
// clients. Nothing is encoded while nobody is watching.
func (s *Server) OnFrameReady(c capture.Capture) {
	if c.Frame == nil || c.Frame.Empty() || s.cameraHub.ClientCount() == 0 {
		return
	}

	s.stateMu.RLock()
	col := parseColor(s.state.Color)
	s.stateMu.RUnlock()

	data, err := s.renderFrame(c, col)
	if err != nil {
		s.logger.Warn("failed to encode preview frame", "error", err)
		return
	}
	s.cameraHub.BroadcastBinary(data)
}

// OnFacesDetected records the face count. It rides along with the next status.
func (s *Server) OnFacesDetected(f detection.Faces) {
	s.stateMu.Lock()
	s.state.Faces = len(f.Boxes)
	s.stateMu.Unlock()
}

// OnEmotionResult publishes the distribution and the displayed emotion.
func (s *Server) OnEmotionResult(r pipeline.EmotionResult) {
	s.UpdateState(func(st *DashboardState) {
		if st.Session != r.Session {
			clear(s.seenTransient)
			st.LastError = ""
		}
		st.State = pipeline.StateRunning.String()
		st.Session = r.Session
		st.Labels = append(st.Labels[:0], r.Labels...)
		st.Percent = make(map[string]int, len(r.Labels))
		for _, name := range r.Labels {
			st.Percent[name] = r.Percent(name)
		}
		st.Confidence = r.Distribution.Confidence
		st.Samples = r.Distribution.Samples
		s.describe(st, r.Display)
	})
}

// OnDisplayEmotionChanged logs the change and updates the description.
func (s *Server) OnDisplayEmotionChanged(c pipeline.DisplayChange) {
	s.AddLog("emotion", fmt.Sprintf("Display changed from %s to %s", c.FromName, c.ToName))
	s.UpdateState(func(st *DashboardState) {
		s.describe(st, c.To)
	})
}

// OnFatalError shows the error. The session has already ended.
func (s *Server) OnFatalError(err *pipeline.Error) {
	s.logger.Error("session failed", "kind", err.Kind, "session", err.Session, "error", err.Err)
	s.AddLog("error", err.Error())
	s.UpdateState(func(st *DashboardState) {
		st.State = s.pipe.State().String()
		st.Session = s.pipe.Session()
		st.LastError = err.Error()
	})
}

// OnTransientError logs the first error of each kind per session.
func (s *Server) OnTransientError(err *pipeline.Error) {
	s.logger.Debug("transient error", "kind", err.Kind, "error", err.Err)
	if s.seenTransient[err.Kind] {
		return
	}
	s.seenTransient[err.Kind] = true
	s.AddLog("warn", err.Error())
}

// renderFrame draws the boxes, downscales to the preview width and encodes
// JPEG at the configured camera quality.
func (s *Server) renderFrame(c capture.Capture, col color.RGBA) ([]byte, error) {
	src := c.Frame.Image()
	canvas, ok := src.(*image.RGBA)
	if !ok {
		canvas = image.NewRGBA(src.Bounds())
		draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)
	}
	for _, b := range c.Boxes {
		drawBox(canvas, b.Rect(), col)
	}

	var out image.Image = canvas
	if w := s.cfg.PreviewWidth; w > 0 && canvas.Bounds().Dx() > w {
		h := canvas.Bounds().Dy() * w / canvas.Bounds().Dx()
		dst := image.NewRGBA(image.Rect(0, 0, w, max(h, 1)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
		out = dst
	}

	quality := s.camera.GetConfig().Quality
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawBox outlines r on img, clipped to its bounds.
func drawBox(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	fill := image.NewUniform(col)
	t := min(boxThickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, fill, image.Point{}, draw.Src)
	}
}

// parseColor reads "#rrggbb". Anything else yields boxColor.
func parseColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return boxColor
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return boxColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
