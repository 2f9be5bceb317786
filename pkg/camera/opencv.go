//go:build opencv

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-affect/pkg/frame"
)

const openCVAvailable = true

// openCVDevice wraps a gocv VideoCapture.
type openCVDevice struct {
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	mirror bool
	seq    uint64
	closed bool
	logger *slog.Logger
}

func openOpenCV(ctx context.Context, cfg Config, logger *slog.Logger) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(cfg.DeviceIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrOpen, cfg.DeviceIndex, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrOpen, cfg.DeviceIndex)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	logger.Info("camera opened",
		"device", cfg.DeviceIndex,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)

	return &openCVDevice{
		cap:    vc,
		mat:    gocv.NewMat(),
		mirror: cfg.Mirror,
		logger: logger,
	}, nil
}

// Read grabs the next frame as BGR.
func (d *openCVDevice) Read() (*frame.Frame, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrRead)
	}
	if d.mat.Channels() != 3 {
		return nil, fmt.Errorf("%w: unexpected %d channels", ErrRead, d.mat.Channels())
	}
	if d.mirror {
		gocv.Flip(d.mat, &d.mat, 1)
	}

	d.seq++
	return &frame.Frame{
		Data:       d.mat.ToBytes(),
		Width:      d.mat.Cols(),
		Height:     d.mat.Rows(),
		Layout:     frame.BGR,
		Seq:        d.seq,
		CapturedAt: time.Now(),
	}, nil
}

// Close releases the capture handle.
func (d *openCVDevice) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	err := d.cap.Close()
	d.logger.Info("camera closed")
	return err
}
