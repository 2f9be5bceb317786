//go:build opencv

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

func newYuNet(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, cfg.ModelPath, err)
	}

	// Input size is updated per frame
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(320, 320),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{detector: detector, config: cfg}, nil
}

// Detect finds faces in a grayscale frame. YuNet wants three channels, so the
// gray plane is expanded to BGR first.
func (d *YuNetDetector) Detect(gray *frame.Frame) []FaceBox {
	if gray.Empty() || gray.Layout != frame.Gray {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	src, err := gocv.NewMatFromBytes(gray.Height, gray.Width, gocv.MatTypeCV8UC1, gray.Data[:gray.Width*gray.Height])
	if err != nil {
		return nil
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)

	d.detector.SetInputSize(image.Pt(gray.Width, gray.Height))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(bgr, &faces)

	// Rows are 15 floats: x, y, w, h, five landmark pairs, score
	var boxes []FaceBox
	for r := 0; r < faces.Rows(); r++ {
		if float64(faces.GetFloatAt(r, 14)) < d.config.ConfidenceThresh {
			continue
		}
		box := FaceBox{
			X: int(faces.GetFloatAt(r, 0)),
			Y: int(faces.GetFloatAt(r, 1)),
			W: int(faces.GetFloatAt(r, 2)),
			H: int(faces.GetFloatAt(r, 3)),
		}
		if d.config.MinSize > 0 && (box.W < d.config.MinSize || box.H < d.config.MinSize) {
			continue
		}
		if d.config.MaxSize > 0 && (box.W > d.config.MaxSize || box.H > d.config.MaxSize) {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
