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

// CascadeDetector uses an OpenCV Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	config     Config
	mu         sync.Mutex
}

func newCascade(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, cfg.CascadePath, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot parse cascade %s", ErrModelLoad, cfg.CascadePath)
	}

	return &CascadeDetector{classifier: classifier, config: cfg}, nil
}

// Detect runs multi-scale detection on a grayscale frame.
func (d *CascadeDetector) Detect(gray *frame.Frame) []FaceBox {
	if gray.Empty() || gray.Layout != frame.Gray {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	mat, err := gocv.NewMatFromBytes(gray.Height, gray.Width, gocv.MatTypeCV8UC1, gray.Data[:gray.Width*gray.Height])
	if err != nil {
		return nil
	}
	defer mat.Close()

	maxSize := image.Point{}
	if d.config.MaxSize > 0 {
		maxSize = image.Pt(d.config.MaxSize, d.config.MaxSize)
	}

	rects := d.classifier.DetectMultiScaleWithParams(
		mat,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		image.Pt(d.config.MinSize, d.config.MinSize),
		maxSize,
	)

	boxes := make([]FaceBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, FromRect(r))
	}
	return boxes
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
