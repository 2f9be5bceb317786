// Package detection finds face regions in grayscale frames.
package detection

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// FaceBox is an axis-aligned face rectangle in pixel coordinates.
type FaceBox struct {
	X, Y int // Top-left corner
	W, H int
}

// Rect returns the box as an image.Rectangle.
func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Area returns the box area in pixels.
func (b FaceBox) Area() int {
	return b.W * b.H
}

// FromRect converts an image.Rectangle into a FaceBox.
func FromRect(r image.Rectangle) FaceBox {
	r = r.Canon()
	return FaceBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Sanitize clamps boxes to a width×height frame and discards any box with
// non-positive area after clamping. The input slice is not modified.
func Sanitize(boxes []FaceBox, width, height int) []FaceBox {
	bounds := image.Rect(0, 0, width, height)
	out := make([]FaceBox, 0, len(boxes))
	for _, b := range boxes {
		if b.W <= 0 || b.H <= 0 {
			continue
		}
		r := b.Rect().Intersect(bounds)
		if r.Empty() {
			continue
		}
		out = append(out, FromRect(r))
	}
	return out
}

// Faces is the detection result for one processed frame.
type Faces struct {
	Gray  *frame.Frame // Single-channel copy of the processed frame
	Boxes []FaceBox
	Seq   uint64
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect returns the faces found in a grayscale frame. No faces and
	// degenerate frames both yield an empty result.
	Detect(gray *frame.Frame) []FaceBox

	// Close releases resources
	Close() error
}

// Backend names a detector implementation.
type Backend string

const (
	BackendCascade Backend = "cascade"
	BackendYuNet   Backend = "yunet"
	BackendMock    Backend = "mock"
)

// Config holds detector configuration
type Config struct {
	Backend          Backend `yaml:"backend" json:"backend"`
	CascadePath      string  `yaml:"cascade_path" json:"cascade_path"`           // Haar cascade XML
	ModelPath        string  `yaml:"model_path" json:"model_path"`               // YuNet ONNX model
	ScaleFactor      float64 `yaml:"scale_factor" json:"scale_factor"`           // Pyramid step (default 1.1)
	MinNeighbors     int     `yaml:"min_neighbors" json:"min_neighbors"`         // Required overlapping hits (default 5)
	MinSize          int     `yaml:"min_size" json:"min_size"`                   // Smallest face side in pixels
	MaxSize          int     `yaml:"max_size" json:"max_size"`                   // Largest face side, 0 = unbounded
	ConfidenceThresh float64 `yaml:"confidence_thresh" json:"confidence_thresh"` // YuNet score threshold
}

// DefaultConfig returns defaults for the Haar cascade backend.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendCascade,
		CascadePath:      "models/haarcascade_frontalface_default.xml",
		ModelPath:        "models/face_detection_yunet.onnx",
		ScaleFactor:      1.1,
		MinNeighbors:     5,
		MinSize:          30,
		MaxSize:          0,
		ConfidenceThresh: 0.5,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendCascade:
		if c.CascadePath == "" {
			return fmt.Errorf("%w: cascade_path is required", ErrInvalidConfig)
		}
	case BackendYuNet:
		if c.ModelPath == "" {
			return fmt.Errorf("%w: model_path is required", ErrInvalidConfig)
		}
	case BackendMock:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("%w: scale_factor must be > 1, got %v", ErrInvalidConfig, c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return fmt.Errorf("%w: min_neighbors must be >= 0", ErrInvalidConfig)
	}
	if c.MinSize < 0 || c.MaxSize < 0 {
		return fmt.Errorf("%w: min_size and max_size must be >= 0", ErrInvalidConfig)
	}
	if c.MaxSize > 0 && c.MaxSize < c.MinSize {
		return fmt.Errorf("%w: max_size %d below min_size %d", ErrInvalidConfig, c.MaxSize, c.MinSize)
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("%w: confidence_thresh must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Loader constructs a detector. The pipeline calls it once per session so
// a missing model surfaces as a session start failure.
type Loader func() (Detector, error)

// New creates a detector for cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating face detector",
		"backend", cfg.Backend,
		"scale_factor", cfg.ScaleFactor,
		"min_neighbors", cfg.MinNeighbors,
	)

	switch cfg.Backend {
	case BackendCascade:
		return newCascade(cfg)
	case BackendYuNet:
		return newYuNet(cfg)
	default:
		return NewMock(), nil
	}
}

// LoaderFor returns a Loader that builds detectors from cfg.
func LoaderFor(cfg Config, logger *slog.Logger) Loader {
	return func() (Detector, error) {
		return New(cfg, logger)
	}
}
