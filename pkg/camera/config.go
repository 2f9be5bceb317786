// Package camera opens the capture device and reads frames from it.
//
// Backends:
//   - opencv: gocv VideoCapture (build with -tags opencv)
//   - mock: synthetic frames for CI and development without hardware
//
// Settings can be changed at runtime through Manager; the pipeline restarts
// its session to apply them.
package camera

import "fmt"

// Backend represents the camera backend type.
type Backend string

const (
	// BackendAuto selects opencv when compiled in, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendOpenCV uses gocv VideoCapture.
	BackendOpenCV Backend = "opencv"
	// BackendMock generates synthetic frames.
	BackendMock Backend = "mock"
)

// Config holds camera configuration parameters.
type Config struct {
	Backend     Backend `yaml:"backend" json:"backend"`
	DeviceIndex int     `yaml:"device_index" json:"device_index"` // OS camera index, 0 = default camera
	Width       int     `yaml:"width" json:"width"`               // Requested frame width in pixels
	Height      int     `yaml:"height" json:"height"`             // Requested frame height in pixels
	Framerate   int     `yaml:"framerate" json:"framerate"`       // Requested FPS
	Quality     int     `yaml:"quality" json:"quality"`           // JPEG quality 1-100 for preview frames
	Mirror      bool    `yaml:"mirror" json:"mirror"`             // Flip horizontally, selfie view
}

// Limits accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 at 30 FPS on the default camera.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		DeviceIndex: 0,
		Width:       640,
		Height:      480,
		Framerate:   30,
		Quality:     80,
		Mirror:      true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Backend {
	case BackendAuto, BackendOpenCV, BackendMock:
	default:
		errors = append(errors, fmt.Sprintf("backend must be auto, opencv, or mock (got %q)", c.Backend))
	}
	if c.DeviceIndex < 0 {
		errors = append(errors, "device_index must be >= 0")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// Capabilities describes what the camera layer accepts.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"backends":      AvailableBackends(),
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"presets":       PresetNames(),
	}
}
