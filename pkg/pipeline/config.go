package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-affect/pkg/aggregate"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/stability"
)

// Config holds every tunable of the perception pipeline.
type Config struct {
	Camera camera.Config `yaml:"camera" json:"camera"`

	// SkipFrames is how many frames pass between detections.
	// Detection runs on every (SkipFrames+1)th frame.
	SkipFrames int `yaml:"skip_frames" json:"skip_frames"`

	// HistoryCapacity bounds the rolling sample history.
	HistoryCapacity int `yaml:"history_capacity" json:"history_capacity"`

	// Cadence is the period of emotion results.
	Cadence time.Duration `yaml:"cadence" json:"cadence"`

	// Dwell is the minimum time a displayed emotion stays up.
	Dwell time.Duration `yaml:"dwell" json:"dwell"`

	// DefaultLabel is displayed at session start. Empty means the first label.
	DefaultLabel string `yaml:"default_label" json:"default_label"`

	// Labels is the canonical label order. It must match the classifier output.
	Labels []string `yaml:"labels" json:"labels"`

	Detector   detection.Config  `yaml:"detector" json:"detector"`
	Classifier classifier.Config `yaml:"classifier" json:"classifier"`

	// EventBuffer is the capacity of the discrete event queue.
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// ReadRetryDelay is the pause after a failed camera read.
	ReadRetryDelay time.Duration `yaml:"read_retry_delay" json:"read_retry_delay"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Camera:          camera.DefaultConfig(),
		SkipFrames:      1,
		HistoryCapacity: aggregate.DefaultCapacity,
		Cadence:         1500 * time.Millisecond,
		Dwell:           stability.DefaultDwell,
		DefaultLabel:    "Happiness",
		Labels:          append([]string(nil), emotions.DefaultNames...),
		Detector:        detection.DefaultConfig(),
		Classifier:      classifier.DefaultConfig(),
		EventBuffer:     64,
		ReadRetryDelay:  10 * time.Millisecond,
	}
}

// ErrInvalidConfig wraps configuration validation failures.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error

	if issues := c.Camera.Validate(); len(issues) > 0 {
		errs = append(errs, fmt.Errorf("camera: %v", issues))
	}
	if c.SkipFrames < 0 {
		errs = append(errs, errors.New("skip_frames must be >= 0"))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, errors.New("history_capacity must be >= 1"))
	}
	if c.Cadence <= 0 {
		errs = append(errs, errors.New("cadence must be positive"))
	}
	if c.Dwell < 0 {
		errs = append(errs, errors.New("dwell must be >= 0"))
	}
	if c.EventBuffer < 1 {
		errs = append(errs, errors.New("event_buffer must be >= 1"))
	}
	if c.ReadRetryDelay < 0 {
		errs = append(errs, errors.New("read_retry_delay must be >= 0"))
	}

	set, err := c.LabelSet()
	if err != nil {
		errs = append(errs, err)
	} else if c.DefaultLabel != "" {
		if _, err := set.Parse(c.DefaultLabel); err != nil {
			errs = append(errs, fmt.Errorf("default_label: %w", err))
		}
	}

	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Classifier.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LabelSet builds the canonical label set.
func (c Config) LabelSet() (*emotions.Set, error) {
	if len(c.Labels) == 0 {
		return emotions.DefaultSet(), nil
	}
	return emotions.NewSet(c.Labels...)
}

// defaultLabel resolves DefaultLabel against set.
func (c Config) defaultLabel(set *emotions.Set) emotions.Label {
	if l, err := set.Parse(c.DefaultLabel); err == nil {
		return l
	}
	return 0
}

// captureConfig derives the capture worker settings.
func (c Config) captureConfig() capture.Config {
	return capture.Config{
		Camera:     c.Camera,
		SkipFrames: c.SkipFrames,
		RetryDelay: c.ReadRetryDelay,
	}
}
