// Package classifier maps a normalized face crop to an emotion label.
//
// The model itself is opaque. Implementations receive an Input that has
// already been through Normalize and return a Prediction over the label set
// they were constructed with.
package classifier

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/teslashibe/go-affect/pkg/emotions"
)

// Input is a normalized square grayscale crop, row-major, values in [0, 1].
type Input struct {
	Data []float32
	Size int
}

// Valid reports whether the buffer matches Size×Size.
func (in Input) Valid() bool {
	return in.Size > 0 && len(in.Data) == in.Size*in.Size
}

// Prediction is the classifier output for one face.
type Prediction struct {
	Label      emotions.Label
	Confidence float64   // Probability of Label, in [0, 1]
	Probs      []float64 // Per-label probabilities in canonical order
}

// Sample converts the prediction into an aggregation sample.
func (p Prediction) Sample() emotions.Sample {
	return emotions.NewSample(p.Label, p.Confidence)
}

// Classifier is the interface for emotion classification backends.
type Classifier interface {
	// Classify returns the most likely label for a normalized crop.
	Classify(in Input) (Prediction, error)

	// Close releases resources
	Close() error
}

// Backend names a classifier implementation.
type Backend string

const (
	BackendONNX Backend = "onnx"
	BackendMock Backend = "mock"
)

// Config holds classifier configuration.
type Config struct {
	Backend   Backend `yaml:"backend" json:"backend"`
	ModelPath string  `yaml:"model_path" json:"model_path"`
	InputSize int     `yaml:"input_size" json:"input_size"` // Side length of the square model input
	Softmax   bool    `yaml:"softmax" json:"softmax"`       // Apply softmax to raw model outputs
}

// DefaultConfig returns defaults for a 48×48 ONNX expression model.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendONNX,
		ModelPath: "models/emotion.onnx",
		InputSize: 48,
		Softmax:   true,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendONNX:
		if c.ModelPath == "" {
			return fmt.Errorf("%w: model_path is required", ErrInvalidConfig)
		}
	case BackendMock:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("%w: input_size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Loader constructs a classifier. The pipeline calls it once per session.
type Loader func() (Classifier, error)

// New creates a classifier over labels for cfg.Backend.
func New(cfg Config, labels *emotions.Set, logger *slog.Logger) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if labels == nil {
		labels = emotions.DefaultSet()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating emotion classifier",
		"backend", cfg.Backend,
		"model", cfg.ModelPath,
		"input_size", cfg.InputSize,
		"labels", labels.Len(),
	)

	switch cfg.Backend {
	case BackendONNX:
		return newONNX(cfg, labels)
	default:
		return NewBrightnessMock(labels), nil
	}
}

// LoaderFor returns a Loader that builds classifiers from cfg.
func LoaderFor(cfg Config, labels *emotions.Set, logger *slog.Logger) Loader {
	return func() (Classifier, error) {
		return New(cfg, labels, logger)
	}
}

// Softmax converts raw scores into probabilities.
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	hi := scores[0]
	for _, s := range scores[1:] {
		hi = math.Max(hi, s)
	}

	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// FromProbs picks the most probable label. Ties go to the lower index.
func FromProbs(probs []float64) Prediction {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	var conf float64
	if len(probs) > 0 {
		conf = math.Min(math.Max(probs[best], 0), 1)
	}
	return Prediction{
		Label:      emotions.Label(best),
		Confidence: conf,
		Probs:      probs,
	}
}
