package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrModelLoad means the model could not be loaded.
	ErrModelLoad = errors.New("classifier: failed to load model")

	// ErrBackendUnavailable means the binary was built without OpenCV support.
	ErrBackendUnavailable = errors.New("classifier: backend unavailable (build with -tags opencv)")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("classifier: invalid config")

	// ErrInvalidInput means the input was not Size×Size or the size differs from the model's.
	ErrInvalidInput = errors.New("classifier: invalid input")

	// ErrOutputShape means the model emitted a different number of scores than there are labels.
	ErrOutputShape = errors.New("classifier: model output does not match label set")
)

// ClassifyError wraps a per-face classification failure with backend context.
type ClassifyError struct {
	Backend Backend
	Err     error
}

// Error implements the error interface.
func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classifier [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifyError) Unwrap() error {
	return e.Err
}

func wrapError(backend Backend, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifyError{Backend: backend, Err: err}
}
