package detection

import "errors"

var (
	// ErrModelLoad means the detector resource could not be loaded.
	ErrModelLoad = errors.New("detection: failed to load model")

	// ErrBackendUnavailable means the binary was built without OpenCV support.
	ErrBackendUnavailable = errors.New("detection: backend unavailable (build with -tags opencv)")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("detection: invalid config")
)
