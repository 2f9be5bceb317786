package camera

import "errors"

var (
	// ErrOpen means the device could not be opened.
	ErrOpen = errors.New("camera: failed to open device")

	// ErrRead means a single frame read failed. The device may recover.
	ErrRead = errors.New("camera: failed to read frame")

	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("camera: device closed")

	// ErrInvalidConfig means the settings failed validation.
	ErrInvalidConfig = errors.New("camera: invalid config")

	// ErrBackendUnavailable means the binary was built without OpenCV support.
	ErrBackendUnavailable = errors.New("camera: backend unavailable (build with -tags opencv)")
)
