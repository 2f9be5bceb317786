package pipeline

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/inference"
)

var (
	// ErrNotIdle is returned by Start when a session is active or changing state.
	ErrNotIdle = errors.New("pipeline: session already active")
)

// ErrorKind classifies pipeline errors.
type ErrorKind int

const (
	KindCameraOpen ErrorKind = iota
	KindDetectorLoad
	KindClassifierLoad
	KindCameraRead
	KindClassify
	KindDetect
	KindInternal
)

// String returns the kind name used in logs and on the wire.
func (k ErrorKind) String() string {
	switch k {
	case KindCameraOpen:
		return "camera_open"
	case KindDetectorLoad:
		return "detector_load"
	case KindClassifierLoad:
		return "classifier_load"
	case KindCameraRead:
		return "camera_read"
	case KindClassify:
		return "classify"
	case KindDetect:
		return "detect"
	default:
		return "internal"
	}
}

// Fatal reports whether errors of this kind end the session.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindCameraOpen, KindDetectorLoad, KindClassifierLoad:
		return true
	default:
		return false
	}
}

// Error is a pipeline error tagged with its kind and session.
type Error struct {
	Kind    ErrorKind
	Session string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("pipeline [%s]: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf maps a worker error to its kind.
func KindOf(err error) ErrorKind {
	var pe *Error
	switch {
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, capture.ErrCameraOpen):
		return KindCameraOpen
	case errors.Is(err, capture.ErrDetectorLoad):
		return KindDetectorLoad
	case errors.Is(err, inference.ErrClassifierLoad):
		return KindClassifierLoad
	case errors.Is(err, capture.ErrCameraRead):
		return KindCameraRead
	case errors.Is(err, inference.ErrClassify):
		return KindClassify
	case errors.Is(err, capture.ErrDetect):
		return KindDetect
	default:
		return KindInternal
	}
}
