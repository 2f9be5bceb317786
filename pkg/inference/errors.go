package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrClassifierLoad wraps classifier construction failures.
	ErrClassifierLoad = errors.New("inference: classifier load failed")

	// ErrClassify wraps per-face classification failures.
	ErrClassify = errors.New("inference: classification failed")

	// ErrLabelOutOfRange means the classifier produced a label outside the set.
	ErrLabelOutOfRange = errors.New("inference: label out of range")
)

// FaceError is a classification failure for one face of one frame.
type FaceError struct {
	Seq  uint64 // Frame sequence number
	Face int    // Index of the box within the frame
	Err  error
}

// Error implements the error interface.
func (e *FaceError) Error() string {
	return fmt.Sprintf("inference: frame %d face %d: %v", e.Seq, e.Face, e.Err)
}

// Unwrap returns the underlying error.
func (e *FaceError) Unwrap() error {
	return e.Err
}
