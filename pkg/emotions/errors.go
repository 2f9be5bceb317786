package emotions

import "errors"

// Sentinel errors for label and catalog handling.
var (
	// ErrUnknownLabel is returned when a label name is not part of the set.
	ErrUnknownLabel = errors.New("emotions: unknown label")

	// ErrEmptySet is returned when a label set has no labels.
	ErrEmptySet = errors.New("emotions: label set is empty")

	// ErrDuplicateLabel is returned when a label appears twice in a set.
	ErrDuplicateLabel = errors.New("emotions: duplicate label")

	// ErrNotFound is returned when a catalog entry doesn't exist.
	ErrNotFound = errors.New("emotions: catalog entry not found")
)
