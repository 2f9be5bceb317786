// Package emotions defines the canonical emotion label set shared by every
// pipeline stage, the per-face classification sample, and the static catalog
// of descriptions shown next to the stable emotion.
//
// A Label is an index into a Set. The classifier, the aggregator and the
// stability detector all receive the same *Set from the pipeline controller,
// so the index a model emits and the index the aggregator counts cannot drift.
package emotions

import (
	"fmt"
	"strings"
)

// Label identifies an emotion by its position in a Set.
type Label int

// Labels of the default set, in canonical order.
const (
	Annoyed Label = iota
	Happiness
	Sad
	Upset
)

// DefaultNames is the canonical ordering used when no set is configured.
var DefaultNames = []string{"Annoyed", "Happiness", "Sad", "Upset"}

// Set is a fixed, ordered, closed collection of emotion labels.
// A Set is immutable after construction and safe for concurrent use.
type Set struct {
	names []string
	index map[string]Label
}

// NewSet builds a set from names in canonical order.
// Names are matched case-insensitively by Parse.
func NewSet(names ...string) (*Set, error) {
	if len(names) == 0 {
		return nil, ErrEmptySet
	}

	s := &Set{
		names: make([]string, len(names)),
		index: make(map[string]Label, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: blank name at position %d", ErrUnknownLabel, i)
		}
		key := strings.ToLower(name)
		if _, dup := s.index[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, name)
		}
		s.names[i] = name
		s.index[key] = Label(i)
	}
	return s, nil
}

// DefaultSet returns the set {Annoyed, Happiness, Sad, Upset}.
func DefaultSet() *Set {
	s, _ := NewSet(DefaultNames...)
	return s
}

// Len returns the number of labels.
func (s *Set) Len() int {
	return len(s.names)
}

// Valid reports whether l belongs to the set.
func (s *Set) Valid(l Label) bool {
	return l >= 0 && int(l) < len(s.names)
}

// Name returns the display name of l, or "unknown" for out-of-range labels.
func (s *Set) Name(l Label) string {
	if !s.Valid(l) {
		return "unknown"
	}
	return s.names[l]
}

// Names returns a copy of the label names in canonical order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Labels returns every label in canonical order.
func (s *Set) Labels() []Label {
	out := make([]Label, len(s.names))
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// Parse looks up a label by name.
func (s *Set) Parse(name string) (Label, error) {
	l, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLabel, name)
	}
	return l, nil
}

// Sample is one classification of one face in one processed frame.
type Sample struct {
	Label      Label
	Confidence float64 // Always within [0, 1]
}

// NewSample clamps confidence into [0, 1]. NaN becomes 0.
func NewSample(l Label, confidence float64) Sample {
	switch {
	case confidence != confidence, confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return Sample{Label: l, Confidence: confidence}
}
