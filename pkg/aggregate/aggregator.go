// Package aggregate keeps a bounded history of classification samples and
// turns it into a confidence-weighted emotion distribution.
package aggregate

import (
	"sync"

	"github.com/teslashibe/go-affect/pkg/emotions"
)

// DefaultCapacity is the history length used when none is configured.
const DefaultCapacity = 100

// Distribution is the confidence-weighted share of each label in the history.
type Distribution struct {
	Percent    []int     `json:"percent"`    // Integer percentages in canonical label order
	Share      []float64 `json:"share"`      // Exact percentages before rounding
	Confidence float64   `json:"confidence"` // Mean confidence over the history
	Samples    int       `json:"samples"`
}

// Empty reports whether the distribution carries no signal.
func (d Distribution) Empty() bool {
	return d.Samples == 0 || d.total() == 0
}

func (d Distribution) total() int {
	var t int
	for _, p := range d.Percent {
		t += p
	}
	return t
}

// Top returns the label with the highest percentage. Ties go to the lower
// index. ok is false when the distribution is empty.
func (d Distribution) Top() (l emotions.Label, ok bool) {
	if d.Empty() {
		return 0, false
	}
	best := 0
	for i, p := range d.Percent {
		if p > d.Percent[best] {
			best = i
		}
	}
	return emotions.Label(best), true
}

// Aggregator is a fixed-capacity ring buffer of samples.
// It is safe for concurrent use.
type Aggregator struct {
	labels *emotions.Set

	mu    sync.RWMutex
	buf   []emotions.Sample
	head  int // Index of the oldest sample
	count int
}

// New creates an aggregator over labels. Capacity below 1 uses DefaultCapacity.
func New(labels *emotions.Set, capacity int) *Aggregator {
	if labels == nil {
		labels = emotions.DefaultSet()
	}
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		labels: labels,
		buf:    make([]emotions.Sample, capacity),
	}
}

// Push appends a sample, evicting the oldest when full. Samples with a
// label outside the set are ignored.
func (a *Aggregator) Push(s emotions.Sample) {
	if !a.labels.Valid(s.Label) {
		return
	}
	s = emotions.NewSample(s.Label, s.Confidence)

	a.mu.Lock()
	defer a.mu.Unlock()

	capacity := len(a.buf)
	if a.count < capacity {
		a.buf[(a.head+a.count)%capacity] = s
		a.count++
		return
	}
	a.buf[a.head] = s
	a.head = (a.head + 1) % capacity
}

// Len returns the number of samples held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Cap returns the history capacity.
func (a *Aggregator) Cap() int {
	return len(a.buf)
}

// Clear drops every sample.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.head = 0
	a.count = 0
}

// Samples returns the history from oldest to newest.
func (a *Aggregator) Samples() []emotions.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]emotions.Sample, a.count)
	for i := range out {
		out[i] = a.buf[(a.head+i)%len(a.buf)]
	}
	return out
}

// Distribution computes the confidence-weighted share of each label.
//
// Percentages are truncated: a non-empty distribution falls short of 100
// by less than one point per label, and labels with equal weight always
// get equal percentages. With zero total confidence every percentage is 0.
func (a *Aggregator) Distribution() Distribution {
	n := a.labels.Len()
	d := Distribution{
		Percent: make([]int, n),
		Share:   make([]float64, n),
	}

	a.mu.RLock()
	weights := make([]float64, n)
	var total float64
	for i := 0; i < a.count; i++ {
		s := a.buf[(a.head+i)%len(a.buf)]
		weights[s.Label] += s.Confidence
		total += s.Confidence
	}
	d.Samples = a.count
	a.mu.RUnlock()

	if d.Samples == 0 || total == 0 {
		return d
	}
	d.Confidence = total / float64(d.Samples)

	for i, w := range weights {
		d.Share[i] = w / total * 100
		d.Percent[i] = int(d.Share[i])
	}
	return d
}
