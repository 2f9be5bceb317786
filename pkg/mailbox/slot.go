// Package mailbox provides a single-slot "latest value wins" hand-off.
//
// A Slot holds at most one unconsumed value. Publishing over an unconsumed
// value replaces it and counts a drop. Publish never blocks, so a slow
// consumer can never stall the producer.
package mailbox

import (
	"context"
	"sync"
	"sync/atomic"
)

// Slot is a single-slot mailbox with overwrite-on-publish semantics.
// Any number of goroutines may Publish; there should be one consumer.
type Slot[T any] struct {
	mu sync.Mutex
	ch chan T

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a snapshot of slot counters.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// New creates an empty slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Publish stores v, replacing any value the consumer has not taken yet.
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	s.ch <- v
	s.published.Add(1)
}

// C returns the receive side of the slot for use in select statements.
func (s *Slot[T]) C() <-chan T {
	return s.ch
}

// Next blocks until a value is available or ctx is done.
func (s *Slot[T]) Next(ctx context.Context) (T, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryNext returns the pending value without blocking.
func (s *Slot[T]) TryNext() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Drain discards any pending value.
func (s *Slot[T]) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
	default:
	}
}

// Stats returns the slot counters.
func (s *Slot[T]) Stats() Stats {
	return Stats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
	}
}
