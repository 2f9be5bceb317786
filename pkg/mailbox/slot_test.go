package mailbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSlot_NewestWins(t *testing.T) {
	s := New[int]()
	s.Publish(1)
	s.Publish(2)
	s.Publish(3)

	v, ok := s.TryNext()
	if !ok || v != 3 {
		t.Fatalf("TryNext: got (%d, %v), want (3, true)", v, ok)
	}

	if _, ok := s.TryNext(); ok {
		t.Error("slot should be empty after consume")
	}

	st := s.Stats()
	if st.Published != 3 || st.Dropped != 2 {
		t.Errorf("Stats: got %+v, want published=3 dropped=2", st)
	}
}

func TestSlot_NextBlocksUntilPublish(t *testing.T) {
	s := New[string]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Publish("frame")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v != "frame" {
		t.Errorf("Next: got %q", v)
	}
}

func TestSlot_NextCancelled(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Next: got %v, want context.Canceled", err)
	}
}

func TestSlot_Drain(t *testing.T) {
	s := New[int]()
	s.Publish(7)
	s.Drain()
	if _, ok := s.TryNext(); ok {
		t.Error("Drain should empty the slot")
	}
}

func TestSlot_ConcurrentPublishNeverBlocks(t *testing.T) {
	s := New[int]()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.Publish(base + i)
			}
		}(p * 1000)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishers blocked without a consumer")
	}

	st := s.Stats()
	if st.Published != 8000 {
		t.Errorf("Published: got %d, want 8000", st.Published)
	}
	if st.Dropped != 7999 {
		t.Errorf("Dropped: got %d, want 7999", st.Dropped)
	}
}
