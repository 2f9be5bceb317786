package detection

import (
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// Mock is a scripted detector for tests and for running without OpenCV.
type Mock struct {
	// DetectFunc overrides the default behaviour when set.
	DetectFunc func(gray *frame.Frame) []FaceBox

	mu    sync.Mutex
	boxes []FaceBox
	seqs  []uint64

	calls  atomic.Int64
	closed atomic.Int64
}

// NewMock returns a detector that finds the given boxes in every frame.
func NewMock(boxes ...FaceBox) *Mock {
	return &Mock{boxes: boxes}
}

// SetBoxes replaces the boxes returned by subsequent calls.
func (m *Mock) SetBoxes(boxes ...FaceBox) {
	m.mu.Lock()
	m.boxes = boxes
	m.mu.Unlock()
}

// Detect implements Detector.
func (m *Mock) Detect(gray *frame.Frame) []FaceBox {
	m.calls.Add(1)

	m.mu.Lock()
	if gray != nil {
		m.seqs = append(m.seqs, gray.Seq)
	}
	boxes := append([]FaceBox(nil), m.boxes...)
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(gray)
	}
	if gray.Empty() {
		return nil
	}
	return boxes
}

// Close implements Detector.
func (m *Mock) Close() error {
	m.closed.Add(1)
	return nil
}

// Calls returns how many times Detect ran.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// Seqs returns the frame sequence numbers Detect was called with.
func (m *Mock) Seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.seqs...)
}

// Closed returns how many times Close ran.
func (m *Mock) Closed() int {
	return int(m.closed.Load())
}
