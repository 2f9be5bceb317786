package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-affect/pkg/frame"
)

const exhaustedWait = 5 * time.Millisecond

// MockOpener opens synthetic devices. It counts opens and closes so tests
// can check the device lifecycle.
type MockOpener struct {
	openErr   error
	readErrs  func(n int) error
	interval  time.Duration
	maxFrames int
	size      [2]int

	opens  atomic.Int64
	closes atomic.Int64

	mu      sync.Mutex
	devices []*MockDevice
}

// MockOption configures a MockOpener.
type MockOption func(*MockOpener)

// WithOpenError makes every Open fail with err.
func WithOpenError(err error) MockOption {
	return func(m *MockOpener) {
		m.openErr = err
	}
}

// WithReadErrors makes Read fail when fn returns non-nil for the 1-based
// read number n.
func WithReadErrors(fn func(n int) error) MockOption {
	return func(m *MockOpener) {
		m.readErrs = fn
	}
}

// WithFrameInterval paces Read like a real camera.
func WithFrameInterval(d time.Duration) MockOption {
	return func(m *MockOpener) {
		m.interval = d
	}
}

// WithMaxFrames ends the stream after n frames: further reads wait briefly
// and then fail with ErrRead, like a camera that stopped delivering.
func WithMaxFrames(n int) MockOption {
	return func(m *MockOpener) {
		m.maxFrames = n
	}
}

// WithSize overrides the frame size from the config.
func WithSize(width, height int) MockOption {
	return func(m *MockOpener) {
		m.size = [2]int{width, height}
	}
}

// NewMockOpener creates a mock opener.
func NewMockOpener(opts ...MockOption) *MockOpener {
	m := &MockOpener{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open implements Opener.
func (m *MockOpener) Open(ctx context.Context, cfg Config) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens.Add(1)

	w, h := cfg.Width, cfg.Height
	if m.size[0] > 0 {
		w, h = m.size[0], m.size[1]
	}

	d := &MockDevice{
		opener: m,
		width:  w,
		height: h,
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.devices = append(m.devices, d)
	m.mu.Unlock()
	return d, nil
}

// Opens returns how many devices were opened.
func (m *MockOpener) Opens() int {
	return int(m.opens.Load())
}

// Closes returns how many devices were closed.
func (m *MockOpener) Closes() int {
	return int(m.closes.Load())
}

// Devices returns every device opened so far.
func (m *MockOpener) Devices() []*MockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockDevice(nil), m.devices...)
}

// MockDevice generates a moving bright square on a dark gradient.
type MockDevice struct {
	opener *MockOpener
	width  int
	height int

	reads     atomic.Int64
	seq       uint64
	closeOnce sync.Once
	closes    atomic.Int64
	done      chan struct{}
}

// Read implements Device.
func (d *MockDevice) Read() (*frame.Frame, error) {
	select {
	case <-d.done:
		return nil, ErrClosed
	default:
	}

	if d.opener.maxFrames > 0 && int(d.seq) >= d.opener.maxFrames {
		t := time.NewTimer(exhaustedWait)
		defer t.Stop()
		select {
		case <-d.done:
			return nil, ErrClosed
		case <-t.C:
			return nil, fmt.Errorf("%w: stream exhausted", ErrRead)
		}
	}

	if d.opener.interval > 0 {
		t := time.NewTimer(d.opener.interval)
		select {
		case <-d.done:
			t.Stop()
			return nil, ErrClosed
		case <-t.C:
		}
	}

	n := int(d.reads.Add(1))
	if fn := d.opener.readErrs; fn != nil {
		if err := fn(n); err != nil {
			return nil, err
		}
	}

	d.seq++
	return d.render(), nil
}

func (d *MockDevice) render() *frame.Frame {
	f := frame.New(d.width, d.height, frame.BGR)
	f.Seq = d.seq
	f.CapturedAt = time.Now()

	side := d.height / 3
	x0 := int(d.seq*4) % max(d.width-side, 1)
	y0 := d.height / 3
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			v := uint8(x * 64 / max(d.width, 1))
			if x >= x0 && x < x0+side && y >= y0 && y < y0+side {
				v = 220
			}
			i := (y*d.width + x) * 3
			f.Data[i], f.Data[i+1], f.Data[i+2] = v, v, v
		}
	}
	return f
}

// Close implements Device. Only the first call counts.
func (d *MockDevice) Close() error {
	d.closes.Add(1)
	d.closeOnce.Do(func() {
		close(d.done)
		d.opener.closes.Add(1)
	})
	return nil
}

// CloseCalls returns how many times Close was called on this device.
func (d *MockDevice) CloseCalls() int {
	return int(d.closes.Load())
}

// Reads returns how many reads were attempted.
func (d *MockDevice) Reads() int {
	return int(d.reads.Load())
}
