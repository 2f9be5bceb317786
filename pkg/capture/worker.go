// Package capture runs the camera loop: read a frame, detect faces on every
// Nth frame, and hand frames and detections to an Emitter.
//
// The worker owns the camera device and the face detector for the lifetime of
// one run. Both are acquired in Start and released by the loop goroutine
// before Stop returns.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/frame"
)

var (
	// ErrCameraOpen wraps device open failures.
	ErrCameraOpen = errors.New("capture: camera open failed")

	// ErrDetectorLoad wraps detector construction failures.
	ErrDetectorLoad = errors.New("capture: detector load failed")

	// ErrCameraRead wraps transient frame read failures.
	ErrCameraRead = errors.New("capture: frame read failed")

	// ErrDetect reports a detector that panicked on one frame.
	ErrDetect = errors.New("capture: face detection failed")
)

// State is the worker lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Capture is one frame together with the face boxes to draw on it.
// Boxes are the most recent detection result, so unprocessed frames carry
// the boxes of the last processed frame.
type Capture struct {
	Frame     *frame.Frame
	Boxes     []detection.FaceBox
	Processed bool // Detection ran on this frame
}

// Emitter receives the worker output. Calls come from the capture goroutine
// and must not block. They must not call Stop either, since Stop waits for
// that goroutine to exit; an emitter that needs to end the run calls Stop
// from another goroutine.
type Emitter interface {
	EmitFrame(c Capture)
	EmitFaces(f detection.Faces)
	EmitError(err error)
	EmitFatal(err error)
}

// Config holds capture loop settings.
type Config struct {
	Camera     camera.Config
	SkipFrames int           // Frames skipped between detections; detection runs every SkipFrames+1 frames
	RetryDelay time.Duration // Pause after a failed read
}

// DefaultConfig returns detection on every second frame.
func DefaultConfig() Config {
	return Config{
		Camera:     camera.DefaultConfig(),
		SkipFrames: 1,
		RetryDelay: 10 * time.Millisecond,
	}
}

// Interval returns N, the detection period in frames.
func (c Config) Interval() int {
	if c.SkipFrames < 0 {
		return 1
	}
	return c.SkipFrames + 1
}

// Stats is a snapshot of worker counters. Counters accumulate across runs.
type Stats struct {
	Runs         uint64 `json:"runs"`
	Frames       uint64 `json:"frames"`
	Processed    uint64 `json:"processed"`
	Faces        uint64 `json:"faces"`
	ReadErrors   uint64 `json:"read_errors"`
	DetectErrors uint64 `json:"detect_errors"`
}

// Worker is the capture loop.
type Worker struct {
	opener camera.Opener
	loader detection.Loader
	emit   Emitter
	logger *slog.Logger

	mu     sync.Mutex
	cfg    Config
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	runs       atomic.Uint64
	frames     atomic.Uint64
	processed  atomic.Uint64
	faces      atomic.Uint64
	readErrors atomic.Uint64
	detErrors  atomic.Uint64
}

// New creates a stopped worker.
func New(cfg Config, opener camera.Opener, loader detection.Loader, emit Emitter, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		opener: opener,
		loader: loader,
		emit:   emit,
		logger: logger.With("component", "capture"),
	}
}

// SetConfig replaces the configuration used by the next Start.
func (w *Worker) SetConfig(cfg Config) {
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start opens the camera, loads the detector and launches the loop.
// Failures are reported through EmitFatal and returned; the worker stays
// stopped. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRunning {
		return nil
	}

	dev, err := w.opener.Open(ctx, w.cfg.Camera)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCameraOpen, err)
		w.logger.Error("camera open failed", "device", w.cfg.Camera.DeviceIndex, "error", err)
		w.emit.EmitFatal(err)
		return err
	}

	det, err := w.loader()
	if err != nil {
		dev.Close()
		err = fmt.Errorf("%w: %w", ErrDetectorLoad, err)
		w.logger.Error("detector load failed", "error", err)
		w.emit.EmitFatal(err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.state = StateRunning
	w.runs.Add(1)

	go w.loop(runCtx, w.cfg, dev, det, done)

	w.logger.Info("capture started",
		"device", w.cfg.Camera.DeviceIndex,
		"detect_every", w.cfg.Interval(),
	)
	return nil
}

// Stop signals the loop and waits until the camera and detector are closed.
// Stop is idempotent. It must not be called from an Emitter callback.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.state = StateStopped
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("capture stopped")
}

// Done is closed when the current run's loop exits, or nil when stopped.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateRunning {
		return nil
	}
	return w.done
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Runs:         w.runs.Load(),
		Frames:       w.frames.Load(),
		Processed:    w.processed.Load(),
		Faces:        w.faces.Load(),
		ReadErrors:   w.readErrors.Load(),
		DetectErrors: w.detErrors.Load(),
	}
}

func (w *Worker) loop(ctx context.Context, cfg Config, dev camera.Device, det detection.Detector, done chan struct{}) {
	defer func() {
		if err := det.Close(); err != nil {
			w.logger.Warn("detector close failed", "error", err)
		}
		if err := dev.Close(); err != nil {
			w.logger.Warn("camera close failed", "error", err)
		}

		w.mu.Lock()
		if w.done == done {
			w.state = StateStopped
		}
		w.mu.Unlock()
		close(done)
	}()

	every := cfg.Interval()
	var (
		n      int
		sticky []detection.FaceBox
	)

	for {
		if ctx.Err() != nil {
			return
		}

		f, err := dev.Read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.readErrors.Add(1)
			err = fmt.Errorf("%w: %w", ErrCameraRead, err)
			w.logger.Debug("frame read failed", "error", err)
			w.emit.EmitError(err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.RetryDelay):
			}
			continue
		}

		n++
		w.frames.Add(1)
		processed := n%every == 0

		if processed {
			gray := f.Gray()
			found, err := detect(det, gray)
			if err != nil {
				// Boxes from the last good detection stay on screen
				processed = false
				w.detErrors.Add(1)
				w.logger.Warn("face detection failed", "seq", f.Seq, "error", err)
				w.emit.EmitError(err)
			} else {
				boxes := detection.Sanitize(found, f.Width, f.Height)
				sticky = boxes
				w.processed.Add(1)
				w.faces.Add(uint64(len(boxes)))
				w.emit.EmitFaces(detection.Faces{Gray: gray, Boxes: boxes, Seq: f.Seq})
			}
		}

		w.emit.EmitFrame(Capture{
			Frame:     f,
			Boxes:     append([]detection.FaceBox(nil), sticky...),
			Processed: processed,
		})
	}
}

// detect runs one detection, turning a detector panic into ErrDetect.
func detect(det detection.Detector, gray *frame.Frame) (boxes []detection.FaceBox, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: frame %d: panic: %v", ErrDetect, gray.Seq, r)
		}
	}()
	return det.Detect(gray), nil
}
