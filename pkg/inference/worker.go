// Package inference classifies detected faces off the capture goroutine.
//
// Jobs arrive through a single-slot mailbox: when classification falls
// behind, the newest detection replaces the pending one and the older job is
// counted as dropped. Each classified face becomes one emotions.Sample pushed
// to a SampleSink.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/mailbox"
)

// SampleSink receives classification samples. The rolling aggregator is
// the production sink.
type SampleSink interface {
	Push(s emotions.Sample)
}

// SampleSinkFunc adapts a function to SampleSink.
type SampleSinkFunc func(s emotions.Sample)

// Push implements SampleSink.
func (f SampleSinkFunc) Push(s emotions.Sample) { f(s) }

// Reporter receives worker errors. Calls must not block.
type Reporter interface {
	EmitError(err error)
	EmitFatal(err error)
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Jobs      uint64 `json:"jobs"`
	Faces     uint64 `json:"faces"`
	Samples   uint64 `json:"samples"`
	Errors    uint64 `json:"errors"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Worker pulls face jobs and classifies them.
type Worker struct {
	input     *mailbox.Slot[detection.Faces]
	loader    classifier.Loader
	labels    *emotions.Set
	inputSize int
	sink      SampleSink
	report    Reporter
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	jobs    atomic.Uint64
	faces   atomic.Uint64
	samples atomic.Uint64
	errors  atomic.Uint64
}

// Config wires a Worker.
type Config struct {
	Input     *mailbox.Slot[detection.Faces]
	Loader    classifier.Loader
	Labels    *emotions.Set
	InputSize int // Side of the normalized crop, must match the model
	Sink      SampleSink
	Reporter  Reporter
	Logger    *slog.Logger
}

// New creates a stopped worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	labels := cfg.Labels
	if labels == nil {
		labels = emotions.DefaultSet()
	}
	size := cfg.InputSize
	if size <= 0 {
		size = classifier.DefaultConfig().InputSize
	}
	input := cfg.Input
	if input == nil {
		input = mailbox.New[detection.Faces]()
	}
	return &Worker{
		input:     input,
		loader:    cfg.Loader,
		labels:    labels,
		inputSize: size,
		sink:      cfg.Sink,
		report:    cfg.Reporter,
		logger:    logger.With("component", "inference"),
	}
}

// Input returns the job mailbox.
func (w *Worker) Input() *mailbox.Slot[detection.Faces] {
	return w.input
}

// Start loads the classifier and launches the loop. A pending job left
// over from a previous run is discarded.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	cls, err := w.loader()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrClassifierLoad, err)
		w.logger.Error("classifier load failed", "error", err)
		w.report.EmitFatal(err)
		return err
	}

	w.input.Drain()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.running = true

	go w.loop(runCtx, cls, done)

	w.logger.Info("inference started", "input_size", w.inputSize, "labels", w.labels.Len())
	return nil
}

// Stop signals the loop and waits until the classifier is closed.
// Stop is idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("inference stopped")
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	in := w.input.Stats()
	return Stats{
		Jobs:      w.jobs.Load(),
		Faces:     w.faces.Load(),
		Samples:   w.samples.Load(),
		Errors:    w.errors.Load(),
		Published: in.Published,
		Dropped:   in.Dropped,
	}
}

func (w *Worker) loop(ctx context.Context, cls classifier.Classifier, done chan struct{}) {
	defer func() {
		if err := cls.Close(); err != nil {
			w.logger.Warn("classifier close failed", "error", err)
		}
		w.mu.Lock()
		if w.done == done {
			w.running = false
		}
		w.mu.Unlock()
		close(done)
	}()

	for {
		job, err := w.input.Next(ctx)
		if err != nil {
			return
		}
		w.process(ctx, cls, job)
	}
}

// process classifies every face in one job.
func (w *Worker) process(ctx context.Context, cls classifier.Classifier, job detection.Faces) {
	w.jobs.Add(1)
	if job.Gray.Empty() {
		return
	}

	for i, box := range job.Boxes {
		if ctx.Err() != nil {
			return
		}
		w.faces.Add(1)

		pred, err := w.classify(cls, job, box)
		if err == nil && !w.labels.Valid(pred.Label) {
			err = fmt.Errorf("%w: %d", ErrLabelOutOfRange, pred.Label)
		}
		if err != nil {
			w.errors.Add(1)
			ferr := &FaceError{Seq: job.Seq, Face: i, Err: fmt.Errorf("%w: %w", ErrClassify, err)}
			w.logger.Debug("classification failed", "seq", job.Seq, "face", i, "error", err)
			w.report.EmitError(ferr)
			continue
		}

		w.samples.Add(1)
		w.sink.Push(pred.Sample())
	}
}

// classify runs the classifier on one face. A panic inside the backend is
// returned as an error so the face is skipped like any other failure.
func (w *Worker) classify(cls classifier.Classifier, job detection.Faces, box detection.FaceBox) (pred classifier.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	crop := job.Gray.Crop(box.Rect())
	return cls.Classify(classifier.Normalize(crop, w.inputSize))
}
