// Package pipeline wires capture, inference, aggregation and stability into
// a working-session lifecycle and exposes the result as an event surface.
//
// Frames and face detections travel through latest-wins slots: a slow
// consumer sees the newest value and never stalls capture. Emotion results,
// display changes and errors travel through a bounded queue; when it is full
// new events are dropped and counted. Pump delivers both to a Sink on the
// caller's goroutine.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-affect/internal/timeutil"
	"github.com/teslashibe/go-affect/pkg/aggregate"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/inference"
	"github.com/teslashibe/go-affect/pkg/mailbox"
	"github.com/teslashibe/go-affect/pkg/stability"
)

// State is the session state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options injects collaborators. Zero values select production defaults
// built from Config.
type Options struct {
	Opener           camera.Opener
	DetectorLoader   detection.Loader
	ClassifierLoader classifier.Loader
	Clock            timeutil.Clock
	Logger           *slog.Logger
}

// Controller owns one pipeline and its session lifecycle.
type Controller struct {
	cfg    Config
	labels *emotions.Set
	clock  timeutil.Clock
	logger *slog.Logger

	agg     *aggregate.Aggregator
	stab    *stability.Detector
	capture *capture.Worker
	infer   *inference.Worker
	metrics *MetricsCollector

	frames *mailbox.Slot[capture.Capture]
	faces  *mailbox.Slot[detection.Faces]
	events chan event

	mu          sync.Mutex
	state       State
	session     string
	startedAt   time.Time
	cancel      context.CancelFunc
	cadenceDone chan struct{}

	eventsSent    atomic.Uint64
	eventsDropped atomic.Uint64
}

// New validates cfg and builds an idle controller.
func New(cfg Config, opts Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	labels, err := cfg.LabelSet()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	opener := opts.Opener
	if opener == nil {
		opener = camera.NewOpener(logger)
	}
	detLoader := opts.DetectorLoader
	if detLoader == nil {
		detLoader = detection.LoaderFor(cfg.Detector, logger)
	}
	clsLoader := opts.ClassifierLoader
	if clsLoader == nil {
		clsLoader = classifier.LoaderFor(cfg.Classifier, labels, logger)
	}

	c := &Controller{
		cfg:     cfg,
		labels:  labels,
		clock:   clock,
		logger:  logger.With("component", "pipeline"),
		agg:     aggregate.New(labels, cfg.HistoryCapacity),
		stab:    stability.New(cfg.defaultLabel(labels), cfg.Dwell, clock),
		metrics: NewMetricsCollector(),
		frames:  mailbox.New[capture.Capture](),
		faces:   mailbox.New[detection.Faces](),
		events:  make(chan event, cfg.EventBuffer),
	}

	emit := &emitter{c: c}
	c.infer = inference.New(inference.Config{
		Loader:    clsLoader,
		Labels:    labels,
		InputSize: cfg.Classifier.InputSize,
		Sink:      c.agg,
		Reporter:  emit,
		Logger:    logger,
	})
	c.capture = capture.New(cfg.captureConfig(), opener, detLoader, emit, logger)

	return c, nil
}

// Labels returns the canonical label set.
func (c *Controller) Labels() *emotions.Set {
	return c.labels
}

// Config returns the active configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetCamera replaces the camera settings. They apply from the next Start.
func (c *Controller) SetCamera(cfg camera.Config) error {
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("%w: camera: %v", ErrInvalidConfig, issues)
	}
	c.mu.Lock()
	c.cfg.Camera = cfg
	capCfg := c.cfg.captureConfig()
	c.mu.Unlock()

	c.capture.SetConfig(capCfg)
	return nil
}

// Metrics returns the session metrics collector.
func (c *Controller) Metrics() *MetricsCollector {
	return c.metrics
}

// State returns the session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session ID, or "" when idle.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Display returns the label currently shown.
func (c *Controller) Display() stability.State {
	return c.stab.State()
}

// Distribution returns the current distribution without waiting for a tick.
func (c *Controller) Distribution() aggregate.Distribution {
	return c.agg.Distribution()
}

// Start begins a working session: clears history, loads the classifier,
// opens the camera, loads the detector and starts the cadence loop.
// A failure is delivered as a fatal event, leaves the controller idle and
// is returned. Retrying is up to the caller.
//
// The session outlives ctx cancellation; end it with Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (%s)", ErrNotIdle, state)
	}
	c.state = StateStarting
	session := uuid.NewString()
	c.session = session
	c.mu.Unlock()

	logger := c.logger.With("session", session)
	logger.Info("session starting")

	c.agg.Clear()
	display := c.cfg.defaultLabel(c.labels)
	c.stab.Reset(display)
	c.frames.Drain()
	c.faces.Drain()

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	fail := func(err error) error {
		cancel()
		c.mu.Lock()
		c.state = StateIdle
		c.session = ""
		c.mu.Unlock()
		logger.Error("session start failed", "error", err)
		return &Error{Kind: KindOf(err), Session: session, Err: err}
	}

	if err := c.infer.Start(sessCtx); err != nil {
		return fail(err)
	}
	if err := c.capture.Start(sessCtx); err != nil {
		c.infer.Stop()
		return fail(err)
	}

	now := c.clock.Now()
	c.metrics.StartSession(session, c.labels.Name(display), now)

	done := make(chan struct{})
	ticker := c.clock.NewTicker(c.cfg.Cadence)
	go c.cadence(sessCtx, session, ticker, done)

	c.mu.Lock()
	c.cancel = cancel
	c.cadenceDone = done
	c.startedAt = now
	c.state = StateRunning
	c.mu.Unlock()

	logger.Info("session running",
		"cadence", c.cfg.Cadence,
		"dwell", c.cfg.Dwell,
		"display", c.labels.Name(display),
	)
	return nil
}

// Stop ends the session. It waits for capture, inference and the cadence
// loop to finish, but never for the consumer. Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	session, cancel, done := c.session, c.cancel, c.cadenceDone
	c.mu.Unlock()

	c.capture.Stop()
	c.infer.Stop()
	cancel()
	<-done

	c.metrics.EndSession(c.clock.Now())

	c.mu.Lock()
	c.state = StateIdle
	c.session = ""
	c.cancel = nil
	c.cadenceDone = nil
	c.mu.Unlock()

	c.logger.Info("session stopped", "session", session)
}

// Restart stops the current session, if any, and starts a new one.
func (c *Controller) Restart(ctx context.Context) error {
	c.Stop()
	return c.Start(ctx)
}

// cadence publishes an EmotionResult every tick and a DisplayChange when
// the stability detector switches label.
func (c *Controller) cadence(ctx context.Context, session string, ticker timeutil.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.tick(session)
		}
	}
}

func (c *Controller) tick(session string) {
	prev := c.stab.State().Current
	dist := c.agg.Distribution()
	display, changed := c.stab.Tick(dist)
	now := c.clock.Now()

	c.metrics.RecordResult()
	c.publish(event{result: &EmotionResult{
		Session:      session,
		Distribution: dist,
		Labels:       c.labels.Names(),
		Display:      display,
		DisplayName:  c.labels.Name(display),
		At:           now,
	}})

	if changed {
		c.logger.Info("display emotion changed",
			"session", session,
			"from", c.labels.Name(prev),
			"to", c.labels.Name(display),
		)
		c.metrics.RecordChange(c.labels.Name(display), now)
		c.publish(event{change: &DisplayChange{
			Session:  session,
			From:     prev,
			To:       display,
			FromName: c.labels.Name(prev),
			ToName:   c.labels.Name(display),
			At:       now,
		}})
	}
}

// publish enqueues a discrete event without blocking.
func (c *Controller) publish(e event) {
	select {
	case c.events <- e:
		c.eventsSent.Add(1)
	default:
		n := c.eventsDropped.Add(1)
		if n == 1 || n%100 == 0 {
			c.logger.Warn("event queue full, dropping events", "dropped", n)
		}
	}
}

// Pump delivers frames, detections and events to sink until ctx is done.
// It runs on the caller's goroutine and may be called across sessions.
func (c *Controller) Pump(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.frames.C():
			sink.OnFrameReady(f)
		case f := <-c.faces.C():
			sink.OnFacesDetected(f)
		case e := <-c.events:
			e.deliver(sink)
		}
	}
}

// emitter adapts worker output to the controller's event surface.
type emitter struct {
	c *Controller
}

func (e *emitter) EmitFrame(cp capture.Capture) {
	e.c.frames.Publish(cp)
}

func (e *emitter) EmitFaces(f detection.Faces) {
	e.c.faces.Publish(f)
	e.c.infer.Input().Publish(f)
}

func (e *emitter) EmitError(err error) {
	e.report(err)
}

func (e *emitter) EmitFatal(err error) {
	e.report(err)
}

func (e *emitter) report(err error) {
	kind := KindOf(err)
	e.c.metrics.RecordError(kind.Fatal())
	e.c.publish(event{err: &Error{Kind: kind, Session: e.c.Session(), Err: err}})
}
