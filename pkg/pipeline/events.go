package pipeline

import (
	"time"

	"github.com/teslashibe/go-affect/pkg/aggregate"
	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
)

// EmotionResult is published once per cadence tick.
type EmotionResult struct {
	Session      string                 `json:"session"`
	Distribution aggregate.Distribution `json:"distribution"`
	Labels       []string               `json:"labels"`  // Names in canonical order, aligned with Distribution.Percent
	Display      emotions.Label         `json:"display"` // Label currently shown
	DisplayName  string                 `json:"display_name"`
	At           time.Time              `json:"at"`
}

// Percent returns the percentage for a label name, 0 if unknown.
func (r EmotionResult) Percent(name string) int {
	for i, n := range r.Labels {
		if n == name && i < len(r.Distribution.Percent) {
			return r.Distribution.Percent[i]
		}
	}
	return 0
}

// DisplayChange is published when the displayed emotion changes.
type DisplayChange struct {
	Session  string         `json:"session"`
	From     emotions.Label `json:"from"`
	To       emotions.Label `json:"to"`
	FromName string         `json:"from_name"`
	ToName   string         `json:"to_name"`
	At       time.Time      `json:"at"`
}

// Sink consumes pipeline output. Pump calls it from a single goroutine.
type Sink interface {
	OnFrameReady(c capture.Capture)
	OnFacesDetected(f detection.Faces)
	OnEmotionResult(r EmotionResult)
	OnDisplayEmotionChanged(c DisplayChange)
	OnFatalError(err *Error)
	OnTransientError(err *Error)
}

// NopSink ignores everything. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) OnFrameReady(capture.Capture)          {}
func (NopSink) OnFacesDetected(detection.Faces)       {}
func (NopSink) OnEmotionResult(EmotionResult)         {}
func (NopSink) OnDisplayEmotionChanged(DisplayChange) {}
func (NopSink) OnFatalError(*Error)                   {}
func (NopSink) OnTransientError(*Error)               {}

// event is one entry of the discrete event queue.
type event struct {
	result *EmotionResult
	change *DisplayChange
	err    *Error
}

func (e event) deliver(s Sink) {
	switch {
	case e.result != nil:
		s.OnEmotionResult(*e.result)
	case e.change != nil:
		s.OnDisplayEmotionChanged(*e.change)
	case e.err != nil && e.err.Kind.Fatal():
		s.OnFatalError(e.err)
	case e.err != nil:
		s.OnTransientError(e.err)
	}
}
