package pipeline

import (
	"time"

	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/inference"
	"github.com/teslashibe/go-affect/pkg/mailbox"
)

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	State         string          `json:"state"`
	Session       string          `json:"session,omitempty"`
	Uptime        time.Duration   `json:"uptime"`
	Display       string          `json:"display"`
	History       int             `json:"history"`
	Capture       capture.Stats   `json:"capture"`
	Inference     inference.Stats `json:"inference"`
	Frames        mailbox.Stats   `json:"frames"`
	Faces         mailbox.Stats   `json:"faces"`
	EventsSent    uint64          `json:"events_sent"`
	EventsDropped uint64          `json:"events_dropped"`
}

// Stats returns counters from every stage.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	state, session, startedAt := c.state, c.session, c.startedAt
	c.mu.Unlock()

	var uptime time.Duration
	if state == StateRunning {
		uptime = c.clock.Since(startedAt)
	}

	return Stats{
		State:         state.String(),
		Session:       session,
		Uptime:        uptime,
		Display:       c.labels.Name(c.stab.State().Current),
		History:       c.agg.Len(),
		Capture:       c.capture.Stats(),
		Inference:     c.infer.Stats(),
		Frames:        c.frames.Stats(),
		Faces:         c.faces.Stats(),
		EventsSent:    c.eventsSent.Load(),
		EventsDropped: c.eventsDropped.Load(),
	}
}
