// Package stability decides when the displayed emotion may change.
//
// A new label is shown only when it strictly dominates the distribution and
// the current label has been on screen for at least the dwell time. This
// keeps the display from flickering between close candidates.
package stability

import (
	"sync"
	"time"

	"github.com/teslashibe/go-affect/internal/timeutil"
	"github.com/teslashibe/go-affect/pkg/aggregate"
	"github.com/teslashibe/go-affect/pkg/emotions"
)

// DefaultDwell is the minimum time a displayed label stays up.
const DefaultDwell = 1500 * time.Millisecond

// State is the displayed label and when it was last changed.
type State struct {
	Current   emotions.Label `json:"current"`
	ChangedAt time.Time      `json:"changed_at"`
}

// Detector applies the dwell and dominance rules.
type Detector struct {
	dwell time.Duration
	clock timeutil.Clock

	mu    sync.Mutex
	state State
}

// New creates a detector showing initial from now on.
func New(initial emotions.Label, dwell time.Duration, clock timeutil.Clock) *Detector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if dwell < 0 {
		dwell = 0
	}
	return &Detector{
		dwell: dwell,
		clock: clock,
		state: State{Current: initial, ChangedAt: clock.Now()},
	}
}

// Reset shows label and restarts the dwell timer. Called at session start.
func (d *Detector) Reset(label emotions.Label) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{Current: label, ChangedAt: d.clock.Now()}
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dwell returns the configured dwell time.
func (d *Detector) Dwell() time.Duration {
	return d.dwell
}

// Tick evaluates a distribution and reports the label to display and
// whether it changed on this tick.
//
// The candidate is the label with the highest percentage (lower index on
// ties). It replaces the current label only if it is strictly greater than
// every other label, differs from the current one, and the dwell time has
// elapsed since the last change. Empty distributions never change anything.
func (d *Detector) Tick(dist aggregate.Distribution) (emotions.Label, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidate, ok := dist.Top()
	if !ok {
		return d.state.Current, false
	}

	top := dist.Percent[candidate]
	for i, p := range dist.Percent {
		if emotions.Label(i) != candidate && p >= top {
			return d.state.Current, false
		}
	}

	if candidate == d.state.Current {
		return d.state.Current, false
	}

	now := d.clock.Now()
	if now.Sub(d.state.ChangedAt) < d.dwell {
		return d.state.Current, false
	}

	d.state = State{Current: candidate, ChangedAt: now}
	return candidate, true
}
