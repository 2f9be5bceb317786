package pipeline

import (
	"sync"
	"time"
)

// SessionMetrics summarizes one working session.
type SessionMetrics struct {
	Session   string        `json:"session"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`

	Results         int `json:"results"`          // Cadence ticks delivered
	Changes         int `json:"changes"`          // Display changes
	TransientErrors int `json:"transient_errors"` // Read and classify failures
	FatalErrors     int `json:"fatal_errors"`

	// Time each label spent on display during the session
	DisplayTime map[string]time.Duration `json:"display_time"`

	lastName   string
	lastChange time.Time
}

// MetricsCollector records per-session metrics.
// It is goroutine-safe and can be used from multiple callbacks.
type MetricsCollector struct {
	mu      sync.Mutex
	current *SessionMetrics
	history []SessionMetrics // Recent sessions, newest last

	onUpdate func(SessionMetrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]SessionMetrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever a session ends.
func (m *MetricsCollector) OnUpdate(fn func(SessionMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// StartSession begins a new session record showing display.
func (m *MetricsCollector) StartSession(id, display string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &SessionMetrics{
		Session:     id,
		StartedAt:   at,
		DisplayTime: make(map[string]time.Duration),
		lastName:    display,
		lastChange:  at,
	}
}

// RecordResult counts a cadence tick.
func (m *MetricsCollector) RecordResult() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Results++
	}
}

// RecordChange accounts display time of the previous label.
func (m *MetricsCollector) RecordChange(to string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current.Changes++
	m.current.DisplayTime[m.current.lastName] += at.Sub(m.current.lastChange)
	m.current.lastName = to
	m.current.lastChange = at
}

// RecordError counts an error by severity.
func (m *MetricsCollector) RecordError(fatal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	if fatal {
		m.current.FatalErrors++
	} else {
		m.current.TransientErrors++
	}
}

// EndSession archives the current session.
func (m *MetricsCollector) EndSession(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}

	s := m.current
	s.EndedAt = at
	s.Duration = at.Sub(s.StartedAt)
	s.DisplayTime[s.lastName] += at.Sub(s.lastChange)

	m.history = append(m.history, *s)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	m.current = nil

	if m.onUpdate != nil {
		go m.onUpdate(*s)
	}
}

// Current returns the active session metrics, ok is false between sessions.
func (m *MetricsCollector) Current() (SessionMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return SessionMetrics{}, false
	}
	s := *m.current
	s.DisplayTime = make(map[string]time.Duration, len(m.current.DisplayTime))
	for k, v := range m.current.DisplayTime {
		s.DisplayTime[k] = v
	}
	return s, true
}

// History returns archived sessions, oldest first.
func (m *MetricsCollector) History() []SessionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionMetrics, len(m.history))
	copy(out, m.history)
	return out
}
