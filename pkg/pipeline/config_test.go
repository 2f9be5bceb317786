package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-affect/pkg/capture"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/inference"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.SkipFrames)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 1500*time.Millisecond, cfg.Cadence)
	assert.Equal(t, 1500*time.Millisecond, cfg.Dwell)
	assert.Equal(t, 64, cfg.EventBuffer)
	assert.Equal(t, 10*time.Millisecond, cfg.ReadRetryDelay)

	set, err := cfg.LabelSet()
	require.NoError(t, err)
	assert.Equal(t, emotions.Happiness, cfg.defaultLabel(set))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative skip", func(c *Config) { c.SkipFrames = -1 }},
		{"zero history", func(c *Config) { c.HistoryCapacity = 0 }},
		{"zero cadence", func(c *Config) { c.Cadence = 0 }},
		{"negative dwell", func(c *Config) { c.Dwell = -time.Second }},
		{"zero event buffer", func(c *Config) { c.EventBuffer = 0 }},
		{"duplicate labels", func(c *Config) { c.Labels = []string{"Calm", "calm"} }},
		{"unknown default", func(c *Config) { c.DefaultLabel = "Bored" }},
		{"bad camera", func(c *Config) { c.Camera.Framerate = 0 }},
		{"bad detector", func(c *Config) { c.Detector.ScaleFactor = 1 }},
		{"bad classifier", func(c *Config) { c.Classifier.InputSize = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_CustomLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Labels = []string{"Calm", "Tense"}
	cfg.DefaultLabel = ""
	require.NoError(t, cfg.Validate())

	set, err := cfg.LabelSet()
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, emotions.Label(0), cfg.defaultLabel(set), "empty default means first label")
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		kind  ErrorKind
		name  string
		fatal bool
	}{
		{KindCameraOpen, "camera_open", true},
		{KindDetectorLoad, "detector_load", true},
		{KindClassifierLoad, "classifier_load", true},
		{KindCameraRead, "camera_read", false},
		{KindClassify, "classify", false},
		{KindDetect, "detect", false},
		{KindInternal, "internal", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.name, tc.kind.String())
		assert.Equal(t, tc.fatal, tc.kind.Fatal(), tc.name)
	}
}

func TestKindOf(t *testing.T) {
	wrap := func(sentinel error) error {
		return fmt.Errorf("%w: %w", sentinel, errors.New("cause"))
	}

	assert.Equal(t, KindCameraOpen, KindOf(wrap(capture.ErrCameraOpen)))
	assert.Equal(t, KindDetectorLoad, KindOf(wrap(capture.ErrDetectorLoad)))
	assert.Equal(t, KindClassifierLoad, KindOf(wrap(inference.ErrClassifierLoad)))
	assert.Equal(t, KindCameraRead, KindOf(wrap(capture.ErrCameraRead)))
	assert.Equal(t, KindClassify, KindOf(&inference.FaceError{Err: wrap(inference.ErrClassify)}))
	assert.Equal(t, KindDetect, KindOf(wrap(capture.ErrDetect)))
	assert.Equal(t, KindInternal, KindOf(errors.New("other")))
	assert.Equal(t, KindClassify, KindOf(&Error{Kind: KindClassify, Err: errors.New("x")}))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("no device")
	err := &Error{Kind: KindCameraOpen, Session: "s1", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "pipeline [camera_open]: no device", err.Error())
}

func TestEmotionResult_Percent(t *testing.T) {
	r := EmotionResult{Labels: emotions.DefaultNames}
	r.Distribution.Percent = []int{0, 95, 5, 0}
	assert.Equal(t, 95, r.Percent("Happiness"))
	assert.Equal(t, 0, r.Percent("Bored"))
}

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := m.Current()
	assert.False(t, ok)

	updates := make(chan SessionMetrics, 1)
	m.OnUpdate(func(s SessionMetrics) { updates <- s })

	m.StartSession("s1", "Happiness", t0)
	m.RecordResult()
	m.RecordResult()
	m.RecordChange("Sad", t0.Add(3*time.Second))
	m.RecordError(false)
	m.RecordError(true)
	m.EndSession(t0.Add(10 * time.Second))

	hist := m.History()
	require.Len(t, hist, 1)
	s := hist[0]
	assert.Equal(t, "s1", s.Session)
	assert.Equal(t, 10*time.Second, s.Duration)
	assert.Equal(t, 2, s.Results)
	assert.Equal(t, 1, s.Changes)
	assert.Equal(t, 1, s.TransientErrors)
	assert.Equal(t, 1, s.FatalErrors)
	assert.Equal(t, 3*time.Second, s.DisplayTime["Happiness"])
	assert.Equal(t, 7*time.Second, s.DisplayTime["Sad"])

	select {
	case got := <-updates:
		assert.Equal(t, "s1", got.Session)
	case <-time.After(time.Second):
		t.Fatal("OnUpdate not called")
	}

	_, ok = m.Current()
	assert.False(t, ok)
}

func TestMetricsCollector_HistoryBounded(t *testing.T) {
	m := NewMetricsCollector()
	t0 := time.Now()
	for i := 0; i < 120; i++ {
		m.StartSession(fmt.Sprint(i), "Happiness", t0)
		m.EndSession(t0)
	}
	hist := m.History()
	assert.Len(t, hist, 100)
	assert.Equal(t, "20", hist[0].Session)
}
