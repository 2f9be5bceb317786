package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-affect/internal/config"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/pipeline"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Web.Port = "0"
	cfg.Web.StaticDir = ""
	cfg.Pipeline.Camera.Backend = camera.BackendMock
	cfg.Pipeline.Detector.Backend = detection.BackendMock
	cfg.Pipeline.Classifier.Backend = classifier.BackendMock
	cfg.Pipeline.Cadence = 10 * time.Millisecond
	cfg.Pipeline.Dwell = 0
	cfg.Pipeline.ReadRetryDelay = time.Millisecond
	return cfg
}

func testOptions() pipeline.Options {
	return pipeline.Options{
		Opener: camera.NewMockOpener(camera.WithSize(64, 48), camera.WithFrameInterval(time.Millisecond)),
		DetectorLoader: func() (detection.Detector, error) {
			return detection.NewMock(detection.FaceBox{X: 8, Y: 8, W: 24, H: 24}), nil
		},
		ClassifierLoader: func() (classifier.Classifier, error) { return classifier.NewMock(emotions.Upset, 0.8), nil },
		Logger:           log.Discard(),
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.HistoryCapacity = 0
	_, err := New(cfg, testOptions(), log.Discard())
	assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
}

func TestApp_RunDeliversToDashboard(t *testing.T) {
	a, err := New(testConfig(), testOptions(), log.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.Controller().State() == pipeline.StateRunning
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		st := a.Web().State()
		return st.Display == "Upset" && st.Percent["Upset"] == 100
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "#e74c3c", a.Web().State().Color)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// The session outlives Run's context until Shutdown
	assert.Equal(t, pipeline.StateRunning, a.Controller().State())
	a.Shutdown()
	assert.Equal(t, pipeline.StateIdle, a.Controller().State())
}

func TestApp_NoAutoStart(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStart = false
	a, err := New(cfg, testOptions(), log.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, pipeline.StateIdle, a.Controller().State())
}

func TestApp_StartFailureKeepsRunning(t *testing.T) {
	opts := testOptions()
	opts.Opener = camera.NewMockOpener(camera.WithOpenError(camera.ErrOpen))
	a, err := New(testConfig(), opts, log.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	assert.Equal(t, pipeline.StateIdle, a.Controller().State())
	assert.Contains(t, a.Web().State().LastError, "camera_open")
}

func TestApp_CustomCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Upset","description":"Frowning","color":"#000000"}]`), 0o644))

	cfg := testConfig()
	cfg.CatalogPath = path
	a, err := New(cfg, testOptions(), log.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Shutdown()

	e, err := a.catalog.Get("upset")
	require.NoError(t, err)
	assert.Equal(t, "Frowning", e.Description)
}

func TestApp_RunBeforeInit(t *testing.T) {
	a, err := New(testConfig(), testOptions(), log.Discard())
	require.NoError(t, err)
	assert.Error(t, a.Run(context.Background()))
}
