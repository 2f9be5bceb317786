package httpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/pipeline"
	"github.com/teslashibe/go-affect/pkg/web"
)

// startDashboard serves a real dashboard backed by mock devices.
func startDashboard(t *testing.T) (*API, *pipeline.Controller) {
	t.Helper()

	cfg := pipeline.DefaultConfig()
	cfg.Camera.Backend = camera.BackendMock
	cfg.Detector.Backend = detection.BackendMock
	cfg.Classifier.Backend = classifier.BackendMock

	ctrl, err := pipeline.New(cfg, pipeline.Options{
		Opener:           camera.NewMockOpener(camera.WithFrameInterval(time.Millisecond)),
		DetectorLoader:   func() (detection.Detector, error) { return detection.NewMock(), nil },
		ClassifierLoader: func() (classifier.Classifier, error) { return classifier.NewMock(emotions.Sad, 0.9), nil },
		Logger:           log.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Stop)

	catalog, err := emotions.LoadCatalog()
	require.NoError(t, err)

	webCfg := web.DefaultConfig()
	webCfg.StaticDir = ""
	srv := web.NewServer(webCfg, ctrl, catalog, cfg.Camera, log.Discard())
	srv.RunHubs()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return NewAPI("http://"+ln.Addr().String(), NewClient(5*time.Second)), ctrl
}

func TestDashboard_EndToEnd(t *testing.T) {
	api, ctrl := startDashboard(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := api.Emotions(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Annoyed", entries[0].Name)

	resp, err := api.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", resp.State)
	assert.Equal(t, ctrl.Session(), resp.Session)

	_, err = api.Start(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)

	st, err := api.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, emotions.DefaultNames, st.Labels)

	stats, err := api.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", stats.State)

	var got web.DashboardState
	require.NoError(t, api.Watch(ctx, func(s web.DashboardState) bool {
		got = s
		return false
	}))
	assert.Equal(t, "running", got.State)
	assert.Equal(t, resp.Session, got.Session)

	resp, err = api.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "idle", resp.State)
}

func TestDashboard_WatchEndsWithContext(t *testing.T) {
	api, _ := startDashboard(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	updates := 0
	err := api.Watch(ctx, func(web.DashboardState) bool {
		updates++
		return true
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, updates, "only the initial snapshot while idle")
}
