// Package app wires the perception pipeline to the web dashboard and owns
// their lifecycle. cmd/affect is a thin wrapper around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-affect/internal/config"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/pipeline"
	"github.com/teslashibe/go-affect/pkg/web"
)

// App is the main application orchestrator.
type App struct {
	config  config.Config
	options pipeline.Options
	logger  *slog.Logger

	catalog   *emotions.Catalog
	ctrl      *pipeline.Controller
	webServer *web.Server
}

// New validates cfg. opts injects pipeline collaborators; the zero value
// uses the configured backends.
func New(cfg config.Config, opts pipeline.Options, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &App{
		config:  cfg,
		options: opts,
		logger:  logger.With("component", "app"),
	}, nil
}

// Init loads the catalog and builds the controller and dashboard.
// Models are not loaded until a session starts.
func (a *App) Init() error {
	catalog, err := a.loadCatalog()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	a.catalog = catalog

	ctrl, err := pipeline.New(a.config.Pipeline, a.options)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	a.ctrl = ctrl

	if missing := catalog.Covers(ctrl.Labels()); len(missing) > 0 {
		a.logger.Warn("catalog has no entry for some labels", "labels", missing)
	}

	a.webServer = web.NewServer(a.config.Web, ctrl, catalog, a.config.Pipeline.Camera, a.options.Logger)

	cam := a.config.Pipeline.Camera
	a.logger.Info("initialized",
		"labels", ctrl.Labels().Names(),
		"camera", fmt.Sprintf("%s #%d %dx%d@%d", cam.Backend, cam.DeviceIndex, cam.Width, cam.Height, cam.Framerate),
		"detector", a.config.Pipeline.Detector.Backend,
		"classifier", a.config.Pipeline.Classifier.Backend,
	)
	return nil
}

func (a *App) loadCatalog() (*emotions.Catalog, error) {
	if a.config.CatalogPath != "" {
		return emotions.LoadCatalogFile(a.config.CatalogPath)
	}
	return emotions.LoadCatalog()
}

// Run serves the dashboard and delivers pipeline output to it.
// Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.ctrl == nil {
		return errors.New("app: Run called before Init")
	}

	a.webServer.StartAsync()
	a.webServer.AddLog("info", "Affect started")

	if a.config.AutoStart {
		if err := a.ctrl.Start(ctx); err != nil {
			// The dashboard shows the error and can retry
			a.logger.Error("session failed to start", "error", err)
		} else {
			a.logger.Info("session started", "session", a.ctrl.Session())
		}
	}

	err := a.ctrl.Pump(ctx, a.webServer)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown stops the session and the dashboard.
func (a *App) Shutdown() {
	if a.ctrl != nil {
		a.ctrl.Stop()
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.logger.Debug("dashboard shutdown", "error", err)
		}
	}
	a.logger.Info("goodbye")
}

// Controller returns the pipeline controller. Nil before Init.
func (a *App) Controller() *pipeline.Controller {
	return a.ctrl
}

// Web returns the dashboard server. Nil before Init.
func (a *App) Web() *web.Server {
	return a.webServer
}
