// Package web provides the real-time emotion dashboard.
//
// Server implements pipeline.Sink: annotated camera frames go to /ws/camera,
// the emotion distribution and the displayed emotion go to /ws/status, and
// errors go to /ws/logs. The REST API under /api exposes the catalog, stats,
// session metrics, camera settings and session control.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/hub"
	"github.com/teslashibe/go-affect/pkg/pipeline"
)

// Pipeline is the part of the controller the dashboard drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Restart(ctx context.Context) error
	State() pipeline.State
	Session() string
	Labels() *emotions.Set
	Stats() pipeline.Stats
	SetCamera(cfg camera.Config) error
	Metrics() *pipeline.MetricsCollector
}

// Config holds dashboard settings.
type Config struct {
	Port         string `yaml:"port" json:"port"`
	StaticDir    string `yaml:"static_dir" json:"static_dir"`
	PreviewWidth int    `yaml:"preview_width" json:"preview_width"` // Frames wider than this are downscaled, 0 disables
	LogBuffer    int    `yaml:"log_buffer" json:"log_buffer"`
}

// DefaultConfig serves ./web on port 8080.
func DefaultConfig() Config {
	return Config{
		Port:         "8080",
		StaticDir:    "./web",
		PreviewWidth: 640,
		LogBuffer:    500,
	}
}

// DashboardState is what the status socket and GET /api/status report.
type DashboardState struct {
	State       string         `json:"state"`
	Session     string         `json:"session,omitempty"`
	Labels      []string       `json:"labels"`
	Percent     map[string]int `json:"percent"`
	Confidence  float64        `json:"confidence"` // Mean confidence of the history
	Samples     int            `json:"samples"`
	Faces       int            `json:"faces"`
	Display     string         `json:"display"`
	Description string         `json:"description"`
	Respond     []string       `json:"respond"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
	LastError   string         `json:"last_error,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, emotion, warn, error
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	pipe    Pipeline
	catalog *emotions.Catalog
	camera  *camera.Manager

	// State
	state   DashboardState
	stateMu sync.RWMutex

	// Log buffer
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	// Transient errors are logged once per kind until the next session
	seenTransient map[pipeline.ErrorKind]bool
}

// NewServer creates a dashboard for p. The camera manager starts from the
// pipeline's current camera settings and restarts a running session when
// they change.
func NewServer(cfg Config, p Pipeline, catalog *emotions.Catalog, cam camera.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LogBuffer <= 0 {
		cfg.LogBuffer = DefaultConfig().LogBuffer
	}
	logger = logger.With("component", "web")

	s := &Server{
		cfg:           cfg,
		logger:        logger,
		pipe:          p,
		catalog:       catalog,
		camera:        camera.NewManager(cam),
		logs:          make([]LogEntry, 0, cfg.LogBuffer),
		statusHub:     hub.New("status", logger),
		logHub:        hub.New("logs", logger),
		cameraHub:     hub.New("camera", logger),
		seenTransient: make(map[pipeline.ErrorKind]bool),
	}
	s.state = s.initialState()
	s.camera.OnConfigChange = s.applyCamera

	app := fiber.New(fiber.Config{
		AppName:               "Affect Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/emotions", s.handleListEmotions)
	api.Get("/emotions/:name", s.handleGetEmotion)
	api.Get("/sessions", s.handleSessions)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Post("/session/start", s.handleSessionStart)
	api.Post("/session/stop", s.handleSessionStop)
	api.Post("/session/restart", s.handleSessionRestart)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// RunHubs starts the broadcast hubs. Start calls it.
func (s *Server) RunHubs() {
	go s.statusHub.Run()
	go s.logHub.Run()
	go s.cameraHub.Run()
}

// Start starts the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.cfg.Port))
	s.RunHubs()
	return s.app.Listen(":" + s.cfg.Port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.logHub.Stop()
	s.cameraHub.Stop()
	return s.app.Shutdown()
}

// Camera returns the camera settings manager.
func (s *Server) Camera() *camera.Manager {
	return s.camera
}

// State returns a copy of the dashboard state.
func (s *Server) State() DashboardState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.copyState()
}

// UpdateState updates the dashboard state and broadcasts it to clients.
func (s *Server) UpdateState(update func(*DashboardState)) {
	s.stateMu.Lock()
	update(&s.state)
	s.state.UpdatedAt = time.Now()
	state := s.copyState()
	s.stateMu.Unlock()

	if err := s.statusHub.BroadcastJSON(state); err != nil {
		s.logger.Warn("failed to encode status", "error", err)
	}
}

// AddLog adds a log entry and broadcasts to clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.cfg.LogBuffer {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	if err := s.logHub.BroadcastJSON(entry); err != nil {
		s.logger.Warn("failed to encode log entry", "error", err)
	}
}

// Logs returns a copy of the buffered log entries.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Server) initialState() DashboardState {
	labels := s.pipe.Labels()
	st := DashboardState{
		State:   s.pipe.State().String(),
		Labels:  labels.Names(),
		Percent: make(map[string]int, labels.Len()),
	}
	for _, name := range st.Labels {
		st.Percent[name] = 0
	}
	if stats := s.pipe.Stats(); stats.Display != "" {
		if l, err := labels.Parse(stats.Display); err == nil {
			s.describe(&st, l)
		}
	}
	return st
}

// describe fills the catalog fields for l.
func (s *Server) describe(st *DashboardState, l emotions.Label) {
	labels := s.pipe.Labels()
	if s.catalog == nil {
		st.Display = labels.Name(l)
		return
	}
	e := s.catalog.Lookup(labels, l)
	st.Display = e.Name
	st.Description = e.Description
	st.Respond = e.Respond
	st.Icon = e.Icon
	st.Color = e.Color
}

// copyState must be called with stateMu held.
func (s *Server) copyState() DashboardState {
	st := s.state
	st.Labels = append([]string(nil), s.state.Labels...)
	st.Respond = append([]string(nil), s.state.Respond...)
	st.Percent = make(map[string]int, len(s.state.Percent))
	for k, v := range s.state.Percent {
		st.Percent[k] = v
	}
	return st
}

func (s *Server) applyCamera(cfg camera.Config) error {
	if err := s.pipe.SetCamera(cfg); err != nil {
		return err
	}
	if s.pipe.State() != pipeline.StateRunning {
		return nil
	}
	s.AddLog("info", fmt.Sprintf("Camera settings changed (%dx%d@%d), restarting session", cfg.Width, cfg.Height, cfg.Framerate))
	return s.pipe.Restart(context.Background())
}
