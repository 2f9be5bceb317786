package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/hub"
	"github.com/teslashibe/go-affect/pkg/pipeline"
)

// handleStatus returns the dashboard state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.State()
	st.State = s.pipe.State().String()
	st.Session = s.pipe.Session()
	return c.JSON(st)
}

// handleStats returns pipeline counters
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.pipe.Stats())
}

// handleListEmotions returns catalog entries in canonical label order
func (s *Server) handleListEmotions(c *fiber.Ctx) error {
	labels := s.pipe.Labels()
	out := make([]emotions.Entry, 0, labels.Len())
	for _, l := range labels.Labels() {
		if s.catalog == nil {
			out = append(out, emotions.Entry{Name: labels.Name(l)})
			continue
		}
		out = append(out, s.catalog.Lookup(labels, l))
	}
	return c.JSON(out)
}

// handleGetEmotion returns one catalog entry
func (s *Server) handleGetEmotion(c *fiber.Ctx) error {
	name := c.Params("name")
	l, err := s.pipe.Labels().Parse(name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if s.catalog == nil {
		return c.JSON(emotions.Entry{Name: s.pipe.Labels().Name(l)})
	}
	return c.JSON(s.catalog.Lookup(s.pipe.Labels(), l))
}

// handleSessions returns the current session and recent history
func (s *Server) handleSessions(c *fiber.Ctx) error {
	m := s.pipe.Metrics()
	resp := fiber.Map{"history": m.History()}
	if cur, ok := m.Current(); ok {
		resp["current"] = cur
	}
	return c.JSON(resp)
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleGetCamera returns the camera settings
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	cfg := s.camera.GetConfig()
	return c.JSON(fiber.Map{
		"config":       cfg,
		"capabilities": camera.Capabilities(),
		"backends":     camera.AvailableBackends(),
	})
}

// handleUpdateCamera applies a partial update or a preset
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(fiber.Map{"config": s.camera.GetConfig()})
}

// handleCameraPresets lists the named presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	out := make(map[string]camera.Config)
	for _, name := range camera.PresetNames() {
		if p := camera.GetPreset(name); p != nil {
			out[name] = *p
		}
	}
	return c.JSON(out)
}

// handleSessionStart begins a session
func (s *Server) handleSessionStart(c *fiber.Ctx) error {
	if err := s.pipe.Start(c.UserContext()); err != nil {
		return s.sessionError(c, err)
	}
	s.sessionChanged("Session started")
	return c.JSON(fiber.Map{"state": s.pipe.State().String(), "session": s.pipe.Session()})
}

// handleSessionStop ends the session. Stopping an idle pipeline is fine.
func (s *Server) handleSessionStop(c *fiber.Ctx) error {
	s.pipe.Stop()
	s.sessionChanged("Session ended")
	return c.JSON(fiber.Map{"state": s.pipe.State().String()})
}

// handleSessionRestart stops and starts with cleared history
func (s *Server) handleSessionRestart(c *fiber.Ctx) error {
	if err := s.pipe.Restart(c.UserContext()); err != nil {
		return s.sessionError(c, err)
	}
	s.sessionChanged("Session restarted")
	return c.JSON(fiber.Map{"state": s.pipe.State().String(), "session": s.pipe.Session()})
}

func (s *Server) sessionChanged(msg string) {
	state, session := s.pipe.State().String(), s.pipe.Session()
	s.AddLog("info", msg)
	s.UpdateState(func(st *DashboardState) {
		st.State = state
		st.Session = session
	})
}

// sessionError maps pipeline failures to HTTP statuses.
func (s *Server) sessionError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var perr *pipeline.Error
	switch {
	case errors.Is(err, pipeline.ErrNotIdle):
		status = fiber.StatusConflict
	case errors.Is(err, pipeline.ErrInvalidConfig), errors.Is(err, camera.ErrInvalidConfig):
		status = fiber.StatusBadRequest
	case errors.As(err, &perr):
		status = fiber.StatusServiceUnavailable
		body["kind"] = perr.Kind.String()
	}
	return c.Status(status).JSON(body)
}

// handleStatusWS sends the current state, then every update
func (s *Server) handleStatusWS(c *websocket.Conn) {
	data, err := json.Marshal(s.State())
	if err == nil {
		err = c.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		return
	}
	s.serveWS(s.statusHub, c)
}

// handleLogsWS replays the log buffer, then streams new entries
func (s *Server) handleLogsWS(c *websocket.Conn) {
	for _, entry := range s.Logs() {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	s.serveWS(s.logHub, c)
}

// handleCameraWS streams annotated JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.serveWS(s.cameraHub, c)
}

func (s *Server) serveWS(h *hub.Hub, c *websocket.Conn) {
	client := hub.NewClient(h, c)
	if client == nil {
		return
	}
	client.Run()
}
