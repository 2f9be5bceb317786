// Package httpc provides a shared HTTP client with sensible defaults and a
// small client for the dashboard API.
// Use this instead of http.DefaultClient to ensure timeouts are set.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/pipeline"
	"github.com/teslashibe/go-affect/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client is a shared HTTP client with production-ready defaults.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
// For most cases, use the shared Client variable instead.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the dashboard.
type APIError struct {
	Status  int
	Message string
	Kind    string // Pipeline error kind, if any
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("dashboard: %d %s (%s)", e.Status, e.Message, e.Kind)
	}
	return fmt.Sprintf("dashboard: %d %s", e.Status, e.Message)
}

// SessionResponse is returned by the session endpoints.
type SessionResponse struct {
	State   string `json:"state"`
	Session string `json:"session,omitempty"`
}

// API talks to a running dashboard.
type API struct {
	base   string
	client *http.Client
}

// NewAPI creates a client for the dashboard at baseURL, e.g. http://localhost:8080.
func NewAPI(baseURL string, client *http.Client) *API {
	if client == nil {
		client = Client
	}
	return &API{base: strings.TrimRight(baseURL, "/"), client: client}
}

// Status returns the dashboard state.
func (a *API) Status(ctx context.Context) (web.DashboardState, error) {
	var st web.DashboardState
	return st, a.do(ctx, http.MethodGet, "/api/status", nil, &st)
}

// Stats returns pipeline counters.
func (a *API) Stats(ctx context.Context) (pipeline.Stats, error) {
	var st pipeline.Stats
	return st, a.do(ctx, http.MethodGet, "/api/stats", nil, &st)
}

// Emotions returns the catalog in label order.
func (a *API) Emotions(ctx context.Context) ([]emotions.Entry, error) {
	var out []emotions.Entry
	return out, a.do(ctx, http.MethodGet, "/api/emotions", nil, &out)
}

// Start begins a session.
func (a *API) Start(ctx context.Context) (SessionResponse, error) {
	return a.session(ctx, "start")
}

// Stop ends the session.
func (a *API) Stop(ctx context.Context) (SessionResponse, error) {
	return a.session(ctx, "stop")
}

// Restart ends the session and starts a fresh one.
func (a *API) Restart(ctx context.Context) (SessionResponse, error) {
	return a.session(ctx, "restart")
}

func (a *API) session(ctx context.Context, action string) (SessionResponse, error) {
	var out SessionResponse
	return out, a.do(ctx, http.MethodPost, "/api/session/"+action, nil, &out)
}

// UpdateCamera sends a partial camera update, e.g. {"preset": "720p"}.
func (a *API) UpdateCamera(ctx context.Context, params map[string]any) error {
	return a.do(ctx, http.MethodPut, "/api/camera", params, nil)
}

// Watch streams dashboard state updates to fn until ctx is done, the
// connection drops, or fn returns false. The first update is the current state.
func (a *API) Watch(ctx context.Context, fn func(web.DashboardState) bool) error {
	url := "ws" + strings.TrimPrefix(a.base, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var st web.DashboardState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
		if !fn(st) {
			return nil
		}
	}
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error != "" {
			apiErr.Message, apiErr.Kind = payload.Error, payload.Kind
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
