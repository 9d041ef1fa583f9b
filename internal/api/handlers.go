// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/relay/internal/engine"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/middleware"
	"github.com/tomtom215/relay/internal/validation"
	ws "github.com/tomtom215/relay/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_data.go: snapshot, reload, record mutations, search
//   - handlers_import.go: imports, import jobs, credential prompts
//   - handlers_services.go: bridge reports, data path, weather
//   - handlers_health.go: health probes and the WebSocket stream
type Handler struct {
	engine      *engine.Engine
	wsHub       *ws.Hub
	perf        *middleware.PerformanceMonitor
	corsOrigins []string
	version     string
	startTime   time.Time
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Engine *engine.Engine
	// WSHub is optional. Without it the stream endpoint answers 503.
	WSHub *ws.Hub
	// Perf is optional and feeds the performance health endpoint.
	Perf *middleware.PerformanceMonitor
	// CORSOrigins also gates WebSocket origins.
	CORSOrigins []string
	Version     string
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Perf == nil {
		cfg.Perf = middleware.NewPerformanceMonitor(1000)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		engine:      cfg.Engine,
		wsHub:       cfg.WSHub,
		perf:        cfg.Perf,
		corsOrigins: cfg.CORSOrigins,
		version:     cfg.Version,
		startTime:   time.Now(),
	}
}

// decodeJSON reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			NewResponseWriter(w, r).Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return false
		}
		NewResponseWriter(w, r).BadRequest("failed to read request body")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid request body: " + err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		NewResponseWriter(w, r).RequestValidation(verr)
		return false
	}
	return true
}

// pathParam returns a decoded chi URL parameter. chi matches against the
// raw path when the request had escaped characters, such as a group name
// containing a slash.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts requests without an Origin header, which
// come from the local host process rather than a browser, and browser
// requests from an allowed CORS origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds length.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		out = append(out, r)
		if len(out) == maxLen {
			break
		}
	}
	return string(out)
}
