// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/relay/internal/engine"
	"github.com/tomtom215/relay/internal/logging"
	ws "github.com/tomtom215/relay/internal/websocket"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Uptime    float64       `json:"uptime"`
	WSClients int           `json:"wsClients"`
	Engine    engine.Status `json:"engine"`
}

// Health reports the engine state. A data root that failed its last load
// is "degraded" but still answers 200 since the previous snapshot is
// served.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	status := "healthy"
	if st.LastError != "" {
		status = "degraded"
	}
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Seconds(),
		WSClients: clients,
		Engine:    st,
	})
}

// HealthLive returns 200 while the process is alive.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 once a snapshot has been loaded, 503 before.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	if st.LastUpdated == 0 {
		NewResponseWriter(w, r).ServiceUnavailable("data root not loaded yet")
		return
	}
	NewResponseWriter(w, r).Success(map[string]any{"ready": true, "lastUpdated": st.LastUpdated})
}

// HealthPerformance summarizes recent request latencies per endpoint.
func (h *Handler) HealthPerformance(w http.ResponseWriter, r *http.Request) {
	stats := h.perf.Stats()
	NewResponseWriter(w, r).List(stats, len(stats))
}

// WebSocket upgrades the connection and streams snapshots and lifecycle
// events. The current snapshot is sent first.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// register before reading the snapshot so no later publish is missed
	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	h.wsHub.SendSnapshot(client, h.engine.Snapshot())
	client.Start()
}
