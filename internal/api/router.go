// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/relay/internal/middleware"
)

// Router builds the HTTP routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for handler. A nil mw uses the defaults.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// Setup returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := router.handler
	mw := router.chiMiddleware

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.perf.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/performance", h.HealthPerformance)
	})

	// ========================
	// WebSocket Stream
	// ========================
	// No compression or body limit on the upgrade path.
	r.Get("/api/v1/ws", h.WebSocket)

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit("api"))
		r.Use(APISecurityHeaders())
		r.Use(mw.MaxBody())
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/data", h.Data)
		r.Post("/data/reload", h.Reload)
		r.Get("/search", h.Search)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.AddContact)
			r.Delete("/{email}", h.RemoveContact)
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.ListServers)
			r.Post("/", h.AddServer)
			r.Delete("/{name}", h.RemoveServer)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.AddGroup)
			r.Put("/{name}", h.RenameGroup)
			r.Delete("/{name}", h.RemoveGroup)
			r.Post("/{name}/members", h.AddMember)
			r.Delete("/{name}/members/{email}", h.RemoveMember)
		})

		r.Route("/import", func(r chi.Router) {
			r.Get("/jobs", h.ImportJobs)
			r.Post("/{kind}", h.Import)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/pending", h.PendingAuth)
			r.Post("/{token}/submit", h.SubmitAuth)
			r.Post("/{token}/cached", h.UseCachedAuth)
			r.Post("/{token}/cancel", h.CancelAuth)
		})

		r.Get("/reports", h.Reports)
		r.Delete("/reports", h.ResetReports)
		r.Post("/bridges", h.RecordBridge)

		r.Route("/settings/data-path", func(r chi.Router) {
			r.Get("/", h.DataPath)
			r.Put("/", h.ChangeDataPath)
			r.Delete("/", h.ResetDataPath)
		})

		r.Get("/weather", h.Weather)
		r.Get("/locations", h.Locations)
	})

	return r
}
