// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package middleware provides HTTP middleware for the Relay API.

Key Components:

  - RequestID: request and correlation ids for structured logging
  - PrometheusMetrics: request count, duration and in-flight gauge,
    labelled by chi route pattern
  - PerformanceMonitor: a ring buffer of recent requests summarized by
    the health endpoint

All middleware has the func(http.Handler) http.Handler shape so it can be
passed to chi's Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)

The route pattern is read after the handler returns, once chi has
matched the request, so the middleware works at any level of the router.
*/
package middleware
