// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Reload Metrics
	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_reloads_total",
			Help: "Total number of data root reloads by result",
		},
		[]string{"result"}, // "success", "failure", "unchanged", "stale"
	)

	ReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_reload_duration_seconds",
			Help:    "Time spent reading and parsing the data root",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
	)

	ReloadsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_reloads_coalesced_total",
			Help: "Reload requests folded into a reload that was already running",
		},
	)

	ReloadLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_reload_last_success_timestamp",
			Help: "Unix timestamp of the last successful reload",
		},
	)

	ReloadWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_reload_warnings_total",
			Help: "Rows skipped while loading the data root",
		},
	)

	// Store Metrics
	RecordsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_records",
			Help: "Records in the current snapshot",
		},
		[]string{"kind"},
	)

	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_store_mutations_total",
			Help: "Total number of applied store mutations",
		},
		[]string{"operation", "result"},
	)

	// Import Metrics
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_imports_total",
			Help: "Import jobs that reached a terminal state",
		},
		[]string{"kind", "state"},
	)

	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_import_rows_total",
			Help: "Records accepted by imports",
		},
		[]string{"kind"},
	)

	ImportWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_import_warnings_total",
			Help: "Rows skipped by imports",
		},
		[]string{"kind"},
	)

	ImportsAwaitingAuth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_imports_awaiting_auth",
			Help: "Import jobs parked until credentials are supplied",
		},
	)

	// Subscription Hub Metrics
	HubSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_hub_subscribers",
			Help: "Current number of subscribers",
		},
		[]string{"topic"},
	)

	HubDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_hub_deliveries_total",
			Help: "Notifications handed to subscribers",
		},
		[]string{"topic"},
	)

	HubSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_hub_superseded_total",
			Help: "Notifications replaced by a newer one before delivery",
		},
		[]string{"topic"},
	)

	// Bridge Metrics
	BridgeEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_events_total",
			Help: "Bridge events recorded",
		},
	)

	BridgeLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_bridge_log_entries",
			Help: "Bridge events currently retained",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Weather Metrics
	WeatherRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_weather_requests_total",
			Help: "Upstream weather and geocoding requests",
		},
		[]string{"endpoint", "result"},
	)

	WeatherAPICallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_weather_api_call_duration_seconds",
			Help:    "Upstream weather API call duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordReload records one reload attempt. result is one of success,
// failure, unchanged or stale.
func RecordReload(result string, duration time.Duration, warnings int) {
	ReloadsTotal.WithLabelValues(result).Inc()
	ReloadDuration.Observe(duration.Seconds())
	ReloadWarnings.Add(float64(warnings))
	if result == "success" {
		ReloadLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// SetRecordCounts publishes the size of the current snapshot.
func SetRecordCounts(contacts, groups, servers int) {
	RecordsLoaded.WithLabelValues("contacts").Set(float64(contacts))
	RecordsLoaded.WithLabelValues("groups").Set(float64(groups))
	RecordsLoaded.WithLabelValues("servers").Set(float64(servers))
}

// RecordMutation counts a store mutation by outcome.
func RecordMutation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StoreMutations.WithLabelValues(operation, result).Inc()
}

// RecordCacheLookup counts a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}
