// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package metrics provides Prometheus metrics for Relay.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API server:

	curl http://127.0.0.1:3860/metrics

# Available Metrics

Reload Metrics:
  - relay_reloads_total: reload attempts (counter), labels: result
  - relay_reload_duration_seconds: read and parse time (histogram)
  - relay_reloads_coalesced_total: requests folded into a running reload
  - relay_records: snapshot size (gauge), labels: kind

Import Metrics:
  - relay_imports_total: finished jobs, labels: kind, state
  - relay_import_rows_total and relay_import_warnings_total, labels: kind
  - relay_imports_awaiting_auth: jobs parked for credentials (gauge)

Hub Metrics:
  - relay_hub_subscribers, labels: topic
  - relay_hub_deliveries_total and relay_hub_superseded_total, labels: topic

Weather Metrics:
  - relay_weather_requests_total, labels: endpoint, result
  - relay_cache_hits_total and relay_cache_misses_total, labels: cache
  - relay_circuit_breaker_state, labels: name

API and WebSocket Metrics:
  - relay_api_requests_total, labels: method, endpoint, status_code
  - relay_api_request_duration_seconds, labels: method, endpoint
  - relay_websocket_connections (gauge)

# Usage

	start := time.Now()
	snap, warnings, err := dataimport.LoadAll(ctx, root)
	if err != nil {
		metrics.RecordReload("failure", time.Since(start), 0)
	}

Label values must stay low-cardinality. Endpoint labels use chi route
patterns, never raw paths.
*/
package metrics
