// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package supervisor runs Relay's long-lived services under a suture tree.

	relay (root)
	├── data-layer
	│   ├── data-watcher   reloads the data root on file changes
	│   └── state-db-gc    periodic badger value-log GC
	├── messaging-layer
	│   └── websocket-hub  fans snapshots out to connected clients
	└── api-layer
	    └── http-server    loopback REST and WebSocket listener

Every service implements suture.Service (Serve(ctx) error) and
fmt.Stringer for log names. A service that returns an error is restarted
with backoff; returning after ctx is canceled ends it. Supervisor events
go through sutureslog to the zerolog-backed slog logger from
logging.NewSlogLogger.

The services subpackage adapts blocking servers that do not take a
context, such as *http.Server.
*/
package supervisor
