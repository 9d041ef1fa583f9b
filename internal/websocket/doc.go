// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package websocket streams dataset snapshots and lifecycle events to the UI.

The Hub follows an engine (see Source) and turns each event into a typed
message, encoded once with goccy/go-json and fanned out to every client:

  - data: a full DataSnapshot
  - reload_start, reload_complete: ReloadStatus
  - data_error: ReloadFailure
  - auth_requested: AuthRequest for an import waiting on credentials
  - pong: reply to a client ping

A new connection first receives the current snapshot, queued with
Client.Queue before the client is registered. Clients that fall behind are
disconnected rather than allowed to stall the hub.

Each client runs two goroutines: readPump answers pings and detects
disconnects, writePump drains the send buffer and keeps the connection
alive with ping frames.
*/
package websocket
