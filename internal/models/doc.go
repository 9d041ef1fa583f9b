// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package models defines the data structures shared by every Relay package.

Key Components:

  - Contact, Server: directory records keyed by email and name, each with a
    derived lowercase search token and the raw imported fields.
  - DataSnapshot: the immutable unit delivered to subscribers. A snapshot is
    never modified after it has been published.
  - BridgeEvent, MetricsSummary: the append-only bridge log and the summary
    derived from it.
  - ImportWarning, ImportResult, ColumnMapping: per-row import reporting.
  - ValidationError, ReloadError, TransportError, AuthRequiredError: the
    error taxonomy used across the engine.

JSON field names follow the UI contract (camelCase, "_searchString").
*/
package models
