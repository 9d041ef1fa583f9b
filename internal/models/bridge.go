// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import "time"

// BridgeEvent records one drafted bridge (meeting join). Events are
// append-only and never modified once logged.
type BridgeEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Groups    []string  `json:"groups,omitempty"`
	Contacts  []string  `json:"contacts,omitempty"`
}

// GroupCount is one row of the top groups ranking.
type GroupCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MetricsSummary is derived on demand from the bridge log.
type MetricsSummary struct {
	BridgesLast7d  int          `json:"bridgesLast7d"`
	BridgesLast30d int          `json:"bridgesLast30d"`
	BridgesLast6m  int          `json:"bridgesLast6m"`
	BridgesLast1y  int          `json:"bridgesLast1y"`
	TopGroups      []GroupCount `json:"topGroups"`
}
