// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package bridges records bridge events and derives the reporting summary.
//
// Window counts use half-open intervals [now-window, now). Month and year
// windows are calendar based (AddDate), so "last 6 months" on 31 August
// starts on 31 March wrapping to 1 March when the day does not exist.
package bridges

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

// Aggregator appends bridge events and summarizes them on demand.
type Aggregator struct {
	log Log
	now func() time.Time
}

// New returns an aggregator over log.
func New(log Log) *Aggregator {
	if log == nil {
		log = NewMemoryLog()
	}
	return &Aggregator{log: log, now: time.Now}
}

// Record appends ev, assigning an ID and timestamp when absent. Group and
// contact lists are trimmed and deduplicated.
func (a *Aggregator) Record(ctx context.Context, ev models.BridgeEvent) (models.BridgeEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}
	if ev.Timestamp.Unix() < 0 {
		return ev, models.NewValidationError("timestamp", "timestamp predates 1970", nil)
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.Groups = uniqueTrimmed(ev.Groups, false)
	ev.Contacts = uniqueTrimmed(ev.Contacts, true)

	if err := a.log.Append(ctx, ev); err != nil {
		return ev, err
	}
	metrics.BridgeEventsTotal.Inc()
	logging.Ctx(ctx).Debug().
		Str("id", ev.ID).
		Strs("groups", ev.Groups).
		Int("contacts", len(ev.Contacts)).
		Msg("Bridge recorded")
	return ev, nil
}

// Summary summarizes the log at the current time. limit caps TopGroups;
// zero or less means no cap.
func (a *Aggregator) Summary(ctx context.Context, limit int) (models.MetricsSummary, error) {
	return a.SummaryAt(ctx, a.now(), limit)
}

// SummaryAt summarizes the log as of now.
func (a *Aggregator) SummaryAt(ctx context.Context, now time.Time, limit int) (models.MetricsSummary, error) {
	events, err := a.log.Events(ctx)
	if err != nil {
		return models.MetricsSummary{}, err
	}
	metrics.BridgeLogSize.Set(float64(len(events)))
	return Summarize(events, now, limit), nil
}

// Reset deletes the whole log. It cannot be undone.
func (a *Aggregator) Reset(ctx context.Context) error {
	if err := a.log.Reset(ctx); err != nil {
		return fmt.Errorf("reset metrics: %w", err)
	}
	metrics.BridgeLogSize.Set(0)
	logging.Ctx(ctx).Info().Msg("Bridge metrics reset")
	return nil
}

// Summarize computes window counts and the group ranking for events.
func Summarize(events []models.BridgeEvent, now time.Time, limit int) models.MetricsSummary {
	windows := [4]time.Time{
		now.AddDate(0, 0, -7),
		now.AddDate(0, 0, -30),
		now.AddDate(0, -6, 0),
		now.AddDate(-1, 0, 0),
	}
	var counts [4]int
	groups := map[string]int{}

	for _, ev := range events {
		for i, from := range windows {
			if !ev.Timestamp.Before(from) && ev.Timestamp.Before(now) {
				counts[i]++
			}
		}
		for _, g := range ev.Groups {
			groups[g]++
		}
	}

	top := make([]models.GroupCount, 0, len(groups))
	for name, n := range groups {
		top = append(top, models.GroupCount{Name: name, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Name < top[j].Name
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}

	return models.MetricsSummary{
		BridgesLast7d:  counts[0],
		BridgesLast30d: counts[1],
		BridgesLast6m:  counts[2],
		BridgesLast1y:  counts[3],
		TopGroups:      top,
	}
}

func uniqueTrimmed(in []string, fold bool) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if fold {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
