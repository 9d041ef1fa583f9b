// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package bridges

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/relay/internal/models"
)

var now = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func ev(ago time.Duration, groups ...string) models.BridgeEvent {
	return models.BridgeEvent{ID: ago.String(), Timestamp: now.Add(-ago), Groups: groups}
}

const day = 24 * time.Hour

func TestSummarize_Windows(t *testing.T) {
	events := []models.BridgeEvent{
		ev(1*day, "Ops"),
		ev(10*day, "Ops"),
		ev(40*day, "Dev"),
		ev(200*day, "Dev"),
		ev(400*day, "Sec"),
	}
	got := Summarize(events, now, 0)

	if got.BridgesLast7d != 1 || got.BridgesLast30d != 2 || got.BridgesLast6m != 3 || got.BridgesLast1y != 4 {
		t.Errorf("windows = %d/%d/%d/%d, want 1/2/3/4",
			got.BridgesLast7d, got.BridgesLast30d, got.BridgesLast6m, got.BridgesLast1y)
	}
}

func TestSummarize_HalfOpenBoundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"exactly seven days ago is inside", now.AddDate(0, 0, -7), 1},
		{"just before the window is outside", now.AddDate(0, 0, -7).Add(-time.Nanosecond), 0},
		{"now itself is outside", now, 0},
		{"future events are outside", now.Add(time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize([]models.BridgeEvent{{Timestamp: tt.at, Groups: []string{"G"}}}, now, 0)
			if s.BridgesLast7d != tt.want {
				t.Errorf("BridgesLast7d = %d, want %d", s.BridgesLast7d, tt.want)
			}
		})
	}
}

func TestSummarize_TopGroupsTieBreak(t *testing.T) {
	events := []models.BridgeEvent{
		ev(time.Hour, "Zulu", "Alpha"),
		ev(2*time.Hour, "Mike"),
		ev(3*time.Hour, "Mike", "Zulu"),
		ev(500*day, "Alpha"),
	}

	got := Summarize(events, now, 0).TopGroups
	want := []models.GroupCount{{Name: "Alpha", Count: 2}, {Name: "Mike", Count: 2}, {Name: "Zulu", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopGroups = %v, want %v", got, want)
	}

	limited := Summarize(events, now, 2).TopGroups
	if len(limited) != 2 || limited[1].Name != "Mike" {
		t.Errorf("limited TopGroups = %v", limited)
	}

	if empty := Summarize(nil, now, 5).TopGroups; empty == nil || len(empty) != 0 {
		t.Errorf("empty log should give an empty, non-nil ranking, got %#v", empty)
	}
}

func TestAggregator_RecordValidation(t *testing.T) {
	a := New(NewMemoryLog())
	a.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := a.Record(ctx, models.BridgeEvent{Groups: []string{" Ops ", "Ops", ""}, Contacts: []string{"A@x.io", "a@x.io"}})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got.ID == "" || !got.Timestamp.Equal(now) {
		t.Errorf("ID and timestamp should be assigned: %+v", got)
	}
	if !reflect.DeepEqual(got.Groups, []string{"Ops"}) || !reflect.DeepEqual(got.Contacts, []string{"a@x.io"}) {
		t.Errorf("lists not normalized: %+v", got)
	}

	var ve *models.ValidationError
	if _, err := a.Record(ctx, models.BridgeEvent{Timestamp: time.Unix(-1, 0)}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for pre-1970 bridge, got %v", err)
	}
}

func TestAggregator_RecordUnassociated(t *testing.T) {
	a := New(NewMemoryLog())
	a.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := a.Record(ctx, models.BridgeEvent{Timestamp: now.Add(-time.Hour), Groups: []string{"  "}})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(got.Groups) != 0 || len(got.Contacts) != 0 {
		t.Errorf("expected no associations, got %+v", got)
	}

	sum, err := a.SummaryAt(ctx, now, 5)
	if err != nil {
		t.Fatalf("SummaryAt() error = %v", err)
	}
	if sum.BridgesLast7d != 1 || sum.BridgesLast30d != 1 || sum.BridgesLast6m != 1 || sum.BridgesLast1y != 1 {
		t.Errorf("windows = %+v, want 1 in each", sum)
	}
	if len(sum.TopGroups) != 0 {
		t.Errorf("TopGroups = %v, want empty", sum.TopGroups)
	}
}

func TestAggregator_ConcurrentRecordAndSummary(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := a.Record(ctx, models.BridgeEvent{Groups: []string{"Ops"}}); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := a.Summary(ctx, 0); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	s, err := a.SummaryAt(ctx, time.Now().Add(time.Second), 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.BridgesLast7d != 20 || s.TopGroups[0].Count != 20 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestBadgerLog_PersistsInTimeOrderAndResets(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	a := New(NewBadgerLog(db))
	a.now = func() time.Time { return now }

	for _, e := range []models.BridgeEvent{ev(10*day, "B"), ev(1*day, "A"), ev(40*day, "C")} {
		if _, err := a.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	events, err := NewBadgerLog(db).Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || events[0].Groups[0] != "C" || events[2].Groups[0] != "A" {
		t.Errorf("events not in time order: %+v", events)
	}

	s, err := a.Summary(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.BridgesLast7d != 1 || s.BridgesLast30d != 2 || s.BridgesLast6m != 3 {
		t.Errorf("unexpected summary %+v", s)
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	s, _ = a.Summary(ctx, 0)
	if s.BridgesLast1y != 0 || len(s.TopGroups) != 0 {
		t.Errorf("reset left data behind: %+v", s)
	}
}
