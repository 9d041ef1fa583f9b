// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package store

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/relay/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestStore_SnapshotNilBeforeFirstWrite(t *testing.T) {
	s := New()
	if s.Snapshot() != nil {
		t.Fatal("expected nil snapshot before first install")
	}
}

func TestStore_UpsertReplacesWholeRecord(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertContact(models.Contact{Name: "Ada", Email: "Ada@X.io", Phone: "1", Title: "Eng"}); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	snap, err := s.UpsertContact(models.Contact{Name: "Ada L", Email: "ada@x.io"})
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	if len(snap.Contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(snap.Contacts))
	}
	got := snap.Contacts[0]
	if got.Phone != "" || got.Title != "" {
		t.Errorf("expected no partial merge, got %+v", got)
	}
	if got.SearchToken != "ada l ada@x.io" {
		t.Errorf("expected recomputed search token, got %q", got.SearchToken)
	}
}

func TestStore_LastOperationPerKeyWins(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(42))
	model := map[string]string{}

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("user%d@x.io", rng.Intn(20))
		if rng.Intn(3) == 0 {
			_, err := s.RemoveContact(key)
			_, existed := model[key]
			if existed && err != nil {
				t.Fatalf("remove %s: %v", key, err)
			}
			if !existed && !errors.Is(err, models.ErrNotFound) {
				t.Fatalf("remove missing %s: expected ErrNotFound, got %v", key, err)
			}
			delete(model, key)
			continue
		}
		name := fmt.Sprintf("name-%d", i)
		if _, err := s.UpsertContact(models.Contact{Name: name, Email: key}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		model[key] = name
	}

	snap := s.Snapshot()
	if len(snap.Contacts) != len(model) {
		t.Fatalf("expected %d contacts, got %d", len(model), len(snap.Contacts))
	}
	seen := map[string]bool{}
	for _, c := range snap.Contacts {
		if seen[c.Email] {
			t.Fatalf("duplicate key %s", c.Email)
		}
		seen[c.Email] = true
		if model[c.Email] != c.Name {
			t.Errorf("%s: name %q, want %q", c.Email, c.Name, model[c.Email])
		}
	}
}

func TestStore_LastUpdatedStrictlyIncreases(t *testing.T) {
	s := newTestStore(t)

	var prev int64
	for i := 0; i < 5; i++ {
		snap, err := s.UpsertServer(models.Server{Name: fmt.Sprintf("srv-%d", i)})
		if err != nil {
			t.Fatalf("UpsertServer: %v", err)
		}
		if snap.LastUpdated <= prev {
			t.Fatalf("lastUpdated %d not greater than %d", snap.LastUpdated, prev)
		}
		prev = snap.LastUpdated
	}
}

func TestStore_PublishedSnapshotsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	first, _ := s.UpsertContact(models.Contact{Email: "a@x.io"})
	if _, err := s.UpsertGroup(models.Group{Name: "ops", Members: []string{"a@x.io"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RemoveContact("a@x.io"); err != nil {
		t.Fatal(err)
	}

	if len(first.Contacts) != 1 || first.Contacts[0].Email != "a@x.io" {
		t.Errorf("earlier snapshot changed: %+v", first.Contacts)
	}
	if len(first.Groups) != 0 {
		t.Errorf("earlier snapshot gained groups: %+v", first.Groups)
	}
}

func TestStore_RemoveContactDropsMembershipOnly(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.UpsertContact(models.Contact{Email: "a@x.io"})
	_, _ = s.UpsertContact(models.Contact{Email: "b@x.io"})
	_, _ = s.UpsertGroup(models.Group{Name: "ops", Members: []string{"A@x.io", "b@x.io"}})

	snap, err := s.RemoveContact("A@X.IO")
	if err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	if !reflect.DeepEqual(snap.Groups["ops"], []string{"b@x.io"}) {
		t.Errorf("unexpected members %v", snap.Groups["ops"])
	}

	snap, err = s.RemoveGroup("ops")
	if err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	if len(snap.Contacts) != 1 {
		t.Errorf("removing a group must not remove contacts, got %d", len(snap.Contacts))
	}
}

func TestStore_GroupLifecycleErrors(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddGroup("Ops")
	_, _ = s.AddGroup("Dev")

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"add duplicate", func() error { _, err := s.AddGroup("Ops"); return err }, models.ErrDuplicate},
		{"names are case sensitive", func() error { _, err := s.AddGroup("ops"); return err }, nil},
		{"rename onto existing", func() error { _, err := s.RenameGroup("Ops", "Dev"); return err }, models.ErrDuplicate},
		{"rename missing", func() error { _, err := s.RenameGroup("Nope", "X"); return err }, models.ErrNotFound},
		{"member of missing group", func() error { _, err := s.AddMember("Nope", "a@x.io"); return err }, models.ErrNotFound},
		{"remove missing member", func() error { _, err := s.RemoveMember("Ops", "z@x.io"); return err }, models.ErrNotFound},
		{"remove missing server", func() error { _, err := s.RemoveServer("web"); return err }, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestStore_RenamePreservesMembers(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddGroup("Ops")
	_, _ = s.AddMember("Ops", "B@x.io")
	_, _ = s.AddMember("Ops", "a@x.io")
	_, _ = s.AddMember("Ops", "a@x.io")

	snap, err := s.RenameGroup("Ops", "Operations")
	if err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}
	if _, ok := snap.Groups["Ops"]; ok {
		t.Error("old group name still present")
	}
	if !reflect.DeepEqual(snap.Groups["Operations"], []string{"a@x.io", "b@x.io"}) {
		t.Errorf("unexpected members %v", snap.Groups["Operations"])
	}
}

func TestStore_InstallRejectsStaleEpoch(t *testing.T) {
	s := newTestStore(t)

	epoch := s.Epoch()
	s.Advance()
	if s.Install(epoch, models.EmptySnapshot()) {
		t.Fatal("expected stale install to be rejected")
	}
	if s.Snapshot() != nil {
		t.Fatal("stale snapshot must not be visible")
	}

	epoch = s.Epoch()
	if !s.Install(epoch, models.EmptySnapshot()) {
		t.Fatal("expected current install to succeed")
	}

	epoch = s.Epoch()
	_, _ = s.UpsertContact(models.Contact{Email: "a@x.io"})
	if s.Install(epoch, models.EmptySnapshot()) {
		t.Fatal("a mutation must supersede an in-flight load")
	}
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			if snap == nil {
				continue
			}
			// Every writer batch adds a contact and a server together.
			if len(snap.Contacts) != len(snap.Servers) {
				t.Errorf("torn snapshot: %d contacts, %d servers", len(snap.Contacts), len(snap.Servers))
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := s.Merge(Batch{
			Contacts: []models.Contact{{Email: fmt.Sprintf("u%d@x.io", i)}},
			Servers:  []models.Server{{Name: fmt.Sprintf("srv-%d", i)}},
		})
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStore_GenericUpsertRemove(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Upsert(models.KindServers, models.Contact{}); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := s.Upsert(models.KindGroups, models.Group{Name: "g", Members: []string{"x@y.io"}}); err != nil {
		t.Fatalf("Upsert group: %v", err)
	}
	snap, err := s.Remove(models.KindGroups, "g")
	if err != nil {
		t.Fatalf("Remove group: %v", err)
	}
	if len(snap.Groups) != 0 {
		t.Errorf("expected no groups, got %v", snap.Groups)
	}
}
