// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package store holds the in-memory record collections.
//
// The current dataset lives in a single atomic cell. Writers build a new
// snapshot from the current one and swap it in under a mutex; readers load
// the cell without locking and always see a complete snapshot.
//
// The epoch counter supersedes in-flight loads: a loader records Epoch()
// before reading files and calls Install with that value. Install refuses
// the snapshot when any mutation or root change advanced the epoch in the
// meantime.
package store

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/relay/internal/models"
)

// Store owns the current DataSnapshot.
type Store struct {
	cell  atomic.Pointer[models.DataSnapshot]
	epoch atomic.Uint64
	mu    sync.Mutex
	now   func() time.Time
}

// New returns an empty store. Snapshot returns nil until the first install
// or mutation.
func New() *Store {
	return &Store{now: time.Now}
}

// Snapshot returns the current snapshot, or nil before the first install.
// The returned value must not be modified.
func (s *Store) Snapshot() *models.DataSnapshot {
	return s.cell.Load()
}

// Epoch returns the current generation.
func (s *Store) Epoch() uint64 {
	return s.epoch.Load()
}

// Advance starts a new generation, invalidating loads begun earlier.
func (s *Store) Advance() uint64 {
	return s.epoch.Add(1)
}

// Install swaps in snap if epoch is still current. snap must not have been
// published yet; its LastUpdated is assigned here.
func (s *Store) Install(epoch uint64, snap *models.DataSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch.Load() != epoch {
		return false
	}
	s.stamp(snap, s.cell.Load())
	s.cell.Store(snap)
	return true
}

// stamp assigns a LastUpdated strictly greater than prev's.
func (s *Store) stamp(next, prev *models.DataSnapshot) {
	ts := s.now().UnixMilli()
	if prev != nil && ts <= prev.LastUpdated {
		ts = prev.LastUpdated + 1
	}
	next.LastUpdated = ts
}

// mutate applies fn to a copy of the current dataset and publishes the
// result. Mutations advance the epoch.
func (s *Store) mutate(fn func(d *draft) error) (*models.DataSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cell.Load()
	d := newDraft(cur)
	if err := fn(d); err != nil {
		return nil, err
	}

	next := d.build()
	s.stamp(next, cur)
	s.epoch.Add(1)
	s.cell.Store(next)
	return next, nil
}

// Upsert replaces or inserts record of the given kind. record must be a
// models.Contact, models.Server or models.Group.
func (s *Store) Upsert(kind models.EntityKind, record any) (*models.DataSnapshot, error) {
	switch kind {
	case models.KindContacts:
		c, ok := record.(models.Contact)
		if !ok {
			return nil, fmt.Errorf("upsert %s: unexpected record type %T", kind, record)
		}
		return s.UpsertContact(c)
	case models.KindServers:
		srv, ok := record.(models.Server)
		if !ok {
			return nil, fmt.Errorf("upsert %s: unexpected record type %T", kind, record)
		}
		return s.UpsertServer(srv)
	case models.KindGroups:
		g, ok := record.(models.Group)
		if !ok {
			return nil, fmt.Errorf("upsert %s: unexpected record type %T", kind, record)
		}
		return s.UpsertGroup(g)
	default:
		return nil, models.NewValidationError("kind", fmt.Sprintf("unknown entity kind %q", kind), nil)
	}
}

// Remove deletes the record with key from kind.
func (s *Store) Remove(kind models.EntityKind, key string) (*models.DataSnapshot, error) {
	switch kind {
	case models.KindContacts:
		return s.RemoveContact(key)
	case models.KindServers:
		return s.RemoveServer(key)
	case models.KindGroups:
		return s.RemoveGroup(key)
	default:
		return nil, models.NewValidationError("kind", fmt.Sprintf("unknown entity kind %q", kind), nil)
	}
}

// UpsertContact replaces the whole contact keyed by its lowercase email.
func (s *Store) UpsertContact(c models.Contact) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.upsertContact(c) })
}

// RemoveContact deletes a contact and its group memberships.
func (s *Store) RemoveContact(email string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.removeContact(email) })
}

// UpsertServer replaces the whole server keyed by name.
func (s *Store) UpsertServer(srv models.Server) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.upsertServer(srv) })
}

// RemoveServer deletes a server.
func (s *Store) RemoveServer(name string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.removeServer(name) })
}

// UpsertGroup replaces a group's whole member set, creating it if needed.
func (s *Store) UpsertGroup(g models.Group) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.upsertGroup(g) })
}

// AddGroup creates an empty group. An existing name is rejected.
func (s *Store) AddGroup(name string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.addGroup(name) })
}

// RemoveGroup deletes a group. Member contacts are untouched.
func (s *Store) RemoveGroup(name string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.removeGroup(name) })
}

// RenameGroup moves a group's members to a new name.
func (s *Store) RenameGroup(oldName, newName string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.renameGroup(oldName, newName) })
}

// AddMember adds email to group.
func (s *Store) AddMember(group, email string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.addMember(group, email) })
}

// RemoveMember removes email from group.
func (s *Store) RemoveMember(group, email string) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error { return d.removeMember(group, email) })
}

// Batch is a set of records merged by one Merge call.
type Batch struct {
	Contacts []models.Contact
	Servers  []models.Server
	Groups   []models.Group
}

// Merge upserts every record in b as one snapshot. Existing records not in
// b are kept.
func (s *Store) Merge(b Batch) (*models.DataSnapshot, error) {
	return s.mutate(func(d *draft) error {
		for _, c := range b.Contacts {
			if err := d.upsertContact(c); err != nil {
				return err
			}
		}
		for _, srv := range b.Servers {
			if err := d.upsertServer(srv); err != nil {
				return err
			}
		}
		for _, g := range b.Groups {
			if err := d.upsertGroup(g); err != nil {
				return err
			}
		}
		return nil
	})
}

func notFound(field, what, key string) error {
	return models.NewValidationError(field, fmt.Sprintf("%s %q does not exist", what, key), models.ErrNotFound)
}

func duplicate(field, what, key string) error {
	return models.NewValidationError(field, fmt.Sprintf("%s %q already exists", what, key), models.ErrDuplicate)
}

func requireKey(field, key string) error {
	if strings.TrimSpace(key) == "" {
		return models.NewValidationError(field, field+" is required", nil)
	}
	return nil
}
