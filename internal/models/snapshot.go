// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import (
	"reflect"
	"sort"
)

// DataSnapshot is an immutable, internally consistent view of every record
// collection. Group members may reference emails with no matching contact.
//
// LastUpdated is Unix milliseconds and strictly increases across snapshots
// installed by the same store.
type DataSnapshot struct {
	Groups      map[string][]string `json:"groups"`
	Contacts    []Contact           `json:"contacts"`
	Servers     []Server            `json:"servers"`
	LastUpdated int64               `json:"lastUpdated"`
}

// EmptySnapshot returns a snapshot with empty, non-nil collections.
func EmptySnapshot() *DataSnapshot {
	return &DataSnapshot{
		Groups:   map[string][]string{},
		Contacts: []Contact{},
		Servers:  []Server{},
	}
}

// GroupNames returns group names in ascending order.
func (s *DataSnapshot) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for name := range s.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindContact returns the contact for email (case-insensitive).
func (s *DataSnapshot) FindContact(email string) (Contact, bool) {
	key := EmailKey(email)
	for _, c := range s.Contacts {
		if c.Email == key {
			return c, true
		}
	}
	return Contact{}, false
}

// FindServer returns the server named name.
func (s *DataSnapshot) FindServer(name string) (Server, bool) {
	for _, srv := range s.Servers {
		if srv.Name == name {
			return srv, true
		}
	}
	return Server{}, false
}

// SameData reports whether both snapshots hold the same records,
// ignoring LastUpdated.
func (s *DataSnapshot) SameData(o *DataSnapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return reflect.DeepEqual(s.Groups, o.Groups) &&
		reflect.DeepEqual(s.Contacts, o.Contacts) &&
		reflect.DeepEqual(s.Servers, o.Servers)
}

// Counts returns the number of records per kind.
func (s *DataSnapshot) Counts() map[EntityKind]int {
	return map[EntityKind]int{
		KindContacts: len(s.Contacts),
		KindGroups:   len(s.Groups),
		KindServers:  len(s.Servers),
	}
}
