// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import (
	"sort"
	"strings"
)

// EntityKind names one of the three record collections.
type EntityKind string

const (
	KindContacts EntityKind = "contacts"
	KindGroups   EntityKind = "groups"
	KindServers  EntityKind = "servers"
)

// Kinds lists every entity kind in load order.
var Kinds = []EntityKind{KindContacts, KindGroups, KindServers}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindContacts, KindGroups, KindServers:
		return true
	default:
		return false
	}
}

// Contact is a directory person keyed by lowercase email.
type Contact struct {
	Name        string            `json:"name" validate:"max=256"`
	Email       string            `json:"email" validate:"required,email,max=320"`
	Phone       string            `json:"phone,omitempty" validate:"max=64"`
	Title       string            `json:"title,omitempty" validate:"max=256"`
	SearchToken string            `json:"_searchString"`
	Raw         map[string]string `json:"raw,omitempty"`
}

// Server is an inventory entry keyed by its case-sensitive name.
type Server struct {
	Name         string            `json:"name" validate:"required,max=256"`
	BusinessArea string            `json:"businessArea,omitempty"`
	LOB          string            `json:"lob,omitempty"`
	Comment      string            `json:"comment,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Contact      string            `json:"contact,omitempty"`
	OSType       string            `json:"osType,omitempty"`
	OS           string            `json:"os,omitempty"`
	SearchToken  string            `json:"_searchString"`
	Raw          map[string]string `json:"raw,omitempty"`
}

// Group is a named set of member emails. Membership references contacts
// by email and never owns them.
type Group struct {
	Name    string   `json:"name" validate:"required,max=256"`
	Members []string `json:"members"`
}

// EmailKey normalizes an email for use as a contact key.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize returns a copy with trimmed fields, a lowercase email and a
// freshly computed search token.
func (c Contact) Normalize() Contact {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = EmailKey(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Title = strings.TrimSpace(c.Title)
	c.SearchToken = searchToken(c.Name, c.Email, c.Title, c.Phone)
	if len(c.Raw) == 0 {
		c.Raw = nil
	}
	return c
}

// Normalize returns a copy with trimmed fields and a fresh search token.
func (s Server) Normalize() Server {
	s.Name = strings.TrimSpace(s.Name)
	s.BusinessArea = strings.TrimSpace(s.BusinessArea)
	s.LOB = strings.TrimSpace(s.LOB)
	s.Comment = strings.TrimSpace(s.Comment)
	s.Owner = strings.TrimSpace(s.Owner)
	s.Contact = strings.TrimSpace(s.Contact)
	s.OSType = strings.TrimSpace(s.OSType)
	s.OS = strings.TrimSpace(s.OS)
	s.SearchToken = searchToken(s.Name, s.BusinessArea, s.LOB, s.Owner, s.Contact, s.OSType, s.OS, s.Comment)
	if len(s.Raw) == 0 {
		s.Raw = nil
	}
	return s
}

func searchToken(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// NormalizeMembers lowercases, trims, deduplicates and sorts member emails.
// Empty entries are dropped.
func NormalizeMembers(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		key := EmailKey(e)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
