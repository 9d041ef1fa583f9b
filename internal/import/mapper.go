// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"strings"

	"github.com/tomtom215/relay/internal/models"
)

// Header aliases, already normalized. The first present alias wins.
var (
	contactAliases = map[string][]string{
		"name":  {"name", "full name", "display name", "contact", "contact name"},
		"email": {"email", "e mail", "mail", "email address", "e mail address"},
		"phone": {"phone", "phone number", "mobile", "cell", "telephone", "tel"},
		"title": {"title", "job title", "position", "role"},
	}

	serverAliases = map[string][]string{
		"name":         {"name", "server", "server name", "hostname", "host"},
		"businessArea": {"businessarea", "business area", "ba"},
		"lob":          {"lob", "line of business"},
		"comment":      {"comment", "comments", "notes", "note"},
		"owner":        {"owner", "lob owner", "server owner"},
		"contact":      {"contact", "it contact", "point of contact", "poc"},
		"osType":       {"ostype", "os type", "platform"},
		"os":           {"os", "operating system", "os version"},
	}
)

// Mapper converts rows into records. A zero Mapper resolves columns by
// header alias; one built from a ColumnMapping uses only the declared
// columns for the contact fields.
type Mapper struct {
	contact map[string][]string
}

// NewMapper returns an alias-based mapper.
func NewMapper() *Mapper {
	return &Mapper{contact: contactAliases}
}

// NewColumnMapper returns a mapper that reads each contact field from the
// declared source column. Undeclared fields stay empty.
func NewColumnMapper(m models.ColumnMapping) *Mapper {
	resolved := make(map[string][]string, 4)
	for field, header := range map[string]string{
		"name":  m.Name,
		"email": m.Email,
		"phone": m.Phone,
		"title": m.Title,
	} {
		if h := normalizeHeader(header); h != "" {
			resolved[field] = []string{h}
		}
	}
	return &Mapper{contact: resolved}
}

// HasColumn reports whether header appears among the row headers.
func HasColumn(headers []string, header string) bool {
	want := normalizeHeader(header)
	for _, h := range headers {
		if normalizeHeader(h) == want {
			return true
		}
	}
	return false
}

// ToContact maps r. Every source column is kept in Raw.
func (m *Mapper) ToContact(r *row) models.Contact {
	return models.Contact{
		Name:  r.get(m.contact["name"]...),
		Email: r.get(m.contact["email"]...),
		Phone: r.get(m.contact["phone"]...),
		Title: r.get(m.contact["title"]...),
		Raw:   copyFields(r.fields),
	}.Normalize()
}

// ToServer maps r using server header aliases.
func (m *Mapper) ToServer(r *row) models.Server {
	return models.Server{
		Name:         r.get(serverAliases["name"]...),
		BusinessArea: r.get(serverAliases["businessArea"]...),
		LOB:          r.get(serverAliases["lob"]...),
		Comment:      r.get(serverAliases["comment"]...),
		Owner:        r.get(serverAliases["owner"]...),
		Contact:      r.get(serverAliases["contact"]...),
		OSType:       r.get(serverAliases["osType"]...),
		OS:           r.get(serverAliases["os"]...),
		Raw:          copyFields(r.fields),
	}.Normalize()
}

func copyFields(fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
