// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"net/http"

	"github.com/tomtom215/relay/internal/models"
)

// Data returns the current snapshot.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Snapshot())
}

// Reload reloads the data root and returns the resulting snapshot. A failed
// reload keeps the previous snapshot and answers 500.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.engine.ReloadData(r.Context()); err != nil {
		rw.Err(err)
		return
	}
	rw.Success(h.engine.Snapshot())
}

// ListContacts returns the contacts of the current snapshot.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts := h.engine.Snapshot().Contacts
	NewResponseWriter(w, r).List(contacts, len(contacts))
}

// AddContact upserts a contact keyed by email.
func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	var c models.Contact
	if !decodeJSON(w, r, &c) {
		return
	}
	h.mutated(w, r, h.engine.AddContact(r.Context(), c))
}

// RemoveContact deletes a contact and its group memberships.
func (h *Handler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r, h.engine.RemoveContact(r.Context(), pathParam(r, "email")))
}

// ListServers returns the servers of the current snapshot.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers := h.engine.Snapshot().Servers
	NewResponseWriter(w, r).List(servers, len(servers))
}

// AddServer upserts a server keyed by name.
func (h *Handler) AddServer(w http.ResponseWriter, r *http.Request) {
	var srv models.Server
	if !decodeJSON(w, r, &srv) {
		return
	}
	h.mutated(w, r, h.engine.AddServer(r.Context(), srv))
}

// RemoveServer deletes a server.
func (h *Handler) RemoveServer(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r, h.engine.RemoveServer(r.Context(), pathParam(r, "name")))
}

// ListGroups returns the group map of the current snapshot.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.engine.Snapshot().Groups
	NewResponseWriter(w, r).List(groups, len(groups))
}

// AddGroup creates an empty group.
func (h *Handler) AddGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.AddGroup(r.Context(), req.Name); err != nil {
		NewResponseWriter(w, r).Err(err)
		return
	}
	NewResponseWriter(w, r).Created(h.engine.Snapshot())
}

// RenameGroup moves a group to a new name.
func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req RenameGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r, h.engine.RenameGroup(r.Context(), pathParam(r, "name"), req.NewName))
}

// RemoveGroup deletes a group.
func (h *Handler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r, h.engine.RemoveGroup(r.Context(), pathParam(r, "name")))
}

// AddMember adds an email to a group.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r, h.engine.AddContactToGroup(r.Context(), pathParam(r, "name"), req.Email))
}

// RemoveMember removes an email from a group.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r, h.engine.RemoveContactFromGroup(r.Context(), pathParam(r, "name"), pathParam(r, "email")))
}

// Search filters the snapshot by the q parameter.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Search(r.URL.Query().Get("q")))
}

// mutated answers a record mutation with the new snapshot or the error.
func (h *Handler) mutated(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	if err != nil {
		rw.Err(err)
		return
	}
	rw.Success(h.engine.Snapshot())
}
