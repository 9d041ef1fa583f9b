// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package engine

import (
	"context"
	"strings"

	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/validation"
)

func recordMutation(op string, err error) {
	metrics.RecordMutation(op, err)
}

// AddContact inserts c, or replaces the contact with the same email.
func (e *Engine) AddContact(ctx context.Context, c models.Contact) error {
	c = c.Normalize()
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr.ToModelError()
	}
	return e.mutate(ctx, "add_contact", func() (*models.DataSnapshot, error) {
		return e.store.UpsertContact(c)
	})
}

// RemoveContact deletes the contact and drops it from every group.
func (e *Engine) RemoveContact(ctx context.Context, email string) error {
	return e.mutate(ctx, "remove_contact", func() (*models.DataSnapshot, error) {
		return e.store.RemoveContact(email)
	})
}

// AddServer inserts srv, or replaces the server with the same name.
func (e *Engine) AddServer(ctx context.Context, srv models.Server) error {
	srv = srv.Normalize()
	if verr := validation.ValidateStruct(srv); verr != nil {
		return verr.ToModelError()
	}
	return e.mutate(ctx, "add_server", func() (*models.DataSnapshot, error) {
		return e.store.UpsertServer(srv)
	})
}

// RemoveServer deletes the named server.
func (e *Engine) RemoveServer(ctx context.Context, name string) error {
	return e.mutate(ctx, "remove_server", func() (*models.DataSnapshot, error) {
		return e.store.RemoveServer(name)
	})
}

// AddGroup creates an empty group. An existing name is a duplicate.
func (e *Engine) AddGroup(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if verr := validation.ValidateVar("name", name, "required,max=256"); verr != nil {
		return verr
	}
	return e.mutate(ctx, "add_group", func() (*models.DataSnapshot, error) {
		return e.store.AddGroup(name)
	})
}

// RemoveGroup deletes a group. Its member contacts are untouched.
func (e *Engine) RemoveGroup(ctx context.Context, name string) error {
	return e.mutate(ctx, "remove_group", func() (*models.DataSnapshot, error) {
		return e.store.RemoveGroup(name)
	})
}

// RenameGroup moves a group and its members to newName.
func (e *Engine) RenameGroup(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if verr := validation.ValidateVar("newName", newName, "required,max=256"); verr != nil {
		return verr
	}
	return e.mutate(ctx, "rename_group", func() (*models.DataSnapshot, error) {
		return e.store.RenameGroup(oldName, newName)
	})
}

// AddContactToGroup adds email to the group's members. The email does not
// need a matching contact.
func (e *Engine) AddContactToGroup(ctx context.Context, group, email string) error {
	email = models.EmailKey(email)
	if verr := validation.ValidateVar("email", email, "required,email"); verr != nil {
		return verr
	}
	return e.mutate(ctx, "add_member", func() (*models.DataSnapshot, error) {
		return e.store.AddMember(group, email)
	})
}

// RemoveContactFromGroup removes email from the group's members.
func (e *Engine) RemoveContactFromGroup(ctx context.Context, group, email string) error {
	return e.mutate(ctx, "remove_member", func() (*models.DataSnapshot, error) {
		return e.store.RemoveMember(group, email)
	})
}
