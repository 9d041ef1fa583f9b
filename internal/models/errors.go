// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrAuthRequired = errors.New("authentication required")
)

// ValidationError rejects a mutation synchronously.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError builds a ValidationError wrapping err (may be nil).
func NewValidationError(field, reason string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReloadError is a whole-cycle load failure. The last good snapshot stays
// installed.
type ReloadError struct {
	Root string
	Op   string
	Err  error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload %s: %s: %v", e.Root, e.Op, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }

// TransportError is a failed weather or geocoding lookup. It is logged and
// never returned to the UI.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthRequiredError suspends an import until credentials are supplied.
type AuthRequiredError struct {
	Source string
	Host   string
	Realm  string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, ErrAuthRequired)
}

// Is makes errors.Is(err, ErrAuthRequired) match.
func (e *AuthRequiredError) Is(target error) bool {
	return target == ErrAuthRequired
}
