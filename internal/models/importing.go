// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import (
	"fmt"
	"time"
)

// ImportWarning describes one skipped or overridden row. Row is 1-based
// and counts data rows only (CSV header excluded).
type ImportWarning struct {
	Source string `json:"source"`
	Row    int    `json:"rowIndex"`
	Reason string `json:"reason"`
}

func (w ImportWarning) String() string {
	return fmt.Sprintf("%s row %d: %s", w.Source, w.Row, w.Reason)
}

// ColumnMapping maps target contact fields to source column headers.
// Matching is case-insensitive. Email is required.
type ColumnMapping struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone"`
	Title string `json:"title"`
}

// ImportState is the lifecycle state of an import job.
type ImportState string

const (
	ImportRunning      ImportState = "running"
	ImportAwaitingAuth ImportState = "awaiting_auth"
	ImportCompleted    ImportState = "completed"
	ImportCancelled    ImportState = "cancelled"
	ImportFailed       ImportState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ImportState) Terminal() bool {
	return s == ImportCompleted || s == ImportCancelled || s == ImportFailed
}

// ImportResult is returned by every import operation. When State is
// ImportAwaitingAuth, Token resumes the job through SubmitAuth,
// UseCachedAuth or CancelAuth.
type ImportResult struct {
	Success  bool            `json:"success"`
	State    ImportState     `json:"state"`
	JobID    string          `json:"jobId"`
	Token    string          `json:"token,omitempty"`
	Imported int             `json:"imported"`
	Warnings []ImportWarning `json:"warnings"`
	Error    string          `json:"error,omitempty"`
}

// ImportProgress is the persisted record of one import job.
type ImportProgress struct {
	JobID     string      `json:"jobId"`
	Kind      EntityKind  `json:"kind"`
	Source    string      `json:"source"`
	State     ImportState `json:"state"`
	Imported  int         `json:"imported"`
	Warnings  int         `json:"warnings"`
	Error     string      `json:"error,omitempty"`
	StartedAt time.Time   `json:"startedAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Credentials authenticate an import source.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
}

// AuthRequest is raised when an import source needs credentials.
type AuthRequest struct {
	Token       string    `json:"token"`
	Source      string    `json:"source"`
	Host        string    `json:"host"`
	Realm       string    `json:"realm,omitempty"`
	HasCached   bool      `json:"hasCached"`
	RequestedAt time.Time `json:"requestedAt"`
}

// DataPathOutcome is the result of a data root change or reset.
type DataPathOutcome struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Error   string `json:"error,omitempty"`
}

// ReloadFailure is delivered to data error listeners.
type ReloadFailure struct {
	Root    string    `json:"root"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// ReloadStatus is delivered to reload start and complete listeners.
type ReloadStatus struct {
	Root     string          `json:"root"`
	Reason   string          `json:"reason"`
	Warnings []ImportWarning `json:"warnings,omitempty"`
	At       time.Time       `json:"at"`
}
