// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"time"

	"github.com/tomtom215/relay/internal/models"
)

// GroupRequest is the body of POST /groups.
type GroupRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

// RenameGroupRequest is the body of PUT /groups/{name}.
type RenameGroupRequest struct {
	NewName string `json:"newName" validate:"required,max=256"`
}

// MemberRequest is the body of POST /groups/{name}/members.
type MemberRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

// ImportRequest is the body of POST /import/{kind}. Source is a local path
// or an http(s) URL.
type ImportRequest struct {
	Source  string                `json:"source" validate:"required,max=4096"`
	Mapping *models.ColumnMapping `json:"mapping,omitempty"`
}

// SubmitAuthRequest is the body of POST /auth/{token}/submit.
type SubmitAuthRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"max=1024"`
	Remember bool   `json:"remember"`
}

// BridgeRequest is the body of POST /bridges. A zero timestamp means now.
type BridgeRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Groups    []string  `json:"groups" validate:"max=1000,dive,max=256"`
	Contacts  []string  `json:"contacts" validate:"max=10000,dive,max=320"`
}

// DataPathRequest is the body of PUT /settings/data-path.
type DataPathRequest struct {
	Path string `json:"path" validate:"required,max=4096"`
}

// WeatherQuery holds the query of GET /weather.
type WeatherQuery struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}
