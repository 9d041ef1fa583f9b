// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tomtom215/relay/internal/models"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 200
)

// Import runs an import of the kind named in the path. An import that
// needs credentials answers 202 with its resumption token; the prompt is
// also pushed to WebSocket clients.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := models.EntityKind(pathParam(r, "kind"))
	res, err := h.engine.Import(r.Context(), kind, req.Source, req.Mapping)
	writeImportResult(w, r, res, err)
}

// ImportJobs lists recent import jobs, newest first.
func (h *Handler) ImportJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	limit := defaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobsLimit {
			rw.Error(http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and "+strconv.Itoa(maxJobsLimit))
			return
		}
		limit = n
	}
	jobs, err := h.engine.ImportJobs(r.Context(), limit)
	if err != nil {
		rw.Err(err)
		return
	}
	rw.List(jobs, len(jobs))
}

// PendingAuth lists imports waiting for credentials.
func (h *Handler) PendingAuth(w http.ResponseWriter, r *http.Request) {
	pending := h.engine.PendingAuth()
	NewResponseWriter(w, r).List(pending, len(pending))
}

// SubmitAuth resumes a waiting import with credentials.
func (h *Handler) SubmitAuth(w http.ResponseWriter, r *http.Request) {
	var req SubmitAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	creds := models.Credentials{Username: req.Username, Password: req.Password}
	res, err := h.engine.SubmitAuth(r.Context(), authToken(r), creds, req.Remember)
	writeImportResult(w, r, res, err)
}

// UseCachedAuth resumes a waiting import with remembered credentials.
func (h *Handler) UseCachedAuth(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.UseCachedAuth(r.Context(), authToken(r))
	writeImportResult(w, r, res, err)
}

// CancelAuth abandons a waiting import.
func (h *Handler) CancelAuth(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.CancelAuth(r.Context(), authToken(r))
	writeImportResult(w, r, res, err)
}

// authToken maps the "next" placeholder to the oldest waiting import.
func authToken(r *http.Request) string {
	tok := pathParam(r, "token")
	if tok == "next" {
		return ""
	}
	return tok
}

// writeImportResult answers an import call. Fetch and parse failures are
// the caller's problem, not the server's, so they map to 422.
func writeImportResult(w http.ResponseWriter, r *http.Request, res *models.ImportResult, err error) {
	rw := NewResponseWriter(w, r)
	var (
		verr *models.ValidationError
		rerr *models.ReloadError
	)
	switch {
	case err == nil && res.State == models.ImportAwaitingAuth:
		rw.Accepted(res)
	case err == nil:
		rw.Success(res)
	case errors.As(err, &verr), errors.As(err, &rerr),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rw.Err(err)
	default:
		rw.Error(http.StatusUnprocessableEntity, ErrCodeImportFailed, err.Error())
	}
}
