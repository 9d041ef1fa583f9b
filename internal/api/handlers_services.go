// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/validation"
)

// Reports returns the bridge metrics summary.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sum, err := h.engine.GetMetrics(r.Context())
	if err != nil {
		rw.Err(err)
		return
	}
	rw.Success(sum)
}

// ResetReports clears the bridge log.
func (h *Handler) ResetReports(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.engine.ResetMetrics(r.Context()); err != nil {
		rw.Err(err)
		return
	}
	rw.NoContent()
}

// RecordBridge appends a bridge event.
func (h *Handler) RecordBridge(w http.ResponseWriter, r *http.Request) {
	var req BridgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := h.engine.RecordBridge(r.Context(), models.BridgeEvent{
		Timestamp: req.Timestamp,
		Groups:    req.Groups,
		Contacts:  req.Contacts,
	})
	if err != nil {
		NewResponseWriter(w, r).Err(err)
		return
	}
	NewResponseWriter(w, r).Created(ev)
}

// DataPath returns the current data root.
func (h *Handler) DataPath(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"path": h.engine.GetDataPath()})
}

// ChangeDataPath switches the data root. A rejected path answers 400 and
// leaves the current root in place.
func (h *Handler) ChangeDataPath(w http.ResponseWriter, r *http.Request) {
	var req DataPathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeDataPathOutcome(w, r, h.engine.ChangeDataFolder(r.Context(), req.Path))
}

// ResetDataPath switches back to the default data root.
func (h *Handler) ResetDataPath(w http.ResponseWriter, r *http.Request) {
	writeDataPathOutcome(w, r, h.engine.ResetDataFolder(r.Context()))
}

func writeDataPathOutcome(w http.ResponseWriter, r *http.Request, out models.DataPathOutcome) {
	rw := NewResponseWriter(w, r)
	if !out.Success {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, out.Error, out)
		return
	}
	rw.Success(out)
}

// Weather returns the forecast for lat/lon. Lookups are best effort: an
// unavailable upstream yields a response without data, not an error.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidation, "lat and lon must be numbers")
		return
	}
	if verr := validation.ValidateStruct(WeatherQuery{Latitude: lat, Longitude: lon}); verr != nil {
		rw.RequestValidation(verr)
		return
	}
	rw.Success(h.engine.GetWeather(r.Context(), lat, lon))
}

// Locations geocodes the q parameter. The result is never null.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	locs := h.engine.SearchLocation(r.Context(), r.URL.Query().Get("q"))
	NewResponseWriter(w, r).List(locs, len(locs))
}
