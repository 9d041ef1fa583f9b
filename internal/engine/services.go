// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package engine

import (
	"context"
	"sort"
	"strings"

	dataimport "github.com/tomtom215/relay/internal/import"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
)

// ImportContactsFile merges contacts from a local path or URL.
func (e *Engine) ImportContactsFile(ctx context.Context, source string) (*models.ImportResult, error) {
	return e.Import(ctx, models.KindContacts, source, nil)
}

// ImportGroupsFile merges groups from a local path or URL.
func (e *Engine) ImportGroupsFile(ctx context.Context, source string) (*models.ImportResult, error) {
	return e.Import(ctx, models.KindGroups, source, nil)
}

// ImportServersFile merges servers from a local path or URL.
func (e *Engine) ImportServersFile(ctx context.Context, source string) (*models.ImportResult, error) {
	return e.Import(ctx, models.KindServers, source, nil)
}

// ImportContactsWithMapping merges contacts, reading fields from the
// columns named in mapping.
func (e *Engine) ImportContactsWithMapping(ctx context.Context, source string, mapping models.ColumnMapping) (*models.ImportResult, error) {
	return e.Import(ctx, models.KindContacts, source, &mapping)
}

// Import runs an import of kind from source.
func (e *Engine) Import(ctx context.Context, kind models.EntityKind, source string, mapping *models.ColumnMapping) (*models.ImportResult, error) {
	return e.importer.Import(ctx, dataimport.Request{Kind: kind, Source: source, Mapping: mapping})
}

// SubmitAuth resumes the import waiting under token with creds. An empty
// token picks the oldest waiting import.
func (e *Engine) SubmitAuth(ctx context.Context, token string, creds models.Credentials, remember bool) (*models.ImportResult, error) {
	logging.Ctx(ctx).Info().Str("token", token).Bool("remember", remember).Msg("Credentials submitted for import")
	return e.importer.SubmitAuth(ctx, token, creds, remember)
}

// UseCachedAuth resumes the import waiting under token with remembered
// credentials for its host.
func (e *Engine) UseCachedAuth(ctx context.Context, token string) (*models.ImportResult, error) {
	return e.importer.UseCachedAuth(ctx, token)
}

// CancelAuth abandons the import waiting under token.
func (e *Engine) CancelAuth(ctx context.Context, token string) (*models.ImportResult, error) {
	return e.importer.CancelAuth(ctx, token)
}

// PendingAuth lists imports waiting for credentials, oldest first.
func (e *Engine) PendingAuth() []models.AuthRequest {
	return e.importer.PendingAuth()
}

// ImportJobs lists recent import jobs, newest first.
func (e *Engine) ImportJobs(ctx context.Context, limit int) ([]models.ImportProgress, error) {
	return e.importer.Jobs(ctx, limit)
}

// RecordBridge appends a bridge event and returns it as stored.
func (e *Engine) RecordBridge(ctx context.Context, ev models.BridgeEvent) (models.BridgeEvent, error) {
	return e.bridges.Record(ctx, ev)
}

// GetMetrics summarizes the bridge log as of now.
func (e *Engine) GetMetrics(ctx context.Context) (models.MetricsSummary, error) {
	return e.bridges.Summary(ctx, e.topGroups)
}

// ResetMetrics clears the bridge log.
func (e *Engine) ResetMetrics(ctx context.Context) error {
	return e.bridges.Reset(ctx)
}

// GetDataPath returns the current data root.
func (e *Engine) GetDataPath() string {
	return e.settings.DataPath()
}

// ChangeDataFolder validates path and, when usable, switches the data root
// to it and reloads. A rejected path leaves the current root in place.
func (e *Engine) ChangeDataFolder(ctx context.Context, path string) models.DataPathOutcome {
	return e.settings.Change(ctx, path)
}

// ResetDataFolder switches back to the default data root.
func (e *Engine) ResetDataFolder(ctx context.Context) models.DataPathOutcome {
	return e.settings.Reset(ctx)
}

// GetWeather returns the forecast for lat/lon, or nil.
func (e *Engine) GetWeather(ctx context.Context, lat, lon float64) *models.Forecast {
	if e.weather == nil {
		return nil
	}
	return e.weather.Weather(ctx, lat, lon)
}

// SearchLocation returns geocoding candidates for query. Never nil.
func (e *Engine) SearchLocation(ctx context.Context, query string) []models.Location {
	if e.weather == nil {
		return []models.Location{}
	}
	return e.weather.SearchLocation(ctx, query)
}

// SearchResult lists records whose search token contains the query.
type SearchResult struct {
	Query    string           `json:"query"`
	Contacts []models.Contact `json:"contacts"`
	Servers  []models.Server  `json:"servers"`
	Groups   []string         `json:"groups"`
}

// Search matches q case-insensitively against contact and server search
// tokens and group names. An empty query matches nothing.
func (e *Engine) Search(q string) SearchResult {
	needle := strings.ToLower(strings.TrimSpace(q))
	res := SearchResult{
		Query:    q,
		Contacts: []models.Contact{},
		Servers:  []models.Server{},
		Groups:   []string{},
	}
	if needle == "" {
		return res
	}

	snap := e.Snapshot()
	for _, c := range snap.Contacts {
		if strings.Contains(c.SearchToken, needle) {
			res.Contacts = append(res.Contacts, c)
		}
	}
	for _, s := range snap.Servers {
		if strings.Contains(s.SearchToken, needle) {
			res.Servers = append(res.Servers, s)
		}
	}
	for name := range snap.Groups {
		if strings.Contains(strings.ToLower(name), needle) {
			res.Groups = append(res.Groups, name)
		}
	}
	sort.Strings(res.Groups)
	return res
}
