// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/store"
)

// Sink merges accepted records into the live dataset.
type Sink interface {
	MergeImport(ctx context.Context, kind models.EntityKind, batch store.Batch) error
}

// Request describes one import.
type Request struct {
	Kind    models.EntityKind
	Source  string
	Mapping *models.ColumnMapping
}

// Importer runs import jobs. A job whose source demands credentials is
// parked in the awaiting-auth state under a resumption token until it is
// resumed with SubmitAuth or UseCachedAuth, or dropped with CancelAuth.
type Importer struct {
	fetcher  *Fetcher
	sink     Sink
	progress ProgressTracker
	creds    CredentialCache
	onAuth   func(models.AuthRequest)
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*job
	order   []string
}

type job struct {
	req      Request
	progress models.ImportProgress
	auth     models.AuthRequest
}

// NewImporter wires an importer. onAuth is called, outside any lock, each
// time a job starts waiting for credentials.
func NewImporter(fetcher *Fetcher, sink Sink, progress ProgressTracker, creds CredentialCache, onAuth func(models.AuthRequest)) *Importer {
	if progress == nil {
		progress = NewInMemoryProgress()
	}
	if creds == nil {
		creds = NewMemoryCredentialCache()
	}
	if onAuth == nil {
		onAuth = func(models.AuthRequest) {}
	}
	return &Importer{
		fetcher:  fetcher,
		sink:     sink,
		progress: progress,
		creds:    creds,
		onAuth:   onAuth,
		now:      time.Now,
		pending:  map[string]*job{},
	}
}

// Import starts a job. The result reports either completion with its
// warnings or a suspension awaiting credentials; failures return an error.
func (i *Importer) Import(ctx context.Context, req Request) (*models.ImportResult, error) {
	if req.Kind != models.KindContacts && req.Kind != models.KindGroups && req.Kind != models.KindServers {
		return nil, models.NewValidationError("kind", fmt.Sprintf("unknown entity kind %q", req.Kind), nil)
	}
	if req.Source == "" {
		return nil, models.NewValidationError("source", "source is required", nil)
	}
	if req.Mapping != nil && req.Kind != models.KindContacts {
		return nil, models.NewValidationError("mapping", "column mapping applies to contacts only", nil)
	}

	now := i.now()
	j := &job{
		req: req,
		progress: models.ImportProgress{
			JobID:     uuid.NewString(),
			Kind:      req.Kind,
			Source:    req.Source,
			StartedAt: now,
		},
	}
	return i.run(ctx, j, nil, false)
}

// run fetches, parses and merges j. With remember set, creds are cached
// for the source host once the source has accepted them.
func (i *Importer) run(ctx context.Context, j *job, creds *models.Credentials, remember bool) (*models.ImportResult, error) {
	ctx = logging.ContextWithCorrelationID(ctx, j.progress.JobID[:8])
	i.transition(ctx, j, models.ImportRunning, "")

	data, err := i.fetcher.Fetch(ctx, j.req.Source, creds)
	var authErr *models.AuthRequiredError
	if errors.As(err, &authErr) {
		return i.suspend(ctx, j, authErr), nil
	}
	if err != nil {
		return nil, i.fail(ctx, j, err)
	}
	if remember && creds != nil && j.auth.Host != "" {
		if err := i.creds.Put(ctx, j.auth.Host, *creds); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("host", j.auth.Host).Msg("Failed to cache credentials")
		}
	}

	batch, warnings, err := parseFor(j.req, data)
	if err != nil {
		return nil, i.fail(ctx, j, err)
	}
	if err := i.sink.MergeImport(ctx, j.req.Kind, batch); err != nil {
		return nil, i.fail(ctx, j, err)
	}

	imported := len(batch.Contacts) + len(batch.Servers) + len(batch.Groups)
	j.progress.Imported = imported
	j.progress.Warnings = len(warnings)
	i.transition(ctx, j, models.ImportCompleted, "")

	metrics.ImportRows.WithLabelValues(string(j.req.Kind)).Add(float64(imported))
	metrics.ImportWarnings.WithLabelValues(string(j.req.Kind)).Add(float64(len(warnings)))
	logging.Ctx(ctx).Info().
		Str("kind", string(j.req.Kind)).
		Str("source", SourceName(j.req.Source)).
		Int("imported", imported).
		Int("warnings", len(warnings)).
		Msg("Import completed")

	if warnings == nil {
		warnings = []models.ImportWarning{}
	}
	return &models.ImportResult{
		Success:  true,
		State:    models.ImportCompleted,
		JobID:    j.progress.JobID,
		Imported: imported,
		Warnings: warnings,
	}, nil
}

func parseFor(req Request, data []byte) (store.Batch, []models.ImportWarning, error) {
	name := SourceName(req.Source)
	format := FormatFromName(name)

	var batch store.Batch
	switch req.Kind {
	case models.KindContacts:
		var p *Parsed[models.Contact]
		var err error
		if req.Mapping != nil {
			p, err = ParseContactsWithMapping(name, data, format, *req.Mapping)
		} else {
			p, err = ParseContacts(name, data, format)
		}
		if err != nil {
			return batch, nil, err
		}
		batch.Contacts = p.Records
		return batch, p.Warnings, nil
	case models.KindServers:
		p, err := ParseServers(name, data, format)
		if err != nil {
			return batch, nil, err
		}
		batch.Servers = p.Records
		return batch, p.Warnings, nil
	default:
		p, err := ParseGroups(name, data, format)
		if err != nil {
			return batch, nil, err
		}
		batch.Groups = p.Records
		return batch, p.Warnings, nil
	}
}

func (i *Importer) suspend(ctx context.Context, j *job, authErr *models.AuthRequiredError) *models.ImportResult {
	cached, err := i.creds.Get(ctx, authErr.Host)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("host", authErr.Host).Msg("Credential cache lookup failed")
	}

	j.auth = models.AuthRequest{
		Token:       uuid.NewString(),
		Source:      authErr.Source,
		Host:        authErr.Host,
		Realm:       authErr.Realm,
		HasCached:   cached != nil,
		RequestedAt: i.now(),
	}

	i.mu.Lock()
	i.pending[j.auth.Token] = j
	i.order = append(i.order, j.auth.Token)
	i.mu.Unlock()

	i.transition(ctx, j, models.ImportAwaitingAuth, "")
	logging.Ctx(ctx).Info().Str("host", authErr.Host).Msg("Import waiting for credentials")
	i.onAuth(j.auth)

	return &models.ImportResult{
		State:    models.ImportAwaitingAuth,
		JobID:    j.progress.JobID,
		Token:    j.auth.Token,
		Warnings: []models.ImportWarning{},
	}
}

func (i *Importer) fail(ctx context.Context, j *job, err error) error {
	i.transition(ctx, j, models.ImportFailed, err.Error())
	logging.Ctx(ctx).Warn().Err(err).Str("source", SourceName(j.req.Source)).Msg("Import failed")
	return fmt.Errorf("import %s: %w", j.req.Kind, err)
}

func (i *Importer) transition(ctx context.Context, j *job, state models.ImportState, errMsg string) {
	j.progress.State = state
	j.progress.Error = errMsg
	j.progress.UpdatedAt = i.now()
	if state.Terminal() {
		metrics.ImportsTotal.WithLabelValues(string(j.req.Kind), string(state)).Inc()
	}
	if err := i.progress.Save(ctx, &j.progress); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save import progress")
	}
}

// lookup returns the pending job for token, or the oldest pending job when
// token is empty. take additionally removes it.
func (i *Importer) lookup(token string, take bool) (*job, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if token == "" {
		if len(i.order) == 0 {
			return nil, models.NewValidationError("token", "no import is waiting for credentials", models.ErrNotFound)
		}
		token = i.order[0]
	}
	j, ok := i.pending[token]
	if !ok {
		return nil, models.NewValidationError("token", "unknown or expired resumption token", models.ErrNotFound)
	}
	if take {
		delete(i.pending, token)
		for idx, t := range i.order {
			if t == token {
				i.order = append(i.order[:idx], i.order[idx+1:]...)
				break
			}
		}
	}
	return j, nil
}

// SubmitAuth resumes a waiting job with creds. With remember set, creds
// are cached for the source host once the source accepts them.
func (i *Importer) SubmitAuth(ctx context.Context, token string, creds models.Credentials, remember bool) (*models.ImportResult, error) {
	if creds.Username == "" {
		return nil, models.NewValidationError("username", "username is required", nil)
	}
	j, err := i.lookup(token, true)
	if err != nil {
		return nil, err
	}
	return i.run(ctx, j, &creds, remember)
}

// UseCachedAuth resumes a waiting job with the credentials cached for its
// host. The job stays waiting when nothing is cached.
func (i *Importer) UseCachedAuth(ctx context.Context, token string) (*models.ImportResult, error) {
	j, err := i.lookup(token, false)
	if err != nil {
		return nil, err
	}
	cached, err := i.creds.Get(ctx, j.auth.Host)
	if err != nil {
		return nil, fmt.Errorf("load cached credentials: %w", err)
	}
	if cached == nil {
		return nil, models.NewValidationError("token", "no cached credentials for "+j.auth.Host, models.ErrNotFound)
	}
	if _, err := i.lookup(j.auth.Token, true); err != nil {
		return nil, err
	}
	return i.run(ctx, j, cached, false)
}

// CancelAuth drops a waiting job.
func (i *Importer) CancelAuth(ctx context.Context, token string) (*models.ImportResult, error) {
	j, err := i.lookup(token, true)
	if err != nil {
		return nil, err
	}
	i.transition(ctx, j, models.ImportCancelled, "")
	return &models.ImportResult{
		State:    models.ImportCancelled,
		JobID:    j.progress.JobID,
		Warnings: []models.ImportWarning{},
	}, nil
}

// PendingAuth lists jobs waiting for credentials, oldest first.
func (i *Importer) PendingAuth() []models.AuthRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]models.AuthRequest, 0, len(i.order))
	for _, t := range i.order {
		out = append(out, i.pending[t].auth)
	}
	return out
}

// Jobs returns recent job records, newest first.
func (i *Importer) Jobs(ctx context.Context, limit int) ([]models.ImportProgress, error) {
	return i.progress.List(ctx, limit)
}
