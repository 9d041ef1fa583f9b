// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package engine exposes every operation the UI host calls.
//
// The engine owns the wiring between components: the settings manager
// supplies the data root, the watcher loads it into the store, the hub
// pushes each new snapshot to subscribers. Local mutations and imports go
// through the store, are written back to the backing files and published
// the same way. Bridge metrics and weather lookups are side channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/relay/internal/bridges"
	dataimport "github.com/tomtom215/relay/internal/import"
	"github.com/tomtom215/relay/internal/hub"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/settings"
	"github.com/tomtom215/relay/internal/store"
	"github.com/tomtom215/relay/internal/watcher"
)

// WeatherProvider serves best-effort weather and geocoding lookups.
type WeatherProvider interface {
	Weather(ctx context.Context, lat, lon float64) *models.Forecast
	SearchLocation(ctx context.Context, query string) []models.Location
}

// Config wires an Engine.
type Config struct {
	// Settings supplies the data root. Required.
	Settings *settings.Manager

	// StateDB persists bridge events, import progress and remembered
	// credentials. Nil keeps them in memory.
	StateDB *badger.DB

	// Sealer encrypts remembered credentials in StateDB. Without it
	// credentials are remembered in memory only.
	Sealer dataimport.CredentialSealer

	// Weather is optional. Without it lookups return nil or empty.
	Weather WeatherProvider

	WatchDebounce  time.Duration
	FetchTimeout   time.Duration
	TopGroupsLimit int

	// Load and Fingerprint override the file loader, for tests.
	Load        watcher.LoadFunc
	Fingerprint watcher.FingerprintFunc
}

// Engine is the operation facade.
type Engine struct {
	store    *store.Store
	hub      *hub.Hub
	watcher  *watcher.Watcher
	settings *settings.Manager
	importer *dataimport.Importer
	bridges  *bridges.Aggregator
	weather  WeatherProvider

	fingerprint watcher.FingerprintFunc
	topGroups   int

	// persistMu orders store mutations with their writes to disk. It is
	// never held while subscribers run.
	persistMu sync.Mutex
}

// New builds an engine. Nothing is loaded until the watcher is served or
// ReloadData is called.
func New(cfg Config) (*Engine, error) {
	if cfg.Settings == nil {
		return nil, errors.New("engine: settings manager is required")
	}
	if cfg.Fingerprint == nil {
		cfg.Fingerprint = dataimport.Fingerprint
	}

	e := &Engine{
		store:       store.New(),
		hub:         hub.New(),
		settings:    cfg.Settings,
		weather:     cfg.Weather,
		fingerprint: cfg.Fingerprint,
		topGroups:   cfg.TopGroupsLimit,
	}

	e.watcher = watcher.New(cfg.Settings.DataPath(), e.store, e.hub, watcher.Config{
		Debounce:    cfg.WatchDebounce,
		Load:        cfg.Load,
		Fingerprint: cfg.Fingerprint,
	})

	var (
		eventLog bridges.Log
		progress dataimport.ProgressTracker
		creds    dataimport.CredentialCache
	)
	if cfg.StateDB != nil {
		eventLog = bridges.NewBadgerLog(cfg.StateDB)
		progress = dataimport.NewBadgerProgress(cfg.StateDB)
		if cfg.Sealer != nil {
			creds = dataimport.NewBadgerCredentialCache(cfg.StateDB, cfg.Sealer)
		}
	}
	e.bridges = bridges.New(eventLog)
	e.importer = dataimport.NewImporter(dataimport.NewFetcher(cfg.FetchTimeout), e, progress, creds, e.hub.AuthRequested)

	cfg.Settings.SetListener(e.rootChanged)
	return e, nil
}

// Watcher returns the change watcher so it can be supervised.
func (e *Engine) Watcher() *watcher.Watcher { return e.watcher }

// Hub returns the subscription hub.
func (e *Engine) Hub() *hub.Hub { return e.hub }

// rootChanged is the settings listener. The switch waits for any
// mutation in flight. Later mutations see an unloaded root and wait for
// the new load, so the old dataset is never written into the new folder.
func (e *Engine) rootChanged(ctx context.Context, root string) error {
	e.persistMu.Lock()
	run := e.watcher.SwitchRoot(ctx, root)
	e.persistMu.Unlock()
	return e.watcher.WaitFor(ctx, run)
}

// Snapshot returns the current dataset. It is never nil.
func (e *Engine) Snapshot() *models.DataSnapshot {
	if snap := e.store.Snapshot(); snap != nil {
		return snap
	}
	return models.EmptySnapshot()
}

// SubscribeToData registers fn for every new snapshot. fn receives the
// current snapshot right away when one has been loaded.
func (e *Engine) SubscribeToData(fn func(*models.DataSnapshot)) hub.Token {
	return e.hub.Subscribe(fn)
}

// Unsubscribe removes any registration made through this engine.
func (e *Engine) Unsubscribe(tok hub.Token) {
	e.hub.Unsubscribe(tok)
}

// OnReloadStart registers fn for reload start notifications.
func (e *Engine) OnReloadStart(fn func(models.ReloadStatus)) hub.Token {
	return e.hub.OnReloadStart(fn)
}

// OnReloadComplete registers fn for successful reloads.
func (e *Engine) OnReloadComplete(fn func(models.ReloadStatus)) hub.Token {
	return e.hub.OnReloadComplete(fn)
}

// OnDataError registers fn for failed reloads and failed saves.
func (e *Engine) OnDataError(fn func(models.ReloadFailure)) hub.Token {
	return e.hub.OnDataError(fn)
}

// OnAuthRequested registers fn for imports waiting on credentials.
func (e *Engine) OnAuthRequested(fn func(models.AuthRequest)) hub.Token {
	return e.hub.OnAuthRequested(fn)
}

// ReloadData reloads the data root and waits for the result.
func (e *Engine) ReloadData(ctx context.Context) error {
	return e.watcher.ReloadAndWait(ctx)
}

// Status summarizes the engine for health checks.
type Status struct {
	DataPath    string                    `json:"dataPath"`
	State       string                    `json:"state"`
	LastError   string                    `json:"lastError,omitempty"`
	LastUpdated int64                     `json:"lastUpdated"`
	Subscribers int                       `json:"subscribers"`
	Counts      map[models.EntityKind]int `json:"counts"`
	PendingAuth int                       `json:"pendingAuth"`
}

// Status reports the watcher state and dataset size.
func (e *Engine) Status() Status {
	snap := e.Snapshot()
	st := Status{
		DataPath:    e.settings.DataPath(),
		State:       e.watcher.State().String(),
		LastUpdated: snap.LastUpdated,
		Subscribers: e.hub.Subscribers(),
		Counts:      snap.Counts(),
		PendingAuth: len(e.importer.PendingAuth()),
	}
	if err := e.watcher.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// loaded reports whether the store holds data read from the current root.
func (e *Engine) loaded() bool {
	return e.store.Snapshot() != nil && e.watcher.LoadedRoot() == e.watcher.Root()
}

// ensureLoaded loads the current root before anything is written, so a
// mutation never replaces files that were not read yet.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	if e.loaded() {
		return nil
	}
	if err := e.watcher.ReloadAndWait(ctx); err != nil {
		return &models.ReloadError{Root: e.watcher.Root(), Op: "initial load", Err: err}
	}
	return nil
}

// mutate applies fn to the store, writes the result to the data root and
// publishes it. Subscribers are notified after persistMu is released, so
// they may call back into the engine.
func (e *Engine) mutate(ctx context.Context, op string, fn func() (*models.DataSnapshot, error)) error {
	snap, failure, err := e.apply(ctx, op, fn)
	if snap != nil {
		e.hub.Publish(snap)
	}
	if failure != nil {
		e.hub.DataFailed(*failure)
	}
	if err == nil {
		logging.Ctx(ctx).Debug().Str("op", op).Int64("last_updated", snap.LastUpdated).Msg("Dataset updated")
	}
	return err
}

// apply runs fn and saves its result under persistMu. A snapshot that was
// applied in memory is returned even when the save failed, with the
// failure to report.
func (e *Engine) apply(ctx context.Context, op string, fn func() (*models.DataSnapshot, error)) (*models.DataSnapshot, *models.ReloadFailure, error) {
	for {
		if err := e.ensureLoaded(ctx); err != nil {
			return nil, nil, err
		}
		e.persistMu.Lock()
		if e.loaded() {
			break
		}
		// root switched between the load and the lock
		e.persistMu.Unlock()
	}
	defer e.persistMu.Unlock()

	snap, err := fn()
	recordMutation(op, err)
	if err != nil {
		return nil, nil, err
	}

	root := e.watcher.Root()
	if err := dataimport.SaveAll(root, snap); err != nil {
		rerr := &models.ReloadError{Root: root, Op: "save", Err: err}
		logging.Ctx(ctx).Error().Err(err).Str("op", op).Str("root", root).Msg("Failed to persist dataset")
		return snap, &models.ReloadFailure{Root: root, Message: rerr.Error(), At: time.Now(), Err: rerr}, rerr
	}
	if fp, err := e.fingerprint(root); err == nil {
		e.watcher.MarkSaved(fp)
	}
	return snap, nil, nil
}

// MergeImport merges an import batch. It implements dataimport.Sink.
func (e *Engine) MergeImport(ctx context.Context, kind models.EntityKind, batch store.Batch) error {
	return e.mutate(ctx, fmt.Sprintf("import_%s", kind), func() (*models.DataSnapshot, error) {
		return e.store.Merge(batch)
	})
}
