// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package watcher keeps the store in sync with the data root.
//
// Reloads run one at a time. A trigger that arrives while a reload is
// running sets a single pending flag, so any burst of triggers produces
// exactly one follow-up reload. A load whose store epoch went stale while
// it was reading files is thrown away and run again.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	dataimport "github.com/tomtom215/relay/internal/import"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/store"
)

// DefaultDebounce is how long file events settle before a reload.
const DefaultDebounce = 300 * time.Millisecond

// maxStaleRetries bounds reruns of a load superseded by local mutations.
const maxStaleRetries = 16

// Reload reasons reported to listeners.
const (
	ReasonInitial     = "initial"
	ReasonManual      = "manual"
	ReasonFileChanged = "file_changed"
	ReasonRootChanged = "root_changed"
)

// State is the reload state.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// LoadFunc reads a data root into a snapshot.
type LoadFunc func(ctx context.Context, root string) (*models.DataSnapshot, []models.ImportWarning, error)

// FingerprintFunc hashes the backing files of a data root.
type FingerprintFunc func(root string) (string, error)

// Notifier receives reload outcomes. hub.Hub implements it.
type Notifier interface {
	Publish(snap *models.DataSnapshot)
	ReloadStarted(status models.ReloadStatus)
	ReloadCompleted(status models.ReloadStatus)
	DataFailed(failure models.ReloadFailure)
}

// Config configures a Watcher. Zero fields take defaults.
type Config struct {
	Debounce    time.Duration
	Load        LoadFunc
	Fingerprint FingerprintFunc
}

// Watcher drives reloads from file events, root changes and manual
// requests.
type Watcher struct {
	store       *store.Store
	notify      Notifier
	load        LoadFunc
	fingerprint FingerprintFunc
	debounce    time.Duration

	rootChanged chan struct{}

	mu       sync.Mutex
	root     string
	state    State
	running  bool
	pending  bool
	reason   string
	started  uint64
	finished uint64
	lastErr  error
	print    string
	loaded   string
	done     chan struct{}
	timer    *time.Timer
}

// New returns a watcher for root. Nothing runs until Serve or Reload.
func New(root string, st *store.Store, notify Notifier, cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Load == nil {
		cfg.Load = dataimport.LoadAll
	}
	if cfg.Fingerprint == nil {
		cfg.Fingerprint = dataimport.Fingerprint
	}
	return &Watcher{
		store:       st,
		notify:      notify,
		load:        cfg.Load,
		fingerprint: cfg.Fingerprint,
		debounce:    cfg.Debounce,
		rootChanged: make(chan struct{}, 1),
		root:        root,
		done:        make(chan struct{}),
	}
}

// Root returns the data root currently being watched.
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// LoadedRoot returns the root of the most recently installed snapshot.
// It differs from Root while a new root is still loading.
func (w *Watcher) LoadedRoot() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// State returns the current reload state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastError returns the error of the most recent reload, or nil.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// MarkSaved records the fingerprint of files the engine just wrote, so the
// file events they cause do not trigger a reload.
func (w *Watcher) MarkSaved(fingerprint string) {
	w.mu.Lock()
	w.print = fingerprint
	w.mu.Unlock()
}

// Reload requests a reload and returns without waiting.
func (w *Watcher) Reload() {
	w.trigger(ReasonManual)
}

// ReloadAndWait requests a reload and blocks until a reload that started
// after the call has finished. It returns that reload's error.
func (w *Watcher) ReloadAndWait(ctx context.Context) error {
	return w.wait(ctx, w.trigger(ReasonManual))
}

// SetRoot points the watcher at a new data root and forces a full reload.
// Loads already running for the old root are superseded.
func (w *Watcher) SetRoot(ctx context.Context, root string) error {
	return w.WaitFor(ctx, w.SwitchRoot(ctx, root))
}

// SwitchRoot is SetRoot without the wait. It returns the reload run to
// pass to WaitFor.
func (w *Watcher) SwitchRoot(ctx context.Context, root string) uint64 {
	w.mu.Lock()
	w.root = root
	w.print = ""
	w.mu.Unlock()

	w.store.Advance()
	select {
	case w.rootChanged <- struct{}{}:
	default:
	}
	logging.Ctx(ctx).Info().Str("root", root).Msg("Data root changed")
	return w.trigger(ReasonRootChanged)
}

// WaitFor blocks until reload run has finished and returns its error.
func (w *Watcher) WaitFor(ctx context.Context, run uint64) error {
	return w.wait(ctx, run)
}

// trigger starts a reload, or marks one pending when a reload is running.
// It returns the run number the caller can wait for.
func (w *Watcher) trigger(reason string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		if !w.pending {
			w.pending = true
		} else {
			metrics.ReloadsCoalesced.Inc()
		}
		w.reason = reason
		return w.started + 1
	}
	w.running = true
	w.started++
	go w.loop(reason)
	return w.started
}

func (w *Watcher) wait(ctx context.Context, target uint64) error {
	for {
		w.mu.Lock()
		if w.finished >= target {
			err := w.lastErr
			w.mu.Unlock()
			return err
		}
		done := w.done
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
}

func (w *Watcher) loop(reason string) {
	for {
		err := w.run(reason)

		w.mu.Lock()
		w.finished++
		w.lastErr = err
		close(w.done)
		w.done = make(chan struct{})
		if !w.pending {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.pending = false
		reason = w.reason
		w.started++
		w.mu.Unlock()
	}
}

// run performs one reload, repeating it while local mutations keep
// superseding the load.
func (w *Watcher) run(reason string) error {
	ctx := logging.ContextWithNewCorrelationID(context.Background())
	w.setState(StateLoading)
	w.notify.ReloadStarted(models.ReloadStatus{Root: w.Root(), Reason: reason, At: time.Now()})

	for attempt := 0; ; attempt++ {
		epoch := w.store.Epoch()
		root := w.Root()

		start := time.Now()
		fp, fpErr := w.fingerprint(root)
		snap, warnings, err := w.load(ctx, root)

		if w.store.Epoch() != epoch && attempt < maxStaleRetries {
			metrics.RecordReload("stale", time.Since(start), 0)
			logging.Ctx(ctx).Debug().Str("root", root).Msg("Discarding superseded load")
			continue
		}

		if err != nil {
			w.setState(StateError)
			metrics.RecordReload("failure", time.Since(start), 0)
			logging.Ctx(ctx).Warn().Err(err).Str("root", root).Str("reason", reason).Msg("Reload failed, keeping last good snapshot")
			w.notify.DataFailed(models.ReloadFailure{Root: root, Message: err.Error(), At: time.Now(), Err: err})
			return err
		}

		if !w.store.Install(epoch, snap) {
			// mutated between the epoch check and install
			if attempt < maxStaleRetries {
				metrics.RecordReload("stale", time.Since(start), 0)
				continue
			}
			err := errors.New("reload kept being superseded by local changes")
			w.setState(StateError)
			w.notify.DataFailed(models.ReloadFailure{Root: root, Message: err.Error(), At: time.Now(), Err: err})
			return err
		}

		w.mu.Lock()
		if fpErr == nil {
			w.print = fp
		}
		w.loaded = root
		w.state = StateReady
		w.mu.Unlock()
		metrics.RecordReload("success", time.Since(start), len(warnings))
		metrics.SetRecordCounts(len(snap.Contacts), len(snap.Groups), len(snap.Servers))
		logging.Ctx(ctx).Info().
			Str("root", root).
			Str("reason", reason).
			Int("contacts", len(snap.Contacts)).
			Int("groups", len(snap.Groups)).
			Int("servers", len(snap.Servers)).
			Int("warnings", len(warnings)).
			Dur("duration", time.Since(start)).
			Msg("Data reloaded")

		w.notify.Publish(w.store.Snapshot())
		w.notify.ReloadCompleted(models.ReloadStatus{Root: root, Reason: reason, Warnings: warnings, At: time.Now()})
		return nil
	}
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// fileChanged runs when file events have settled. Events caused by the
// engine's own writes leave the fingerprint unchanged and are dropped.
func (w *Watcher) fileChanged() {
	root := w.Root()
	fp, err := w.fingerprint(root)

	w.mu.Lock()
	unchanged := err == nil && fp != "" && fp == w.print
	w.mu.Unlock()

	if unchanged {
		metrics.ReloadsTotal.WithLabelValues("unchanged").Inc()
		logging.Debug().Str("root", root).Msg("Backing files unchanged, skipping reload")
		return
	}
	w.trigger(ReasonFileChanged)
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fileChanged)
}

// Serve runs the initial load and then watches the data root until ctx is
// cancelled. It implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	watched := ""
	rewatch := func() {
		root := w.Root()
		if root == watched {
			return
		}
		if watched != "" {
			_ = fsw.Remove(watched)
		}
		watched = ""
		if err := fsw.Add(root); err != nil {
			logging.Warn().Err(err).Str("root", root).Msg("Cannot watch data root")
			return
		}
		watched = root
		logging.Info().Str("root", root).Msg("Watching data root")
	}

	rewatch()
	w.trigger(ReasonInitial)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()

		case <-w.rootChanged:
			rewatch()

		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if dataimport.IsBackingFile(filepath.Base(ev.Name)) {
				w.schedule()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			logging.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (w *Watcher) String() string {
	return "data-watcher"
}
