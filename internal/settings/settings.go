// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package settings owns the data root.
//
// A new root is validated before it is committed: it must exist, be a
// directory, be listable and accept a probe file. The committed root is
// written to settings.json in the state directory and then handed to the
// root listener, which reloads from it. A failed change leaves the previous
// root in place.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	dataimport "github.com/tomtom215/relay/internal/import"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/validation"
)

// FileName is the settings file inside the state directory.
const FileName = "settings.json"

// RootListener is told about every committed data root.
type RootListener func(ctx context.Context, root string) error

type persisted struct {
	DataPath  string    `json:"dataPath"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager tracks the current data root.
type Manager struct {
	defaultPath string
	stateFile   string

	// changeMu serializes Change and Reset end to end.
	changeMu sync.Mutex

	mu       sync.RWMutex
	current  string
	listener RootListener
}

// New returns a manager whose root is the one saved in stateDir, or
// defaultPath when nothing valid was saved. defaultPath is created if
// missing. An empty stateDir disables persistence.
func New(defaultPath, stateDir string) (*Manager, error) {
	def, err := filepath.Abs(defaultPath)
	if err != nil {
		return nil, fmt.Errorf("resolve default data path: %w", err)
	}
	if err := os.MkdirAll(def, 0o750); err != nil {
		return nil, fmt.Errorf("create default data path: %w", err)
	}

	m := &Manager{defaultPath: def, current: def}
	if stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		m.stateFile = filepath.Join(stateDir, FileName)
	}

	saved, err := m.load()
	switch {
	case err != nil:
		logging.Warn().Err(err).Str("file", m.stateFile).Msg("Ignoring unreadable settings file")
	case saved != "":
		if verr := Validate(saved); verr != nil {
			logging.Warn().Err(verr).Str("path", saved).Msg("Saved data path is unusable, using default")
		} else {
			m.current = saved
		}
	}
	return m, nil
}

// SetListener installs the root listener. Call before the first Change.
func (m *Manager) SetListener(fn RootListener) {
	m.mu.Lock()
	m.listener = fn
	m.mu.Unlock()
}

// DataPath returns the current data root.
func (m *Manager) DataPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// DefaultPath returns the configured default data root.
func (m *Manager) DefaultPath() string {
	return m.defaultPath
}

// Change validates path and makes it the data root.
func (m *Manager) Change(ctx context.Context, path string) models.DataPathOutcome {
	if verr := validation.ValidateVar("path", path, "required,max=4096"); verr != nil {
		return m.failure(verr)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return m.failure(err)
	}
	if err := Validate(abs); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", abs).Msg("Rejected data path change")
		return m.failure(err)
	}
	return m.commit(ctx, abs)
}

// Reset restores the default data root, creating it if needed.
func (m *Manager) Reset(ctx context.Context) models.DataPathOutcome {
	if err := os.MkdirAll(m.defaultPath, 0o750); err != nil {
		return m.failure(fmt.Errorf("create default data path: %w", err))
	}
	if err := Validate(m.defaultPath); err != nil {
		return m.failure(err)
	}
	return m.commit(ctx, m.defaultPath)
}

func (m *Manager) commit(ctx context.Context, root string) models.DataPathOutcome {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	if err := m.save(root); err != nil {
		return m.failure(err)
	}

	m.mu.Lock()
	prev := m.current
	m.current = root
	listener := m.listener
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Str("from", prev).Str("to", root).Msg("Data path changed")
	if listener != nil {
		// reload failures reach subscribers as data errors
		if err := listener(ctx, root); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("root", root).Msg("Reload after data path change failed")
		}
	}
	return models.DataPathOutcome{Success: true, Path: root}
}

func (m *Manager) failure(err error) models.DataPathOutcome {
	return models.DataPathOutcome{Success: false, Path: m.DataPath(), Error: err.Error()}
}

func (m *Manager) load() (string, error) {
	if m.stateFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(m.stateFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("decode %s: %w", FileName, err)
	}
	return p.DataPath, nil
}

func (m *Manager) save(root string) error {
	if m.stateFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(persisted{DataPath: root, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := dataimport.WriteFileAtomic(m.stateFile, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Validate checks that path is an existing, listable, writable directory.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewValidationError("path", "directory does not exist: "+path, models.ErrNotFound)
		}
		return models.NewValidationError("path", "cannot access "+path, err)
	}
	if !info.IsDir() {
		return models.NewValidationError("path", "not a directory: "+path, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return models.NewValidationError("path", "directory is not readable: "+path, err)
	}
	_, err = f.Readdirnames(1)
	f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return models.NewValidationError("path", "directory is not readable: "+path, err)
	}

	probe, err := os.CreateTemp(path, ".relay-probe-*")
	if err != nil {
		return models.NewValidationError("path", "directory is not writable: "+path, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return models.NewValidationError("path", "cannot remove probe file in "+path, err)
	}
	return nil
}
