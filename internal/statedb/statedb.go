// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package statedb opens the BadgerDB instance that holds engine state
// outside the data root: the bridge event log, cached import credentials
// and import job history. Each owner uses its own key prefix.
package statedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/relay/internal/logging"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("state database is closed")

// Config holds BadgerDB options.
type Config struct {
	// Path is the database directory. Empty means in-memory.
	Path string

	SyncWrites       bool
	Compression      bool
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// GCInterval is how often Serve runs value log GC.
	GCInterval time.Duration
	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64

	CloseTimeout time.Duration
}

// DefaultConfig returns options sized for a small local dataset.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		SyncWrites:       true,
		MemTableSize:     8 << 20,
		ValueLogFileSize: 32 << 20,
		NumCompactors:    2,
		GCInterval:       time.Hour,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// DB wraps an open BadgerDB.
type DB struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*DB, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts.SyncWrites = cfg.SyncWrites
		if cfg.ValueLogFileSize > 0 {
			opts.ValueLogFileSize = cfg.ValueLogFileSize
		}
	}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.Path == "").
		Bool("sync_writes", cfg.SyncWrites).
		Msg("State database opened")
	return &DB{db: db, cfg: cfg}, nil
}

// Badger returns the underlying handle for the stores built on it.
func (d *DB) Badger() *badger.DB {
	return d.db
}

// RunGC reclaims value log space until nothing more can be rewritten.
func (d *DB) RunGC() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if d.cfg.Path == "" {
		return nil
	}
	for {
		err := d.db.RunValueLogGC(d.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs periodic GC until ctx is cancelled. It implements
// suture.Service.
func (d *DB) Serve(ctx context.Context) error {
	interval := d.cfg.GCInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.RunGC(); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				logging.Warn().Err(err).Msg("State database GC failed")
			}
		}
	}
}

func (d *DB) String() string {
	return "state-db-gc"
}

// Close closes the database, giving up after the configured timeout.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- d.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("State database closed")
		return nil
	case <-time.After(d.cfg.CloseTimeout):
		logging.Warn().Dur("timeout", d.cfg.CloseTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", d.cfg.CloseTimeout)
	}
}
