// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/models"
)

// progressPrefix is the BadgerDB key prefix for import job records.
const progressPrefix = "import:progress:"

// ProgressTracker persists import job records.
type ProgressTracker interface {
	// Save creates or replaces the record for p.JobID.
	Save(ctx context.Context, p *models.ImportProgress) error

	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]models.ImportProgress, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}

// BadgerProgress implements ProgressTracker using BadgerDB so job history
// survives restarts.
type BadgerProgress struct {
	db *badger.DB
}

// NewBadgerProgress creates a tracker on an open BadgerDB.
func NewBadgerProgress(db *badger.DB) *BadgerProgress {
	return &BadgerProgress{db: db}
}

// Save persists p.
func (p *BadgerProgress) Save(_ context.Context, progress *models.ImportProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(progressPrefix+progress.JobID), data)
	})
}

// List returns saved records, newest first.
func (p *BadgerProgress) List(_ context.Context, limit int) ([]models.ImportProgress, error) {
	var out []models.ImportProgress
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(progressPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec models.ImportProgress
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return newestFirst(out, limit), nil
}

// Clear removes every saved record.
func (p *BadgerProgress) Clear(_ context.Context) error {
	return p.db.DropPrefix([]byte(progressPrefix))
}

// InMemoryProgress implements ProgressTracker without persistence.
type InMemoryProgress struct {
	mu      sync.Mutex
	records map[string]models.ImportProgress
}

// NewInMemoryProgress creates an empty in-memory tracker.
func NewInMemoryProgress() *InMemoryProgress {
	return &InMemoryProgress{records: map[string]models.ImportProgress{}}
}

// Save stores a copy of progress.
func (p *InMemoryProgress) Save(_ context.Context, progress *models.ImportProgress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[progress.JobID] = *progress
	return nil
}

// List returns stored records, newest first.
func (p *InMemoryProgress) List(_ context.Context, limit int) ([]models.ImportProgress, error) {
	p.mu.Lock()
	out := make([]models.ImportProgress, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec)
	}
	p.mu.Unlock()
	return newestFirst(out, limit), nil
}

// Clear removes every record.
func (p *InMemoryProgress) Clear(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = map[string]models.ImportProgress{}
	return nil
}

func newestFirst(recs []models.ImportProgress, limit int) []models.ImportProgress {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].JobID < recs[j].JobID
		}
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
