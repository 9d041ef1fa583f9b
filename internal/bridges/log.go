// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package bridges

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/models"
)

// Log is the append-only bridge event store.
type Log interface {
	Append(ctx context.Context, ev models.BridgeEvent) error
	// Events returns a point-in-time copy of every event, oldest first.
	Events(ctx context.Context) ([]models.BridgeEvent, error)
	// Reset deletes every event.
	Reset(ctx context.Context) error
}

// MemoryLog keeps events in process memory.
type MemoryLog struct {
	mu     sync.RWMutex
	events []models.BridgeEvent
}

// NewMemoryLog returns an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append adds ev.
func (l *MemoryLog) Append(_ context.Context, ev models.BridgeEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

// Events returns a copy of the log.
func (l *MemoryLog) Events(_ context.Context) ([]models.BridgeEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.BridgeEvent, len(l.events))
	copy(out, l.events)
	return out, nil
}

// Reset drops every event.
func (l *MemoryLog) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	return nil
}

// eventPrefix keys bridge events. The suffix is the big-endian timestamp in
// nanoseconds followed by the event ID, so iteration yields time order.
const eventPrefix = "bridge:event:"

// BadgerLog persists events in BadgerDB.
type BadgerLog struct {
	db *badger.DB
}

// NewBadgerLog creates a log on an open BadgerDB.
func NewBadgerLog(db *badger.DB) *BadgerLog {
	return &BadgerLog{db: db}
}

func eventKey(ev models.BridgeEvent) []byte {
	key := make([]byte, 0, len(eventPrefix)+8+len(ev.ID))
	key = append(key, eventPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(ev.Timestamp.UnixNano())) //nolint:gosec // pre-1970 timestamps are rejected by the aggregator
	return append(key, ev.ID...)
}

// Append stores ev.
func (l *BadgerLog) Append(_ context.Context, ev models.BridgeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal bridge event: %w", err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(ev), data)
	}); err != nil {
		return fmt.Errorf("append bridge event: %w", err)
	}
	return nil
}

// Events reads every stored event in one read transaction.
func (l *BadgerLog) Events(_ context.Context) ([]models.BridgeEvent, error) {
	var out []models.BridgeEvent
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ev models.BridgeEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read bridge events: %w", err)
	}
	return out, nil
}

// Reset deletes every stored event.
func (l *BadgerLog) Reset(_ context.Context) error {
	if err := l.db.DropPrefix([]byte(eventPrefix)); err != nil {
		return fmt.Errorf("reset bridge events: %w", err)
	}
	return nil
}
