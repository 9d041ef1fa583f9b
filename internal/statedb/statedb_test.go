// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package statedb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func TestOpen_OnDiskPersists(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Badger().Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := db.RunGC(); !errors.Is(err, ErrClosed) {
		t.Errorf("RunGC() after close = %v, want ErrClosed", err)
	}

	reopened, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	err = reopened.Badger().View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("k"))
		return err
	})
	if err != nil {
		t.Errorf("value lost across reopen: %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.RunGC(); err != nil {
		t.Errorf("RunGC() on in-memory db = %v", err)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	db, err := Open(Config{GCInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- db.Serve(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
	if db.String() != "state-db-gc" {
		t.Errorf("String() = %q", db.String())
	}
}
