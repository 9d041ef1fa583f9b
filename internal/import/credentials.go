// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/relay/internal/models"
)

const credentialPrefix = "auth:credentials:"

// CredentialSealer encrypts cached credentials for one host. *Sealer
// implements it.
type CredentialSealer interface {
	Seal(host string, creds models.Credentials) ([]byte, error)
	Open(host string, sealed []byte) (models.Credentials, error)
}

// CredentialCache remembers import source credentials per host.
type CredentialCache interface {
	// Get returns nil, nil when nothing is cached for host.
	Get(ctx context.Context, host string) (*models.Credentials, error)
	Put(ctx context.Context, host string, creds models.Credentials) error
	Delete(ctx context.Context, host string) error
}

// BadgerCredentialCache stores encrypted credentials in BadgerDB.
type BadgerCredentialCache struct {
	db     *badger.DB
	sealer CredentialSealer
}

// NewBadgerCredentialCache creates a cache on an open BadgerDB.
func NewBadgerCredentialCache(db *badger.DB, sealer CredentialSealer) *BadgerCredentialCache {
	return &BadgerCredentialCache{db: db, sealer: sealer}
}

func credentialKey(host string) []byte {
	return []byte(credentialPrefix + strings.ToLower(host))
}

// Get decrypts the cached credentials for host.
func (c *BadgerCredentialCache) Get(_ context.Context, host string) (*models.Credentials, error) {
	var sealed []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(host))
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	creds, err := c.sealer.Open(host, sealed)
	if err != nil {
		return nil, fmt.Errorf("open credentials for %s: %w", host, err)
	}
	return &creds, nil
}

// Put encrypts and stores creds for host.
func (c *BadgerCredentialCache) Put(_ context.Context, host string, creds models.Credentials) error {
	sealed, err := c.sealer.Seal(host, creds)
	if err != nil {
		return fmt.Errorf("seal credentials for %s: %w", host, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(host), sealed)
	})
}

// Delete forgets host.
func (c *BadgerCredentialCache) Delete(_ context.Context, host string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(credentialKey(host))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// MemoryCredentialCache keeps credentials for the life of the process.
type MemoryCredentialCache struct {
	mu    sync.Mutex
	creds map[string]models.Credentials
}

// NewMemoryCredentialCache returns an empty cache.
func NewMemoryCredentialCache() *MemoryCredentialCache {
	return &MemoryCredentialCache{creds: map[string]models.Credentials{}}
}

// Get returns the credentials for host.
func (c *MemoryCredentialCache) Get(_ context.Context, host string) (*models.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	creds, ok := c.creds[strings.ToLower(host)]
	if !ok {
		return nil, nil
	}
	return &creds, nil
}

// Put stores creds for host.
func (c *MemoryCredentialCache) Put(_ context.Context, host string, creds models.Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds[strings.ToLower(host)] = creds
	return nil
}

// Delete forgets host.
func (c *MemoryCredentialCache) Delete(_ context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.creds, strings.ToLower(host))
	return nil
}
