// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/hkdf"

	"github.com/tomtom215/relay/internal/models"
)

const (
	sealerSalt = "relay-import-credentials"
	sealerInfo = "credential-seal-v1"
)

var (
	// ErrEmptySecret is returned by NewSealer for an empty secret.
	ErrEmptySecret = errors.New("credential secret cannot be empty")

	// ErrSealedTooShort means the stored record cannot hold a nonce and tag.
	ErrSealedTooShort = errors.New("sealed credentials too short")

	// ErrUnsealFailed covers a wrong secret, a tampered record and a record
	// sealed for another host.
	ErrUnsealFailed = errors.New("sealed credentials do not open")
)

// Sealer encrypts remembered import credentials with AES-256-GCM. The key
// is derived from the credential secret with HKDF-SHA256, and the host is
// bound as additional data so a record only opens for the host it was
// sealed for.
//
// A sealed record is nonce || ciphertext || tag.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(sealerSalt), []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func hostData(host string) []byte {
	return []byte(strings.ToLower(host))
}

// Seal encrypts creds for host.
func (s *Sealer) Seal(host string, creds models.Credentials) ([]byte, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, hostData(host)), nil
}

// Open decrypts a record sealed for host.
func (s *Sealer) Open(host string, sealed []byte) (models.Credentials, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return models.Credentials{}, ErrSealedTooShort
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], hostData(host))
	if err != nil {
		return models.Credentials{}, ErrUnsealFailed
	}
	var creds models.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return models.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

// SelfTest seals and reopens a throwaway record.
func (s *Sealer) SelfTest() error {
	want := models.Credentials{Username: "relay-self-test", Password: "relay-self-test"}
	sealed, err := s.Seal("self-test.invalid", want)
	if err != nil {
		return err
	}
	got, err := s.Open("self-test.invalid", sealed)
	if err != nil {
		return err
	}
	if got != want {
		return errors.New("credential sealer round trip mismatch")
	}
	return nil
}
