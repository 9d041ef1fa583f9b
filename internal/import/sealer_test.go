// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/relay/internal/models"
)

func TestNewSealer(t *testing.T) {
	if _, err := NewSealer(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty secret error = %v, want ErrEmptySecret", err)
	}
	for _, secret := range []string{"x", "a-reasonable-credential-secret", strings.Repeat("a", 1000)} {
		s, err := NewSealer(secret)
		if err != nil {
			t.Fatalf("NewSealer(%d chars) error = %v", len(secret), err)
		}
		if err := s.SelfTest(); err != nil {
			t.Errorf("SelfTest() error = %v", err)
		}
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("relay-test-credential-secret")
	if err != nil {
		t.Fatal(err)
	}
	inputs := []models.Credentials{
		{Username: "svc"},
		{Username: "svc", Password: "s3cret"},
		{Username: "ops team", Password: "password with spaces and !@#$%^&*()"},
		{Username: "пользователь", Password: "пароль-密码"},
		{Username: "svc", Password: strings.Repeat("long", 2048)},
	}
	for _, in := range inputs {
		sealed, err := s.Seal("files.example.com", in)
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		if in.Password != "" && bytes.Contains(sealed, []byte(in.Password)) {
			t.Error("sealed record leaks the password")
		}
		got, err := s.Open("Files.Example.com", sealed)
		if err != nil || got != in {
			t.Errorf("Open() = %+v, %v", got, err)
		}
	}

	a, _ := s.Seal("h", models.Credentials{Username: "same"})
	b, _ := s.Seal("h", models.Credentials{Username: "same"})
	if bytes.Equal(a, b) {
		t.Error("nonces must differ between seals")
	}
}

func TestSealer_OpenErrors(t *testing.T) {
	s, _ := NewSealer("relay-test-credential-secret")
	other, _ := NewSealer("a-different-credential-secret")

	valid, _ := s.Seal("files.example.com", models.Credentials{Username: "svc", Password: "pw"})
	tampered := append([]byte(nil), valid...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name    string
		sealer  *Sealer
		host    string
		input   []byte
		wantErr error
	}{
		{"empty", s, "files.example.com", nil, ErrSealedTooShort},
		{"too short", s, "files.example.com", []byte("short"), ErrSealedTooShort},
		{"tampered", s, "files.example.com", tampered, ErrUnsealFailed},
		{"wrong secret", other, "files.example.com", valid, ErrUnsealFailed},
		{"other host", s, "evil.example.com", valid, ErrUnsealFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sealer.Open(tt.host, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
