// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/relay/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func TestValidateStruct_Contact(t *testing.T) {
	tests := []struct {
		name      string
		input     models.Contact
		wantField string
	}{
		{name: "valid", input: models.Contact{Name: "Ada", Email: "ada@example.com"}},
		{name: "missing email", input: models.Contact{Name: "Ada"}, wantField: "email"},
		{name: "malformed email", input: models.Contact{Email: "not-an-email"}, wantField: "email"},
		{name: "name too long", input: models.Contact{Email: "a@b.io", Name: strings.Repeat("x", 300)}, wantField: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("expected no error, got %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			if got := verr.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
			if me := verr.ToModelError(); me.Field != tt.wantField {
				t.Errorf("model error field = %q, want %q", me.Field, tt.wantField)
			}
		})
	}
}

func TestValidateStruct_ServerRequiresName(t *testing.T) {
	verr := ValidateStruct(&models.Server{OS: "linux"})
	if verr == nil {
		t.Fatal("expected validation error for missing name")
	}
	if verr.Error() != "name is required" {
		t.Errorf("unexpected message %q", verr.Error())
	}
}

func TestValidateVar(t *testing.T) {
	if err := ValidateVar("email", "ops@example.com", "required,email"); err != nil {
		t.Errorf("expected valid email, got %v", err)
	}
	err := ValidateVar("email", "ops", "required,email")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Reason != "email must be a valid email address" {
		t.Errorf("unexpected reason %q", err.Reason)
	}
}
