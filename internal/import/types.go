// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package dataimport reads and writes the backing files under a data root
// and imports external contact, group and server files.
//
// Every reader is tolerant: a malformed row becomes an ImportWarning and is
// skipped, and a duplicate key overrides the earlier row with a warning.
// Only whole-file failures (unreadable root, unparseable document,
// unsupported schema version) are returned as errors.
package dataimport

import (
	"path/filepath"
	"strings"

	"github.com/tomtom215/relay/internal/models"
)

// SchemaVersion is the version written to every canonical backing file.
// Files without a version (a bare JSON array) are read as version 0.
const SchemaVersion = 1

// maxFileBytes bounds a single backing or import file.
const maxFileBytes = 64 << 20

// Format is the encoding of a source file.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatCSV
	FormatTSV
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	default:
		return "unknown"
	}
}

// FormatFromName picks a format from a file name or URL path extension.
func FormatFromName(name string) Format {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".csv", ".txt":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	default:
		return FormatUnknown
	}
}

// sniffFormat guesses a format from the first non-space byte.
func sniffFormat(data []byte) Format {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return FormatJSON
		default:
			return FormatCSV
		}
	}
	return FormatCSV
}

// BackingFile returns the canonical file name for kind.
func BackingFile(kind models.EntityKind) string {
	return string(kind) + ".json"
}

// LegacyFile returns the CSV fallback file name for kind.
func LegacyFile(kind models.EntityKind) string {
	return string(kind) + ".csv"
}

// IsBackingFile reports whether base is one of the files LoadAll reads.
func IsBackingFile(base string) bool {
	for _, kind := range models.Kinds {
		if base == BackingFile(kind) || base == LegacyFile(kind) {
			return true
		}
	}
	return false
}

// Parsed carries the records accepted from one source and the warnings for
// rows that were skipped or overridden.
type Parsed[T any] struct {
	Records  []T
	Warnings []models.ImportWarning
}

func (p *Parsed[T]) warn(source string, row int, reason string) {
	p.Warnings = append(p.Warnings, models.ImportWarning{Source: source, Row: row, Reason: reason})
}
