// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/models"
)

// LoadAll reads every backing file under root. A missing file yields an
// empty collection. Row problems are returned as warnings; the error is a
// *models.ReloadError when the root or a whole file cannot be read.
func LoadAll(ctx context.Context, root string) (*models.DataSnapshot, []models.ImportWarning, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, &models.ReloadError{Root: root, Op: "stat", Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &models.ReloadError{Root: root, Op: "stat", Err: fmt.Errorf("%s is not a directory", root)}
	}

	snap := models.EmptySnapshot()
	var warnings []models.ImportWarning

	for _, kind := range models.Kinds {
		if err := ctx.Err(); err != nil {
			return nil, nil, &models.ReloadError{Root: root, Op: "load", Err: err}
		}

		name, data, err := readBacking(root, kind)
		if err != nil {
			return nil, nil, &models.ReloadError{Root: root, Op: "read " + name, Err: err}
		}
		if data == nil {
			continue
		}

		format := FormatFromName(name)
		switch kind {
		case models.KindContacts:
			p, err := ParseContacts(name, data, format)
			if err != nil {
				return nil, nil, &models.ReloadError{Root: root, Op: "parse " + name, Err: err}
			}
			snap.Contacts = p.Records
			warnings = append(warnings, p.Warnings...)
		case models.KindServers:
			p, err := ParseServers(name, data, format)
			if err != nil {
				return nil, nil, &models.ReloadError{Root: root, Op: "parse " + name, Err: err}
			}
			snap.Servers = p.Records
			warnings = append(warnings, p.Warnings...)
		case models.KindGroups:
			p, err := ParseGroups(name, data, format)
			if err != nil {
				return nil, nil, &models.ReloadError{Root: root, Op: "parse " + name, Err: err}
			}
			for _, g := range p.Records {
				snap.Groups[g.Name] = g.Members
			}
			warnings = append(warnings, p.Warnings...)
		}
	}
	return snap, warnings, nil
}

// readBacking returns the canonical file for kind, or the CSV fallback
// when the canonical file is absent. data is nil when neither exists.
func readBacking(root string, kind models.EntityKind) (string, []byte, error) {
	for _, name := range []string{BackingFile(kind), LegacyFile(kind)} {
		data, err := readLimited(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return name, nil, err
		}
		return name, data, nil
	}
	return "", nil, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), maxFileBytes)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

type contactsDocument struct {
	SchemaVersion int              `json:"schemaVersion"`
	Contacts      []models.Contact `json:"contacts"`
}

type groupsDocument struct {
	SchemaVersion int            `json:"schemaVersion"`
	Groups        []models.Group `json:"groups"`
}

type serversDocument struct {
	SchemaVersion int             `json:"schemaVersion"`
	Servers       []models.Server `json:"servers"`
}

// SaveAll writes the canonical backing files for snap under root. Each
// file is replaced atomically.
func SaveAll(root string, snap *models.DataSnapshot) error {
	groups := make([]models.Group, 0, len(snap.Groups))
	for _, name := range snap.GroupNames() {
		groups = append(groups, models.Group{Name: name, Members: snap.Groups[name]})
	}

	docs := map[models.EntityKind]interface{}{
		models.KindContacts: contactsDocument{SchemaVersion: SchemaVersion, Contacts: snap.Contacts},
		models.KindGroups:   groupsDocument{SchemaVersion: SchemaVersion, Groups: groups},
		models.KindServers:  serversDocument{SchemaVersion: SchemaVersion, Servers: snap.Servers},
	}

	for _, kind := range models.Kinds {
		data, err := json.MarshalIndent(docs[kind], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		if err := WriteFileAtomic(filepath.Join(root, BackingFile(kind)), data); err != nil {
			return fmt.Errorf("write %s: %w", BackingFile(kind), err)
		}
	}
	return nil
}

// WriteFileAtomic replaces path with data through a temp file and rename,
// so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Fingerprint hashes the content of every backing file under root so
// callers can tell whether a change notification altered anything.
func Fingerprint(root string) (string, error) {
	h := sha256.New()
	for _, kind := range models.Kinds {
		for _, name := range []string{BackingFile(kind), LegacyFile(kind)} {
			data, err := readLimited(filepath.Join(root, name))
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintf(h, "%s:-\n", name)
			case err != nil:
				return "", err
			default:
				sum := sha256.Sum256(data)
				fmt.Fprintf(h, "%s:%x\n", name, sum)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
