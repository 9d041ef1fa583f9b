// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// row is one data row keyed by column header. A row with a non-empty err
// is malformed and must be reported, not mapped.
type row struct {
	index  int
	fields map[string]string
	norm   map[string]string
	err    string
}

func newRow(index int) row {
	return row{index: index, fields: map[string]string{}, norm: map[string]string{}}
}

func (r *row) set(header, value string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return
	}
	r.fields[header] = value
	r.norm[normalizeHeader(header)] = value
}

// get returns the value of the first present header among keys, which
// must already be normalized.
func (r *row) get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.norm[k]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// normalizeHeader lowercases h and folds separators so "E-Mail",
// "e_mail" and "e mail" compare equal.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ", "\u00a0", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// readDelimited reads a header row followed by data rows. Parse errors on
// individual rows become malformed rows; only an unreadable header or an
// I/O failure is returned as an error.
func readDelimited(data []byte, comma rune) ([]string, []row, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []row
	for index := 1; ; index++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		r := newRow(index)
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.err = fmt.Sprintf("unparseable row: %v", pe.Err)
			rows = append(rows, r)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", index, err)
		}

		switch {
		case allBlank(rec):
			r.err = "empty row"
		case len(rec) > len(header) && !allBlank(rec[len(header):]):
			r.err = fmt.Sprintf("row has %d fields, header has %d", len(rec), len(header))
		default:
			for i, h := range header {
				if i < len(rec) {
					r.set(h, rec[i])
				}
			}
		}
		rows = append(rows, r)
	}
	return header, rows, nil
}

func allBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readJSONObjects decodes an array of flat JSON objects (bare, or under one
// of keys in an envelope) into rows. Scalar values are stringified; a
// nested "raw" object is merged in underneath the top-level fields.
func readJSONObjects(data []byte, keys ...string) ([]row, error) {
	items, _, err := decodeItems(data, keys...)
	if err != nil {
		return nil, err
	}

	rows := make([]row, 0, len(items))
	for i, item := range items {
		r := newRow(i + 1)
		var obj map[string]interface{}
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			r.err = "record is not a JSON object"
			rows = append(rows, r)
			continue
		}
		if raw, ok := obj["raw"].(map[string]interface{}); ok {
			for _, k := range sortedKeys(raw) {
				if s, ok := scalarString(raw[k]); ok {
					r.set(k, s)
				}
			}
		}
		for _, k := range sortedKeys(obj) {
			if s, ok := scalarString(obj[k]); ok {
				r.set(k, s)
			}
		}
		if len(r.fields) == 0 {
			r.err = "record has no fields"
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func scalarString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeItems returns the record array of a JSON document and its schema
// version. The document is either a bare array (version 0) or an envelope
// object holding schemaVersion and the array under the first present key.
func decodeItems(data []byte, keys ...string) ([]json.RawMessage, int, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, SchemaVersion, nil
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, 0, fmt.Errorf("decode array: %w", err)
		}
		return items, 0, nil
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, 0, fmt.Errorf("decode document: %w", err)
		}
		version := 0
		if raw, ok := env["schemaVersion"]; ok {
			if err := json.Unmarshal(raw, &version); err != nil {
				return nil, 0, fmt.Errorf("decode schemaVersion: %w", err)
			}
		}
		if version > SchemaVersion {
			return nil, version, fmt.Errorf("unsupported schemaVersion %d (max %d)", version, SchemaVersion)
		}
		for _, key := range keys {
			raw, ok := env[key]
			if !ok {
				continue
			}
			items, err := decodeCollection(raw)
			if err != nil {
				return nil, version, fmt.Errorf("decode %s: %w", key, err)
			}
			return items, version, nil
		}
		return nil, version, nil
	default:
		return nil, 0, errors.New("document is neither a JSON array nor an object")
	}
}

// decodeCollection accepts an array of records, or an object whose values
// are member lists (the legacy group map), returned as name/members pairs.
func decodeCollection(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var byName map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byName); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		items := make([]json.RawMessage, 0, len(names))
		for _, name := range names {
			item, err := json.Marshal(struct {
				Name    string          `json:"name"`
				Members json.RawMessage `json:"members"`
			}{name, byName[name]})
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
