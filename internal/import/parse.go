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
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/validation"
)

// resolveFormat falls back to sniffing when f is unknown.
func resolveFormat(f Format, data []byte) Format {
	if f == FormatUnknown {
		return sniffFormat(data)
	}
	return f
}

func comma(f Format) rune {
	if f == FormatTSV {
		return '\t'
	}
	return ','
}

// contactSet accumulates contacts with last-write-wins deduplication.
type contactSet struct {
	parsed *Parsed[models.Contact]
	source string
	index  map[string]int
	rowOf  map[string]int
}

func newContactSet(source string) *contactSet {
	return &contactSet{
		parsed: &Parsed[models.Contact]{Records: []models.Contact{}},
		source: source,
		index:  map[string]int{},
		rowOf:  map[string]int{},
	}
}

func (s *contactSet) add(row int, c models.Contact) {
	c = c.Normalize()
	if c.Email == "" {
		s.parsed.warn(s.source, row, "missing email")
		return
	}
	if verr := validation.ValidateVar("email", c.Email, "email"); verr != nil {
		s.parsed.warn(s.source, row, fmt.Sprintf("invalid email %q", c.Email))
		return
	}
	if i, dup := s.index[c.Email]; dup {
		s.parsed.warn(s.source, row, fmt.Sprintf("duplicate email %s overrides row %d", c.Email, s.rowOf[c.Email]))
		s.parsed.Records[i] = c
		s.rowOf[c.Email] = row
		return
	}
	s.index[c.Email] = len(s.parsed.Records)
	s.rowOf[c.Email] = row
	s.parsed.Records = append(s.parsed.Records, c)
}

// ParseContacts reads contacts from data. JSON documents use the canonical
// record shape; delimited files are mapped by header alias.
func ParseContacts(source string, data []byte, format Format) (*Parsed[models.Contact], error) {
	set := newContactSet(source)

	if resolveFormat(format, data) == FormatJSON {
		items, _, err := decodeItems(data, "contacts")
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			var c models.Contact
			if err := json.Unmarshal(item, &c); err != nil {
				set.parsed.warn(source, i+1, "malformed contact record")
				continue
			}
			set.add(i+1, c)
		}
		return set.parsed, nil
	}

	_, rows, err := readDelimited(data, comma(resolveFormat(format, data)))
	if err != nil {
		return nil, err
	}
	mapper := NewMapper()
	for i := range rows {
		if rows[i].err != "" {
			set.parsed.warn(source, rows[i].index, rows[i].err)
			continue
		}
		set.add(rows[i].index, mapper.ToContact(&rows[i]))
	}
	return set.parsed, nil
}

// ParseContactsWithMapping reads contacts using a user-declared column
// mapping. JSON input must be an array of flat objects.
func ParseContactsWithMapping(source string, data []byte, format Format, m models.ColumnMapping) (*Parsed[models.Contact], error) {
	if strings.TrimSpace(m.Email) == "" {
		return nil, models.NewValidationError("mapping.email", "an email column is required", nil)
	}

	var rows []row
	var err error
	if f := resolveFormat(format, data); f == FormatJSON {
		rows, err = readJSONObjects(data, "contacts", "records", "data")
	} else {
		var header []string
		header, rows, err = readDelimited(data, comma(f))
		if err == nil && len(header) > 0 && !HasColumn(header, m.Email) {
			return nil, models.NewValidationError("mapping.email", fmt.Sprintf("column %q not found", m.Email), nil)
		}
	}
	if err != nil {
		return nil, err
	}

	set := newContactSet(source)
	mapper := NewColumnMapper(m)
	for i := range rows {
		if rows[i].err != "" {
			set.parsed.warn(source, rows[i].index, rows[i].err)
			continue
		}
		set.add(rows[i].index, mapper.ToContact(&rows[i]))
	}
	return set.parsed, nil
}

// ParseServers reads servers keyed by name.
func ParseServers(source string, data []byte, format Format) (*Parsed[models.Server], error) {
	parsed := &Parsed[models.Server]{Records: []models.Server{}}
	index := map[string]int{}
	rowOf := map[string]int{}

	add := func(row int, srv models.Server) {
		srv = srv.Normalize()
		if srv.Name == "" {
			parsed.warn(source, row, "missing server name")
			return
		}
		if i, dup := index[srv.Name]; dup {
			parsed.warn(source, row, fmt.Sprintf("duplicate server %s overrides row %d", srv.Name, rowOf[srv.Name]))
			parsed.Records[i] = srv
			rowOf[srv.Name] = row
			return
		}
		index[srv.Name] = len(parsed.Records)
		rowOf[srv.Name] = row
		parsed.Records = append(parsed.Records, srv)
	}

	if resolveFormat(format, data) == FormatJSON {
		items, _, err := decodeItems(data, "servers")
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			var srv models.Server
			if err := json.Unmarshal(item, &srv); err != nil {
				parsed.warn(source, i+1, "malformed server record")
				continue
			}
			add(i+1, srv)
		}
		return parsed, nil
	}

	_, rows, err := readDelimited(data, comma(resolveFormat(format, data)))
	if err != nil {
		return nil, err
	}
	mapper := NewMapper()
	for i := range rows {
		if rows[i].err != "" {
			parsed.warn(source, rows[i].index, rows[i].err)
			continue
		}
		add(rows[i].index, mapper.ToServer(&rows[i]))
	}
	return parsed, nil
}

// ParseGroups reads groups. JSON holds {name, members} records (or a
// legacy name to members object); a delimited file has one column per
// group with a member email in each cell.
func ParseGroups(source string, data []byte, format Format) (*Parsed[models.Group], error) {
	if resolveFormat(format, data) == FormatJSON {
		return parseGroupsJSON(source, data)
	}
	return parseGroupsDelimited(source, data, comma(resolveFormat(format, data)))
}

func parseGroupsJSON(source string, data []byte) (*Parsed[models.Group], error) {
	items, _, err := decodeItems(data, "groups")
	if err != nil {
		return nil, err
	}

	parsed := &Parsed[models.Group]{Records: []models.Group{}}
	index := map[string]int{}
	rowOf := map[string]int{}
	for i, item := range items {
		row := i + 1
		var g models.Group
		if err := json.Unmarshal(item, &g); err != nil {
			parsed.warn(source, row, "malformed group record")
			continue
		}
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			parsed.warn(source, row, "missing group name")
			continue
		}
		g.Members = validMembers(parsed, source, row, g.Name, g.Members)
		if j, dup := index[g.Name]; dup {
			parsed.warn(source, row, fmt.Sprintf("duplicate group %s overrides row %d", g.Name, rowOf[g.Name]))
			parsed.Records[j] = g
			rowOf[g.Name] = row
			continue
		}
		index[g.Name] = len(parsed.Records)
		rowOf[g.Name] = row
		parsed.Records = append(parsed.Records, g)
	}
	return parsed, nil
}

// validMembers drops invalid member emails with a warning each.
func validMembers(p *Parsed[models.Group], source string, row int, group string, members []string) []string {
	valid := make([]string, 0, len(members))
	for _, m := range members {
		key := models.EmailKey(m)
		if key == "" {
			continue
		}
		if verr := validation.ValidateVar("email", key, "email"); verr != nil {
			p.warn(source, row, fmt.Sprintf("invalid email %q in group %s", m, group))
			continue
		}
		valid = append(valid, key)
	}
	return models.NormalizeMembers(valid)
}

func parseGroupsDelimited(source string, data []byte, sep rune) (*Parsed[models.Group], error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	parsed := &Parsed[models.Group]{Records: []models.Group{}}
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return parsed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// column index to group name; a repeated name keeps its last column.
	columns := make(map[int]string, len(header))
	owner := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if prev, dup := owner[name]; dup {
			parsed.warn(source, 0, fmt.Sprintf("duplicate group %s overrides column %d", name, prev+1))
			delete(columns, prev)
		}
		owner[name] = i
		columns[i] = name
	}

	members := make(map[string][]string, len(columns))
	for index := 1; ; index++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			parsed.warn(source, index, fmt.Sprintf("unparseable row: %v", pe.Err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", index, err)
		}
		for i, cell := range rec {
			group, ok := columns[i]
			email := models.EmailKey(cell)
			if email == "" {
				continue
			}
			if !ok {
				parsed.warn(source, index, fmt.Sprintf("value %q has no group column", cell))
				continue
			}
			if verr := validation.ValidateVar("email", email, "email"); verr != nil {
				parsed.warn(source, index, fmt.Sprintf("invalid email %q in group %s", cell, group))
				continue
			}
			members[group] = append(members[group], email)
		}
	}

	for i := range header {
		if group, ok := columns[i]; ok {
			parsed.Records = append(parsed.Records, models.Group{
				Name:    group,
				Members: models.NormalizeMembers(members[group]),
			})
		}
	}
	return parsed, nil
}
