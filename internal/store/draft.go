// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package store

import (
	"sort"
	"strings"

	"github.com/tomtom215/relay/internal/models"
)

// draft is a private, mutable copy of a snapshot. Member slices are shared
// with the source snapshot and must be replaced, never edited in place.
type draft struct {
	contacts     []models.Contact
	servers      []models.Server
	groups       map[string][]string
	contactIndex map[string]int
	serverIndex  map[string]int
}

func newDraft(cur *models.DataSnapshot) *draft {
	if cur == nil {
		cur = models.EmptySnapshot()
	}
	d := &draft{
		contacts:     append([]models.Contact(nil), cur.Contacts...),
		servers:      append([]models.Server(nil), cur.Servers...),
		groups:       make(map[string][]string, len(cur.Groups)),
		contactIndex: make(map[string]int, len(cur.Contacts)),
		serverIndex:  make(map[string]int, len(cur.Servers)),
	}
	for name, members := range cur.Groups {
		d.groups[name] = members
	}
	for i, c := range d.contacts {
		d.contactIndex[c.Email] = i
	}
	for i, srv := range d.servers {
		d.serverIndex[srv.Name] = i
	}
	return d
}

func (d *draft) build() *models.DataSnapshot {
	snap := &models.DataSnapshot{
		Groups:   d.groups,
		Contacts: d.contacts,
		Servers:  d.servers,
	}
	if snap.Contacts == nil {
		snap.Contacts = []models.Contact{}
	}
	if snap.Servers == nil {
		snap.Servers = []models.Server{}
	}
	return snap
}

func (d *draft) upsertContact(c models.Contact) error {
	c = c.Normalize()
	if err := requireKey("email", c.Email); err != nil {
		return err
	}
	if i, ok := d.contactIndex[c.Email]; ok {
		d.contacts[i] = c
		return nil
	}
	d.contactIndex[c.Email] = len(d.contacts)
	d.contacts = append(d.contacts, c)
	return nil
}

func (d *draft) removeContact(email string) error {
	key := models.EmailKey(email)
	i, ok := d.contactIndex[key]
	if !ok {
		return notFound("email", "contact", key)
	}
	d.contacts = append(d.contacts[:i:i], d.contacts[i+1:]...)
	d.reindexContacts()

	for name, members := range d.groups {
		if idx := indexOf(members, key); idx >= 0 {
			d.groups[name] = without(members, idx)
		}
	}
	return nil
}

func (d *draft) reindexContacts() {
	d.contactIndex = make(map[string]int, len(d.contacts))
	for i, c := range d.contacts {
		d.contactIndex[c.Email] = i
	}
}

func (d *draft) upsertServer(srv models.Server) error {
	srv = srv.Normalize()
	if err := requireKey("name", srv.Name); err != nil {
		return err
	}
	if i, ok := d.serverIndex[srv.Name]; ok {
		d.servers[i] = srv
		return nil
	}
	d.serverIndex[srv.Name] = len(d.servers)
	d.servers = append(d.servers, srv)
	return nil
}

func (d *draft) removeServer(name string) error {
	name = strings.TrimSpace(name)
	i, ok := d.serverIndex[name]
	if !ok {
		return notFound("name", "server", name)
	}
	d.servers = append(d.servers[:i:i], d.servers[i+1:]...)
	d.serverIndex = make(map[string]int, len(d.servers))
	for j, srv := range d.servers {
		d.serverIndex[srv.Name] = j
	}
	return nil
}

func (d *draft) upsertGroup(g models.Group) error {
	name := strings.TrimSpace(g.Name)
	if err := requireKey("name", name); err != nil {
		return err
	}
	d.groups[name] = models.NormalizeMembers(g.Members)
	return nil
}

func (d *draft) addGroup(name string) error {
	name = strings.TrimSpace(name)
	if err := requireKey("name", name); err != nil {
		return err
	}
	if _, exists := d.groups[name]; exists {
		return duplicate("name", "group", name)
	}
	d.groups[name] = []string{}
	return nil
}

func (d *draft) removeGroup(name string) error {
	if _, ok := d.groups[name]; !ok {
		return notFound("name", "group", name)
	}
	delete(d.groups, name)
	return nil
}

func (d *draft) renameGroup(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := requireKey("newName", newName); err != nil {
		return err
	}
	members, ok := d.groups[oldName]
	if !ok {
		return notFound("name", "group", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := d.groups[newName]; exists {
		return duplicate("newName", "group", newName)
	}
	delete(d.groups, oldName)
	d.groups[newName] = members
	return nil
}

func (d *draft) addMember(group, email string) error {
	members, ok := d.groups[group]
	if !ok {
		return notFound("group", "group", group)
	}
	key := models.EmailKey(email)
	if err := requireKey("email", key); err != nil {
		return err
	}
	if indexOf(members, key) >= 0 {
		return nil
	}
	next := make([]string, 0, len(members)+1)
	next = append(next, members...)
	next = append(next, key)
	sort.Strings(next)
	d.groups[group] = next
	return nil
}

func (d *draft) removeMember(group, email string) error {
	members, ok := d.groups[group]
	if !ok {
		return notFound("group", "group", group)
	}
	key := models.EmailKey(email)
	idx := indexOf(members, key)
	if idx < 0 {
		return notFound("email", "member", key)
	}
	d.groups[group] = without(members, idx)
	return nil
}

func indexOf(members []string, email string) int {
	for i, m := range members {
		if m == email {
			return i
		}
	}
	return -1
}

// without returns a new slice lacking element i.
func without(members []string, i int) []string {
	out := make([]string, 0, len(members)-1)
	out = append(out, members[:i]...)
	return append(out, members[i+1:]...)
}
