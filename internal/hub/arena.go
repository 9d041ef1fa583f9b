// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// seqSource is shared by every arena so a token matches at most one entry
// across all of them.
var seqSource atomic.Uint64

// Token identifies one registration. The zero Token matches nothing.
type Token struct {
	index uint32
	seq   uint64
}

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool { return t.seq == 0 }

func (t Token) String() string {
	return fmt.Sprintf("%d.%d", t.index, t.seq)
}

// entry is one arena slot. seq == 0 marks a tombstone.
type entry[T any] struct {
	val T
	seq uint64
}

// arena stores values in reusable slots. Removal leaves a tombstone whose
// slot index goes on the free list; the slot's next occupant gets a fresh
// sequence number, so stale tokens never match it.
type arena[T any] struct {
	mu    sync.Mutex
	slots []entry[T]
	free  []uint32
	live  int
}

func (a *arena[T]) insert(v T) Token {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := seqSource.Add(1)
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = entry[T]{val: v, seq: seq}
	} else {
		idx = uint32(len(a.slots)) //nolint:gosec // slot count stays far below 2^32
		a.slots = append(a.slots, entry[T]{val: v, seq: seq})
	}
	a.live++
	return Token{index: idx, seq: seq}
}

// remove tombstones the slot for t. It returns false when t is stale or
// was already removed.
func (a *arena[T]) remove(t Token) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	if t.seq == 0 || int(t.index) >= len(a.slots) || a.slots[t.index].seq != t.seq {
		return zero, false
	}
	v := a.slots[t.index].val
	a.slots[t.index] = entry[T]{}
	a.free = append(a.free, t.index)
	a.live--
	return v, true
}

// contains reports whether t still names a live entry.
func (a *arena[T]) contains(t Token) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return t.seq != 0 && int(t.index) < len(a.slots) && a.slots[t.index].seq == t.seq
}

// each returns the live entries in slot order. Callers iterate the copy
// without holding the lock.
func (a *arena[T]) each() ([]Token, []T) {
	a.mu.Lock()
	defer a.mu.Unlock()

	toks := make([]Token, 0, a.live)
	vals := make([]T, 0, a.live)
	for i, e := range a.slots {
		if e.seq == 0 {
			continue
		}
		toks = append(toks, Token{index: uint32(i), seq: e.seq}) //nolint:gosec // bounded by insert
		vals = append(vals, e.val)
	}
	return toks, vals
}

func (a *arena[T]) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}
