// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package hub fans snapshots and lifecycle events out to subscribers.
//
// Subscribers live in an arena of reusable slots. Each subscriber receives
// snapshots one at a time and only ever a snapshot newer than the last one
// it saw: when several are published while a delivery is running, only the
// newest is delivered next.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

const topicData = "data"

// Hub delivers DataSnapshots and lifecycle notifications.
type Hub struct {
	latest atomic.Pointer[models.DataSnapshot]
	subs   arena[*subscriber]

	reloadStart    *Listeners[models.ReloadStatus]
	reloadComplete *Listeners[models.ReloadStatus]
	dataError      *Listeners[models.ReloadFailure]
	authRequested  *Listeners[models.AuthRequest]
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{
		reloadStart:    NewListeners[models.ReloadStatus]("reload_start"),
		reloadComplete: NewListeners[models.ReloadStatus]("reload_complete"),
		dataError:      NewListeners[models.ReloadFailure]("data_error"),
		authRequested:  NewListeners[models.AuthRequest]("auth_requested"),
	}
}

type subscriber struct {
	fn     func(*models.DataSnapshot)
	closed atomic.Bool

	mu      sync.Mutex
	pending *models.DataSnapshot
	running bool
	last    int64
}

// offer queues snap for delivery. The goroutine that finds the subscriber
// idle drains the queue; others return at once.
func (s *subscriber) offer(snap *models.DataSnapshot) {
	s.mu.Lock()
	if snap.LastUpdated <= s.last || (s.pending != nil && snap.LastUpdated <= s.pending.LastUpdated) {
		s.mu.Unlock()
		return
	}
	if s.pending != nil {
		metrics.HubSuperseded.WithLabelValues(topicData).Inc()
	}
	s.pending = snap
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.drain()
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		snap := s.pending
		if snap == nil || s.closed.Load() {
			s.pending = nil
			s.running = false
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.last = snap.LastUpdated
		s.mu.Unlock()

		s.deliver(snap)
	}
}

func (s *subscriber) deliver(snap *models.DataSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("Snapshot subscriber panicked")
		}
	}()
	s.fn(snap)
	metrics.HubDeliveries.WithLabelValues(topicData).Inc()
}

// Subscribe registers fn for snapshot pushes. When a snapshot has already
// been published fn receives it before Subscribe returns.
func (h *Hub) Subscribe(fn func(*models.DataSnapshot)) Token {
	sub := &subscriber{fn: fn}
	tok := h.subs.insert(sub)
	metrics.HubSubscribers.WithLabelValues(topicData).Set(float64(h.subs.len()))
	logging.Debug().Str("token", tok.String()).Msg("Subscriber added")

	if snap := h.latest.Load(); snap != nil {
		sub.offer(snap)
	}
	return tok
}

// Unsubscribe removes the registration for tok from whichever list holds
// it. It is idempotent and may be called from inside a callback; a
// delivery already running completes, and no further one starts.
func (h *Hub) Unsubscribe(tok Token) {
	if sub, ok := h.subs.remove(tok); ok {
		sub.closed.Store(true)
		metrics.HubSubscribers.WithLabelValues(topicData).Set(float64(h.subs.len()))
		logging.Debug().Str("token", tok.String()).Msg("Subscriber removed")
		return
	}
	if h.reloadStart.Remove(tok) || h.reloadComplete.Remove(tok) || h.dataError.Remove(tok) {
		return
	}
	h.authRequested.Remove(tok)
}

// Subscribers returns the number of snapshot subscribers.
func (h *Hub) Subscribers() int {
	return h.subs.len()
}

// Latest returns the newest published snapshot, or nil.
func (h *Hub) Latest() *models.DataSnapshot {
	return h.latest.Load()
}

// Publish pushes snap to every subscriber. Snapshots not newer than the
// latest published one are ignored.
func (h *Hub) Publish(snap *models.DataSnapshot) {
	if snap == nil {
		return
	}
	for {
		cur := h.latest.Load()
		if cur != nil && snap.LastUpdated <= cur.LastUpdated {
			return
		}
		if h.latest.CompareAndSwap(cur, snap) {
			break
		}
	}

	_, subs := h.subs.each()
	for _, sub := range subs {
		if !sub.closed.Load() {
			sub.offer(snap)
		}
	}
}

// OnReloadStart registers fn for reload start notifications.
func (h *Hub) OnReloadStart(fn func(models.ReloadStatus)) Token { return h.reloadStart.Add(fn) }

// OnReloadComplete registers fn for reload completion notifications.
func (h *Hub) OnReloadComplete(fn func(models.ReloadStatus)) Token {
	return h.reloadComplete.Add(fn)
}

// OnDataError registers fn for reload failures.
func (h *Hub) OnDataError(fn func(models.ReloadFailure)) Token { return h.dataError.Add(fn) }

// OnAuthRequested registers fn for imports waiting on credentials.
func (h *Hub) OnAuthRequested(fn func(models.AuthRequest)) Token { return h.authRequested.Add(fn) }

// ReloadStarted notifies reload start listeners.
func (h *Hub) ReloadStarted(status models.ReloadStatus) { h.reloadStart.Emit(status) }

// ReloadCompleted notifies reload completion listeners.
func (h *Hub) ReloadCompleted(status models.ReloadStatus) { h.reloadComplete.Emit(status) }

// DataFailed notifies data error listeners.
func (h *Hub) DataFailed(failure models.ReloadFailure) { h.dataError.Emit(failure) }

// AuthRequested notifies auth listeners.
func (h *Hub) AuthRequested(req models.AuthRequest) { h.authRequested.Emit(req) }
