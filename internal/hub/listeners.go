// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package hub

import (
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
)

// Listeners is a list of callbacks for one lifecycle event.
type Listeners[T any] struct {
	topic string
	arena arena[func(T)]
}

// NewListeners returns an empty list. topic labels metrics and logs.
func NewListeners[T any](topic string) *Listeners[T] {
	return &Listeners[T]{topic: topic}
}

// Add registers fn and returns its token.
func (l *Listeners[T]) Add(fn func(T)) Token {
	tok := l.arena.insert(fn)
	metrics.HubSubscribers.WithLabelValues(l.topic).Set(float64(l.arena.len()))
	return tok
}

// Remove unregisters tok. Removing twice, or removing a token from another
// list, is a no-op that returns false.
func (l *Listeners[T]) Remove(tok Token) bool {
	if _, ok := l.arena.remove(tok); !ok {
		return false
	}
	metrics.HubSubscribers.WithLabelValues(l.topic).Set(float64(l.arena.len()))
	return true
}

// Len returns the number of registered callbacks.
func (l *Listeners[T]) Len() int {
	return l.arena.len()
}

// Emit calls every registered callback with v in registration slot order.
// A callback removed while Emit runs is not called afterwards. A panicking
// callback is logged and does not stop the others.
func (l *Listeners[T]) Emit(v T) {
	toks, fns := l.arena.each()
	for i, fn := range fns {
		if !l.arena.contains(toks[i]) {
			continue
		}
		l.call(fn, v)
		metrics.HubDeliveries.WithLabelValues(l.topic).Inc()
	}
}

func (l *Listeners[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("topic", l.topic).Interface("panic", r).Msg("Listener panicked")
		}
	}()
	fn(v)
}
