// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/hub"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during
	// shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeData           = "data"
	MessageTypeReloadStart    = "reload_start"
	MessageTypeReloadComplete = "reload_complete"
	MessageTypeDataError      = "data_error"
	MessageTypeAuthRequested  = "auth_requested"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Source is the event stream the hub relays to clients. *engine.Engine
// implements it.
type Source interface {
	SubscribeToData(fn func(*models.DataSnapshot)) hub.Token
	OnReloadStart(fn func(models.ReloadStatus)) hub.Token
	OnReloadComplete(fn func(models.ReloadStatus)) hub.Token
	OnDataError(fn func(models.ReloadFailure)) hub.Token
	OnAuthRequested(fn func(models.AuthRequest)) hub.Token
	Unsubscribe(tok hub.Token)
}

// outbound is a broadcast payload. version is the snapshot's LastUpdated
// for data messages and zero otherwise.
type outbound struct {
	payload []byte
	version int64
}

// Hub maintains the set of active clients and broadcasts messages to the
// clients. A client whose buffer is full is dropped; it reconnects and
// receives the current snapshot again.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan outbound, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub until ctx is canceled, then closes every client. It
// satisfies suture.Service.
//
// Lifecycle events are handled before broadcasts so a client registered
// ahead of a message always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case out := <-h.broadcast:
			h.broadcastToClients(out)
		}
	}
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err()
// is not logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients queues out on every client in id order and drops
// clients that cannot keep up.
func (h *Hub) broadcastToClients(out outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if !client.offer(out) {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.close()
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// closeAllClients closes every client in id order during shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		client.close()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// GetClientCount returns the number of registered clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// marshalMessage encodes a message once for all clients.
func marshalMessage(messageType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: messageType, Data: data})
}

// BroadcastJSON sends a typed message to all connected clients. The
// message is dropped when the broadcast queue is full.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	payload, err := marshalMessage(messageType, data)
	if err != nil {
		metrics.WSErrors.WithLabelValues("marshal").Inc()
		logging.Error().Err(err).Str("message_type", messageType).Msg("failed to encode websocket message")
		return
	}

	h.enqueue(messageType, outbound{payload: payload})
}

// BroadcastSnapshot sends snap to all connected clients as a data
// message. A client never receives a snapshot older than one it already
// has queued.
func (h *Hub) BroadcastSnapshot(snap *models.DataSnapshot) {
	payload, err := marshalMessage(MessageTypeData, snap)
	if err != nil {
		metrics.WSErrors.WithLabelValues("marshal").Inc()
		logging.Error().Err(err).Msg("failed to encode websocket snapshot")
		return
	}
	h.enqueue(MessageTypeData, outbound{payload: payload, version: snap.LastUpdated})
}

// SendSnapshot queues snap for client alone, typically right after it was
// registered. Anything broadcast since then is not lost: whichever of the
// two is older is skipped. It reports false when the client is closed or
// its buffer is full.
func (h *Hub) SendSnapshot(client *Client, snap *models.DataSnapshot) bool {
	payload, err := marshalMessage(MessageTypeData, snap)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode websocket snapshot")
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return false
	}
	return client.offer(outbound{payload: payload, version: snap.LastUpdated})
}

func (h *Hub) enqueue(messageType string, out outbound) {
	select {
	case h.broadcast <- out:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// Follow relays src to every client until the returned stop function is
// called.
func (h *Hub) Follow(src Source) (stop func()) {
	tokens := []hub.Token{
		src.SubscribeToData(h.BroadcastSnapshot),
		src.OnReloadStart(func(st models.ReloadStatus) {
			h.BroadcastJSON(MessageTypeReloadStart, st)
		}),
		src.OnReloadComplete(func(st models.ReloadStatus) {
			h.BroadcastJSON(MessageTypeReloadComplete, st)
		}),
		src.OnDataError(func(f models.ReloadFailure) {
			h.BroadcastJSON(MessageTypeDataError, f)
		}),
		src.OnAuthRequested(func(req models.AuthRequest) {
			h.BroadcastJSON(MessageTypeAuthRequested, req)
		}),
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, tok := range tokens {
				src.Unsubscribe(tok)
			}
		})
	}
}
