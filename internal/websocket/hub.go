// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package websocket streams persisted alerts to connected review frontends.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/metrics"
	"github.com/kuomat/Traffic-Slice/internal/screener"
)

// Message types exchanged with clients.
const (
	MessageTypeAlert = "alert"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is the wire envelope for all hub traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients and fans alert messages out to them.
// Lifecycle events take priority over broadcasts so client state is settled
// before messages are delivered.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
}

// NewHub creates a hub. Run it under the supervisor with RunWithContext.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// BroadcastAlert queues a persisted alert for delivery to all clients. Never
// blocks; when the broadcast queue is full the alert is dropped from the
// live stream (it is already persisted and queryable).
// Implements screener.Broadcaster.
func (h *Hub) BroadcastAlert(alert screener.PersistedAlert) {
	select {
	case h.broadcast <- Message{Type: MessageTypeAlert, Data: alert}:
	default:
		logging.Warn().Int64("alert_id", alert.ID).Msg("broadcast queue full, dropping live alert")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RunWithContext runs the hub until the context is canceled, then closes
// every client and returns ctx.Err(). Designed for suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown first, then lifecycle events, then broadcasts. Go's
		// select picks randomly among ready channels; the staged checks
		// keep the ordering predictable.
		select {
		case <-ctx.Done():
			return h.shutdown(ctx)
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return h.shutdown(ctx)
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// deliver sends a message to every client in id order. Clients whose send
// buffer is full are dropped; a reader that slow has effectively hung.
func (h *Hub) deliver(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown(ctx context.Context) error {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebsocketClients.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
	return ctx.Err()
}
