// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package stream fans stored log events out to WebSocket subscribers.
// Clients subscribe to exactly one tenant; an event only ever reaches
// subscribers of its own tenant.
package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/metrics"
	"github.com/ocelotlabs/loghub/internal/models"
)

// Frame types sent to WebSocket clients.
const (
	FrameTypeWelcome = "welcome"
	FrameTypeEvent   = "log_event"
	FrameTypePing    = "ping"
	FrameTypePong    = "pong"
)

// Frame is one WebSocket message.
type Frame struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type broadcastRequest struct {
	tenantID string
	frame    Frame
}

// Hub tracks connected clients by tenant and routes events to them.
// Delivery is best effort: a client whose send buffer is full is
// dropped, it can reconnect and re-query for what it missed.
type Hub struct {
	tenants   map[string]map[*Client]bool
	broadcast chan broadcastRequest

	Register   chan *Client
	Unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates an empty hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		tenants:    make(map[string]map[*Client]bool),
		broadcast:  make(chan broadcastRequest, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run processes hub events until the context is canceled. Lifecycle
// events win over broadcasts when both are pending, so client state is
// settled before messages route through it.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
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
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case req := <-h.broadcast:
			h.deliver(req)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	clients, ok := h.tenants[client.tenantID]
	if !ok {
		clients = make(map[*Client]bool)
		h.tenants[client.tenantID] = clients
	}
	clients[client] = true
	count := len(clients)
	h.mu.Unlock()

	metrics.StreamClients.WithLabelValues(client.tenantID).Set(float64(count))
	logging.Info().
		Str("tenant_id", client.tenantID).
		Int("tenant_clients", count).
		Msg("stream client connected")

	client.enqueue(Frame{
		Type:     FrameTypeWelcome,
		TenantID: client.tenantID,
		Data: map[string]any{
			"connected_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	count := h.removeLocked(client)
	h.mu.Unlock()

	if count >= 0 {
		metrics.StreamClients.WithLabelValues(client.tenantID).Set(float64(count))
		logging.Info().
			Str("tenant_id", client.tenantID).
			Int("tenant_clients", count).
			Msg("stream client disconnected")
	}
}

// removeLocked detaches a client and returns the tenant's remaining
// client count, or -1 if the client was already gone. Empty tenant
// sets are deleted so the map does not accumulate dead tenants.
func (h *Hub) removeLocked(client *Client) int {
	clients, ok := h.tenants[client.tenantID]
	if !ok {
		return -1
	}
	if _, ok := clients[client]; !ok {
		return -1
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.tenants, client.tenantID)
		return 0
	}
	return len(clients)
}

// deliver sends a frame to every client of the target tenant, in
// stable ID order, pruning any client that cannot accept it.
func (h *Hub) deliver(req broadcastRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.tenants[req.tenantID]))
	for client := range h.tenants[req.tenantID] {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		select {
		case client.send <- req.frame:
		default:
			h.removeLocked(client)
			metrics.StreamDropped.Inc()
			logging.Warn().
				Str("tenant_id", client.tenantID).
				Msg("stream client too slow, dropped")
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	var closed int
	for tenantID, clients := range h.tenants {
		for client := range clients {
			close(client.send)
			closed++
		}
		delete(h.tenants, tenantID)
		metrics.StreamClients.WithLabelValues(tenantID).Set(0)
	}
	h.mu.Unlock()

	logging.Info().
		Int("clients_closed", closed).
		AnErr("reason", ctx.Err()).
		Msg("stream hub stopped")
}

// BroadcastEvent routes a stored event to the subscribers of its
// tenant. Never blocks; if the hub is saturated the event is dropped,
// the durable record is unaffected.
func (h *Hub) BroadcastEvent(event *models.LogEvent) {
	if event.TenantID == "" {
		return
	}

	req := broadcastRequest{
		tenantID: event.TenantID,
		frame: Frame{
			Type:     FrameTypeEvent,
			TenantID: event.TenantID,
			Data:     event,
		},
	}

	select {
	case h.broadcast <- req:
		metrics.StreamBroadcasts.WithLabelValues(event.TenantID).Inc()
	default:
		logging.Warn().
			Str("tenant_id", event.TenantID).
			Msg("broadcast channel full, dropping live event")
	}
}

// ClientCount returns the number of clients connected for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}
