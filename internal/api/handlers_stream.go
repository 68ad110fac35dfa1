// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/stream"
)

// streamDeps holds the WebSocket pieces the handler owns.
type streamDeps struct {
	hub         *stream.Hub
	corsOrigins []string
}

// SetStream wires the live stream hub into the handler.
func (h *Handler) SetStream(hub *stream.Hub, corsOrigins []string) {
	h.stream = &streamDeps{hub: hub, corsOrigins: corsOrigins}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkStreamOrigin,
	}
}

// checkStreamOrigin accepts non-browser clients (no Origin header) and
// browsers from the configured origins.
func (h *Handler) checkStreamOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.stream.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket origin rejected")
	return false
}

// StreamLogs upgrades to WebSocket and subscribes the caller to its
// tenant's live events. Authentication and the reader-role check run
// before the upgrade, so an unauthorized caller never holds a socket.
// GET /ws/logs
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.stream == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "live stream unavailable")
		return
	}

	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	tenantID := requestTenant(r)
	if err := auth.Authorize(claims, tenantID, auth.RoleReader); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := stream.NewClient(h.stream.hub, conn, tenantID)
	h.stream.hub.Register <- client
	client.Start()
}
