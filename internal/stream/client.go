// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package stream

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ocelotlabs/loghub/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// clientIDCounter gives each client a stable ordering key.
var clientIDCounter atomic.Uint64

// Client is one WebSocket subscriber, bound to a single tenant.
type Client struct {
	id       uint64
	tenantID string
	hub      *Hub
	conn     *websocket.Conn
	send     chan Frame
}

// NewClient wraps an upgraded connection. The caller registers it with
// the hub and calls Start.
func NewClient(hub *Hub, conn *websocket.Conn, tenantID string) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		tenantID: tenantID,
		hub:      hub,
		conn:     conn,
		send:     make(chan Frame, 64),
	}
}

// TenantID returns the tenant this client subscribed to.
func (c *Client) TenantID() string {
	return c.tenantID
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// enqueue offers a frame without blocking.
func (c *Client) enqueue(frame Frame) {
	select {
	case c.send <- frame:
	default:
	}
}

// readPump drains inbound frames. Clients only ever send pings; the
// read loop mainly exists to notice the connection closing.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("set read deadline failed")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		if frame.Type == FrameTypePing {
			c.enqueue(Frame{Type: FrameTypePong})
		}
	}
}

// writePump writes outbound frames and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
