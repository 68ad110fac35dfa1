// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package stream

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/queue"
)

func drainWelcome(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		if frame.Type != FrameTypeWelcome {
			t.Fatalf("first frame type = %q, want welcome", frame.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no welcome frame")
	}
}

func TestHubRoutesByTenant(t *testing.T) {
	hub := NewHub()

	a1 := NewClient(hub, nil, "tenant-a")
	a2 := NewClient(hub, nil, "tenant-a")
	b1 := NewClient(hub, nil, "tenant-b")
	for _, c := range []*Client{a1, a2, b1} {
		hub.register(c)
		drainWelcome(t, c)
	}

	hub.deliver(broadcastRequest{
		tenantID: "tenant-a",
		frame: Frame{
			Type:     FrameTypeEvent,
			TenantID: "tenant-a",
			Data:     &models.LogEvent{TenantID: "tenant-a", Message: "hello"},
		},
	})

	for _, c := range []*Client{a1, a2} {
		select {
		case frame := <-c.send:
			if frame.TenantID != "tenant-a" {
				t.Errorf("frame tenant = %q, want tenant-a", frame.TenantID)
			}
		default:
			t.Error("tenant-a client missed the event")
		}
	}

	select {
	case frame := <-b1.send:
		t.Errorf("tenant-b client received foreign event: %+v", frame)
	default:
	}
}

func TestHubWelcomeFrame(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil, "acme")
	hub.register(c)

	select {
	case frame := <-c.send:
		if frame.Type != FrameTypeWelcome || frame.TenantID != "acme" {
			t.Errorf("welcome frame = %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("no welcome frame")
	}
}

func TestHubPrunesSlowClients(t *testing.T) {
	hub := NewHub()

	slow := NewClient(hub, nil, "acme")
	fast := NewClient(hub, nil, "acme")
	hub.register(slow)
	hub.register(fast)
	drainWelcome(t, fast)

	// Saturate the slow client's buffer. The welcome frame already
	// occupies one slot.
	for i := 0; i < cap(slow.send); i++ {
		slow.enqueue(Frame{Type: FrameTypeEvent})
	}

	hub.deliver(broadcastRequest{
		tenantID: "acme",
		frame:    Frame{Type: FrameTypeEvent, TenantID: "acme"},
	})

	if got := hub.ClientCount("acme"); got != 1 {
		t.Errorf("clients after prune = %d, want 1", got)
	}

	select {
	case frame := <-fast.send:
		if frame.Type != FrameTypeEvent {
			t.Errorf("fast client frame = %+v", frame)
		}
	default:
		t.Error("healthy client must still receive the event")
	}
}

func TestHubUnregisterRemovesEmptyTenant(t *testing.T) {
	hub := NewHub()

	c := NewClient(hub, nil, "acme")
	hub.register(c)
	hub.unregister(c)

	if got := hub.ClientCount("acme"); got != 0 {
		t.Errorf("clients = %d, want 0", got)
	}
	hub.mu.RLock()
	_, lingering := hub.tenants["acme"]
	hub.mu.RUnlock()
	if lingering {
		t.Error("empty tenant entry must be removed")
	}

	// Double unregister must not panic or double-close the channel.
	hub.unregister(c)
}

func TestHubRunLifecycle(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	c := NewClient(hub, nil, "acme")
	select {
	case hub.Register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	drainWelcome(t, c)

	hub.BroadcastEvent(&models.LogEvent{TenantID: "acme", Message: "live"})
	select {
	case frame := <-c.send:
		if frame.Type != FrameTypeEvent {
			t.Errorf("frame type = %q, want event", frame.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestBroadcastEventIgnoresMissingTenant(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent(&models.LogEvent{Message: "orphan"})

	select {
	case req := <-hub.broadcast:
		t.Errorf("orphan event queued: %+v", req)
	default:
	}
}

type fakeLiveSubscriber struct {
	messages chan *message.Message
}

func (f *fakeLiveSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	return f.messages, nil
}

func TestBridgeForwardsToHub(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = hub.Run(ctx) }()

	c := NewClient(hub, nil, "acme")
	hub.Register <- c
	drainWelcome(t, c)

	sub := &fakeLiveSubscriber{messages: make(chan *message.Message, 1)}
	bridge := NewBridge(sub, hub, "logs.ingested")
	go func() { _ = bridge.Run(ctx) }()

	payload, err := queue.NewSerializer().Marshal(&models.LogEvent{
		TenantID: "acme",
		Action:   models.ActionCreate,
		Severity: models.SeverityInfo,
		Message:  "bridged",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	sub.messages <- msg

	select {
	case frame := <-c.send:
		if frame.Type != FrameTypeEvent || frame.TenantID != "acme" {
			t.Errorf("frame = %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("bridged event not delivered")
	}

	select {
	case <-msg.Acked():
	case <-time.After(time.Second):
		t.Fatal("bridge must ack live messages")
	}
}
