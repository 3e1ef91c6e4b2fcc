package ws

import (
	"context"
	"testing"

	"github.com/hivemind-sec/hivemind/internal/port/broadcast"
)

func TestNewHub(t *testing.T) {
	h := NewHub()
	if h == nil {
		t.Fatal("expected non-nil hub")
	}
	if h.conns == nil {
		t.Fatal("expected initialized connection map")
	}
}

func TestHubConnectionCount(t *testing.T) {
	h := NewHub()
	if got := h.ConnectionCount(); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	h := NewHub()
	// Must not panic with no clients.
	h.Broadcast(context.Background(), Message{Type: "task.assigned"})
}

func TestHubBroadcastEventNoConnections(t *testing.T) {
	h := NewHub()
	h.BroadcastEvent(context.Background(), broadcast.EventAgentStatus, broadcast.AgentStatusEvent{
		AgentID:   "agent-1",
		Available: true,
		Load:      0.5,
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	h := NewHub()
	// Channels cannot be marshalled; the event is dropped with a log line.
	h.BroadcastEvent(context.Background(), broadcast.EventQueueDepth, make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	h := NewHub()
	c := &conn{cancel: func() {}}
	// Removing an unregistered connection is a no-op.
	h.remove(c)
	if got := h.ConnectionCount(); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}
