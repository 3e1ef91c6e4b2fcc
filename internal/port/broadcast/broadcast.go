// Package broadcast defines the port for broadcasting real-time coordination events.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Event types pushed alongside the coordination event stream.
const (
	EventAgentStatus = "agent.status"
	EventQueueDepth  = "queue.depth"
)

// AgentStatusEvent is broadcast when an agent registers or a completion
// releases its load.
type AgentStatusEvent struct {
	AgentID   string  `json:"agent_id"`
	Available bool    `json:"available"`
	Load      float64 `json:"load"`
}

// QueueDepthEvent is broadcast after every scheduler pass that assigns tasks.
type QueueDepthEvent struct {
	Queued   int `json:"queued"`
	Active   int `json:"active"`
	Assigned int `json:"assigned"`
}
