// Package event defines the coordination event entity for the shared context log.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of coordination event.
type Type string

const (
	TypeAgentRegistered  Type = "agent.registered"
	TypeTaskSubmitted    Type = "task.submitted"
	TypeTaskRejected     Type = "task.rejected"
	TypeTaskAssigned     Type = "task.assigned"
	TypeTaskStarted      Type = "task.started"
	TypeTaskCompleted    Type = "task.completed"
	TypeConflictDetected Type = "conflict.detected"
	TypeConflictResolved Type = "conflict.resolved"
)

// Event is a single immutable entry in the coordination log.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	TaskID    string          `json:"task_id,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
