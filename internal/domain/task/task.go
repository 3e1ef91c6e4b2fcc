// Package task defines the coordination task domain entity.
package task

import (
	"fmt"
	"time"

	"github.com/hivemind-sec/hivemind/internal/domain"
)

// MaxAssignedAgents is the hard cap on agents assigned to a single task.
const MaxAssignedAgents = 3

// Priority ranks tasks for scheduling. Lower weight schedules first.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityCritical  Priority = "critical"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// Weight returns the numeric scheduling weight: emergency=0 (best) .. low=4.
// Unknown priorities sort after low.
func (p Priority) Weight() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	}
	return 5
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Weight() <= 4
}

// Urgent reports whether the priority earns an extra assignment slot.
func (p Priority) Urgent() bool {
	return p == PriorityCritical || p == PriorityEmergency
}

// Status represents the task state machine: queued → assigned → in_progress → completed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsActive reports whether the task currently holds agent capacity.
func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Task is a unit of coordinated work requiring one or more capabilities.
type Task struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Required          []string   `json:"required_capabilities"`
	Priority          Priority   `json:"priority"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	DependsOn         []string   `json:"depends_on,omitempty"`
	AssignedAgents    []string   `json:"assigned_agents,omitempty"`
	Status            Status     `json:"status"`
	Progress          float64    `json:"progress"`           // [0,1]
	EstimatedDuration int        `json:"estimated_duration"` // minutes
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LoadDelta is the share of an agent's capacity this task occupies:
// the estimated duration expressed in hours-equivalent.
func (t *Task) LoadDelta() float64 {
	return float64(t.EstimatedDuration) / 60.0
}

// Clone returns a deep copy that is safe to read after the coordinator's
// lock is released.
func (t *Task) Clone() Task {
	cp := *t
	cp.Required = append([]string(nil), t.Required...)
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	cp.AssignedAgents = append([]string(nil), t.AssignedAgents...)
	return cp
}

// SubmitRequest holds the fields needed to submit a new coordination task.
type SubmitRequest struct {
	Name              string     `json:"name"`
	Required          []string   `json:"required_capabilities"`
	Priority          Priority   `json:"priority"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	DependsOn         []string   `json:"depends_on,omitempty"`
	EstimatedDuration int        `json:"estimated_duration"`
}

// Validate checks the submit request is well-formed.
func (r *SubmitRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: task name is required", domain.ErrValidation)
	}
	if len(r.Required) == 0 {
		return fmt.Errorf("%w: at least one required capability is needed", domain.ErrValidation)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, r.Priority)
	}
	if r.EstimatedDuration <= 0 {
		return fmt.Errorf("%w: estimated_duration must be positive", domain.ErrValidation)
	}
	return nil
}
