// Package eventstore defines the port interface for the append-only coordination journal.
package eventstore

import (
	"context"
	"time"

	"github.com/hivemind-sec/hivemind/internal/domain/event"
)

// Filter controls which journal events are returned by Load.
type Filter struct {
	Types  []event.Type `json:"types,omitempty"`
	TaskID string       `json:"task_id,omitempty"`
	After  *time.Time   `json:"after,omitempty"`
	Before *time.Time   `json:"before,omitempty"`
}

// Page is a cursor-paginated page of journal events.
type Page struct {
	Events  []event.Event `json:"events"`
	Cursor  string        `json:"cursor"`
	HasMore bool          `json:"has_more"`
	Total   int           `json:"total"`
}

// Store is the port interface for appending and loading coordination events.
type Store interface {
	// Append persists a new event to the journal.
	Append(ctx context.Context, ev *event.Event) error

	// LoadByTask returns all events for the given task, oldest first.
	LoadByTask(ctx context.Context, taskID string) ([]event.Event, error)

	// Load returns a cursor-paginated page of events matching the filter.
	Load(ctx context.Context, filter Filter, cursor string, limit int) (*Page, error)

	// Counts returns the number of journaled events per event type.
	Counts(ctx context.Context) (map[string]int, error)
}
