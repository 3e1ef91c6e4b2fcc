package service

import (
	"sort"
	"sync"

	"github.com/hivemind-sec/hivemind/internal/domain/event"
)

// ContextLog is the append-only in-memory record of coordination actions,
// bounded per event type. It is the always-available view of recent
// coordination history; the Postgres journal, when enabled, keeps the
// unbounded copy.
type ContextLog struct {
	mu      sync.RWMutex
	bound   int
	entries map[event.Type][]event.Event
}

// NewContextLog creates a context log retaining at most bound events per type.
func NewContextLog(bound int) *ContextLog {
	if bound < 1 {
		bound = 1
	}
	return &ContextLog{
		bound:   bound,
		entries: make(map[event.Type][]event.Event),
	}
}

// Append records an event, evicting the oldest entry of the same type
// once the per-type bound is reached.
func (l *ContextLog) Append(ev event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.entries[ev.Type], ev)
	if len(entries) > l.bound {
		entries = entries[len(entries)-l.bound:]
	}
	l.entries[ev.Type] = entries
}

// ByType returns the retained events of the given type, oldest first.
func (l *ContextLog) ByType(t event.Type) []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]event.Event(nil), l.entries[t]...)
}

// Snapshot returns all retained events across types, ordered by creation time.
func (l *ContextLog) Snapshot() []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var all []event.Event
	for _, entries := range l.entries {
		all = append(all, entries...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

// Len returns the total number of retained events.
func (l *ContextLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	for _, entries := range l.entries {
		n += len(entries)
	}
	return n
}
