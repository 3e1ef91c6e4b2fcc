package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-sec/hivemind/internal/domain/conflict"
	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
)

// timingWindow is how close a deadline must be before the timing scan
// considers a task at risk.
const timingWindow = 30 * time.Minute

// Conflict severities by type.
const (
	severityResource = 0.8
	severityPriority = 0.5
	severityTiming   = 0.7
)

// DetectConflicts runs the resource, priority, and timing scans over the
// active task set and records any conflict not already active. The
// signature-based dedup guarantees repeated scans never duplicate a
// conflict. Returns the newly detected conflicts.
func (c *Coordinator) DetectConflicts(ctx context.Context) []conflict.Conflict {
	c.mu.Lock()

	var found []*conflict.Conflict
	found = append(found, c.scanResourceLocked()...)
	found = append(found, c.scanPriorityLocked()...)
	found = append(found, c.scanTimingLocked()...)

	var fresh []conflict.Conflict
	for _, cf := range found {
		if _, exists := c.conflicts[cf.Signature]; exists {
			continue
		}
		c.conflicts[cf.Signature] = cf
		fresh = append(fresh, *cf)
	}
	c.mu.Unlock()

	for i := range fresh {
		c.emit(ctx, event.TypeConflictDetected, "", "", &fresh[i])
		if c.metrics != nil {
			c.metrics.ConflictsDetected.Add(ctx, 1)
		}
		slog.Warn("conflict detected",
			"conflict_id", fresh[i].ID,
			"type", fresh[i].Type,
			"tasks", fresh[i].TaskIDs,
			"agents", fresh[i].Agents,
		)
	}
	return fresh
}

// scanResourceLocked flags agents assigned to more than one active
// critical/emergency task. Must be called with c.mu held.
func (c *Coordinator) scanResourceLocked() []*conflict.Conflict {
	urgentByAgent := make(map[string][]string)
	for _, t := range c.active {
		if !t.Priority.Urgent() {
			continue
		}
		for _, agentID := range t.AssignedAgents {
			urgentByAgent[agentID] = append(urgentByAgent[agentID], t.ID)
		}
	}

	var out []*conflict.Conflict
	for agentID, taskIDs := range urgentByAgent {
		if len(taskIDs) < 2 {
			continue
		}
		sort.Strings(taskIDs)
		out = append(out, c.newConflictLocked(conflict.TypeResource, []string{agentID}, taskIDs, severityResource))
	}
	return out
}

// scanPriorityLocked flags pairs of active tasks sharing an agent but
// differing in priority rank. Ranking uses numeric weights, never the
// priority strings themselves. Must be called with c.mu held.
func (c *Coordinator) scanPriorityLocked() []*conflict.Conflict {
	tasks := make([]*task.Task, 0, len(c.active))
	for _, t := range c.active {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	var out []*conflict.Conflict
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			a, b := tasks[i], tasks[j]
			if a.Priority.Weight() == b.Priority.Weight() {
				continue
			}
			shared := sharedAgents(a, b)
			if len(shared) == 0 {
				continue
			}
			out = append(out, c.newConflictLocked(conflict.TypePriority, shared, []string{a.ID, b.ID}, severityPriority))
		}
	}
	return out
}

// scanTimingLocked flags active tasks whose deadline is inside the timing
// window and cannot be met given the estimated duration remaining.
// Must be called with c.mu held.
func (c *Coordinator) scanTimingLocked() []*conflict.Conflict {
	now := c.now()

	var out []*conflict.Conflict
	for _, t := range c.active {
		if t.Deadline == nil {
			continue
		}
		if t.Deadline.Sub(now) > timingWindow {
			continue
		}
		finish := now.Add(time.Duration(t.EstimatedDuration) * time.Minute)
		if !finish.After(*t.Deadline) {
			continue
		}
		agents := append([]string(nil), t.AssignedAgents...)
		out = append(out, c.newConflictLocked(conflict.TypeTiming, agents, []string{t.ID}, severityTiming))
	}
	return out
}

// newConflictLocked builds a conflict record with a deterministic signature.
// Must be called with c.mu held.
func (c *Coordinator) newConflictLocked(t conflict.Type, agents, taskIDs []string, severity float64) *conflict.Conflict {
	return &conflict.Conflict{
		ID:         uuid.NewString(),
		Type:       t,
		Signature:  conflict.Signature(t, taskIDs),
		Agents:     agents,
		TaskIDs:    taskIDs,
		Severity:   severity,
		DetectedAt: c.now(),
	}
}

// sharedAgents returns agent ids assigned to both tasks.
func sharedAgents(a, b *task.Task) []string {
	set := make(map[string]struct{}, len(a.AssignedAgents))
	for _, id := range a.AssignedAgents {
		set[id] = struct{}{}
	}
	var shared []string
	for _, id := range b.AssignedAgents {
		if _, ok := set[id]; ok {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	return shared
}

// ActiveConflicts returns copies of all unresolved conflicts.
func (c *Coordinator) ActiveConflicts() []conflict.Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]conflict.Conflict, 0, len(c.conflicts))
	for _, cf := range c.conflicts {
		out = append(out, *cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

// ResolvedConflicts returns copies of all resolved conflicts, oldest first.
func (c *Coordinator) ResolvedConflicts() []conflict.Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]conflict.Conflict, 0, len(c.resolved))
	for _, cf := range c.resolved {
		out = append(out, *cf)
	}
	return out
}
