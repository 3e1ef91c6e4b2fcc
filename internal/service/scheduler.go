package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hivemind-sec/hivemind/internal/domain"
	"github.com/hivemind-sec/hivemind/internal/domain/agent"
	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
	"github.com/hivemind-sec/hivemind/internal/port/broadcast"
)

// Candidate scoring weights. Proficiency dominates, then headroom,
// then track record, then recency.
const (
	weightProficiency = 0.4
	weightHeadroom    = 0.3
	weightSuccess     = 0.2
	weightRecency     = 0.1
)

// SubmitTask validates and enqueues a new coordination task. Validation
// failures reject the task outright: nothing is queued. The returned task
// is a detached copy; later scheduling does not show through it.
func (c *Coordinator) SubmitTask(ctx context.Context, req *task.SubmitRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()

	if missing := c.uncoveredCapabilitiesLocked(req.Required); len(missing) > 0 {
		c.mu.Unlock()
		c.emit(ctx, event.TypeTaskRejected, "", "", req)
		return nil, fmt.Errorf("%w: no available agent provides capabilities %v", domain.ErrValidation, missing)
	}
	for _, dep := range req.DependsOn {
		if !c.knownTaskLocked(dep) {
			c.mu.Unlock()
			c.emit(ctx, event.TypeTaskRejected, "", "", req)
			return nil, fmt.Errorf("%w: dependency %s is neither completed nor active", domain.ErrValidation, dep)
		}
	}

	now := c.now()
	t := &task.Task{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Required:          req.Required,
		Priority:          req.Priority,
		Deadline:          req.Deadline,
		DependsOn:         req.DependsOn,
		Status:            task.StatusQueued,
		EstimatedDuration: req.EstimatedDuration,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	c.queue = append(c.queue, t)
	snap := t.Clone()
	c.mu.Unlock()

	c.emit(ctx, event.TypeTaskSubmitted, snap.ID, "", &snap)
	if c.metrics != nil {
		c.metrics.TasksSubmitted.Add(ctx, 1)
	}
	slog.Info("task submitted", "task_id", snap.ID, "priority", snap.Priority, "capabilities", req.Required)
	return &snap, nil
}

// uncoveredCapabilitiesLocked returns required capability names that no
// available agent provides. Must be called with c.mu held.
func (c *Coordinator) uncoveredCapabilitiesLocked(required []string) []string {
	var missing []string
	for _, name := range required {
		covered := false
		for _, p := range c.agents {
			if !p.Available {
				continue
			}
			if p.HasCapabilities([]string{name}) {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, name)
		}
	}
	return missing
}

// knownTaskLocked reports whether a dependency id refers to a completed,
// active, or queued task. Must be called with c.mu held.
func (c *Coordinator) knownTaskLocked(id string) bool {
	if _, ok := c.completed[id]; ok {
		return true
	}
	if _, ok := c.active[id]; ok {
		return true
	}
	for _, t := range c.queue {
		if t.ID == id {
			return true
		}
	}
	return false
}

// depsSatisfiedLocked reports whether all dependencies of t are completed.
// Must be called with c.mu held.
func (c *Coordinator) depsSatisfiedLocked(t *task.Task) bool {
	for _, dep := range t.DependsOn {
		if _, ok := c.completed[dep]; !ok {
			return false
		}
	}
	return true
}

// SchedulePass runs one scheduler round: orders the queue, pulls eligible
// tasks while under the concurrency cap, and assigns each to its best-scoring
// agents. Tasks with unsatisfied dependencies or no candidates stay queued
// untouched. Returns the number of tasks assigned.
func (c *Coordinator) SchedulePass(ctx context.Context) int {
	start := c.now()

	c.mu.Lock()
	c.sortQueueLocked()

	var assigned []task.Task // snapshots, safe to marshal outside the lock
	var remaining []*task.Task
	for _, t := range c.queue {
		if len(c.active) >= c.cfg.MaxConcurrentTasks {
			remaining = append(remaining, t)
			continue
		}
		if !c.depsSatisfiedLocked(t) {
			remaining = append(remaining, t)
			continue
		}

		agents := c.selectAgentsLocked(t)
		if len(agents) == 0 {
			remaining = append(remaining, t)
			continue
		}

		c.assignLocked(t, agents)
		assigned = append(assigned, t.Clone())
	}
	c.queue = remaining
	queued, active := len(c.queue), len(c.active)
	c.mu.Unlock()

	for i := range assigned {
		t := &assigned[i]
		c.emit(ctx, event.TypeTaskAssigned, t.ID, "", t)
		if c.metrics != nil {
			c.metrics.TasksAssigned.Add(ctx, 1)
		}
		slog.Info("task assigned", "task_id", t.ID, "priority", t.Priority, "agents", t.AssignedAgents)
	}
	if len(assigned) > 0 && c.hub != nil {
		c.hub.BroadcastEvent(ctx, broadcast.EventQueueDepth, broadcast.QueueDepthEvent{
			Queued:   queued,
			Active:   active,
			Assigned: len(assigned),
		})
	}
	if c.metrics != nil {
		c.metrics.SchedulerPassDuration.Record(ctx, c.now().Sub(start).Seconds())
	}
	return len(assigned)
}

// sortQueueLocked orders the queue by priority weight ascending, then by
// soonest deadline; tasks without a deadline sort last within their weight.
// Must be called with c.mu held.
func (c *Coordinator) sortQueueLocked() {
	sort.SliceStable(c.queue, func(i, j int) bool {
		a, b := c.queue[i], c.queue[j]
		if wa, wb := a.Priority.Weight(), b.Priority.Weight(); wa != wb {
			return wa < wb
		}
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return false
		case a.Deadline == nil:
			return false
		case b.Deadline == nil:
			return true
		}
		return a.Deadline.Before(*b.Deadline)
	})
}

// selectAgentsLocked scores candidate agents for t and returns the top N,
// where N = 1, +1 for critical/emergency priority, +1 for >3 required
// capabilities, capped at task.MaxAssignedAgents. Must be called with c.mu held.
func (c *Coordinator) selectAgentsLocked(t *task.Task) []*agent.Profile {
	type scored struct {
		p     *agent.Profile
		score float64
	}

	var candidates []scored
	for _, p := range c.agents {
		if !p.Available || p.Load >= c.cfg.LoadCutoff {
			continue
		}
		if !p.HasCapabilities(t.Required) {
			continue
		}
		candidates = append(candidates, scored{p: p, score: c.scoreLocked(p, t)})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].p.ID < candidates[j].p.ID
	})

	n := 1
	if t.Priority.Urgent() {
		n++
	}
	if len(t.Required) > 3 {
		n++
	}
	if n > task.MaxAssignedAgents {
		n = task.MaxAssignedAgents
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	out := make([]*agent.Profile, n)
	for i := range n {
		out[i] = candidates[i].p
	}
	return out
}

// scoreLocked computes the assignment score for agent p on task t.
// Must be called with c.mu held.
func (c *Coordinator) scoreLocked(p *agent.Profile, t *task.Task) float64 {
	return weightProficiency*p.AvgProficiency(t.Required) +
		weightHeadroom*(1-p.Load) +
		weightSuccess*p.AvgSuccessRate(t.Required) +
		weightRecency*recencyDecay(c.now().Sub(p.LastActive), c.cfg.RecencyWindow)
}

// recencyDecay maps time since last activity to [0,1]: 1 for just-active
// agents, linearly down to 0 at the window edge.
func recencyDecay(elapsed, window time.Duration) float64 {
	if window <= 0 || elapsed <= 0 {
		return 1
	}
	if elapsed >= window {
		return 0
	}
	return 1 - float64(elapsed)/float64(window)
}

// assignLocked moves t from the queue to the active set and charges each
// selected agent's load. Must be called with c.mu held.
func (c *Coordinator) assignLocked(t *task.Task, agents []*agent.Profile) {
	now := c.now()
	for _, p := range agents {
		t.AssignedAgents = append(t.AssignedAgents, p.ID)
		p.Load += t.LoadDelta()
		p.ClampLoad()
		p.LastActive = now
	}
	t.Status = task.StatusAssigned
	t.UpdatedAt = now
	c.active[t.ID] = t
}
