package service

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
	"github.com/hivemind-sec/hivemind/internal/port/broadcast"
)

// ProgressSource reports how much an in-progress task advanced since the
// last tick. Injected so tests can drive task progress deterministically;
// production uses JitterProgress until agents report real telemetry.
type ProgressSource interface {
	Increment(t *task.Task) float64
}

// JitterProgress advances tasks by a random step per tick.
type JitterProgress struct {
	Min, Max float64
}

// NewJitterProgress returns the default production progress source.
func NewJitterProgress() *JitterProgress {
	return &JitterProgress{Min: 0.05, Max: 0.25}
}

// Increment returns a uniform random step in [Min, Max).
func (j *JitterProgress) Increment(_ *task.Task) float64 {
	return j.Min + rand.Float64()*(j.Max-j.Min)
}

// ProgressPass advances every active task one tick: newly assigned tasks
// transition to in_progress, running tasks accumulate progress, and tasks
// reaching full progress complete. Completion releases each assigned
// agent's load by the same delta assignment charged.
func (c *Coordinator) ProgressPass(ctx context.Context) {
	c.mu.Lock()

	var done []*task.Task
	var started, completed []task.Task // snapshots, safe to marshal outside the lock
	for _, t := range c.active {
		switch t.Status {
		case task.StatusAssigned:
			t.Status = task.StatusInProgress
			t.UpdatedAt = c.now()
			started = append(started, t.Clone())
		case task.StatusInProgress:
			t.Progress += c.progress.Increment(t)
			t.UpdatedAt = c.now()
			if t.Progress >= 1.0 {
				t.Progress = 1.0
				done = append(done, t)
			}
		}
	}

	var statuses []broadcast.AgentStatusEvent
	for _, t := range done {
		c.completeLocked(t)
		completed = append(completed, t.Clone())
		for _, agentID := range t.AssignedAgents {
			if p, ok := c.agents[agentID]; ok {
				statuses = append(statuses, broadcast.AgentStatusEvent{
					AgentID:   p.ID,
					Available: p.Available,
					Load:      p.Load,
				})
			}
		}
	}
	c.mu.Unlock()

	for i := range started {
		c.emit(ctx, event.TypeTaskStarted, started[i].ID, "", &started[i])
	}
	for i := range completed {
		t := &completed[i]
		c.emit(ctx, event.TypeTaskCompleted, t.ID, "", t)
		if c.metrics != nil {
			c.metrics.TasksCompleted.Add(ctx, 1)
		}
		slog.Info("task completed", "task_id", t.ID, "agents", len(t.AssignedAgents))
	}
	for _, st := range statuses {
		c.broadcastAgentStatus(ctx, st)
	}
}

// completeLocked archives a finished task and releases its agents.
// Must be called with c.mu held.
func (c *Coordinator) completeLocked(t *task.Task) {
	t.Status = task.StatusCompleted
	delete(c.active, t.ID)
	c.completed[t.ID] = t

	for _, agentID := range t.AssignedAgents {
		p, ok := c.agents[agentID]
		if !ok {
			continue
		}
		p.Load -= t.LoadDelta()
		p.ClampLoad()
		p.LastActive = c.now()
	}
}
