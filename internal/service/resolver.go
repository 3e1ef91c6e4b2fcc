package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivemind-sec/hivemind/internal/domain"
	"github.com/hivemind-sec/hivemind/internal/domain/agent"
	"github.com/hivemind-sec/hivemind/internal/domain/conflict"
	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
)

// ResolveConflict attempts to resolve the active conflict with the given id
// using the default strategy for its type. On success the conflict moves to
// the resolved set; on failure it stays active for the next resolution pass.
func (c *Coordinator) ResolveConflict(ctx context.Context, conflictID string) error {
	c.mu.Lock()

	var cf *conflict.Conflict
	for _, candidate := range c.conflicts {
		if candidate.ID == conflictID {
			cf = candidate
			break
		}
	}
	if cf == nil {
		c.mu.Unlock()
		return fmt.Errorf("conflict %s: %w", conflictID, domain.ErrNotFound)
	}

	strategy := conflict.StrategyFor(cf.Type)
	var err error
	switch strategy {
	case conflict.StrategyReassign:
		err = c.resolveReassignLocked(cf)
	case conflict.StrategyReprioritize:
		err = c.resolveReprioritizeLocked(cf)
	case conflict.StrategyExtendDeadline:
		err = c.resolveExtendDeadlineLocked(cf)
	case conflict.StrategySplit:
		err = fmt.Errorf("split_task: %w", domain.ErrUnsupported)
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("resolve conflict %s via %s: %w", conflictID, strategy, err)
	}

	now := c.now()
	cf.Resolved = true
	cf.Strategy = strategy
	cf.ResolvedAt = &now
	delete(c.conflicts, cf.Signature)
	c.resolved = append(c.resolved, cf)
	resolved := *cf
	c.mu.Unlock()

	c.emit(ctx, event.TypeConflictResolved, "", "", &resolved)
	if c.metrics != nil {
		c.metrics.ConflictsResolved.Add(ctx, 1)
	}
	slog.Info("conflict resolved", "conflict_id", conflictID, "type", resolved.Type, "strategy", strategy)
	return nil
}

// ResolvePass attempts to resolve every active conflict once. Failures are
// logged and the conflict stays active; there is no backoff between passes.
func (c *Coordinator) ResolvePass(ctx context.Context) {
	for _, cf := range c.ActiveConflicts() {
		if err := c.ResolveConflict(ctx, cf.ID); err != nil {
			slog.Warn("conflict resolution failed", "conflict_id", cf.ID, "type", cf.Type, "error", err)
		}
	}
}

// resolveReassignLocked moves conflicting tasks off the contended agents onto
// alternative qualified agents outside the conflict, releasing the load the
// original assignment charged and charging the replacement the same delta.
// All but the first conflicting task are moved; the first keeps its agents.
// The full swap plan is built before anything mutates, so a task without an
// alternative fails the resolution with no state change. Must be called with
// c.mu held.
func (c *Coordinator) resolveReassignLocked(cf *conflict.Conflict) error {
	contended := make(map[string]struct{}, len(cf.Agents))
	for _, id := range cf.Agents {
		contended[id] = struct{}{}
	}

	type swap struct {
		t    *task.Task
		slot int
		from string
		to   *agent.Profile
	}

	var plan []swap
	planned := make(map[string]float64) // load the plan would add per agent
	for _, taskID := range cf.TaskIDs[1:] {
		t, ok := c.active[taskID]
		if !ok {
			continue // completed since detection; nothing to move
		}
		taken := make(map[string]struct{}, len(t.AssignedAgents))
		for _, id := range t.AssignedAgents {
			taken[id] = struct{}{}
		}
		for i, agentID := range t.AssignedAgents {
			if _, isContended := contended[agentID]; !isContended {
				continue
			}
			alt := c.findAlternativeLocked(t, contended, taken, planned)
			if alt == nil {
				return fmt.Errorf("no alternative agent for task %s", taskID)
			}
			planned[alt.ID] += t.LoadDelta()
			taken[alt.ID] = struct{}{}
			plan = append(plan, swap{t: t, slot: i, from: agentID, to: alt})
		}
	}

	now := c.now()
	for _, s := range plan {
		if old, exists := c.agents[s.from]; exists {
			old.Load -= s.t.LoadDelta()
			old.ClampLoad()
		}
		s.to.Load += s.t.LoadDelta()
		s.to.ClampLoad()
		s.to.LastActive = now

		s.t.AssignedAgents[s.slot] = s.to.ID
		s.t.UpdatedAt = now
	}
	return nil
}

// findAlternativeLocked returns the best-scoring qualified agent outside the
// contended and taken sets, with headroom for both its current load and the
// load already planned against it. Must be called with c.mu held.
func (c *Coordinator) findAlternativeLocked(t *task.Task, contended, taken map[string]struct{}, planned map[string]float64) *agent.Profile {
	var best *agent.Profile
	var bestScore float64
	for _, p := range c.agents {
		if _, skip := contended[p.ID]; skip {
			continue
		}
		if _, skip := taken[p.ID]; skip {
			continue
		}
		if !p.Available || p.Load+planned[p.ID] >= c.cfg.LoadCutoff || !p.HasCapabilities(t.Required) {
			continue
		}
		if score := c.scoreLocked(p, t); best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}

// resolveReprioritizeLocked records the reprioritization decision. The queue
// order already follows priority weights, so no state change is needed; the
// action is journaled through the resolution event.
func (c *Coordinator) resolveReprioritizeLocked(_ *conflict.Conflict) error {
	return nil
}

// resolveExtendDeadlineLocked pushes each conflicting task's deadline out by
// exactly its estimated duration. Must be called with c.mu held.
func (c *Coordinator) resolveExtendDeadlineLocked(cf *conflict.Conflict) error {
	extended := 0
	for _, taskID := range cf.TaskIDs {
		t, ok := c.active[taskID]
		if !ok || t.Deadline == nil {
			continue
		}
		d := t.Deadline.Add(time.Duration(t.EstimatedDuration) * time.Minute)
		t.Deadline = &d
		t.UpdatedAt = c.now()
		extended++
	}
	if extended == 0 {
		return fmt.Errorf("no deadline to extend")
	}
	return nil
}
