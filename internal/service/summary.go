package service

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Summary is the coordination system snapshot: entity counts, average agent
// load, and the completion-ratio efficiency. Computed from state, so two
// calls with no intervening mutation yield identical values.
type Summary struct {
	RegisteredAgents  int     `json:"registered_agents"`
	AvailableAgents   int     `json:"available_agents"`
	QueuedTasks       int     `json:"queued_tasks"`
	ActiveTasks       int     `json:"active_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	ActiveConflicts   int     `json:"active_conflicts"`
	ResolvedConflicts int     `json:"resolved_conflicts"`
	AverageLoad       float64 `json:"average_load"`
	Efficiency        float64 `json:"efficiency"`
}

// Summary returns the current coordination summary. Results are served from
// the L1 cache when present; every state mutation invalidates the cached
// entry, so the cache never masks a change.
func (c *Coordinator) Summary(ctx context.Context) Summary {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, summaryCacheKey); err == nil && ok {
			var s Summary
			if err := json.Unmarshal(data, &s); err == nil {
				return s
			}
		}
	}

	s := c.computeSummary()

	if c.cache != nil {
		if data, err := json.Marshal(s); err == nil {
			if err := c.cache.Set(ctx, summaryCacheKey, data, c.summaryTTL); err != nil {
				slog.Debug("summary cache set failed", "error", err)
			}
		}
	}
	return s
}

func (c *Coordinator) computeSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		RegisteredAgents:  len(c.agents),
		QueuedTasks:       len(c.queue),
		ActiveTasks:       len(c.active),
		CompletedTasks:    len(c.completed),
		ActiveConflicts:   len(c.conflicts),
		ResolvedConflicts: len(c.resolved),
	}

	var loadSum float64
	for _, p := range c.agents {
		if p.Available {
			s.AvailableAgents++
		}
		loadSum += p.Load
	}
	if len(c.agents) > 0 {
		s.AverageLoad = loadSum / float64(len(c.agents))
	}

	if total := s.QueuedTasks + s.ActiveTasks + s.CompletedTasks; total > 0 {
		s.Efficiency = float64(s.CompletedTasks) / float64(total)
	}
	return s
}
