// Package service implements the Hivemind coordination core: agent registry,
// priority task scheduler, conflict detection/resolution, and the shared
// context log. All state lives behind the Coordinator's mutex; background
// loops run under a shared cancellation context and drain on Stop.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hivemind-sec/hivemind/internal/config"
	"github.com/hivemind-sec/hivemind/internal/domain"
	"github.com/hivemind-sec/hivemind/internal/domain/agent"
	"github.com/hivemind-sec/hivemind/internal/domain/conflict"
	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
	"github.com/hivemind-sec/hivemind/internal/logger"
	"github.com/hivemind-sec/hivemind/internal/port/broadcast"
	"github.com/hivemind-sec/hivemind/internal/port/cache"
	"github.com/hivemind-sec/hivemind/internal/port/eventstore"
	"github.com/hivemind-sec/hivemind/internal/port/messagequeue"
	"github.com/hivemind-sec/hivemind/internal/resilience"
	"github.com/hivemind-sec/hivemind/internal/telemetry"
)

// summaryCacheKey is the cache key for the coordination summary.
const summaryCacheKey = "coordination:summary"

// maxJournalWriters caps concurrent journal appends.
const maxJournalWriters = 8

// Coordinator owns all coordination state and exposes the public surface:
// RegisterAgent, SubmitTask, SchedulePass, ProgressPass, DetectConflicts,
// ResolveConflict, and Summary.
type Coordinator struct {
	mu        sync.Mutex
	agents    map[string]*agent.Profile
	queue     []*task.Task
	active    map[string]*task.Task
	completed map[string]*task.Task
	conflicts map[string]*conflict.Conflict // active, keyed by signature
	resolved  []*conflict.Conflict

	contextLog *ContextLog

	cfg        *config.Coordinator
	hub        broadcast.Broadcaster
	queuePub   messagequeue.Queue
	journal    eventstore.Store
	cache      cache.Cache
	summaryTTL time.Duration
	metrics    *telemetry.Metrics
	breaker    *resilience.Breaker
	writers    *semaphore.Weighted
	progress   ProgressSource
	now        func() time.Time

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewCoordinator creates a Coordinator. hub, queue, and journal may be nil;
// the corresponding fan-out is skipped.
func NewCoordinator(
	cfg *config.Coordinator,
	hub broadcast.Broadcaster,
	queue messagequeue.Queue,
	journal eventstore.Store,
) *Coordinator {
	return &Coordinator{
		agents:     make(map[string]*agent.Profile),
		active:     make(map[string]*task.Task),
		completed:  make(map[string]*task.Task),
		conflicts:  make(map[string]*conflict.Conflict),
		contextLog: NewContextLog(cfg.ContextLogBound),
		cfg:        cfg,
		hub:        hub,
		queuePub:   queue,
		journal:    journal,
		writers:    semaphore.NewWeighted(maxJournalWriters),
		progress:   NewJitterProgress(),
		now:        time.Now,
	}
}

// SetCache sets the summary cache and the TTL for cached summaries.
func (c *Coordinator) SetCache(cc cache.Cache, ttl time.Duration) {
	c.cache = cc
	c.summaryTTL = ttl
}

// SetMetrics sets the telemetry instruments.
func (c *Coordinator) SetMetrics(m *telemetry.Metrics) { c.metrics = m }

// SetBreaker sets the circuit breaker protecting journal and queue publishes.
func (c *Coordinator) SetBreaker(b *resilience.Breaker) { c.breaker = b }

// SetProgressSource overrides the default progress source.
func (c *Coordinator) SetProgressSource(s ProgressSource) { c.progress = s }

// SetClock overrides the time source (tests).
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// Start launches the scheduler, progress, and conflict loops under a shared
// cancellation context.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	c.group = g

	g.Go(func() error { return c.runLoop(ctx, c.cfg.ScheduleInterval, c.scheduleTick) })
	g.Go(func() error { return c.runLoop(ctx, c.cfg.ProgressInterval, c.ProgressPass) })
	g.Go(func() error { return c.runLoop(ctx, c.cfg.ConflictInterval, c.conflictTick) })

	slog.Info("coordinator started",
		"schedule_interval", c.cfg.ScheduleInterval,
		"progress_interval", c.cfg.ProgressInterval,
		"conflict_interval", c.cfg.ConflictInterval,
	)
}

// Stop cancels the background loops and waits for in-flight passes to finish.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	_ = c.group.Wait()
	slog.Info("coordinator stopped")
}

// runLoop invokes tick on the given interval until the context is cancelled.
func (c *Coordinator) runLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (c *Coordinator) scheduleTick(ctx context.Context) {
	c.SchedulePass(ctx)
}

func (c *Coordinator) conflictTick(ctx context.Context) {
	c.DetectConflicts(ctx)
	c.ResolvePass(ctx)
}

// RegisterAgent adds an agent profile to the registry.
func (c *Coordinator) RegisterAgent(ctx context.Context, p *agent.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if _, exists := c.agents[p.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: agent %s already registered", domain.ErrValidation, p.ID)
	}
	if p.LastActive.IsZero() {
		p.LastActive = c.now()
	}
	// Store a detached copy so the caller's profile never aliases registry
	// state mutated under the lock.
	stored := p.Clone()
	c.agents[p.ID] = &stored
	c.mu.Unlock()

	c.emit(ctx, event.TypeAgentRegistered, "", p.ID, p)
	c.broadcastAgentStatus(ctx, broadcast.AgentStatusEvent{
		AgentID:   p.ID,
		Available: p.Available,
		Load:      p.Load,
	})
	slog.Info("agent registered", "agent_id", p.ID, "role", p.Role, "capabilities", len(p.Capabilities))
	return nil
}

// broadcastAgentStatus pushes an agent status update to WebSocket clients.
func (c *Coordinator) broadcastAgentStatus(ctx context.Context, st broadcast.AgentStatusEvent) {
	if c.hub != nil {
		c.hub.BroadcastEvent(ctx, broadcast.EventAgentStatus, st)
	}
}

// GetAgent returns a copy of the registered agent profile.
func (c *Coordinator) GetAgent(id string) (*agent.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	cp := p.Clone()
	return &cp, nil
}

// ListAgents returns copies of all registered agent profiles.
func (c *Coordinator) ListAgents() []agent.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]agent.Profile, 0, len(c.agents))
	for _, p := range c.agents {
		out = append(out, p.Clone())
	}
	return out
}

// GetTask looks a task up across the queue, active set, and history.
func (c *Coordinator) GetTask(id string) (*task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.active[id]; ok {
		cp := t.Clone()
		return &cp, nil
	}
	if t, ok := c.completed[id]; ok {
		cp := t.Clone()
		return &cp, nil
	}
	for _, t := range c.queue {
		if t.ID == id {
			cp := t.Clone()
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

// ListTasks returns copies of all known tasks, queued first, then active,
// then completed.
func (c *Coordinator) ListTasks() []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]task.Task, 0, len(c.queue)+len(c.active)+len(c.completed))
	for _, t := range c.queue {
		out = append(out, t.Clone())
	}
	for _, t := range c.active {
		out = append(out, t.Clone())
	}
	for _, t := range c.completed {
		out = append(out, t.Clone())
	}
	return out
}

// ContextLog returns the shared context log.
func (c *Coordinator) ContextLog() *ContextLog {
	return c.contextLog
}

// emit records a coordination event in the context log and fans it out to
// the WebSocket hub, the message queue, and the journal. Fan-out failures
// degrade to log lines; coordination state is already committed.
//
// The payload must be a detached copy: emit runs outside the mutex while
// the background loops keep mutating registry entities under it.
func (c *Coordinator) emit(ctx context.Context, evType event.Type, taskID, agentID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "type", evType, "error", err)
		data = nil
	}

	ev := event.Event{
		ID:        uuid.NewString(),
		Type:      evType,
		TaskID:    taskID,
		AgentID:   agentID,
		Payload:   data,
		RequestID: logger.RequestID(ctx),
		CreatedAt: c.now(),
	}
	c.contextLog.Append(ev)

	if c.cache != nil {
		_ = c.cache.Delete(ctx, summaryCacheKey)
	}

	if c.hub != nil {
		c.hub.BroadcastEvent(ctx, string(evType), ev)
	}

	if c.queuePub != nil {
		if subject := subjectFor(evType); subject != "" {
			if msg, err := json.Marshal(queuePayload(evType, payload)); err == nil {
				c.publish(ctx, subject, msg)
			}
		}
	}

	if c.journal != nil {
		c.journalAppend(ctx, ev)
	}
}

// publish sends an event payload to the message queue through the breaker.
func (c *Coordinator) publish(ctx context.Context, subject string, data []byte) {
	do := func() error { return c.queuePub.Publish(ctx, subject, data) }

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(do)
	} else {
		err = do()
	}
	if err != nil {
		slog.Warn("queue publish failed", "subject", subject, "error", err)
	}
}

// journalAppend writes the event to the journal, bounded by the writer
// semaphore so a slow journal cannot pile up unbounded goroutines.
func (c *Coordinator) journalAppend(ctx context.Context, ev event.Event) {
	if err := c.writers.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer c.writers.Release(1)

		do := func() error { return c.journal.Append(context.WithoutCancel(ctx), &ev) }

		var err error
		if c.breaker != nil {
			err = c.breaker.Execute(do)
		} else {
			err = do()
		}
		if err != nil {
			slog.Warn("journal append failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		}
	}()
}

// queuePayload shapes the message published for an event type. Queue
// consumers get a stable minimal schema instead of the full entity.
func queuePayload(evType event.Type, payload any) any {
	switch p := payload.(type) {
	case *task.Task:
		switch evType {
		case event.TypeTaskAssigned:
			return messagequeue.TaskAssignedPayload{
				TaskID:   p.ID,
				Agents:   p.AssignedAgents,
				Priority: string(p.Priority),
			}
		case event.TypeTaskCompleted:
			return messagequeue.TaskCompletedPayload{
				TaskID: p.ID,
				Agents: p.AssignedAgents,
			}
		}
	case *conflict.Conflict:
		return messagequeue.ConflictPayload{
			ConflictID: p.ID,
			Type:       string(p.Type),
			TaskIDs:    p.TaskIDs,
			Agents:     p.Agents,
			Strategy:   string(p.Strategy),
		}
	}
	return payload
}

// subjectFor maps a coordination event type to its queue subject.
// Events without a subject are context-log only.
func subjectFor(t event.Type) string {
	switch t {
	case event.TypeAgentRegistered:
		return messagequeue.SubjectAgentRegistered
	case event.TypeTaskSubmitted:
		return messagequeue.SubjectTaskSubmitted
	case event.TypeTaskAssigned:
		return messagequeue.SubjectTaskAssigned
	case event.TypeTaskCompleted:
		return messagequeue.SubjectTaskCompleted
	case event.TypeConflictDetected:
		return messagequeue.SubjectConflictDetected
	case event.TypeConflictResolved:
		return messagequeue.SubjectConflictResolved
	}
	return ""
}
