package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hivemind-sec/hivemind/internal/adapter/ws"
	"github.com/hivemind-sec/hivemind/internal/domain/agent"
	"github.com/hivemind-sec/hivemind/internal/domain/event"
	"github.com/hivemind-sec/hivemind/internal/domain/task"
	"github.com/hivemind-sec/hivemind/internal/port/eventstore"
	"github.com/hivemind-sec/hivemind/internal/service"
)

// maxBodySize limits request bodies to 1 MB.
const maxBodySize = 1 << 20

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	coord   *service.Coordinator
	journal eventstore.Store // nil when the journal is disabled
	hub     *ws.Hub
}

// NewHandlers creates the handler set. journal may be nil.
func NewHandlers(coord *service.Coordinator, journal eventstore.Store, hub *ws.Hub) *Handlers {
	return &Handlers{coord: coord, journal: journal, hub: hub}
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

// RegisterAgent handles POST /agents.
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	p, ok := readJSON[agent.Profile](w, r, maxBodySize)
	if !ok {
		return
	}

	if err := h.coord.RegisterAgent(r.Context(), &p); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListAgents handles GET /agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.ListAgents())
}

// GetAgent handles GET /agents/{id}.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	p, err := h.coord.GetAgent(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// SubmitTask handles POST /tasks.
func (h *Handlers) SubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.SubmitRequest](w, r, maxBodySize)
	if !ok {
		return
	}

	t, err := h.coord.SubmitTask(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTasks handles GET /tasks.
func (h *Handlers) ListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.ListTasks())
}

// GetTask handles GET /tasks/{id}.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.coord.GetTask(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Schedule handles POST /schedule: runs one scheduler pass immediately
// instead of waiting for the next tick.
func (h *Handlers) Schedule(w http.ResponseWriter, r *http.Request) {
	assigned := h.coord.SchedulePass(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"assigned": assigned})
}

// ---------------------------------------------------------------------------
// Conflicts
// ---------------------------------------------------------------------------

// ListConflicts handles GET /conflicts.
func (h *Handlers) ListConflicts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   h.coord.ActiveConflicts(),
		"resolved": h.coord.ResolvedConflicts(),
	})
}

// DetectConflicts handles POST /conflicts/detect.
func (h *Handlers) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	fresh := h.coord.DetectConflicts(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"detected": fresh})
}

// ResolveConflict handles POST /conflicts/{id}/resolve.
func (h *Handlers) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.coord.ResolveConflict(r.Context(), id); err != nil {
		writeDomainError(w, err, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conflict_id": id, "status": "resolved"})
}

// ---------------------------------------------------------------------------
// Summary and context log
// ---------------------------------------------------------------------------

// GetSummary handles GET /summary.
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Summary(r.Context()))
}

// GetContextLog handles GET /context-log. The optional "type" query parameter
// restricts the result to a single event type.
func (h *Handlers) GetContextLog(w http.ResponseWriter, r *http.Request) {
	log := h.coord.ContextLog()
	if t := r.URL.Query().Get("type"); t != "" {
		writeJSON(w, http.StatusOK, log.ByType(event.Type(t)))
		return
	}
	writeJSON(w, http.StatusOK, log.Snapshot())
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

// ListTaskEvents handles GET /tasks/{id}/events from the journal.
func (h *Handlers) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotImplemented, "journal is disabled")
		return
	}

	events, err := h.journal.LoadByTask(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ListEvents handles GET /events with cursor pagination and filters.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotImplemented, "journal is disabled")
		return
	}

	q := r.URL.Query()
	filter := eventstore.Filter{TaskID: q.Get("task_id")}
	if types := q.Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter.Types = append(filter.Types, event.Type(strings.TrimSpace(t)))
		}
	}
	if after, err := time.Parse(time.RFC3339, q.Get("after")); err == nil {
		filter.After = &after
	}
	if before, err := time.Parse(time.RFC3339, q.Get("before")); err == nil {
		filter.Before = &before
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	page, err := h.journal.Load(r.Context(), filter, q.Get("cursor"), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// EventCounts handles GET /events/counts.
func (h *Handlers) EventCounts(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotImplemented, "journal is disabled")
		return
	}

	counts, err := h.journal.Counts(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.hub.ConnectionCount(),
	})
}
