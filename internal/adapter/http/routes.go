package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agents
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)

		// Tasks
		r.Post("/tasks", h.SubmitTask)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/tasks/{id}/events", h.ListTaskEvents)
		r.Post("/schedule", h.Schedule)

		// Conflicts
		r.Get("/conflicts", h.ListConflicts)
		r.Post("/conflicts/detect", h.DetectConflicts)
		r.Post("/conflicts/{id}/resolve", h.ResolveConflict)

		// Summary and shared context
		r.Get("/summary", h.GetSummary)
		r.Get("/context-log", h.GetContextLog)

		// Journal
		r.Get("/events", h.ListEvents)
		r.Get("/events/counts", h.EventCounts)
	})
}
