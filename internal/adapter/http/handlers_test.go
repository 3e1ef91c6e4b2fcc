package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	hmhttp "github.com/hivemind-sec/hivemind/internal/adapter/http"
	"github.com/hivemind-sec/hivemind/internal/adapter/ws"
	"github.com/hivemind-sec/hivemind/internal/config"
	"github.com/hivemind-sec/hivemind/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Defaults().Coordinator
	hub := ws.NewHub()
	coord := service.NewCoordinator(&cfg, hub, nil, nil)

	r := chi.NewRouter()
	handlers := hmhttp.NewHandlers(coord, nil, hub)
	r.Get("/healthz", handlers.Health)
	hmhttp.MountRoutes(r, handlers)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

const agentBody = `{
	"id": "agent-1",
	"role": "analyst",
	"available": true,
	"capabilities": [
		{"id": "c1", "name": "scan", "proficiency": 0.8, "success_rate": 0.9}
	]
}`

func TestRegisterAgentEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/agents", agentBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var got map[string]any
	decodeJSON(t, resp, &got)
	if got["id"] != "agent-1" {
		t.Errorf("expected agent-1 echoed back, got %v", got["id"])
	}

	// Duplicate registration is a validation error.
	resp = postJSON(t, srv.URL+"/api/v1/agents", agentBody)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d", resp.StatusCode)
	}
}

func TestRegisterAgentEndpointRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/agents", `{"id": `)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetAgentEndpointNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/agents/ghost")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSubmitScheduleSummaryFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/agents", agentBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	taskBody := `{
		"name": "perimeter-scan",
		"required_capabilities": ["scan"],
		"priority": "high",
		"estimated_duration": 30
	}`
	resp = postJSON(t, srv.URL+"/api/v1/tasks", taskBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", resp.StatusCode)
	}
	var submitted map[string]any
	decodeJSON(t, resp, &submitted)
	taskID, _ := submitted["id"].(string)
	if taskID == "" {
		t.Fatal("expected task id in response")
	}
	if submitted["status"] != "queued" {
		t.Errorf("expected queued status, got %v", submitted["status"])
	}

	resp = postJSON(t, srv.URL+"/api/v1/schedule", "")
	var scheduled map[string]int
	decodeJSON(t, resp, &scheduled)
	if scheduled["assigned"] != 1 {
		t.Fatalf("expected 1 assignment, got %d", scheduled["assigned"])
	}

	resp, err := http.Get(srv.URL + "/api/v1/tasks/" + taskID)
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	var gotTask map[string]any
	decodeJSON(t, resp, &gotTask)
	if gotTask["status"] != "assigned" {
		t.Errorf("expected assigned status, got %v", gotTask["status"])
	}

	resp, err = http.Get(srv.URL + "/api/v1/summary")
	if err != nil {
		t.Fatalf("GET summary: %v", err)
	}
	var summary map[string]any
	decodeJSON(t, resp, &summary)
	if summary["registered_agents"] != float64(1) {
		t.Errorf("expected 1 registered agent, got %v", summary["registered_agents"])
	}
	if summary["active_tasks"] != float64(1) {
		t.Errorf("expected 1 active task, got %v", summary["active_tasks"])
	}
}

func TestSubmitTaskEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	// No agent covers "scan" yet.
	resp := postJSON(t, srv.URL+"/api/v1/tasks", `{
		"name": "orphan",
		"required_capabilities": ["scan"],
		"priority": "medium",
		"estimated_duration": 30
	}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for uncovered capability, got %d", resp.StatusCode)
	}
}

func TestConflictEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/agents", agentBody)
	resp.Body.Close()

	for _, name := range []string{"breach-a", "breach-b"} {
		body := fmt.Sprintf(`{
			"name": %q,
			"required_capabilities": ["scan"],
			"priority": "critical",
			"estimated_duration": 20
		}`, name)
		resp = postJSON(t, srv.URL+"/api/v1/tasks", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submit %s: expected 201, got %d", name, resp.StatusCode)
		}
	}

	resp = postJSON(t, srv.URL+"/api/v1/schedule", "")
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/conflicts/detect", "")
	var detected struct {
		Detected []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"detected"`
	}
	decodeJSON(t, resp, &detected)
	if len(detected.Detected) != 1 {
		t.Fatalf("expected 1 detected conflict, got %d", len(detected.Detected))
	}
	if detected.Detected[0].Type != "resource" {
		t.Errorf("expected resource conflict, got %s", detected.Detected[0].Type)
	}

	resp, err := http.Get(srv.URL + "/api/v1/conflicts")
	if err != nil {
		t.Fatalf("GET conflicts: %v", err)
	}
	var listed struct {
		Active   []json.RawMessage `json:"active"`
		Resolved []json.RawMessage `json:"resolved"`
	}
	decodeJSON(t, resp, &listed)
	if len(listed.Active) != 1 || len(listed.Resolved) != 0 {
		t.Fatalf("expected 1 active / 0 resolved, got %d/%d", len(listed.Active), len(listed.Resolved))
	}

	resp = postJSON(t, srv.URL+"/api/v1/conflicts/missing/resolve", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown conflict, got %d", resp.StatusCode)
	}
}

func TestJournalEndpointsDisabled(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/events", "/api/v1/events/counts", "/api/v1/tasks/any/events"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("%s: expected 501 without journal, got %d", path, resp.StatusCode)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var got map[string]any
	decodeJSON(t, resp, &got)
	if got["status"] != "ok" {
		t.Errorf("expected ok status, got %v", got["status"])
	}
	if got["connections"] != float64(0) {
		t.Errorf("expected 0 connections, got %v", got["connections"])
	}
}

func TestContextLogEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/agents", agentBody)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/context-log?type=agent.registered")
	if err != nil {
		t.Fatalf("GET context-log: %v", err)
	}
	var events []json.RawMessage
	decodeJSON(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 registration event, got %d", len(events))
	}
}
