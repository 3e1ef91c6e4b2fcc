//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// waitFor polls cond until it returns true or the deadline passes. Journal
// appends are asynchronous, so tests must not assert immediately.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestJournalRecordsCoordinationFlow(t *testing.T) {
	resp := postJSON(t, "/api/v1/agents", `{
		"id": "journal-agent",
		"role": "analyst",
		"available": true,
		"capabilities": [
			{"id": "c1", "name": "forensics", "proficiency": 0.9, "success_rate": 0.95}
		]
	}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register agent: expected 201, got %d", resp.StatusCode)
	}

	resp = postJSON(t, "/api/v1/tasks", `{
		"name": "disk-image-analysis",
		"required_capabilities": ["forensics"],
		"priority": "high",
		"estimated_duration": 45
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit task: expected 201, got %d", resp.StatusCode)
	}
	var submitted struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	resp.Body.Close()

	resp = postJSON(t, "/api/v1/schedule", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("schedule: expected 200, got %d", resp.StatusCode)
	}

	// Submission and assignment events both carry the task id.
	waitFor(t, 5*time.Second, func() bool {
		resp, err := http.Get(testServer.URL + "/api/v1/tasks/" + submitted.ID + "/events")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var events []struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			return false
		}
		return len(events) >= 2
	})

	resp, err := http.Get(testServer.URL + "/api/v1/events/counts")
	if err != nil {
		t.Fatalf("GET counts: %v", err)
	}
	defer resp.Body.Close()
	var counts map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts["agent.registered"] < 1 {
		t.Errorf("expected registration journaled, got counts %v", counts)
	}
	if counts["task.submitted"] < 1 || counts["task.assigned"] < 1 {
		t.Errorf("expected task lifecycle journaled, got counts %v", counts)
	}
}

func TestJournalCursorPagination(t *testing.T) {
	// Duplicate registration is fine when the flow test already ran.
	resp := postJSON(t, "/api/v1/agents", `{
		"id": "journal-agent",
		"role": "analyst",
		"available": true,
		"capabilities": [
			{"id": "c1", "name": "forensics", "proficiency": 0.9, "success_rate": 0.95}
		]
	}`)
	resp.Body.Close()

	// Submit enough tasks to span multiple pages.
	for i := 0; i < 5; i++ {
		resp := postJSON(t, "/api/v1/tasks", `{
			"name": "page-filler",
			"required_capabilities": ["forensics"],
			"priority": "low",
			"estimated_duration": 10
		}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submit %d: expected 201, got %d", i, resp.StatusCode)
		}
	}

	waitFor(t, 5*time.Second, func() bool {
		resp, err := http.Get(testServer.URL + "/api/v1/events?types=task.submitted&limit=2")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var page struct {
			Events  []json.RawMessage `json:"events"`
			HasMore bool              `json:"has_more"`
			Total   int               `json:"total"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return false
		}
		return page.Total >= 5 && len(page.Events) == 2 && page.HasMore
	})

	// Walk the cursor to the end.
	cursor := ""
	seen := 0
	for {
		url := testServer.URL + "/api/v1/events?types=task.submitted&limit=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET events: %v", err)
		}
		var page struct {
			Events []struct {
				ID string `json:"id"`
			} `json:"events"`
			Cursor  string `json:"cursor"`
			HasMore bool   `json:"has_more"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			resp.Body.Close()
			t.Fatalf("decode page: %v", err)
		}
		resp.Body.Close()

		seen += len(page.Events)
		if !page.HasMore {
			break
		}
		if page.Cursor == "" {
			t.Fatal("has_more set but cursor empty")
		}
		cursor = page.Cursor
	}
	if seen < 5 {
		t.Fatalf("expected at least 5 submitted events across pages, got %d", seen)
	}
}
