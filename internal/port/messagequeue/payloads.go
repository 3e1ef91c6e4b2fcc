package messagequeue

// TaskAssignedPayload is the schema for coordination.tasks.assigned messages.
type TaskAssignedPayload struct {
	TaskID   string   `json:"task_id"`
	Agents   []string `json:"agents"`
	Priority string   `json:"priority"`
}

// TaskCompletedPayload is the schema for coordination.tasks.completed messages.
type TaskCompletedPayload struct {
	TaskID string   `json:"task_id"`
	Agents []string `json:"agents"`
}

// ConflictPayload is the schema for conflict detected/resolved messages.
type ConflictPayload struct {
	ConflictID string   `json:"conflict_id"`
	Type       string   `json:"type"`
	TaskIDs    []string `json:"task_ids"`
	Agents     []string `json:"agents"`
	Strategy   string   `json:"strategy,omitempty"`
}
