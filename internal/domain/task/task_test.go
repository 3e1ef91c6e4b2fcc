package task

import (
	"errors"
	"testing"

	"github.com/hivemind-sec/hivemind/internal/domain"
)

func TestPriorityWeightOrdering(t *testing.T) {
	ordered := []Priority{PriorityEmergency, PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Weight() >= ordered[i].Weight() {
			t.Errorf("expected %s to outrank %s", ordered[i-1], ordered[i])
		}
	}
	// Unknown priorities rank after low. String comparison would put
	// "critical" < "emergency"; the numeric weight must not.
	if Priority("mystery").Weight() <= PriorityLow.Weight() {
		t.Error("unknown priority must sort after low")
	}
	if PriorityEmergency.Weight() >= PriorityCritical.Weight() {
		t.Error("emergency must outrank critical despite lexicographic order")
	}
}

func TestPriorityUrgent(t *testing.T) {
	if !PriorityEmergency.Urgent() || !PriorityCritical.Urgent() {
		t.Error("emergency and critical are urgent")
	}
	if PriorityHigh.Urgent() || PriorityMedium.Urgent() || PriorityLow.Urgent() {
		t.Error("high, medium, and low are not urgent")
	}
}

func TestStatusIsActive(t *testing.T) {
	active := []Status{StatusAssigned, StatusInProgress}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("expected %s to be active", s)
		}
	}
	inactive := []Status{StatusQueued, StatusCompleted, StatusCancelled}
	for _, s := range inactive {
		if s.IsActive() {
			t.Errorf("expected %s to be inactive", s)
		}
	}
}

func TestLoadDelta(t *testing.T) {
	tk := &Task{EstimatedDuration: 30}
	if got := tk.LoadDelta(); got != 0.5 {
		t.Errorf("expected 0.5 for 30 minutes, got %v", got)
	}
	tk.EstimatedDuration = 90
	if got := tk.LoadDelta(); got != 1.5 {
		t.Errorf("expected 1.5 for 90 minutes, got %v", got)
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	valid := func() *SubmitRequest {
		return &SubmitRequest{
			Name:              "perimeter-scan",
			Required:          []string{"scan"},
			Priority:          PriorityMedium,
			EstimatedDuration: 30,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	tests := []struct {
		name   string
		modify func(*SubmitRequest)
	}{
		{"missing name", func(r *SubmitRequest) { r.Name = "" }},
		{"no capabilities", func(r *SubmitRequest) { r.Required = nil }},
		{"unknown priority", func(r *SubmitRequest) { r.Priority = "urgent-ish" }},
		{"zero duration", func(r *SubmitRequest) { r.EstimatedDuration = 0 }},
		{"negative duration", func(r *SubmitRequest) { r.EstimatedDuration = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.modify(r)
			if err := r.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
