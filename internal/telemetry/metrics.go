package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hivemind"

// Metrics holds all Hivemind metric instruments.
type Metrics struct {
	TasksSubmitted        metric.Int64Counter
	TasksAssigned         metric.Int64Counter
	TasksCompleted        metric.Int64Counter
	ConflictsDetected     metric.Int64Counter
	ConflictsResolved     metric.Int64Counter
	SchedulerPassDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksSubmitted, err = meter.Int64Counter("hivemind.tasks.submitted",
		metric.WithDescription("Number of tasks accepted into the queue"))
	if err != nil {
		return nil, err
	}

	m.TasksAssigned, err = meter.Int64Counter("hivemind.tasks.assigned",
		metric.WithDescription("Number of tasks assigned to agents"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("hivemind.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.ConflictsDetected, err = meter.Int64Counter("hivemind.conflicts.detected",
		metric.WithDescription("Number of conflicts detected"))
	if err != nil {
		return nil, err
	}

	m.ConflictsResolved, err = meter.Int64Counter("hivemind.conflicts.resolved",
		metric.WithDescription("Number of conflicts resolved"))
	if err != nil {
		return nil, err
	}

	m.SchedulerPassDuration, err = meter.Float64Histogram("hivemind.scheduler.pass_duration_seconds",
		metric.WithDescription("Scheduler pass duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
