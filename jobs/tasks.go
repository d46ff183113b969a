package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMetricsMonthlySync recomputes and persists one business's metrics
	// for one closed month.
	TaskMetricsMonthlySync = "metrics:monthly_sync"
	// TaskMetricsSweep fans the monthly sync out across every active business.
	TaskMetricsSweep = "metrics:sweep"
)

// MonthlySyncPayload identifies the business and period to sync. Period uses
// the YYYY-MM token; empty means the month before the current one.
type MonthlySyncPayload struct {
	BusinessID uuid.UUID `json:"business_id"`
	Period     string    `json:"period,omitempty"`
}

// NewMonthlySyncTask constructs an Asynq task for one business month.
func NewMonthlySyncTask(payload MonthlySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsMonthlySync, data), nil
}

// SweepPayload narrows the sweep scope; empty Period means the prior month.
type SweepPayload struct {
	Period string `json:"period,omitempty"`
}

// NewSweepTask constructs the monthly sweep task.
func NewSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsSweep, data), nil
}
