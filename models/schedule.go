package models

import "time"

// AssetSchedule represents a one-time scheduled materialization of an asset
type AssetSchedule struct {
	ID           int64                  `json:"id"`
	AssetKey     string                 `json:"asset_key"`
	ScheduledAt  time.Time              `json:"scheduled_at"`
	PartitionKey string                 `json:"partition_key,omitempty"`
	JobName      string                 `json:"job_name,omitempty"`
	Extras       map[string]interface{} `json:"extras,omitempty"`
	Executed     bool                   `json:"executed"`
	ExecutedAt   *time.Time             `json:"executed_at,omitempty"`
	InvocationID *int64                 `json:"invocation_id,omitempty"`
	Status       string                 `json:"status,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// CreateScheduleRequest is used to register a new schedule
type CreateScheduleRequest struct {
	ScheduledAt  time.Time              `json:"scheduled_at"`
	PartitionKey string                 `json:"partition_key,omitempty"`
	JobName      string                 `json:"job_name,omitempty"`
	Extras       map[string]interface{} `json:"extras,omitempty"`
}

// Schedule status constants. A queued schedule has handed its run to the
// dispatcher; the outcome lives on the invocation.
const (
	ScheduleQueued = "queued"
	ScheduleFailed = "fail"
)
