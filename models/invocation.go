package models

import (
	"time"
)

// Invocation represents one worker run for an asset (asset_invocations table)
type Invocation struct {
	ID           int64                  `json:"id"`
	AssetKey     string                 `json:"asset_key"`
	RunID        string                 `json:"run_id"`
	InvokedAt    time.Time              `json:"invoked_at"`
	InvokedBy    string                 `json:"invoked_by,omitempty"`
	PartitionKey string                 `json:"partition_key,omitempty"`
	Status       string                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorKind    string                 `json:"error_kind,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ExitCode     *int                   `json:"exit_code,omitempty"`
	DurationMs   int                    `json:"duration_ms"`
	StderrKey    string                 `json:"stderr_key,omitempty"`
	MessagesKey  string                 `json:"messages_key,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// InvocationStatus constants
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusTimeout = "timeout"
	StatusPending = "pending"
)

// MaterializeResponse represents the response for an asset invocation
type MaterializeResponse struct {
	Status       string                 `json:"status"`
	AssetKey     string                 `json:"asset_key"`
	InvocationID int64                  `json:"invocation_id"`
	RunID        string                 `json:"run_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorKind    string                 `json:"error_kind,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ExitCode     *int                   `json:"exit_code,omitempty"`
	DurationMs   int                    `json:"duration_ms"`
	StderrKey    string                 `json:"stderr_key,omitempty"`
	MessagesKey  string                 `json:"messages_key,omitempty"`
	LoggedAt     time.Time              `json:"logged_at"`
}

// InvocationListItem represents an invocation in list view
type InvocationListItem struct {
	ID           int64                  `json:"id"`
	AssetKey     string                 `json:"asset_key"`
	RunID        string                 `json:"run_id"`
	InvokedAt    time.Time              `json:"invoked_at"`
	Status       string                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorKind    string                 `json:"error_kind,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	DurationMs   int                    `json:"duration_ms"`
}
