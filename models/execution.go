package models

// ExecutionRequest represents a request to run an asset worker (sent to Redis queue)
type ExecutionRequest struct {
	InvocationID int64                  `json:"invocationId"`
	AssetKey     string                 `json:"assetKey"`
	RunID        string                 `json:"runId"`
	PartitionKey string                 `json:"partitionKey,omitempty"`
	JobName      string                 `json:"jobName,omitempty"`
	Extras       map[string]interface{} `json:"extras,omitempty"`
}

// ExecutionResult represents the outcome of a worker run (stored in Redis)
type ExecutionResult struct {
	InvocationID int64                  `json:"invocationId"`
	RunID        string                 `json:"runId"`
	Status       string                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorKind    string                 `json:"errorKind,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	ExitCode     *int                   `json:"exitCode,omitempty"`
	StderrKey    string                 `json:"stderrKey,omitempty"`
	MessagesKey  string                 `json:"messagesKey,omitempty"`
	DurationMs   int                    `json:"durationMs"`
}

// Execution result statuses as written by the dispatcher
const (
	ExecSuccess = "SUCCESS"
	ExecError   = "ERROR"
	ExecTimeout = "TIMEOUT"
)
