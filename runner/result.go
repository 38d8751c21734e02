package runner

import (
	"time"

	"pipes-runner-server/pipes"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the decoded outcome of one invocation.
type Result struct {
	RunID    string
	Status   Status
	ExitCode int
	Duration time.Duration

	// Metadata merges the metadata of every materialization, later reports
	// winning on key collisions.
	Metadata         pipes.Metadata
	Materializations []Materialization
	Checks           []CheckResult
	CustomMessages   []any
	Logs             []LogRecord
	Exception        *pipes.Exception

	Stderr   string
	Messages []*pipes.Message
}

type Materialization struct {
	AssetKey    string
	DataVersion string
	Metadata    pipes.Metadata
}

type CheckResult struct {
	AssetKey  string
	CheckName string
	Passed    bool
	Severity  pipes.AssetCheckSeverity
	Metadata  pipes.Metadata
}

type LogRecord struct {
	Level   pipes.LogLevel
	Message string
}
