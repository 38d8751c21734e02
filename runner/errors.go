package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipes-runner-server/pipes"
)

// LaunchError means the worker process was never started.
type LaunchError struct {
	RunID string
	Path  string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// WorkerFailedError means the worker ran but did not report success: it exited
// non-zero, never closed the channel, or closed it with an exception.
type WorkerFailedError struct {
	RunID     string
	ExitCode  int
	Reason    string
	Exception *pipes.Exception
	Stderr    string
	// Result holds whatever was decoded before the failure; it may be nil.
	Result *Result
	Err    error
}

func (e *WorkerFailedError) Error() string {
	msg := fmt.Sprintf("worker failed (run %s): %s", e.RunID, e.Reason)
	if e.Exception != nil {
		msg += ": " + e.Exception.Error()
	}
	return msg
}

func (e *WorkerFailedError) Unwrap() error { return e.Err }

// ProtocolDecodeError means the report stream could not be decoded.
type ProtocolDecodeError struct {
	RunID  string
	Line   int
	Stderr string
	Err    error
}

func (e *ProtocolDecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode report (run %s) line %d: %v", e.RunID, e.Line, e.Err)
	}
	return fmt.Sprintf("decode report (run %s): %v", e.RunID, e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error { return e.Err }

// TimeoutError means the worker exceeded its time bound and was killed.
type TimeoutError struct {
	RunID   string
	Timeout time.Duration
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("worker timed out after %s (run %s)", e.Timeout, e.RunID)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Error kinds as recorded against invocations.
const (
	KindLaunch       = "launch"
	KindWorkerFailed = "worker_failed"
	KindProtocol     = "protocol"
	KindTimeout      = "timeout"
	KindCanceled     = "canceled"
)

// Kind classifies an error returned by Client.Run.
func Kind(err error) string {
	var (
		launch   *LaunchError
		failed   *WorkerFailedError
		protocol *ProtocolDecodeError
		timeout  *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &launch):
		return KindLaunch
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &protocol):
		return KindProtocol
	case errors.As(err, &failed):
		return KindWorkerFailed
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindWorkerFailed
}

// Stderr returns the diagnostic output carried by err, if any.
func Stderr(err error) string {
	var (
		failed   *WorkerFailedError
		protocol *ProtocolDecodeError
		timeout  *TimeoutError
	)
	switch {
	case errors.As(err, &failed):
		return failed.Stderr
	case errors.As(err, &protocol):
		return protocol.Stderr
	case errors.As(err, &timeout):
		return timeout.Stderr
	}
	return ""
}
