package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"pipes-runner-server/pipes"
)

// ContextInjection selects how the context reaches the worker.
type ContextInjection string

const (
	// InjectEnv inlines the context into DAGSTER_PIPES_CONTEXT.
	InjectEnv ContextInjection = "env"
	// InjectFile writes the context to a temp file and passes its path.
	InjectFile ContextInjection = "file"
)

// MessageTransport selects where the worker writes its reports.
type MessageTransport string

const (
	// TransportFile has the worker append to a temp file read after exit.
	TransportFile MessageTransport = "file"
	// TransportStdio has the worker write to stdout, decoded as it arrives.
	TransportStdio MessageTransport = "stdio"
)

const DefaultStderrLimit = 64 * 1024

type Config struct {
	// Timeout bounds each invocation. Zero means no bound.
	Timeout time.Duration
	// TempDir hosts per-invocation directories. Empty means os.TempDir().
	TempDir          string
	ContextInjection ContextInjection
	MessageTransport MessageTransport
	// StderrLimit caps the captured stderr tail.
	StderrLimit int
	// OnMessage observes every decoded message. It must be safe for
	// concurrent use when the client is shared.
	OnMessage func(runID string, msg *pipes.Message)
	// Stdout and Stderr receive the worker's output streams in addition to
	// capture. Stdout is unused with TransportStdio.
	Stdout io.Writer
	Stderr io.Writer
	Now    func() time.Time
}

// Client launches workers and decodes their reports. A Client holds no
// per-invocation state; one instance serves concurrent Run calls.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.ContextInjection == "" {
		cfg.ContextInjection = InjectEnv
	}
	if cfg.MessageTransport == "" {
		cfg.MessageTransport = TransportFile
	}
	if cfg.StderrLimit <= 0 {
		cfg.StderrLimit = DefaultStderrLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{cfg: cfg}
}

// Invocation is one request to run a worker.
type Invocation struct {
	// Command is the executable path followed by its arguments.
	Command []string
	Context pipes.ContextData
	Env     map[string]string
	Dir     string

	// Per-invocation overrides of the client defaults.
	Timeout          time.Duration
	ContextInjection ContextInjection
	MessageTransport MessageTransport
}

// Run launches the worker, waits for it to exit and decodes its report.
//
// Errors are *LaunchError, *WorkerFailedError, *ProtocolDecodeError or
// *TimeoutError. When ctx is canceled the worker's process group is killed
// and the returned error wraps ctx.Err().
func (c *Client) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Context.RunID == "" {
		inv.Context.RunID = uuid.NewString()
	}
	runID := inv.Context.RunID

	if len(inv.Command) == 0 {
		return nil, &LaunchError{RunID: runID, Err: errors.New("empty command")}
	}
	path, err := lookExecutable(inv.Command[0])
	if err != nil {
		return nil, &LaunchError{RunID: runID, Path: inv.Command[0], Err: err}
	}

	timeout := c.cfg.Timeout
	if inv.Timeout > 0 {
		timeout = inv.Timeout
	}
	transport := c.cfg.MessageTransport
	if inv.MessageTransport != "" {
		transport = inv.MessageTransport
	}
	injection := c.cfg.ContextInjection
	if inv.ContextInjection != "" {
		injection = inv.ContextInjection
	}

	dir, err := os.MkdirTemp(c.cfg.TempDir, "pipes-"+runID+"-")
	if err != nil {
		return nil, &LaunchError{RunID: runID, Path: path, Err: fmt.Errorf("create temp dir: %w", err)}
	}
	defer os.RemoveAll(dir)

	env, messagesPath, err := inject(dir, &inv.Context, injection, transport)
	if err != nil {
		return nil, &LaunchError{RunID: runID, Path: path, Err: err}
	}
	for k, v := range inv.Env {
		env = append(env, k+"="+v)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dec := newDecoder(runID, c.cfg.OnMessage)
	stderr := &tailBuffer{limit: c.cfg.StderrLimit}

	cmd := exec.CommandContext(runCtx, path, inv.Command[1:]...)
	configureCommandProcess(cmd)
	cmd.Cancel = func() error { return terminateCommandProcess(cmd) }
	// Grandchildren holding the pipes open must not stall Wait forever.
	cmd.WaitDelay = 5 * time.Second
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stderr = stderr
	if c.cfg.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, c.cfg.Stderr)
	}

	var stdout *lineWriter
	switch transport {
	case TransportStdio:
		stdout = &lineWriter{fn: dec.feed, limit: maxMessageSize, onOverflow: dec.overflow}
		cmd.Stdout = stdout
	default:
		if c.cfg.Stdout != nil {
			cmd.Stdout = c.cfg.Stdout
		}
	}

	start := c.cfg.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run %s: %w", runID, ctx.Err())
		}
		return nil, &LaunchError{RunID: runID, Path: path, Err: err}
	}
	waitErr := cmd.Wait()
	if stdout != nil {
		stdout.Flush()
	}

	res := dec.result
	res.Duration = c.cfg.Now().Sub(start)
	res.Stderr = stderr.String()
	res.ExitCode = -1
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("run %s: %w", runID, ctx.Err())
	}
	if runCtx.Err() != nil {
		return nil, &TimeoutError{RunID: runID, Timeout: timeout, Stderr: res.Stderr}
	}

	// The message file is read even after a failed exit so that a partial
	// report is available for diagnostics.
	var readErr error
	if transport == TransportFile {
		readErr = dec.decodeFile(messagesPath)
	}

	if waitErr != nil {
		reason := waitErr.Error()
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			reason = "wait: " + reason
		}
		res.Status = StatusFailure
		return nil, &WorkerFailedError{
			RunID:     runID,
			ExitCode:  res.ExitCode,
			Reason:    reason,
			Exception: res.Exception,
			Stderr:    res.Stderr,
			Result:    res,
			Err:       waitErr,
		}
	}

	if readErr != nil {
		return nil, &ProtocolDecodeError{RunID: runID, Stderr: res.Stderr, Err: readErr}
	}
	if dec.err != nil {
		dec.err.Stderr = res.Stderr
		return nil, dec.err
	}

	if !dec.closed {
		res.Status = StatusFailure
		return nil, &WorkerFailedError{
			RunID:    runID,
			ExitCode: res.ExitCode,
			Reason:   "worker exited without a closed message",
			Stderr:   res.Stderr,
			Result:   res,
		}
	}
	if res.Exception != nil {
		res.Status = StatusFailure
		return nil, &WorkerFailedError{
			RunID:     runID,
			ExitCode:  res.ExitCode,
			Reason:    "worker reported failure",
			Exception: res.Exception,
			Stderr:    res.Stderr,
			Result:    res,
		}
	}

	res.Status = StatusSuccess
	return res, nil
}

// inject prepares the bootstrap environment for one invocation and returns
// the path of the message file when the file transport is used.
func inject(dir string, data *pipes.ContextData, injection ContextInjection, transport MessageTransport) ([]string, string, error) {
	var contextParams map[string]any
	switch injection {
	case InjectFile:
		path := filepath.Join(dir, "context.json")
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, "", fmt.Errorf("encode context: %w", err)
		}
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, "", fmt.Errorf("write context: %w", err)
		}
		contextParams = map[string]any{pipes.ParamPath: path}
	case InjectEnv:
		contextParams = map[string]any{pipes.ParamData: data}
	default:
		return nil, "", fmt.Errorf("unknown context injection %q", injection)
	}

	var (
		messageParams map[string]any
		messagesPath  string
	)
	switch transport {
	case TransportFile:
		messagesPath = filepath.Join(dir, "messages.jsonl")
		messageParams = map[string]any{pipes.ParamPath: messagesPath}
	case TransportStdio:
		messageParams = map[string]any{pipes.ParamStdio: "stdout"}
	default:
		return nil, "", fmt.Errorf("unknown message transport %q", transport)
	}

	encodedContext, err := pipes.EncodeParam(contextParams)
	if err != nil {
		return nil, "", err
	}
	encodedMessages, err := pipes.EncodeParam(messageParams)
	if err != nil {
		return nil, "", err
	}
	return []string{
		pipes.ContextEnvVar + "=" + encodedContext,
		pipes.MessagesEnvVar + "=" + encodedMessages,
	}, messagesPath, nil
}

// ResolveExecutable anchors a relative worker path at dir.
func ResolveExecutable(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		// Bare names are looked up on PATH at launch.
		if _, err := os.Stat(filepath.Join(dir, path)); err != nil {
			return path
		}
	}
	return filepath.Join(dir, path)
}

// lookExecutable checks that path names an executable regular file. Bare
// names are searched on PATH.
func lookExecutable(path string) (string, error) {
	if !strings.ContainsAny(path, `/\`) {
		return exec.LookPath(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%s is not executable", path)
	}
	return path, nil
}
