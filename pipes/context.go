package pipes

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

var (
	ErrMissingAssetKey = errors.New("asset key is missing")
	ErrClosed          = errors.New("pipes context is closed")
)

// Context is the worker's end of the channel. It is safe for concurrent use.
type Context struct {
	// Data is the context the orchestrator handed to this process.
	Data *ContextData

	channel MessageChannel

	mu     sync.Mutex
	closed bool
}

// NewContext opens channel from messageParams and announces the worker with an
// "opened" message.
func NewContext(data *ContextData, messageParams Params, writer MessageWriter) (*Context, error) {
	channel, err := writer.Open(messageParams)
	if err != nil {
		return nil, fmt.Errorf("open message channel: %w", err)
	}

	payload := writer.OpenedPayload()
	if payload == nil {
		payload = map[string]any{}
	}
	payload["run_id"] = data.RunID

	ctx := &Context{Data: data, channel: channel}
	if err := ctx.write(MethodOpened, payload); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Open loads params from the command line or the environment and returns a
// ready Context.
func Open() (*Context, error) {
	return OpenWith(NewDefaultParamsLoader(os.Args[1:]), NewDefaultContextLoader(), NewDefaultMessageWriter())
}

// OpenWith is Open with explicit loaders.
func OpenWith(params ParamsLoader, loader ContextLoader, writer MessageWriter) (*Context, error) {
	contextParams, err := params.LoadContextParams()
	if err != nil {
		return nil, err
	}
	messageParams, err := params.LoadMessageParams()
	if err != nil {
		return nil, err
	}
	data, err := loader.LoadContext(contextParams)
	if err != nil {
		return nil, err
	}
	return NewContext(data, messageParams, writer)
}

// ReportAssetMaterialization tells the orchestrator an asset was produced.
// An empty dataVersion is sent as null.
func (c *Context) ReportAssetMaterialization(assetKey string, metadata Metadata, dataVersion string) error {
	key, err := c.resolveAssetKey(assetKey)
	if err != nil {
		return err
	}
	return c.write(MethodReportAssetMaterialization, map[string]any{
		"asset_key":    key,
		"metadata":     metadata,
		"data_version": stringOrNil(dataVersion),
	})
}

// ReportAssetCheck reports the outcome of a data quality check on an asset.
func (c *Context) ReportAssetCheck(checkName string, passed bool, assetKey string, severity *AssetCheckSeverity, metadata Metadata) error {
	key, err := c.resolveAssetKey(assetKey)
	if err != nil {
		return err
	}
	return c.write(MethodReportAssetCheck, map[string]any{
		"asset_key":  key,
		"check_name": checkName,
		"passed":     passed,
		"severity":   severity,
		"metadata":   metadata,
	})
}

// ReportCustomMessage sends an arbitrary JSON-serializable payload.
func (c *Context) ReportCustomMessage(payload any) error {
	return c.write(MethodReportCustomMessage, map[string]any{"payload": payload})
}

func (c *Context) Log(level LogLevel, message string) error {
	return c.write(MethodLog, map[string]any{"level": level, "message": message})
}

func (c *Context) Logf(level LogLevel, format string, args ...any) error {
	return c.Log(level, fmt.Sprintf(format, args...))
}

// Close writes the terminal "closed" message. A nil exception reports success.
// Only the first call writes; later calls return ErrClosed.
func (c *Context) Close(exception *Exception) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	params := map[string]any{}
	if exception != nil {
		params["exception"] = exception
	}
	msg, err := NewMessage(MethodClosed, params)
	if err != nil {
		return err
	}
	if err := c.channel.Write(msg); err != nil {
		return err
	}
	c.closed = true
	return nil
}

func (c *Context) write(method Method, params map[string]any) error {
	msg, err := NewMessage(method, params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.channel.Write(msg)
}

// resolveAssetKey picks the key a report applies to. When the orchestrator
// named assets, an unknown key falls back to the first of them.
func (c *Context) resolveAssetKey(assetKey string) (string, error) {
	if keys := c.Data.AssetKeys; len(keys) > 0 {
		if assetKey != "" && slices.Contains(keys, assetKey) {
			return assetKey, nil
		}
		return keys[0], nil
	}
	if assetKey == "" {
		return "", ErrMissingAssetKey
	}
	return assetKey, nil
}

// ExceptionFromError converts err into an Exception, following wrapped causes.
func ExceptionFromError(err error) *Exception {
	if err == nil {
		return nil
	}
	exc := &Exception{
		Name:    ptr(fmt.Sprintf("%T", err)),
		Message: ptr(err.Error()),
	}
	if cause := errors.Unwrap(err); cause != nil {
		exc.Cause = ExceptionFromError(cause)
	}
	return exc
}

// ExceptionFromPanic converts a recovered panic value and its stack.
func ExceptionFromPanic(v any, stack []byte) *Exception {
	exc := &Exception{
		Name:    ptr("panic"),
		Message: ptr(fmt.Sprint(v)),
	}
	if len(stack) > 0 {
		exc.Stack = strings.Split(strings.TrimRight(string(stack), "\n"), "\n")
	}
	if err, ok := v.(error); ok {
		if cause := errors.Unwrap(err); cause != nil {
			exc.Cause = ExceptionFromError(cause)
		}
	}
	return exc
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T {
	return &v
}
