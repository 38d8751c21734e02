package pipes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrUnsupportedMessageParams is returned when message params name no known sink.
var ErrUnsupportedMessageParams = errors.New("message params name no supported channel")

// MessageChannel delivers messages to the orchestrator.
type MessageChannel interface {
	Write(*Message) error
}

// FileChannel appends one JSON object per line to a file.
type FileChannel struct {
	Path string

	mu sync.Mutex
}

func (c *FileChannel) Write(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open message file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// StreamChannel writes one JSON object per line to a stream such as stdout.
type StreamChannel struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStreamChannel(w io.Writer) *StreamChannel {
	return &StreamChannel{w: w}
}

func (c *StreamChannel) Write(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// MessageWriter opens the channel described by message params.
type MessageWriter interface {
	Open(params Params) (MessageChannel, error)
	OpenedPayload() map[string]any
}

// DefaultMessageWriter supports the "path" and "stdio" message params.
type DefaultMessageWriter struct {
	Stdout io.Writer
	Stderr io.Writer
}

func NewDefaultMessageWriter() *DefaultMessageWriter {
	return &DefaultMessageWriter{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (w *DefaultMessageWriter) Open(params Params) (MessageChannel, error) {
	path, ok, err := params.String(ParamPath)
	if err != nil {
		return nil, err
	}
	if ok {
		return &FileChannel{Path: path}, nil
	}

	stream, ok, err := params.String(ParamStdio)
	if err != nil {
		return nil, err
	}
	if ok {
		switch stream {
		case "stdout":
			return NewStreamChannel(w.Stdout), nil
		case "stderr":
			return NewStreamChannel(w.Stderr), nil
		default:
			return nil, fmt.Errorf("%w: stdio %q", ErrUnsupportedMessageParams, stream)
		}
	}
	return nil, ErrUnsupportedMessageParams
}

func (w *DefaultMessageWriter) OpenedPayload() map[string]any {
	return map[string]any{"extras": map[string]any{}}
}
