package runner

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"pipes-runner-server/pipes"
)

const maxMessageSize = 16 << 20

// decoder folds report messages into a Result. The first protocol error sticks;
// later lines are ignored.
type decoder struct {
	runID     string
	onMessage func(runID string, msg *pipes.Message)

	result *Result
	line   int
	opened bool
	closed bool
	err    *ProtocolDecodeError
}

func newDecoder(runID string, onMessage func(string, *pipes.Message)) *decoder {
	return &decoder{
		runID:     runID,
		onMessage: onMessage,
		result:    &Result{RunID: runID, Metadata: pipes.Metadata{}},
	}
}

func (d *decoder) feed(line []byte) {
	d.line++
	if d.err != nil {
		return
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	msg, err := pipes.DecodeMessage(line)
	if err == nil {
		err = d.apply(msg)
	}
	if err != nil {
		d.err = &ProtocolDecodeError{RunID: d.runID, Line: d.line, Err: err}
		return
	}
	d.result.Messages = append(d.result.Messages, msg)
	if d.onMessage != nil {
		d.onMessage(d.runID, msg)
	}
}

// overflow records a line that exceeded maxMessageSize.
func (d *decoder) overflow() {
	d.line++
	if d.err == nil {
		d.err = &ProtocolDecodeError{RunID: d.runID, Line: d.line, Err: fmt.Errorf("message exceeds %d bytes", maxMessageSize)}
	}
}

func (d *decoder) apply(msg *pipes.Message) error {
	if d.closed {
		return fmt.Errorf("%s message after closed", msg.Method)
	}
	r := d.result

	switch msg.Method {
	case pipes.MethodOpened:
		if d.opened {
			return errors.New("duplicate opened message")
		}
		d.opened = true
		var runID string
		if _, err := msg.Param("run_id", &runID); err != nil {
			return err
		}
		if runID != "" && runID != d.runID {
			return fmt.Errorf("opened message for run %q", runID)
		}

	case pipes.MethodClosed:
		d.closed = true
		exc, err := decodeException(msg)
		if err != nil {
			return err
		}
		r.Exception = exc

	case pipes.MethodLog:
		var rec LogRecord
		if _, err := msg.Param("level", &rec.Level); err != nil {
			return err
		}
		if _, err := msg.Param("message", &rec.Message); err != nil {
			return err
		}
		r.Logs = append(r.Logs, rec)

	case pipes.MethodReportAssetMaterialization:
		var m Materialization
		if _, err := msg.Param("asset_key", &m.AssetKey); err != nil {
			return err
		}
		if m.AssetKey == "" {
			return errors.New("materialization without asset_key")
		}
		if _, err := msg.Param("data_version", &m.DataVersion); err != nil {
			return err
		}
		md, err := decodeMetadata(msg)
		if err != nil {
			return err
		}
		m.Metadata = md
		r.Materializations = append(r.Materializations, m)
		for k, v := range md {
			r.Metadata[k] = v
		}

	case pipes.MethodReportAssetCheck:
		var c CheckResult
		if _, err := msg.Param("asset_key", &c.AssetKey); err != nil {
			return err
		}
		if _, err := msg.Param("check_name", &c.CheckName); err != nil {
			return err
		}
		if c.CheckName == "" {
			return errors.New("asset check without check_name")
		}
		if _, err := msg.Param("passed", &c.Passed); err != nil {
			return err
		}
		if _, err := msg.Param("severity", &c.Severity); err != nil {
			return err
		}
		md, err := decodeMetadata(msg)
		if err != nil {
			return err
		}
		c.Metadata = md
		r.Checks = append(r.Checks, c)

	case pipes.MethodReportCustomMessage:
		var payload any
		if _, err := msg.Param("payload", &payload); err != nil {
			return err
		}
		r.CustomMessages = append(r.CustomMessages, payload)
	}
	return nil
}

func decodeMetadata(msg *pipes.Message) (pipes.Metadata, error) {
	var md pipes.Metadata
	if _, err := msg.Param("metadata", &md); err != nil {
		return nil, err
	}
	for k, v := range md {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
	}
	return md, nil
}

// decodeException accepts the exception nested under "exception" as well as
// its fields inlined into params.
func decodeException(msg *pipes.Message) (*pipes.Exception, error) {
	var exc pipes.Exception
	ok, err := msg.Param("exception", &exc)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := msg.Param("name", &exc.Name); err != nil {
			return nil, err
		}
		if _, err := msg.Param("message", &exc.Message); err != nil {
			return nil, err
		}
		if _, err := msg.Param("stack", &exc.Stack); err != nil {
			return nil, err
		}
		if _, err := msg.Param("cause", &exc.Cause); err != nil {
			return nil, err
		}
	}
	if exc.Name == nil && exc.Message == nil && len(exc.Stack) == 0 && exc.Cause == nil {
		return nil, nil
	}
	return &exc, nil
}

// decodeFile feeds every line of the message file. A missing file means the
// worker never wrote anything.
func (d *decoder) decodeFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return d.decodeReader(f)
}

func (d *decoder) decodeReader(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxMessageSize)
	for sc.Scan() {
		d.feed(sc.Bytes())
	}
	return sc.Err()
}

// lineWriter is an io.Writer that hands complete lines to fn. A line longer
// than limit is dropped along with everything after it, and onOverflow is
// called once.
type lineWriter struct {
	mu         sync.Mutex
	buf        []byte
	fn         func([]byte)
	limit      int
	onOverflow func()
	overflowed bool
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.overflowed {
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if w.tooLong(i) {
			return len(p), nil
		}
		w.fn(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	w.tooLong(len(w.buf))
	return len(p), nil
}

func (w *lineWriter) tooLong(n int) bool {
	if w.limit <= 0 || n <= w.limit {
		return false
	}
	w.overflowed = true
	w.buf = nil
	if w.onOverflow != nil {
		w.onOverflow()
	}
	return true
}

// Flush hands over a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.fn(w.buf)
		w.buf = nil
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; b.limit > 0 && over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return "[stderr truncated]\n" + string(b.buf)
	}
	return string(b.buf)
}
