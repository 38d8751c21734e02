package pipes

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is stamped on every message a worker writes.
const ProtocolVersion = "0.1"

// Method tags a message with its event type.
type Method string

const (
	MethodOpened                     Method = "opened"
	MethodClosed                     Method = "closed"
	MethodLog                        Method = "log"
	MethodReportAssetMaterialization Method = "report_asset_materialization"
	MethodReportAssetCheck           Method = "report_asset_check"
	MethodReportCustomMessage        Method = "report_custom_message"
)

// Known reports whether m is one of the protocol methods.
func (m Method) Known() bool {
	switch m {
	case MethodOpened, MethodClosed, MethodLog,
		MethodReportAssetMaterialization, MethodReportAssetCheck, MethodReportCustomMessage:
		return true
	}
	return false
}

// Message is one tagged record on the reporting stream.
type Message struct {
	Version string                     `json:"__dagster_pipes_version"`
	Method  Method                     `json:"method"`
	Params  map[string]json.RawMessage `json:"params"`
}

// NewMessage builds a message, encoding each param value to JSON.
func NewMessage(method Method, params map[string]any) (*Message, error) {
	msg := &Message{Version: ProtocolVersion, Method: method}
	if params == nil {
		return msg, nil
	}
	msg.Params = make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode param %q: %w", k, err)
		}
		msg.Params[k] = raw
	}
	return msg, nil
}

// DecodeMessage parses a single JSON record and checks that it is tagged.
func DecodeMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, err
	}
	if msg.Method == "" {
		return nil, fmt.Errorf("message has no method")
	}
	if !msg.Method.Known() {
		return nil, fmt.Errorf("unknown method %q", msg.Method)
	}
	return &msg, nil
}

// Param decodes the named param into v. Missing or null params leave v untouched
// and report false.
func (m *Message) Param(name string, v any) (bool, error) {
	raw, ok := m.Params[name]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("param %q: %w", name, err)
	}
	return true, nil
}

type LogLevel string

const (
	LogDebug    LogLevel = "DEBUG"
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

type AssetCheckSeverity string

const (
	SeverityWarn  AssetCheckSeverity = "WARN"
	SeverityError AssetCheckSeverity = "ERROR"
)

// Exception describes a failure a worker reports when it closes the channel.
type Exception struct {
	Name    *string    `json:"name,omitempty"`
	Message *string    `json:"message,omitempty"`
	Stack   []string   `json:"stack,omitempty"`
	Cause   *Exception `json:"cause"`
	Context *Exception `json:"context,omitempty"`
}

func (e *Exception) Error() string {
	switch {
	case e.Name != nil && e.Message != nil:
		return *e.Name + ": " + *e.Message
	case e.Message != nil:
		return *e.Message
	case e.Name != nil:
		return *e.Name
	}
	return "worker reported an exception"
}
