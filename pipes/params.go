package pipes

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Environment variables through which the orchestrator hands parameters to a worker.
const (
	ContextEnvVar  = "DAGSTER_PIPES_CONTEXT"
	MessagesEnvVar = "DAGSTER_PIPES_MESSAGES"
)

// Parameter keys shared by both ends of the channel.
const (
	ParamPath  = "path"
	ParamData  = "data"
	ParamStdio = "stdio"
)

// Params is a decoded bootstrap parameter set.
type Params map[string]json.RawMessage

type ParamOrigin string

const (
	OriginEnvVar ParamOrigin = "env var"
	OriginCLI    ParamOrigin = "cli"
)

type ParamsErrorKind string

const (
	ParamNotPresent ParamsErrorKind = "not present"
	ParamInvalid    ParamsErrorKind = "invalid"
)

// ParamsError reports a bootstrap parameter that is missing or cannot be decoded.
type ParamsError struct {
	Param  string
	Origin ParamOrigin
	Kind   ParamsErrorKind
	Err    error
}

func (e *ParamsError) Error() string {
	msg := fmt.Sprintf("param: %s, origin: %s, kind: %s", e.Param, e.Origin, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParamsError) Unwrap() error { return e.Err }

// ParamsLoader reads the bootstrap parameters of a worker process.
type ParamsLoader interface {
	IsPipesProcess() bool
	LoadContextParams() (Params, error)
	LoadMessageParams() (Params, error)
}

// EnvVarLoader loads params from the process environment. Lookup can be
// replaced to read from another source.
type EnvVarLoader struct {
	Lookup func(string) (string, bool)
}

func NewEnvVarLoader() *EnvVarLoader {
	return &EnvVarLoader{Lookup: os.LookupEnv}
}

func (l *EnvVarLoader) IsPipesProcess() bool {
	_, ok := l.lookup(ContextEnvVar)
	return ok
}

func (l *EnvVarLoader) LoadContextParams() (Params, error) {
	return l.load(ContextEnvVar)
}

func (l *EnvVarLoader) LoadMessageParams() (Params, error) {
	return l.load(MessagesEnvVar)
}

func (l *EnvVarLoader) load(name string) (Params, error) {
	raw, ok := l.lookup(name)
	if !ok {
		return nil, &ParamsError{Param: name, Origin: OriginEnvVar, Kind: ParamNotPresent}
	}
	params, err := DecodeParam(raw)
	if err != nil {
		return nil, &ParamsError{Param: name, Origin: OriginEnvVar, Kind: ParamInvalid, Err: err}
	}
	return params, nil
}

func (l *EnvVarLoader) lookup(name string) (string, bool) {
	if l.Lookup == nil {
		return os.LookupEnv(name)
	}
	return l.Lookup(name)
}

// Command-line flags that carry the same encoded params as the environment
// variables.
const (
	ContextCLIArg  = "--dagster-pipes-context"
	MessagesCLIArg = "--dagster-pipes-messages"
)

// CLILoader loads params from command-line arguments given as "--flag value"
// or "--flag=value". Other arguments are ignored so workers keep their own flags.
type CLILoader struct {
	Args []string
}

func NewCLILoader(args []string) *CLILoader {
	return &CLILoader{Args: args}
}

func (l *CLILoader) IsPipesProcess() bool {
	_, ok := l.arg(ContextCLIArg)
	return ok
}

func (l *CLILoader) LoadContextParams() (Params, error) {
	return l.load(ContextCLIArg)
}

func (l *CLILoader) LoadMessageParams() (Params, error) {
	return l.load(MessagesCLIArg)
}

func (l *CLILoader) load(name string) (Params, error) {
	raw, ok := l.arg(name)
	if !ok {
		return nil, &ParamsError{Param: name, Origin: OriginCLI, Kind: ParamNotPresent}
	}
	params, err := DecodeParam(raw)
	if err != nil {
		return nil, &ParamsError{Param: name, Origin: OriginCLI, Kind: ParamInvalid, Err: err}
	}
	return params, nil
}

func (l *CLILoader) arg(name string) (string, bool) {
	for i, a := range l.Args {
		if a == name && i+1 < len(l.Args) {
			return l.Args[i+1], true
		}
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v, true
		}
	}
	return "", false
}

// NewDefaultParamsLoader prefers params passed in args and falls back to the
// environment.
func NewDefaultParamsLoader(args []string) ParamsLoader {
	if cli := NewCLILoader(args); cli.IsPipesProcess() {
		return cli
	}
	return NewEnvVarLoader()
}

// EncodeParam serializes v as JSON, compresses it with zlib and encodes the
// result as standard base64.
func EncodeParam(v any) (string, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return "", fmt.Errorf("encode param: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress param: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeParam reverses EncodeParam.
func DecodeParam(s string) (Params, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return params, nil
}

// String returns the named param as a string.
func (p Params) String(name string) (string, bool, error) {
	raw, ok := p[name]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("param %q: %w", name, err)
	}
	return s, true, nil
}
