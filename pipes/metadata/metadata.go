// Package metadata builds typed values for materialization and check reports.
package metadata

import (
	"fmt"
	"net/url"

	"pipes-runner-server/pipes"
)

func FromInt(n int64) *pipes.MetadataValue {
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Integer: &n}, Type: pipes.TypeInt}
}

func FromFloat(f float64) *pipes.MetadataValue {
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Double: &f}, Type: pipes.TypeFloat}
}

func FromBool(b bool) *pipes.MetadataValue {
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Bool: &b}, Type: pipes.TypeBool}
}

func FromText(s string) *pipes.MetadataValue {
	return fromString(s, pipes.TypeText)
}

// FromJSON wraps a JSON object. A nil map is sent as {}.
func FromJSON(m map[string]any) *pipes.MetadataValue {
	if m == nil {
		m = map[string]any{}
	}
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Map: m}, Type: pipes.TypeJSON}
}

// FromJSONArray wraps a JSON array. A nil slice is sent as [].
func FromJSONArray(a []any) *pipes.MetadataValue {
	if a == nil {
		a = []any{}
	}
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Array: a}, Type: pipes.TypeJSON}
}

func FromURL(u *url.URL) *pipes.MetadataValue {
	return FromURLString(u.String())
}

func FromURLString(u string) *pipes.MetadataValue {
	return fromString(u, pipes.TypeURL)
}

func FromPath(p string) *pipes.MetadataValue {
	return fromString(p, pipes.TypePath)
}

func FromNotebook(p string) *pipes.MetadataValue {
	return fromString(p, pipes.TypeNotebook)
}

// FromMd wraps markdown text.
func FromMd(md string) *pipes.MetadataValue {
	return fromString(md, pipes.TypeMd)
}

// FromTimestamp wraps seconds since the Unix epoch.
func FromTimestamp(ts float64) *pipes.MetadataValue {
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{Double: &ts}, Type: pipes.TypeTimestamp}
}

// FromAsset references another asset by key.
func FromAsset(key string) *pipes.MetadataValue {
	return fromString(key, pipes.TypeAsset)
}

func FromJob(name string) *pipes.MetadataValue {
	return fromString(name, pipes.TypeJob)
}

func FromDagsterRun(runID string) *pipes.MetadataValue {
	return fromString(runID, pipes.TypeDagsterRun)
}

func Null() *pipes.MetadataValue {
	return &pipes.MetadataValue{Type: pipes.TypeNull}
}

// Infer lets the orchestrator pick the type from the raw JSON value.
func Infer(v any) *pipes.MetadataValue {
	raw := &pipes.RawValue{}
	switch x := v.(type) {
	case int:
		n := int64(x)
		raw.Integer = &n
	case int64:
		raw.Integer = &x
	case float64:
		raw.Double = &x
	case bool:
		raw.Bool = &x
	case string:
		raw.String = &x
	case []any:
		raw.Array = x
	case map[string]any:
		raw.Map = x
	case nil:
		raw = nil
	default:
		s := fmt.Sprint(x)
		raw.String = &s
	}
	return &pipes.MetadataValue{RawValue: raw, Type: pipes.TypeInfer}
}

func fromString(s string, t pipes.MetadataType) *pipes.MetadataValue {
	return &pipes.MetadataValue{RawValue: &pipes.RawValue{String: &s}, Type: t}
}
