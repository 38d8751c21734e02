package pipes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataValueDecode(t *testing.T) {
	t.Parallel()
	var md Metadata
	err := json.Unmarshal([]byte(`{
		"rows":    {"raw_value": 42, "type": "int"},
		"ratio":   {"raw_value": 0.25, "type": "float"},
		"ok":      {"raw_value": true, "type": "bool"},
		"table":   {"raw_value": "orders", "type": "text"},
		"schema":  {"raw_value": {"id": "int"}, "type": "json"},
		"columns": {"raw_value": ["id", "total"], "type": "json"},
		"none":    {"raw_value": null, "type": "null"}
	}`), &md)
	require.NoError(t, err)

	require.Equal(t, int64(42), md["rows"].Value())
	require.Equal(t, 0.25, md["ratio"].Value())
	require.Equal(t, true, md["ok"].Value())
	require.Equal(t, "orders", md["table"].Value())
	require.Equal(t, map[string]any{"id": "int"}, md["schema"].Value())
	require.Equal(t, []any{"id", "total"}, md["columns"].Value())
	require.Nil(t, md["none"].Value())

	for key, v := range md {
		require.NoError(t, v.Validate(), key)
	}
}

func TestMetadataValueValidate(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"int holding text":   `{"raw_value": "42", "type": "int"}`,
		"bool holding int":   `{"raw_value": 1, "type": "bool"}`,
		"text without value": `{"raw_value": null, "type": "text"}`,
		"null with value":    `{"raw_value": 3, "type": "null"}`,
		"unknown type":       `{"raw_value": 3, "type": "currency"}`,
		"json holding text":  `{"raw_value": "{}", "type": "json"}`,
	}
	for name, raw := range cases {
		var v MetadataValue
		require.NoError(t, json.Unmarshal([]byte(raw), &v), name)
		require.Error(t, v.Validate(), name)
	}

	var inferred MetadataValue
	require.NoError(t, json.Unmarshal([]byte(`{"raw_value": "anything", "type": "__infer__"}`), &inferred))
	require.NoError(t, inferred.Validate())
}
