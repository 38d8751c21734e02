package pipes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultContextLoader(t *testing.T) {
	t.Parallel()
	payload := `
{
	"asset_keys": ["asset1", "asset2"],
	"extras": {"key": "value"},
	"retry_number": 0,
	"run_id": "012345"
}
`
	expected := &ContextData{
		AssetKeys:   []string{"asset1", "asset2"},
		Extras:      map[string]any{"key": "value"},
		RetryNumber: 0,
		RunID:       "012345",
	}
	loader := NewDefaultContextLoader()

	t.Run("from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "context")
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

		data, err := loader.LoadContext(Params{"path": json.RawMessage(`"` + path + `"`)})
		require.NoError(t, err)
		require.Equal(t, expected, data)
	})

	t.Run("from data", func(t *testing.T) {
		t.Parallel()
		data, err := loader.LoadContext(Params{"data": json.RawMessage(payload)})
		require.NoError(t, err)
		require.Equal(t, expected, data)
	})

	t.Run("prefers path over data", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "context")
		require.NoError(t, os.WriteFile(path, []byte(`{"run_id": "id_from_path", "asset_keys": ["from_path"]}`), 0o644))

		data, err := loader.LoadContext(Params{
			"path": json.RawMessage(`"` + path + `"`),
			"data": json.RawMessage(`{"run_id": "id_from_data"}`),
		})
		require.NoError(t, err)
		require.Equal(t, "id_from_path", data.RunID)
		require.Equal(t, []string{"from_path"}, data.AssetKeys)
	})

	t.Run("no payload", func(t *testing.T) {
		t.Parallel()
		_, err := loader.LoadContext(Params{})
		require.ErrorIs(t, err, ErrNoPayload)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := loader.LoadContext(Params{"path": json.RawMessage(`"/nonexistent/context.json"`)})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
