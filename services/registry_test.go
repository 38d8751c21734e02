package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAssetRegistryResolvesCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets:
  - key: b
    command: bin/worker
    timeout: 45s
    context_injection: file
  - key: a
    command: /opt/worker
    args: [--fast]
    env:
      MODE: test
`), 0o644))

	reg, err := LoadAssetRegistry(path)
	require.NoError(t, err)
	require.Equal(t, dir, reg.Anchor())

	defs := reg.List()
	require.Len(t, defs, 2)
	require.Equal(t, "a", defs[0].Key)
	require.Equal(t, "/opt/worker", defs[0].Command)
	require.Equal(t, []string{"--fast"}, defs[0].Args)
	require.Equal(t, map[string]string{"MODE": "test"}, defs[0].Env)

	b, err := reg.Get("b")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bin", "worker"), b.Command)
	require.Equal(t, 45*time.Second, b.Timeout)
	require.Equal(t, "file", b.ContextInjection)
}

func TestParseAssetRegistryRejectsBadDefinitions(t *testing.T) {
	for name, yml := range map[string]string{
		"missing key":       "assets:\n  - command: w\n",
		"missing command":   "assets:\n  - key: a\n",
		"duplicate key":     "assets:\n  - {key: a, command: w}\n  - {key: a, command: w}\n",
		"bad transport":     "assets:\n  - {key: a, command: w, message_transport: pigeon}\n",
		"bad injection":     "assets:\n  - {key: a, command: w, context_injection: telepathy}\n",
		"not yaml":          "assets: [",
		"bad timeout value": "assets:\n  - {key: a, command: w, timeout: soon}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAssetRegistry([]byte(yml), t.TempDir())
			require.Error(t, err)
		})
	}
}

func TestAssetRegistryGetUnknown(t *testing.T) {
	reg, err := ParseAssetRegistry([]byte("assets: []\n"), t.TempDir())
	require.NoError(t, err)

	_, err = reg.Get("nope")
	require.ErrorIs(t, err, ErrAssetNotFound)
	require.Empty(t, reg.List())
}

func TestLoadAssetRegistryMissingFile(t *testing.T) {
	_, err := LoadAssetRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
