package pipes

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileChannel(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "messages")
	channel := &FileChannel{Path: path}

	opened, err := NewMessage(MethodOpened, nil)
	require.NoError(t, err)
	require.NoError(t, channel.Write(opened))
	closed, err := NewMessage(MethodClosed, nil)
	require.NoError(t, err)
	require.NoError(t, channel.Write(closed))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)

	msg, err := DecodeMessage([]byte(lines[0]))
	require.NoError(t, err)
	require.Equal(t, MethodOpened, msg.Method)
	require.Equal(t, ProtocolVersion, msg.Version)
	require.Nil(t, msg.Params)
}

func TestDefaultMessageWriter(t *testing.T) {
	t.Parallel()

	t.Run("path", func(t *testing.T) {
		t.Parallel()
		channel, err := NewDefaultMessageWriter().Open(Params{"path": json.RawMessage(`"tmp/my-file-path"`)})
		require.NoError(t, err)
		require.Equal(t, &FileChannel{Path: "tmp/my-file-path"}, channel)
	})

	t.Run("stdio stdout", func(t *testing.T) {
		t.Parallel()
		var stdout bytes.Buffer
		writer := &DefaultMessageWriter{Stdout: &stdout}
		channel, err := writer.Open(Params{"stdio": json.RawMessage(`"stdout"`)})
		require.NoError(t, err)

		msg, err := NewMessage(MethodLog, map[string]any{"level": LogInfo, "message": "hi"})
		require.NoError(t, err)
		require.NoError(t, channel.Write(msg))
		require.True(t, strings.HasSuffix(stdout.String(), "\n"))

		decoded, err := DecodeMessage(bytes.TrimSpace(stdout.Bytes()))
		require.NoError(t, err)
		require.Equal(t, MethodLog, decoded.Method)
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()
		_, err := NewDefaultMessageWriter().Open(Params{"stdio": json.RawMessage(`"fd3"`)})
		require.ErrorIs(t, err, ErrUnsupportedMessageParams)

		_, err = NewDefaultMessageWriter().Open(Params{})
		require.ErrorIs(t, err, ErrUnsupportedMessageParams)
	})
}

func TestDecodeMessageRejectsUntaggedRecords(t *testing.T) {
	t.Parallel()
	_, err := DecodeMessage([]byte(`{"params": {}}`))
	require.Error(t, err)

	_, err = DecodeMessage([]byte(`{"method": "report_weather"}`))
	require.Error(t, err)

	_, err = DecodeMessage([]byte(`not json`))
	require.Error(t, err)
}
