package pipes

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvVarLoader(t *testing.T) {
	t.Parallel()
	// Produced by the Python orchestrator for a temp-file context.
	encoded := "eJwVwdEJgCAQANBV4ha4SDNsjhYQNf0wFTtEjXaP3nsgK/KwT4BVFTxTMLbc2DakIFwfUS516MJWkrw5En3+uYwH0pWDZzpyW1GnSLYRvB9CZRtp"
	expected := Params{
		"path": json.RawMessage(`"/var/folders/x7/tl6gyzn92vzcr35t94xgt6y00000gp/T/tmplh3cn4ev/context"`),
	}

	env := map[string]string{
		ContextEnvVar:  encoded,
		MessagesEnvVar: encoded,
	}
	loader := &EnvVarLoader{Lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	require.True(t, loader.IsPipesProcess())

	t.Run("LoadContextParams", func(t *testing.T) {
		t.Parallel()
		result, err := loader.LoadContextParams()
		require.NoError(t, err)
		require.Equal(t, expected, result)
	})

	t.Run("LoadMessageParams", func(t *testing.T) {
		t.Parallel()
		result, err := loader.LoadMessageParams()
		require.NoError(t, err)
		require.Equal(t, expected, result)
	})
}

func TestEnvVarLoaderErrors(t *testing.T) {
	t.Parallel()

	t.Run("not present", func(t *testing.T) {
		t.Parallel()
		loader := &EnvVarLoader{Lookup: func(string) (string, bool) { return "", false }}
		require.False(t, loader.IsPipesProcess())

		_, err := loader.LoadContextParams()
		var perr *ParamsError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, ParamNotPresent, perr.Kind)
		require.Equal(t, ContextEnvVar, perr.Param)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		loader := &EnvVarLoader{Lookup: func(string) (string, bool) { return "not base64!", true }}

		_, err := loader.LoadMessageParams()
		var perr *ParamsError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, ParamInvalid, perr.Kind)
		require.Error(t, perr.Unwrap())
	})
}

func TestEncodeParamIsReadableByDecodeParam(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeParam(map[string]any{"stdio": "stdout"})
	require.NoError(t, err)

	params, err := DecodeParam(encoded)
	require.NoError(t, err)
	stream, ok, err := params.String(ParamStdio)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "stdout", stream)
}

func TestCLILoader(t *testing.T) {
	t.Parallel()
	contextArg, err := EncodeParam(map[string]any{"path": "/tmp/context.json"})
	require.NoError(t, err)
	messagesArg, err := EncodeParam(map[string]any{"stdio": "stderr"})
	require.NoError(t, err)

	loader := NewCLILoader([]string{"-rows", "3", ContextCLIArg, contextArg, MessagesCLIArg + "=" + messagesArg})
	require.True(t, loader.IsPipesProcess())

	params, err := loader.LoadContextParams()
	require.NoError(t, err)
	path, _, err := params.String(ParamPath)
	require.NoError(t, err)
	require.Equal(t, "/tmp/context.json", path)

	params, err = loader.LoadMessageParams()
	require.NoError(t, err)
	stream, _, err := params.String(ParamStdio)
	require.NoError(t, err)
	require.Equal(t, "stderr", stream)
}

func TestCLILoaderErrors(t *testing.T) {
	t.Parallel()

	loader := NewCLILoader([]string{"-rows", "3", ContextCLIArg})
	require.False(t, loader.IsPipesProcess())

	_, err := loader.LoadContextParams()
	var perr *ParamsError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, ParamNotPresent, perr.Kind)
	require.Equal(t, OriginCLI, perr.Origin)

	_, err = NewCLILoader([]string{MessagesCLIArg + "=garbage"}).LoadMessageParams()
	require.True(t, errors.As(err, &perr))
	require.Equal(t, ParamInvalid, perr.Kind)
	require.Equal(t, MessagesCLIArg, perr.Param)
}

func TestDefaultParamsLoaderPrefersCLI(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeParam(map[string]any{"data": map[string]any{"run_id": "r1"}})
	require.NoError(t, err)

	require.IsType(t, &CLILoader{}, NewDefaultParamsLoader([]string{ContextCLIArg, encoded}))
	require.IsType(t, &EnvVarLoader{}, NewDefaultParamsLoader([]string{"-rows", "3"}))
}
