package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageService(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "artifacts")

	svc, err := NewLocalStorageService(base)
	require.NoError(t, err)

	key := GenerateArtifactKey("r1", ArtifactStderr)
	require.Equal(t, "runs/r1/stderr.log", key)

	require.NoError(t, svc.Save(ctx, key, []byte("boom\n")))
	data, err := svc.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "boom\n", string(data))
	require.FileExists(t, filepath.Join(base, "runs", "r1", "stderr.log"))

	require.NoError(t, svc.Delete(ctx, key))
	_, err = svc.Get(ctx, key)
	require.ErrorIs(t, err, ErrArtifactNotFound)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalStorageServiceRejectsEscapingKeys(t *testing.T) {
	svc, err := NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	require.Error(t, svc.Save(context.Background(), "../outside", []byte("x")))
	_, err = svc.Get(context.Background(), "runs/../../etc/passwd")
	require.Error(t, err)
}

func TestNewStorageServiceUnknownType(t *testing.T) {
	_, err := NewStorageService("floppy", t.TempDir(), MinioConfig{})
	require.ErrorContains(t, err, "unknown storage type")

	svc, err := NewStorageService("local", t.TempDir(), MinioConfig{})
	require.NoError(t, err)
	require.IsType(t, &LocalStorageService{}, svc)
}

func TestNewMinioStorageServiceRejectsBadEndpoint(t *testing.T) {
	_, err := NewMinioStorageService(MinioConfig{Endpoint: "http://bad endpoint/", Bucket: "runs"})
	require.ErrorContains(t, err, "minio client")
}

func TestContentType(t *testing.T) {
	require.Equal(t, "application/x-ndjson", contentType(GenerateArtifactKey("r", ArtifactMessages)))
	require.Equal(t, "text/plain", contentType(GenerateArtifactKey("r", ArtifactStderr)))
}
