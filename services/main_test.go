package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"
)

var testWorker string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "services-test-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	testWorker = filepath.Join(dir, "testworker")
	if runtime.GOOS == "windows" {
		testWorker += ".exe"
	}
	build := exec.Command("go", "build", "-o", testWorker, "../workers/testworker")
	build.Stdout = os.Stderr
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build testworker: %v\n", err)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// tracedContext returns a context carrying an X-Ray segment so that Capture
// calls have a parent.
func tracedContext(t *testing.T) context.Context {
	t.Helper()
	ctx, seg := xray.BeginSegment(context.Background(), "services-test")
	t.Cleanup(func() { seg.Close(nil) })
	return ctx
}

func newTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc := NewRedisServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { svc.Close() })
	return svc, mr
}

func testRegistry(t *testing.T, extra string) *AssetRegistry {
	t.Helper()
	yml := fmt.Sprintf(`
assets:
  - key: orders
    group: sales
    description: Orders table
    command: %q
  - key: broken
    command: %q
    args: ["-scenario", "exit", "-exit-code", "4"]
  - key: slow
    command: %q
    args: ["-scenario", "sleep", "-sleep", "1m"]
    timeout: 200ms
  - key: garbled
    command: %q
    args: ["-scenario", "malformed"]
    message_transport: stdio
  - key: noisy
    command: %q
    args: ["-scenario", "stderr", "-stderr-bytes", "2048"]
%s`, testWorker, testWorker, testWorker, testWorker, testWorker, extra)

	reg, err := ParseAssetRegistry([]byte(yml), t.TempDir())
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	return reg
}
