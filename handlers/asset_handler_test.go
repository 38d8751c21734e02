package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"pipes-runner-server/middleware"
	"pipes-runner-server/models"
	"pipes-runner-server/runner"
	"pipes-runner-server/services"
)

const assetsYAML = `
assets:
  - key: orders
    group: sales
    description: Orders table
    command: /usr/local/bin/orders-worker
  - key: customers
    command: bin/customers
`

type testApp struct {
	app     *fiber.App
	mock    sqlmock.Sqlmock
	redis   *services.RedisService
	storage services.StorageService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	registry, err := services.ParseAssetRegistry([]byte(assetsYAML), "/srv/assets")
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	mr := miniredis.RunT(t)
	redisSvc := services.NewRedisServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisSvc.Close() })

	storage, err := services.NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	dbSvc := services.NewDBServiceFromDB(db)
	svc := services.NewAssetService(registry, dbSvc, storage, redisSvc, runner.New(runner.Config{}))

	app := fiber.New()
	app.Use(middleware.XRayMiddleware("handlers-test"))
	api := app.Group("/api")
	NewAssetHandler(svc).Register(api)
	NewScheduleHandler(services.NewScheduleService(registry, dbSvc)).Register(api)

	return &testApp{app: app, mock: mock, redis: redisSvc, storage: storage}
}

func (a *testApp) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

var invocationColumns = []string{
	"id", "asset_key", "run_id", "invoked_at", "invoked_by", "partition_key", "status", "metadata",
	"error_kind", "error_message", "exit_code", "duration_ms", "stderr_key", "messages_key", "created_at",
}

func TestListAndGetAssets(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, "GET", "/api/assets", "")
	require.Equal(t, fiber.StatusOK, status)
	var items []models.AssetListItem
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 2)
	require.Equal(t, "customers", items[0].Key)
	require.Equal(t, "orders", items[1].Key)

	status, body = a.do(t, "GET", "/api/assets/customers", "")
	require.Equal(t, fiber.StatusOK, status)
	var def models.AssetDefinition
	require.NoError(t, json.Unmarshal(body, &def))
	require.Equal(t, "/srv/assets/bin/customers", def.Command)

	status, body = a.do(t, "GET", "/api/assets/nope", "")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Contains(t, string(body), "asset not found")
}

func TestMaterializeAsset(t *testing.T) {
	a := newTestApp(t)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	a.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO asset_invocations")).
		WithArgs("orders", sqlmock.AnyArg(), sqlmock.AnyArg(), "2026-03-03", models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoked_at", "created_at"}).AddRow(5, now, now))

	status, body := a.do(t, "POST", "/api/assets/orders/materialize", `{"partition_key":"2026-03-03"}`)
	require.Equal(t, fiber.StatusAccepted, status)

	var resp models.MaterializeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, models.StatusPending, resp.Status)
	require.Equal(t, int64(5), resp.InvocationID)
	require.NotEmpty(t, resp.RunID)

	ctx, cancel := contextWithTimeout(t)
	defer cancel()
	queued, err := a.redis.PopExecutionRequest(ctx, services.MaterializeQueue, time.Second)
	require.NoError(t, err)
	require.Equal(t, resp.RunID, queued.RunID)
	require.Equal(t, "2026-03-03", queued.PartitionKey)
}

func TestMaterializeAssetErrors(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(t, "POST", "/api/assets/nope/materialize", "")
	require.Equal(t, fiber.StatusNotFound, status)

	status, body := a.do(t, "POST", "/api/assets/orders/materialize", `{"partition_key":`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Contains(t, string(body), "Invalid request body")
}

func TestGetInvocationResult(t *testing.T) {
	a := newTestApp(t)
	now := time.Now().UTC()

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(invocationColumns).AddRow(
			8, "orders", "r8", now, "tester", nil, models.StatusTimeout, nil,
			"timeout", "worker timed out after 1s (run r8)", -1, 1000, "runs/r8/stderr.log", nil, now))

	status, body := a.do(t, "GET", "/api/assets/orders/invocations/8", "")
	require.Equal(t, fiber.StatusOK, status)

	var resp models.MaterializeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, models.StatusTimeout, resp.Status)
	require.Equal(t, "timeout", resp.ErrorKind)
	require.Equal(t, -1, *resp.ExitCode)
	require.Nil(t, resp.Metadata)

	status, _ = a.do(t, "GET", "/api/assets/orders/invocations/abc", "")
	require.Equal(t, fiber.StatusBadRequest, status)

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(invocationColumns))
	status, _ = a.do(t, "GET", "/api/assets/orders/invocations/9", "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestFailedInvocationExposesStderr(t *testing.T) {
	a := newTestApp(t)
	now := time.Now().UTC()
	stderrKey := services.GenerateArtifactKey("r10", services.ArtifactStderr)
	require.NoError(t, a.storage.Save(context.Background(), stderrKey, []byte("load rows: source unavailable\n")))

	failRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(invocationColumns).AddRow(
			10, "orders", "r10", now, "tester", nil, models.StatusFail, nil,
			"worker_failed", "worker failed (run r10): exit status 3", 3, 40, stderrKey, nil, now)
	}

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(10)).WillReturnRows(failRow())
	status, body := a.do(t, "GET", "/api/assets/orders/invocations/10", "")
	require.Equal(t, fiber.StatusOK, status)
	var resp models.MaterializeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, models.StatusFail, resp.Status)
	require.Equal(t, "worker_failed", resp.ErrorKind)
	require.Equal(t, stderrKey, resp.StderrKey)
	require.Empty(t, resp.MessagesKey)

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(10)).WillReturnRows(failRow())
	status, body = a.do(t, "GET", "/api/assets/orders/invocations/10/stderr", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "load rows: source unavailable\n", string(body))

	// No messages were saved for this run.
	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(10)).WillReturnRows(failRow())
	status, _ = a.do(t, "GET", "/api/assets/orders/invocations/10/messages", "")
	require.Equal(t, fiber.StatusNotFound, status)

	// The invocation belongs to another asset.
	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(10)).WillReturnRows(failRow())
	status, _ = a.do(t, "GET", "/api/assets/customers/invocations/10/stderr", "")
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = a.do(t, "GET", "/api/assets/orders/invocations/x/stderr", "")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestMissingStoredArtifactIsNotFound(t *testing.T) {
	a := newTestApp(t)
	now := time.Now().UTC()

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(invocationColumns).AddRow(
			11, "orders", "r11", now, "tester", nil, models.StatusSuccess, nil,
			nil, nil, 0, 12, nil, "runs/r11/messages.jsonl", now))

	status, body := a.do(t, "GET", "/api/assets/orders/invocations/11/messages", "")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Contains(t, string(body), "artifact not found")
}

func TestListInvocations(t *testing.T) {
	a := newTestApp(t)

	a.mock.ExpectQuery("SELECT (.+) FROM asset_invocations").WithArgs("orders", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_key", "run_id", "invoked_at", "status", "metadata", "error_kind", "error_message", "duration_ms"}))

	status, body := a.do(t, "GET", "/api/assets/orders/invocations?limit=5", "")
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `[]`, string(body))

	status, _ = a.do(t, "GET", "/api/assets/nope/invocations", "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func contextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}
