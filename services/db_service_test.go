package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"pipes-runner-server/models"
)

func newMockDB(t *testing.T) (*DBService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewDBServiceFromDB(db), mock
}

var invocationColumns = []string{
	"id", "asset_key", "run_id", "invoked_at", "invoked_by", "partition_key", "status", "metadata",
	"error_kind", "error_message", "exit_code", "duration_ms", "stderr_key", "messages_key", "created_at",
}

func TestInitSchema(t *testing.T) {
	svc, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS asset_invocations").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, svc.InitSchema(context.Background()))
}

func TestCreateInvocation(t *testing.T) {
	svc, mock := newMockDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO asset_invocations (asset_key, run_id, invoked_by, partition_key, status)")).
		WithArgs("orders", "r1", "10.0.0.1", "2026-01-01", models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoked_at", "created_at"}).AddRow(7, now, now))

	inv, err := svc.CreateInvocation(context.Background(), &models.Invocation{
		AssetKey:     "orders",
		RunID:        "r1",
		InvokedBy:    "10.0.0.1",
		PartitionKey: "2026-01-01",
		Status:       models.StatusPending,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), inv.ID)
	require.Equal(t, now, inv.InvokedAt)
}

func TestUpdateInvocationResult(t *testing.T) {
	svc, mock := newMockDB(t)
	exitCode := 3

	mock.ExpectExec("UPDATE asset_invocations").
		WithArgs(int64(7), models.StatusFail, []byte(`{"rows":1}`), "worker_failed", "exit status 3",
			int64(3), 12, "runs/r1/stderr.log", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.UpdateInvocationResult(context.Background(), 7, models.StatusFail, &models.ExecutionResult{
		Metadata:     map[string]interface{}{"rows": 1},
		ErrorKind:    "worker_failed",
		ErrorMessage: "exit status 3",
		ExitCode:     &exitCode,
		DurationMs:   12,
		StderrKey:    "runs/r1/stderr.log",
	})
	require.NoError(t, err)
}

func TestGetInvocation(t *testing.T) {
	svc, mock := newMockDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM asset_invocations WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(invocationColumns).AddRow(
			7, "orders", "r1", now, "10.0.0.1", nil, models.StatusSuccess,
			[]byte(`{"rows_processed":{"raw_value":42,"type":"int"}}`),
			nil, nil, 0, 15, nil, "runs/r1/messages.jsonl", now,
		))

	inv, err := svc.GetInvocation(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "orders", inv.AssetKey)
	require.Equal(t, "", inv.PartitionKey)
	require.Equal(t, 0, *inv.ExitCode)
	require.Equal(t, 15, inv.DurationMs)
	require.Equal(t, "runs/r1/messages.jsonl", inv.MessagesKey)
	require.Equal(t, map[string]interface{}{"raw_value": float64(42), "type": "int"}, inv.Metadata["rows_processed"])
}

func TestGetInvocationMissing(t *testing.T) {
	svc, mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM asset_invocations").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(invocationColumns))

	inv, err := svc.GetInvocation(context.Background(), 99)
	require.NoError(t, err)
	require.Nil(t, inv)
}

func TestListInvocationsDefaultsLimit(t *testing.T) {
	svc, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM asset_invocations\\s+WHERE asset_key = \\$1").
		WithArgs("orders", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_key", "run_id", "invoked_at", "status", "metadata", "error_kind", "error_message", "duration_ms"}).
			AddRow(2, "orders", "r2", now, models.StatusTimeout, nil, "timeout", "worker timed out", 200).
			AddRow(1, "orders", "r1", now, models.StatusPending, nil, nil, nil, nil))

	items, err := svc.ListInvocations(context.Background(), "orders", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "timeout", items[0].ErrorKind)
	require.Equal(t, 200, items[0].DurationMs)
	require.Equal(t, models.StatusPending, items[1].Status)
	require.Zero(t, items[1].DurationMs)
}
