package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pipes-runner-server/models"

	_ "github.com/lib/pq"
)

type DBService struct {
	db *sql.DB
}

func NewDBService(host string, port int, user, password, dbname string) (*DBService, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DBService{db: db}, nil
}

// NewDBServiceFromDB wraps an already opened handle
func NewDBServiceFromDB(db *sql.DB) *DBService {
	return &DBService{db: db}
}

func (s *DBService) Close() error {
	return s.db.Close()
}

// InitSchema creates tables if they don't exist
func (s *DBService) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS asset_invocations (
		id BIGSERIAL PRIMARY KEY,
		asset_key VARCHAR(255) NOT NULL,
		run_id VARCHAR(64) NOT NULL UNIQUE,
		invoked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		invoked_by VARCHAR(255),
		partition_key VARCHAR(255),
		status VARCHAR(20) NOT NULL,
		metadata JSONB,
		error_kind VARCHAR(32),
		error_message TEXT,
		exit_code INTEGER,
		duration_ms INTEGER,
		stderr_key TEXT,
		messages_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_asset_invocations_asset_key ON asset_invocations(asset_key);
	CREATE INDEX IF NOT EXISTS idx_asset_invocations_invoked_at ON asset_invocations(invoked_at DESC);

	CREATE TABLE IF NOT EXISTS asset_schedules (
		id BIGSERIAL PRIMARY KEY,
		asset_key VARCHAR(255) NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		partition_key VARCHAR(255),
		job_name VARCHAR(255),
		extras JSONB,
		executed BOOLEAN NOT NULL DEFAULT FALSE,
		executed_at TIMESTAMPTZ,
		invocation_id BIGINT REFERENCES asset_invocations(id),
		status VARCHAR(20),
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_asset_schedules_due ON asset_schedules(scheduled_at) WHERE executed = FALSE;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateInvocation creates a new invocation record
func (s *DBService) CreateInvocation(ctx context.Context, inv *models.Invocation) (*models.Invocation, error) {
	var id int64
	var invokedAt, createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO asset_invocations (asset_key, run_id, invoked_by, partition_key, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invoked_at, created_at
	`, inv.AssetKey, inv.RunID, inv.InvokedBy, inv.PartitionKey, inv.Status).Scan(&id, &invokedAt, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert invocation: %w", err)
	}

	inv.ID = id
	inv.InvokedAt = invokedAt
	inv.CreatedAt = createdAt

	return inv, nil
}

// UpdateInvocationResult updates the invocation with the worker's outcome
func (s *DBService) UpdateInvocationResult(ctx context.Context, id int64, status string, result *models.ExecutionResult) error {
	metadataJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var exitCode sql.NullInt32
	if result.ExitCode != nil {
		exitCode = sql.NullInt32{Int32: int32(*result.ExitCode), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE asset_invocations
		SET status = $2, metadata = $3, error_kind = $4, error_message = $5, exit_code = $6,
			duration_ms = $7, stderr_key = $8, messages_key = $9
		WHERE id = $1
	`, id, status, metadataJSON, result.ErrorKind, result.ErrorMessage, exitCode,
		result.DurationMs, result.StderrKey, result.MessagesKey)

	return err
}

// GetInvocation retrieves an invocation by ID
func (s *DBService) GetInvocation(ctx context.Context, id int64) (*models.Invocation, error) {
	inv := &models.Invocation{}
	var metadataJSON []byte
	var invokedBy, partitionKey, errorKind, errorMessage, stderrKey, messagesKey sql.NullString
	var exitCode, durationMs sql.NullInt32

	err := s.db.QueryRowContext(ctx, `
		SELECT id, asset_key, run_id, invoked_at, invoked_by, partition_key, status, metadata,
			error_kind, error_message, exit_code, duration_ms, stderr_key, messages_key, created_at
		FROM asset_invocations WHERE id = $1
	`, id).Scan(&inv.ID, &inv.AssetKey, &inv.RunID, &inv.InvokedAt, &invokedBy, &partitionKey, &inv.Status, &metadataJSON,
		&errorKind, &errorMessage, &exitCode, &durationMs, &stderrKey, &messagesKey, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if metadataJSON != nil {
		json.Unmarshal(metadataJSON, &inv.Metadata)
	}
	inv.InvokedBy = invokedBy.String
	inv.PartitionKey = partitionKey.String
	inv.ErrorKind = errorKind.String
	inv.ErrorMessage = errorMessage.String
	inv.StderrKey = stderrKey.String
	inv.MessagesKey = messagesKey.String
	if exitCode.Valid {
		code := int(exitCode.Int32)
		inv.ExitCode = &code
	}
	if durationMs.Valid {
		inv.DurationMs = int(durationMs.Int32)
	}

	return inv, nil
}

// ListInvocations returns the most recent invocations of an asset
func (s *DBService) ListInvocations(ctx context.Context, assetKey string, limit int) ([]models.InvocationListItem, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_key, run_id, invoked_at, status, metadata, error_kind, error_message, duration_ms
		FROM asset_invocations
		WHERE asset_key = $1
		ORDER BY invoked_at DESC
		LIMIT $2
	`, assetKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invocations []models.InvocationListItem
	for rows.Next() {
		var inv models.InvocationListItem
		var metadataJSON []byte
		var errorKind, errorMessage sql.NullString
		var durationMs sql.NullInt32

		err := rows.Scan(&inv.ID, &inv.AssetKey, &inv.RunID, &inv.InvokedAt, &inv.Status, &metadataJSON, &errorKind, &errorMessage, &durationMs)
		if err != nil {
			return nil, err
		}

		if metadataJSON != nil {
			json.Unmarshal(metadataJSON, &inv.Metadata)
		}
		inv.ErrorKind = errorKind.String
		inv.ErrorMessage = errorMessage.String
		if durationMs.Valid {
			inv.DurationMs = int(durationMs.Int32)
		}

		invocations = append(invocations, inv)
	}

	return invocations, rows.Err()
}
