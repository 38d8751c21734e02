package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pipes-runner-server/models"
)

const scheduleColumns = `id, asset_key, scheduled_at, partition_key, job_name, extras, executed, executed_at,
			invocation_id, status, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.AssetSchedule, error) {
	var sched models.AssetSchedule
	var extrasJSON []byte
	var partitionKey, jobName, status, errorMsg sql.NullString
	var executedAt sql.NullTime
	var invocationID sql.NullInt64
	if err := row.Scan(&sched.ID, &sched.AssetKey, &sched.ScheduledAt, &partitionKey, &jobName, &extrasJSON,
		&sched.Executed, &executedAt, &invocationID, &status, &errorMsg, &sched.CreatedAt, &sched.UpdatedAt); err != nil {
		return nil, err
	}
	if extrasJSON != nil {
		json.Unmarshal(extrasJSON, &sched.Extras)
	}
	sched.PartitionKey = partitionKey.String
	sched.JobName = jobName.String
	sched.Status = status.String
	sched.ErrorMessage = errorMsg.String
	if executedAt.Valid {
		sched.ExecutedAt = &executedAt.Time
	}
	if invocationID.Valid {
		sched.InvocationID = &invocationID.Int64
	}
	return &sched, nil
}

// CreateSchedule inserts a new scheduled materialization
func (s *DBService) CreateSchedule(ctx context.Context, sched *models.AssetSchedule) (*models.AssetSchedule, error) {
	extrasJSON, err := json.Marshal(sched.Extras)
	if err != nil {
		return nil, fmt.Errorf("encode extras: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO asset_schedules (asset_key, scheduled_at, partition_key, job_name, extras, executed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING `+scheduleColumns,
		sched.AssetKey, sched.ScheduledAt, sched.PartitionKey, sched.JobName, extrasJSON)
	created, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return created, nil
}

// ListSchedules returns schedules for an asset
func (s *DBService) ListSchedules(ctx context.Context, assetKey string) ([]models.AssetSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM asset_schedules
		WHERE asset_key = $1
		ORDER BY scheduled_at DESC
	`, assetKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []models.AssetSchedule{}
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sched)
	}
	return schedules, rows.Err()
}

// DeleteSchedule removes a schedule. It reports whether a row was deleted.
func (s *DBService) DeleteSchedule(ctx context.Context, assetKey string, scheduleID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM asset_schedules WHERE id = $1 AND asset_key = $2
	`, scheduleID, assetKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClaimDueSchedules locks schedules due at now, marks them executed and
// returns them. SKIP LOCKED lets several servers share the table.
func (s *DBService) ClaimDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.AssetSchedule, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM asset_schedules
		WHERE executed = FALSE AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}

	var schedules []models.AssetSchedule
	var args []any
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		schedules = append(schedules, *sched)
		args = append(args, sched.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		placeholders := make([]string, len(args))
		for i := range args {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf(`
			UPDATE asset_schedules
			SET executed = TRUE, executed_at = now(), updated_at = now()
			WHERE id IN (%s)
		`, strings.Join(placeholders, ","))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return schedules, nil
}

// MarkScheduleExecuted records what became of a claimed schedule
func (s *DBService) MarkScheduleExecuted(ctx context.Context, scheduleID int64, invocationID *int64, status, errMsg string) error {
	var inv sql.NullInt64
	if invocationID != nil {
		inv = sql.NullInt64{Int64: *invocationID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE asset_schedules
		SET invocation_id = $2, status = $3, error_message = $4, updated_at = now()
		WHERE id = $1
	`, scheduleID, inv, status, errMsg)
	return err
}
