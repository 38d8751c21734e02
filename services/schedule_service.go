package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipes-runner-server/models"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidSchedule  = errors.New("invalid schedule")
)

type ScheduleService struct {
	registry *AssetRegistry
	db       *DBService
	now      func() time.Time
}

func NewScheduleService(registry *AssetRegistry, db *DBService) *ScheduleService {
	return &ScheduleService{
		registry: registry,
		db:       db,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSchedule registers a one-time materialization of key
func (s *ScheduleService) CreateSchedule(ctx context.Context, key string, req *models.CreateScheduleRequest) (*models.AssetSchedule, error) {
	if _, err := s.registry.Get(key); err != nil {
		return nil, err
	}
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", ErrInvalidSchedule)
	}
	if req.ScheduledAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: scheduled_at must be in the future", ErrInvalidSchedule)
	}

	return s.db.CreateSchedule(ctx, &models.AssetSchedule{
		AssetKey:     key,
		ScheduledAt:  req.ScheduledAt.UTC(),
		PartitionKey: req.PartitionKey,
		JobName:      req.JobName,
		Extras:       req.Extras,
	})
}

// ListSchedules returns the schedules of an asset
func (s *ScheduleService) ListSchedules(ctx context.Context, key string) ([]models.AssetSchedule, error) {
	if _, err := s.registry.Get(key); err != nil {
		return nil, err
	}
	return s.db.ListSchedules(ctx, key)
}

// DeleteSchedule removes a schedule of key
func (s *ScheduleService) DeleteSchedule(ctx context.Context, key string, scheduleID int64) error {
	deleted, err := s.db.DeleteSchedule(ctx, key, scheduleID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrScheduleNotFound, scheduleID)
	}
	return nil
}

// ClaimDueSchedules locks due schedules and returns them for execution
func (s *ScheduleService) ClaimDueSchedules(ctx context.Context, limit int) ([]models.AssetSchedule, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.db.ClaimDueSchedules(ctx, s.now(), limit)
}

// MarkExecuted records the invocation a schedule produced, or why it produced none
func (s *ScheduleService) MarkExecuted(ctx context.Context, scheduleID int64, invocationID *int64, status, errMsg string) error {
	return s.db.MarkScheduleExecuted(ctx, scheduleID, invocationID, status, errMsg)
}
