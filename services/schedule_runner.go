package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"pipes-runner-server/models"
)

// ScheduleRunner turns due schedules into queued materializations. The
// dispatcher runs them; the schedule only records which invocation it became.
type ScheduleRunner struct {
	schedules *ScheduleService
	assets    *AssetService
	interval  time.Duration
	batchSize int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduleRunner(schedules *ScheduleService, assets *AssetService) *ScheduleRunner {
	return &ScheduleRunner{
		schedules: schedules,
		assets:    assets,
		interval:  time.Second,
		batchSize: 20,
	}
}

func (r *ScheduleRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.processDueSchedules(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *ScheduleRunner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *ScheduleRunner) processDueSchedules(ctx context.Context) {
	ctx, seg := xray.BeginSegment(ctx, "pipes-scheduler")
	defer seg.Close(nil)

	schedules, err := r.schedules.ClaimDueSchedules(ctx, r.batchSize)
	if err != nil {
		log.Printf("scheduler: failed to claim schedules: %v", err)
		return
	}
	for _, sched := range schedules {
		r.executeSchedule(ctx, sched)
	}
}

func (r *ScheduleRunner) executeSchedule(ctx context.Context, sched models.AssetSchedule) {
	req := &models.MaterializeRequest{
		PartitionKey: sched.PartitionKey,
		JobName:      sched.JobName,
		Extras:       sched.Extras,
	}
	invokedBy := fmt.Sprintf("schedule:%d", sched.ID)

	var (
		invocationID *int64
		status       = models.ScheduleQueued
		errMsg       string
	)
	inv, err := r.assets.MaterializeAsset(ctx, sched.AssetKey, req, invokedBy)
	if err != nil {
		log.Printf("scheduler: schedule %d of %s: %v", sched.ID, sched.AssetKey, err)
		status = models.ScheduleFailed
		errMsg = err.Error()
	} else {
		invocationID = &inv.ID
	}

	if err := r.schedules.MarkExecuted(context.WithoutCancel(ctx), sched.ID, invocationID, status, errMsg); err != nil {
		log.Printf("scheduler: failed to mark schedule %d: %v", sched.ID, err)
	}
}
