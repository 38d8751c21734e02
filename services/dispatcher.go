package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"pipes-runner-server/models"
)

// Dispatcher drains the materialize queue with a fixed number of goroutines,
// each running one worker process at a time.
type Dispatcher struct {
	assets      *AssetService
	redis       *RedisService
	queue       string
	concurrency int
	pollWait    time.Duration
	retryDelay  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(assets *AssetService, redis *RedisService, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		assets:      assets,
		redis:       redis,
		queue:       MaterializeQueue,
		concurrency: concurrency,
		pollWait:    5 * time.Second,
		retryDelay:  time.Second,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go func(slot int) {
			defer d.wg.Done()
			d.loop(ctx, slot)
		}(i)
	}
	log.Printf("dispatcher: started %d slots on %s", d.concurrency, d.queue)
}

// Stop cancels in-flight invocations, which kills their worker processes, and
// waits for every slot to return.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	log.Printf("dispatcher: stopped")
}

func (d *Dispatcher) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		req, err := d.redis.PopExecutionRequest(ctx, d.queue, d.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("dispatcher: slot %d: read queue: %v", slot, err)
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		if req == nil {
			// Timeout, no job available
			continue
		}
		d.process(ctx, req)
	}
}

func (d *Dispatcher) process(ctx context.Context, req *models.ExecutionRequest) {
	segCtx, seg := xray.BeginSegment(ctx, "pipes-dispatcher")
	defer seg.Close(nil)
	seg.AddAnnotation("asset_key", req.AssetKey)
	seg.AddAnnotation("run_id", req.RunID)

	log.Printf("dispatcher: processing invocation %d (asset %s, run %s)", req.InvocationID, req.AssetKey, req.RunID)
	result := d.assets.Execute(segCtx, req)

	// The outcome is recorded even when shutdown canceled the run.
	writeCtx := context.WithoutCancel(segCtx)
	if err := d.redis.SetResult(writeCtx, result); err != nil {
		log.Printf("dispatcher: store result of invocation %d: %v", req.InvocationID, err)
	}
	if err := d.assets.RecordResult(writeCtx, result); err != nil {
		log.Printf("dispatcher: record invocation %d: %v", req.InvocationID, err)
	}

	if result.ErrorKind != "" {
		log.Printf("dispatcher: finished invocation %d - %s (%s: %s)", req.InvocationID, result.Status, result.ErrorKind, result.ErrorMessage)
		return
	}
	log.Printf("dispatcher: finished invocation %d - %s", req.InvocationID, result.Status)
}
