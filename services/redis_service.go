package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"

	"pipes-runner-server/models"
)

const (
	MaterializeQueue = "materialize_queue"
	ResultKeyPrefix  = "result:"
	ResultTTL        = 10 * time.Minute
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(host string, port int) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	return &RedisService{client: client}
}

// NewRedisServiceFromClient wraps an existing client
func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (r *RedisService) Close() error {
	return r.client.Close()
}

// PushExecutionRequest pushes an execution request to the specified queue
func (r *RedisService) PushExecutionRequest(ctx context.Context, queueKey string, req *models.ExecutionRequest) error {
	return xray.Capture(ctx, "Redis.LPush", func(ctx1 context.Context) error {
		jsonData, err := json.Marshal(req)
		if err != nil {
			return err
		}

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.queue_key", queueKey)
			seg.AddMetadata("redis.operation", "LPUSH")
			seg.AddMetadata("redis.run_id", req.RunID)
		}

		return r.client.LPush(ctx1, queueKey, string(jsonData)).Err()
	})
}

// PopExecutionRequest blocks up to wait for the next request on queueKey.
// It returns nil, nil when the wait elapses with an empty queue.
func (r *RedisService) PopExecutionRequest(ctx context.Context, queueKey string, wait time.Duration) (*models.ExecutionRequest, error) {
	result, err := r.client.BRPop(ctx, wait, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// result[0] is the queue key, result[1] is the data
	var req models.ExecutionRequest
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return nil, fmt.Errorf("parse execution request: %w", err)
	}
	return &req, nil
}

// SetResult stores the outcome of an invocation for ResultTTL
func (r *RedisService) SetResult(ctx context.Context, result *models.ExecutionResult) error {
	return xray.Capture(ctx, "Redis.Set", func(ctx1 context.Context) error {
		jsonData, err := json.Marshal(result)
		if err != nil {
			return err
		}
		key := resultKey(result.InvocationID)

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "SET")
		}

		return r.client.Set(ctx1, key, jsonData, ResultTTL).Err()
	})
}

// GetResult retrieves execution result for an invocation ID
func (r *RedisService) GetResult(ctx context.Context, invocationID int64) (*models.ExecutionResult, error) {
	var result *models.ExecutionResult

	err := xray.Capture(ctx, "Redis.Get", func(ctx1 context.Context) error {
		key := resultKey(invocationID)
		jsonData, err := r.client.Get(ctx1, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}

		var execResult models.ExecutionResult
		if err := json.Unmarshal([]byte(jsonData), &execResult); err != nil {
			return err
		}
		result = &execResult

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "GET")
			seg.AddMetadata("redis.invocation_id", invocationID)
		}

		return nil
	})

	return result, err
}

// Ping checks Redis connection
func (r *RedisService) Ping(ctx context.Context) error {
	return xray.Capture(ctx, "Redis.Ping", func(ctx1 context.Context) error {
		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.operation", "PING")
		}
		return r.client.Ping(ctx1).Err()
	})
}

func resultKey(invocationID int64) string {
	return fmt.Sprintf("%s%d", ResultKeyPrefix, invocationID)
}
