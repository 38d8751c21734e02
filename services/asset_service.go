package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"

	"pipes-runner-server/models"
	"pipes-runner-server/pipes"
	"pipes-runner-server/runner"
)

var ErrInvocationNotFound = errors.New("invocation not found")

// ErrorKindQueue marks an invocation that never reached the queue.
const ErrorKindQueue = "queue"

type AssetService struct {
	registry *AssetRegistry
	db       *DBService
	storage  StorageService
	redis    *RedisService
	runner   *runner.Client
}

func NewAssetService(registry *AssetRegistry, db *DBService, storage StorageService, redis *RedisService, client *runner.Client) *AssetService {
	return &AssetService{
		registry: registry,
		db:       db,
		storage:  storage,
		redis:    redis,
		runner:   client,
	}
}

// ListAssets returns every registered asset
func (s *AssetService) ListAssets() []models.AssetListItem {
	defs := s.registry.List()
	items := make([]models.AssetListItem, 0, len(defs))
	for _, def := range defs {
		items = append(items, models.AssetListItem{
			Key:         def.Key,
			Group:       def.Group,
			Kinds:       def.Kinds,
			Description: def.Description,
		})
	}
	return items
}

// GetAsset retrieves an asset definition by key
func (s *AssetService) GetAsset(key string) (*models.AssetDefinition, error) {
	def, err := s.registry.Get(key)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// MaterializeAsset records a pending invocation and queues it for a dispatcher
func (s *AssetService) MaterializeAsset(ctx context.Context, key string, req *models.MaterializeRequest, invokedBy string) (*models.Invocation, error) {
	if _, err := s.registry.Get(key); err != nil {
		return nil, err
	}
	if req == nil {
		req = &models.MaterializeRequest{}
	}

	inv := &models.Invocation{
		AssetKey:     key,
		RunID:        uuid.NewString(),
		InvokedBy:    invokedBy,
		PartitionKey: req.PartitionKey,
		Status:       models.StatusPending,
	}

	created, err := s.db.CreateInvocation(ctx, inv)
	if err != nil {
		return nil, err
	}

	execReq := &models.ExecutionRequest{
		InvocationID: created.ID,
		AssetKey:     key,
		RunID:        created.RunID,
		PartitionKey: req.PartitionKey,
		JobName:      req.JobName,
		Extras:       req.Extras,
	}
	if err := s.redis.PushExecutionRequest(ctx, MaterializeQueue, execReq); err != nil {
		err = fmt.Errorf("queue invocation %d: %w", created.ID, err)
		// The row would otherwise stay pending with nothing left to run it.
		failed := &models.ExecutionResult{
			InvocationID: created.ID,
			RunID:        created.RunID,
			Status:       models.ExecError,
			ErrorKind:    ErrorKindQueue,
			ErrorMessage: err.Error(),
		}
		if uerr := s.db.UpdateInvocationResult(context.WithoutCancel(ctx), created.ID, models.StatusFail, failed); uerr != nil {
			log.Printf("assets: mark invocation %d failed: %v", created.ID, uerr)
		}
		return nil, err
	}

	return created, nil
}

// GetInvocationResult returns an invocation of key, folding a finished
// result from Redis into the DB while the record is still pending
func (s *AssetService) GetInvocationResult(ctx context.Context, key string, invocationID int64) (*models.Invocation, error) {
	inv, err := s.db.GetInvocation(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.AssetKey != key {
		return nil, fmt.Errorf("%w: %d", ErrInvocationNotFound, invocationID)
	}

	if inv.Status != models.StatusPending {
		return inv, nil
	}

	result, err := s.redis.GetResult(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		// Still pending
		return inv, nil
	}

	if err := s.RecordResult(ctx, result); err != nil {
		return nil, err
	}
	return s.db.GetInvocation(ctx, invocationID)
}

// GetInvocationArtifact returns an artifact (ArtifactStderr or
// ArtifactMessages) saved for an invocation of key
func (s *AssetService) GetInvocationArtifact(ctx context.Context, key string, invocationID int64, name string) ([]byte, error) {
	inv, err := s.db.GetInvocation(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.AssetKey != key {
		return nil, fmt.Errorf("%w: %d", ErrInvocationNotFound, invocationID)
	}

	var artifactKey string
	switch name {
	case ArtifactStderr:
		artifactKey = inv.StderrKey
	case ArtifactMessages:
		artifactKey = inv.MessagesKey
	default:
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if artifactKey == "" || s.storage == nil {
		return nil, fmt.Errorf("%w: %s of invocation %d", ErrArtifactNotFound, name, invocationID)
	}
	return s.storage.Get(ctx, artifactKey)
}

// RecordResult writes a finished execution onto its invocation record
func (s *AssetService) RecordResult(ctx context.Context, result *models.ExecutionResult) error {
	return s.db.UpdateInvocationResult(ctx, result.InvocationID, invocationStatus(result.Status), result)
}

// ListInvocations returns invocations for an asset
func (s *AssetService) ListInvocations(ctx context.Context, key string, limit int) ([]models.InvocationListItem, error) {
	if _, err := s.registry.Get(key); err != nil {
		return nil, err
	}
	return s.db.ListInvocations(ctx, key, limit)
}

// Execute runs the worker of one queued request to completion and returns
// its outcome. Failures are reported in the result, never as an error.
func (s *AssetService) Execute(ctx context.Context, req *models.ExecutionRequest) *models.ExecutionResult {
	result := &models.ExecutionResult{
		InvocationID: req.InvocationID,
		RunID:        req.RunID,
	}

	def, err := s.registry.Get(req.AssetKey)
	if err != nil {
		result.Status = models.ExecError
		result.ErrorKind = runner.KindLaunch
		result.ErrorMessage = err.Error()
		return result
	}

	inv := runner.Invocation{
		Command: append([]string{def.Command}, def.Args...),
		Context: pipes.ContextData{
			RunID:     req.RunID,
			AssetKeys: []string{def.Key},
			Extras:    req.Extras,
		},
		Env:              def.Env,
		Dir:              s.registry.Anchor(),
		Timeout:          def.Timeout,
		MessageTransport: runner.MessageTransport(def.MessageTransport),
		ContextInjection: runner.ContextInjection(def.ContextInjection),
	}
	if req.PartitionKey != "" {
		inv.Context.PartitionKey = &req.PartitionKey
	}
	if req.JobName != "" {
		inv.Context.JobName = &req.JobName
	}

	var res *runner.Result
	xray.Capture(ctx, "Runner.Run", func(ctx1 context.Context) error {
		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddAnnotation("asset_key", def.Key)
			seg.AddAnnotation("run_id", req.RunID)
		}
		res, err = s.runner.Run(ctx1, inv)
		return err
	})

	var failed *runner.WorkerFailedError
	if errors.As(err, &failed) {
		res = failed.Result
		result.ExitCode = &failed.ExitCode
	}
	if res != nil {
		result.Metadata = metadataMap(res.Metadata)
		result.DurationMs = int(res.Duration.Milliseconds())
		if result.ExitCode == nil {
			result.ExitCode = &res.ExitCode
		}
	}

	switch {
	case err == nil:
		result.Status = models.ExecSuccess
	case runner.Kind(err) == runner.KindTimeout:
		result.Status = models.ExecTimeout
	default:
		result.Status = models.ExecError
	}
	if err != nil {
		result.ErrorKind = runner.Kind(err)
		result.ErrorMessage = err.Error()
	}

	stderr := runner.Stderr(err)
	if res != nil {
		stderr = res.Stderr
	}
	s.saveArtifacts(context.WithoutCancel(ctx), result, stderr, res)
	return result
}

func (s *AssetService) saveArtifacts(ctx context.Context, result *models.ExecutionResult, stderr string, res *runner.Result) {
	if s.storage == nil {
		return
	}
	if stderr != "" {
		key := GenerateArtifactKey(result.RunID, ArtifactStderr)
		if err := s.storage.Save(ctx, key, []byte(stderr)); err != nil {
			log.Printf("assets: save stderr of run %s: %v", result.RunID, err)
		} else {
			result.StderrKey = key
		}
	}
	if res != nil && len(res.Messages) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, msg := range res.Messages {
			if err := enc.Encode(msg); err != nil {
				log.Printf("assets: encode message of run %s: %v", result.RunID, err)
				return
			}
		}
		key := GenerateArtifactKey(result.RunID, ArtifactMessages)
		if err := s.storage.Save(ctx, key, buf.Bytes()); err != nil {
			log.Printf("assets: save messages of run %s: %v", result.RunID, err)
		} else {
			result.MessagesKey = key
		}
	}
}

// metadataMap flattens typed metadata into its wire shape for storage
func metadataMap(md pipes.Metadata) map[string]interface{} {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		entry := map[string]interface{}{"raw_value": v.Value()}
		if v != nil && v.Type != "" {
			entry["type"] = string(v.Type)
		}
		out[k] = entry
	}
	return out
}

func invocationStatus(execStatus string) string {
	switch execStatus {
	case models.ExecSuccess:
		return models.StatusSuccess
	case models.ExecTimeout:
		return models.StatusTimeout
	default:
		return models.StatusFail
	}
}
