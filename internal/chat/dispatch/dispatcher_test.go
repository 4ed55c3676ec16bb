package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-chat/internal/common/config"
	"growth-chat/internal/common/database"
	cerrors "growth-chat/internal/common/errors"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type stubAdapter struct {
	calls   int32
	execute func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error)
}

func (s *stubAdapter) Execute(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.execute(ctx, op)
}

func (s *stubAdapter) callCount() int {
	return int(atomic.LoadInt32(&s.calls))
}

func habitOp() *models.ParsedOperation {
	return &models.ParsedOperation{
		EntityType: models.EntityHabit,
		Intent:     models.IntentComplete,
		Parameters: map[string]interface{}{"name": "Morning Run"},
		Confidence: 0.93,
	}
}

func newTestDispatcher(t *testing.T, adapter EntityAdapter, entityCfg config.EntityConfig, degrade *DegradeQueue) *Dispatcher {
	t.Helper()
	registry := NewRegistry()
	registry.Register(models.EntityHabit, adapter)
	entities := map[string]config.EntityConfig{"habit": entityCfg}
	return NewDispatcher(registry, entities, degrade, logger.NewTestLogger(t))
}

func newTestDegradeQueue(t *testing.T) (*DegradeQueue, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewDegradeQueue(client, logger.NewTestLogger(t)), client
}

func TestExecuteSuccess(t *testing.T) {
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		return &models.OperationResult{Success: true, Data: map[string]interface{}{"id": "h-1"}}, nil
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{TimeoutMs: 1000, FallbackStrategy: StrategyFail}, nil)

	result := d.Execute(context.Background(), habitOp(), "u1", true)
	assert.True(t, result.Success)
	assert.Equal(t, "h-1", result.Data["id"])
	assert.NotEmpty(t, result.OperationID)
	assert.True(t, result.ContextUsed)
	assert.InDelta(t, 0.93, result.ConfidenceScore, 0.001)
	assert.Equal(t, 1, adapter.callCount())
}

func TestExecuteTimeoutRetriesExhaust(t *testing.T) {
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{
		TimeoutMs:        20,
		FallbackStrategy: StrategyRetry,
		MaxRetries:       2,
		RetryBackoffMs:   1,
	}, nil)

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, cerrors.TypeTimeout, result.Error.Type)
	assert.True(t, result.Error.Retryable)
	assert.Equal(t, 3, adapter.callCount(), "one initial attempt plus two retries")
}

func TestExecuteRetrySucceedsOnSecondAttempt(t *testing.T) {
	var attempt int32
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		if atomic.AddInt32(&attempt, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		return &models.OperationResult{Success: true}, nil
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{
		TimeoutMs:        1000,
		FallbackStrategy: StrategyRetry,
		MaxRetries:       2,
		RetryBackoffMs:   1,
	}, nil)

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.True(t, result.Success)
	assert.Equal(t, 2, adapter.callCount())
}

func TestExecuteNonRetryableFailureStopsRetrying(t *testing.T) {
	notRetryable := false
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		return &models.OperationResult{Success: false, Error: "habit not found", Retryable: &notRetryable}, nil
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{
		TimeoutMs:        1000,
		FallbackStrategy: StrategyRetry,
		MaxRetries:       3,
		RetryBackoffMs:   1,
	}, nil)

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, cerrors.TypeService, result.Error.Type)
	assert.False(t, result.Error.Retryable)
	assert.Contains(t, result.Error.Details, "habit not found")
	assert.Equal(t, 1, adapter.callCount(), "non-retryable failure must not retry")
}

func TestExecuteFailStrategySingleAttempt(t *testing.T) {
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		return nil, errors.New("boom")
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{TimeoutMs: 1000, FallbackStrategy: StrategyFail}, nil)

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.False(t, result.Success)
	assert.Equal(t, cerrors.TypeService, result.Error.Type)
	assert.Equal(t, 1, adapter.callCount())
}

func TestExecuteDegradeQueuesWrite(t *testing.T) {
	queue, client := newTestDegradeQueue(t)
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		return nil, errors.New("service unavailable")
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{TimeoutMs: 1000, FallbackStrategy: StrategyDegrade}, queue)

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.True(t, result.Success, "degraded write reports success")
	assert.Equal(t, true, result.Data["degraded"])

	depth, err := client.LLen(context.Background(), "degraded:habit")
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestExecuteDegradeSkipsReadIntents(t *testing.T) {
	queue, client := newTestDegradeQueue(t)
	adapter := &stubAdapter{execute: func(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
		return nil, errors.New("service unavailable")
	}}
	d := newTestDispatcher(t, adapter, config.EntityConfig{TimeoutMs: 1000, FallbackStrategy: StrategyDegrade}, queue)

	op := habitOp()
	op.Intent = models.IntentQuery
	result := d.Execute(context.Background(), op, "u1", false)
	assert.False(t, result.Success, "reads are never degraded")
	require.NotNil(t, result.Error)

	depth, err := client.LLen(context.Background(), "degraded:habit")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestExecuteUnknownEntityType(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, nil, logger.NewTestLogger(t))

	result := d.Execute(context.Background(), habitOp(), "u1", false)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, cerrors.TypeService, result.Error.Type)
	assert.False(t, result.Error.Retryable)
}

func TestDegradeQueueDrain(t *testing.T) {
	queue, _ := newTestDegradeQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, habitOp(), "u1"))
	op2 := habitOp()
	op2.Parameters = map[string]interface{}{"name": "Evening Stretch"}
	require.NoError(t, queue.Enqueue(ctx, op2, "u2"))

	depth, err := queue.Len(ctx, models.EntityHabit)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	var replayed []string
	drained, err := queue.Drain(ctx, models.EntityHabit, func(op *models.ParsedOperation, userID string) error {
		name, _ := op.Parameters["name"].(string)
		replayed = append(replayed, userID+":"+name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, drained)
	assert.Equal(t, []string{"u1:Morning Run", "u2:Evening Stretch"}, replayed)

	depth, err = queue.Len(ctx, models.EntityHabit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestDegradeQueueDrainRequeuesOnFailure(t *testing.T) {
	queue, _ := newTestDegradeQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, habitOp(), "u1"))

	drained, err := queue.Drain(ctx, models.EntityHabit, func(op *models.ParsedOperation, userID string) error {
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, drained)

	depth, lerr := queue.Len(ctx, models.EntityHabit)
	require.NoError(t, lerr)
	assert.Equal(t, int64(1), depth, "failed replay must keep the entry queued")
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry()
	r.Register(models.EntityMood, &stubAdapter{})
	r.Register(models.EntityHabit, &stubAdapter{})

	assert.Equal(t, []models.EntityType{models.EntityHabit, models.EntityMood}, r.Types())

	_, ok := r.Get(models.EntityGoal)
	assert.False(t, ok)
}
