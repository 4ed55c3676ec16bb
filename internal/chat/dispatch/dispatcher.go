// internal/chat/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"growth-chat/internal/common/config"
	cerrors "growth-chat/internal/common/errors"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/common/metrics"
	"growth-chat/internal/models"
)

// Fallback strategies, configured per entity type.
const (
	StrategyRetry   = "retry"
	StrategyDegrade = "degrade"
	StrategyFail    = "fail"
)

// Defaults applied when an entity type has no configuration block.
const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 100 * time.Millisecond
)

// Dispatcher executes parsed operations through registered adapters with
// per-type timeout enforcement and fallback handling. It never returns a raw
// error; every failure is classified into the result's ChatError.
type Dispatcher struct {
	registry *Registry
	entities map[string]config.EntityConfig
	degrade  *DegradeQueue // nil when no Redis is configured
	logger   logger.Logger
}

func NewDispatcher(registry *Registry, entities map[string]config.EntityConfig, degrade *DegradeQueue, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		entities: entities,
		degrade:  degrade,
		logger:   log.With(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Execute runs op against its adapter and returns the extended result. The
// operation id is assigned here and is unique per dispatch, not per attempt.
func (d *Dispatcher) Execute(ctx context.Context, op *models.ParsedOperation, userID string, contextUsed bool) *models.ExtendedOperationResult {
	start := time.Now()
	result := &models.ExtendedOperationResult{
		OperationID:     uuid.NewString(),
		Timestamp:       start.UTC(),
		ContextUsed:     contextUsed,
		ConfidenceScore: op.Confidence,
		Alternatives:    op.Alternatives,
	}
	defer func() {
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		metrics.DispatchDuration.WithLabelValues(string(op.EntityType)).Observe(time.Since(start).Seconds())
	}()

	adapter, ok := d.registry.Get(op.EntityType)
	if !ok {
		result.Error = cerrors.NewEntityNotSupportedError(string(op.EntityType))
		return result
	}

	cfg := d.entityConfig(op.EntityType)
	timeout := defaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	attempts := 1
	if cfg.FallbackStrategy == StrategyRetry && cfg.MaxRetries > 0 {
		attempts = 1 + cfg.MaxRetries
	}

	var lastErr *cerrors.ChatError
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := d.attempt(ctx, adapter, op, timeout)
		chatErr := classify(out, err, op.EntityType, timeout)
		if chatErr == nil {
			result.Success = true
			result.Data = out.Data
			d.logger.Info("operation dispatched", map[string]interface{}{
				"operationId": result.OperationID,
				"entityType":  op.EntityType,
				"intent":      op.Intent,
				"attempt":     attempt,
			})
			return result
		}

		lastErr = chatErr
		d.logger.Warn("dispatch attempt failed", map[string]interface{}{
			"operationId": result.OperationID,
			"entityType":  op.EntityType,
			"attempt":     attempt,
			"errorType":   chatErr.Type,
			"retryable":   chatErr.Retryable,
		})

		if !chatErr.Retryable || attempt == attempts {
			break
		}
		metrics.DispatchRetries.WithLabelValues(string(op.EntityType)).Inc()
		if !d.backoff(ctx, cfg, attempt) {
			break
		}
	}

	// All attempts exhausted. Degrade captures failed writes for later replay.
	if cfg.FallbackStrategy == StrategyDegrade && models.WriteIntents[op.Intent] && d.degrade != nil {
		err := d.degrade.Enqueue(ctx, op, userID)
		if err == nil {
			result.Success = true
			result.Data = map[string]interface{}{
				"degraded": true,
				"message":  "the service is unavailable; your change was saved and will be applied later",
			}
			return result
		}
		d.logger.Error("degrade enqueue failed", map[string]interface{}{
			"operationId": result.OperationID,
			"entityType":  op.EntityType,
			"error":       err.Error(),
		})
	}

	result.Error = lastErr
	return result
}

// attempt runs one adapter call under its own deadline. The adapter goroutine
// may outlive a timed-out attempt; its buffered channel prevents a leak.
func (d *Dispatcher) attempt(ctx context.Context, adapter EntityAdapter, op *models.ParsedOperation, timeout time.Duration) (*models.OperationResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out *models.OperationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := adapter.Execute(attemptCtx, op)
		done <- outcome{out: out, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	case o := <-done:
		return o.out, o.err
	}
}

// backoff sleeps exponentially before the next attempt. Returns false when ctx
// expired during the wait.
func (d *Dispatcher) backoff(ctx context.Context, cfg config.EntityConfig, attempt int) bool {
	base := defaultBackoff
	if cfg.RetryBackoffMs > 0 {
		base = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	wait := base * time.Duration(1<<(attempt-1))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

func (d *Dispatcher) entityConfig(entityType models.EntityType) config.EntityConfig {
	if cfg, ok := d.entities[string(entityType)]; ok {
		return cfg
	}
	return config.EntityConfig{FallbackStrategy: StrategyFail}
}

// classify converts an attempt outcome into a ChatError, nil on success.
func classify(out *models.OperationResult, err error, entityType models.EntityType, timeout time.Duration) *cerrors.ChatError {
	if err != nil {
		return cerrors.Normalize(err, string(entityType), timeout)
	}
	if out == nil {
		return cerrors.NewServiceError(string(entityType), nil, nil)
	}
	if out.Success {
		return nil
	}
	chatErr := cerrors.NewServiceError(string(entityType), nil, out.Retryable)
	if out.Error != "" {
		chatErr.Details = out.Error
	}
	return chatErr
}
