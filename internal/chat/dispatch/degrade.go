// internal/chat/dispatch/degrade.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"growth-chat/internal/common/database"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/common/metrics"
	"growth-chat/internal/models"
)

// degradedOperation is the wire shape queued to Redis when an entity service
// is unavailable and the fallback strategy is degrade.
type degradedOperation struct {
	EntityType models.EntityType      `json:"entityType"`
	Intent     models.IntentType      `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
	UserID     string                 `json:"userId"`
	QueuedAt   time.Time              `json:"queuedAt"`
}

// DegradeQueue persists write operations that could not reach their entity
// service. Replay is operator-driven through Drain; nothing replays
// automatically.
type DegradeQueue struct {
	redis  *database.RedisClient
	logger logger.Logger
}

func NewDegradeQueue(redis *database.RedisClient, log logger.Logger) *DegradeQueue {
	return &DegradeQueue{
		redis:  redis,
		logger: log.With(map[string]interface{}{"component": "degrade-queue"}),
	}
}

func queueKey(entityType models.EntityType) string {
	return fmt.Sprintf("degraded:%s", entityType)
}

// Enqueue appends the operation to the per-type queue.
func (q *DegradeQueue) Enqueue(ctx context.Context, op *models.ParsedOperation, userID string) error {
	payload, err := json.Marshal(degradedOperation{
		EntityType: op.EntityType,
		Intent:     op.Intent,
		Parameters: op.Parameters,
		UserID:     userID,
		QueuedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal degraded operation: %w", err)
	}

	key := queueKey(op.EntityType)
	if err := q.redis.RPush(ctx, key, payload); err != nil {
		return fmt.Errorf("queue degraded operation: %w", err)
	}

	if depth, err := q.redis.LLen(ctx, key); err == nil {
		metrics.DegradeQueueDepth.WithLabelValues(string(op.EntityType)).Set(float64(depth))
	}

	q.logger.Warn("operation queued for later replay", map[string]interface{}{
		"entityType": op.EntityType,
		"intent":     op.Intent,
		"userId":     userID,
	})
	return nil
}

// Len returns the current queue depth for one entity type.
func (q *DegradeQueue) Len(ctx context.Context, entityType models.EntityType) (int64, error) {
	return q.redis.LLen(ctx, queueKey(entityType))
}

// Drain pops queued operations for one entity type and hands each to fn until
// the queue is empty, fn fails, or ctx is done. It returns the number drained.
func (q *DegradeQueue) Drain(ctx context.Context, entityType models.EntityType, fn func(op *models.ParsedOperation, userID string) error) (int, error) {
	key := queueKey(entityType)
	drained := 0
	for {
		if err := ctx.Err(); err != nil {
			return drained, err
		}

		raw, err := q.redis.LPop(ctx, key)
		if err != nil {
			// Empty queue surfaces as redis.Nil from LPop.
			break
		}

		var d degradedOperation
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			q.logger.Error("dropping unreadable degraded entry", map[string]interface{}{
				"entityType": entityType,
				"error":      err.Error(),
			})
			continue
		}

		op := &models.ParsedOperation{
			EntityType: d.EntityType,
			Intent:     d.Intent,
			Parameters: d.Parameters,
			Confidence: 1.0,
		}
		if err := fn(op, d.UserID); err != nil {
			// Put it back at the head so nothing is lost.
			if perr := q.redis.Client.LPush(ctx, key, raw).Err(); perr != nil {
				q.logger.Error("failed to requeue degraded entry", map[string]interface{}{
					"entityType": entityType,
					"error":      perr.Error(),
				})
			}
			return drained, err
		}
		drained++
	}

	if depth, err := q.redis.LLen(ctx, key); err == nil {
		metrics.DegradeQueueDepth.WithLabelValues(string(entityType)).Set(float64(depth))
	}
	return drained, nil
}
