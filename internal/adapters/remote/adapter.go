// Package remote implements an entity adapter backed by an HTTP entity
// service. One adapter instance per entity type, each with its own base URL.
//
// Wire contract: POST <base>/operations with the operation JSON; the service
// answers an OperationResult. Non-2xx answers become failed results carrying
// the status code.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "growth-chat/internal/common/http"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type Adapter struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
}

// New creates an adapter for one entity service. The client timeout is a
// backstop; the dispatcher enforces the per-operation deadline via ctx.
func New(baseURL string, timeout time.Duration, log logger.Logger) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  commonhttp.NewClient(timeout),
		logger:  log.With(map[string]interface{}{"component": "remote-adapter", "baseUrl": baseURL}),
	}
}

type operationRequest struct {
	EntityType models.EntityType      `json:"entityType"`
	Intent     models.IntentType      `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (a *Adapter) Execute(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
	resp, err := a.client.PostJSON(ctx, a.baseURL+"/operations", operationRequest{
		EntityType: op.EntityType,
		Intent:     op.Intent,
		Parameters: op.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("call entity service: %w", err)
	}

	body, err := commonhttp.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read entity service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		a.logger.Warn("entity service returned non-2xx", map[string]interface{}{
			"status": resp.StatusCode,
			"intent": op.Intent,
		})
		return &models.OperationResult{
			Success:   false,
			Error:     fmt.Sprintf("entity service returned %d", resp.StatusCode),
			Retryable: &retryable,
		}, nil
	}

	var result models.OperationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode entity service response: %w", err)
	}
	return &result, nil
}
