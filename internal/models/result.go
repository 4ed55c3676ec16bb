// internal/models/result.go
package models

import (
	"time"

	"growth-chat/internal/common/errors"
)

// OperationResult is what an entity adapter returns. Retryable is the
// adapter's own hint for failure classification; nil means "no opinion".
type OperationResult struct {
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Retryable *bool                  `json:"retryable,omitempty"`
}

// ExtendedOperationResult wraps one executed (or failed) operation with
// execution metadata. One instance per processed message; not persisted here.
type ExtendedOperationResult struct {
	Success         bool                   `json:"success"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Error           *errors.ChatError      `json:"error,omitempty"`
	OperationID     string                 `json:"operationId"`
	Timestamp       time.Time              `json:"timestamp"`
	ExecutionTimeMs int64                  `json:"executionTimeMs"`
	ContextUsed     bool                   `json:"contextUsed"`
	ConfidenceScore float64                `json:"confidenceScore"`
	Alternatives    []OperationCandidate   `json:"alternatives,omitempty"`
}

// ChatRequest is the inbound shape for ProcessMessage.
type ChatRequest struct {
	Message   string          `json:"message"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId,omitempty"`
	Options   *RequestOptions `json:"options,omitempty"`
}

// RequestOptions carries per-request tuning flags.
type RequestOptions struct {
	DisableContext bool `json:"disableContext,omitempty"`
}

// ResponseMetadata is attached to every response.
type ResponseMetadata struct {
	RequestID        string    `json:"requestId"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	ConfidenceScore  *float64  `json:"confidenceScore,omitempty"`
}

// ChatEntityResponse is the single outbound shape of ProcessMessage. The
// caller always receives a structured response, never a raw fault.
type ChatEntityResponse struct {
	Success               bool                     `json:"success"`
	Operation             *ParsedOperation         `json:"operation,omitempty"`
	Result                *ExtendedOperationResult `json:"result,omitempty"`
	Error                 *errors.ChatError        `json:"error,omitempty"`
	Suggestions           []string                 `json:"suggestions,omitempty"`
	NeedsDisambiguation   bool                     `json:"needsDisambiguation,omitempty"`
	DisambiguationOptions []string                 `json:"disambiguationOptions,omitempty"`
	Metadata              ResponseMetadata         `json:"metadata"`
}

// PerformanceMetrics is the rolling view exposed by GetMetrics.
type PerformanceMetrics struct {
	TotalOperations      int64   `json:"totalOperations"`
	SuccessfulOperations int64   `json:"successfulOperations"`
	ErrorRate            float64 `json:"errorRate"`
	AvgParsingTimeMs     float64 `json:"avgParsingTimeMs"`
	AvgExecutionTimeMs   float64 `json:"avgExecutionTimeMs"`
	AvgResponseTimeMs    float64 `json:"avgResponseTimeMs"`
	AvgConfidence        float64 `json:"avgConfidence"`
}

// HealthStatus is the derived classification from rolling metrics.
type HealthStatus struct {
	Status  string                 `json:"status"` // healthy | degraded | unhealthy
	Details map[string]interface{} `json:"details"`
}
