// Package errors provides the typed error taxonomy for the chat subsystem.
// Every internal failure is converted into a ChatError at the boundary where
// it is detected and carried in the response; nothing propagates out of
// ProcessMessage as an unhandled fault.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Error Types & Severity
// ==========================

// ErrorType classifies the failure origin.
type ErrorType string

const (
	TypeParsing        ErrorType = "Parsing"
	TypeValidation     ErrorType = "Validation"
	TypeService        ErrorType = "Service"
	TypeTimeout        ErrorType = "Timeout"
	TypeDisambiguation ErrorType = "Disambiguation"
)

// Severity tags how serious the failure is for operators.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ChatError is the structured error carried in every failed response.
type ChatError struct {
	Type        ErrorType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	Retryable   bool      `json:"retryable"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("ChatError[%s]: %s", e.Type, e.Message)
}

// ==========================
// 2. Constructors
// ==========================

// NewParsingError covers the "no candidate interpretation" case.
func NewParsingError(details string) *ChatError {
	return &ChatError{
		Type:      TypeParsing,
		Severity:  SeverityMedium,
		Message:   "Could not understand the command",
		Details:   details,
		Retryable: false,
		Suggestions: []string{
			"try naming the item, e.g. \"complete habit Morning Run\"",
			"start with a verb like create, complete, update, delete or show",
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError covers a parsed operation with missing or invalid
// required parameters. Field names surface as suggestions.
func NewValidationError(details string, fieldHints []string) *ChatError {
	suggestions := make([]string, 0, len(fieldHints))
	for _, f := range fieldHints {
		suggestions = append(suggestions, fmt.Sprintf("provide a value for %q", f))
	}
	return &ChatError{
		Type:        TypeValidation,
		Severity:    SeverityLow,
		Message:     "The command is missing required details",
		Details:     details,
		Retryable:   false,
		Suggestions: suggestions,
		Timestamp:   time.Now().UTC(),
	}
}

// NewServiceError covers adapter failures. retryableHint is the adapter's own
// hint; when nil the error defaults to retryable.
func NewServiceError(entityType string, err error, retryableHint *bool) *ChatError {
	retryable := true
	if retryableHint != nil {
		retryable = *retryableHint
	}
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &ChatError{
		Type:      TypeService,
		Severity:  SeverityHigh,
		Message:   fmt.Sprintf("The %s service failed to process the operation", entityType),
		Details:   details,
		Retryable: retryable,
		Suggestions: []string{
			"try again in a moment",
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityNotSupportedError covers a dispatch to an unregistered entity type.
func NewEntityNotSupportedError(entityType string) *ChatError {
	return &ChatError{
		Type:      TypeService,
		Severity:  SeverityHigh,
		Message:   "Entity type not supported",
		Details:   fmt.Sprintf("entityType: %s", entityType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError covers an adapter call exceeding its configured bound.
func NewTimeoutError(entityType string, timeout time.Duration) *ChatError {
	return &ChatError{
		Type:      TypeTimeout,
		Severity:  SeverityHigh,
		Message:   fmt.Sprintf("The %s service did not respond in time", entityType),
		Details:   fmt.Sprintf("exceeded %s timeout", timeout),
		Retryable: true,
		Suggestions: []string{
			"try again in a moment",
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewDisambiguationError covers an unresolvable reply while a clarification is
// pending. The user may retry immediately. An optionCount of zero means the
// pending operation is gone (session expiry), so there is no list to pick from.
func NewDisambiguationError(optionCount int) *ChatError {
	message := "Could not match your reply to one of the options"
	details := fmt.Sprintf("%d options pending", optionCount)
	suggestions := []string{
		fmt.Sprintf("reply with a number between 1 and %d", optionCount),
	}
	if optionCount == 0 {
		message = "There is no pending clarification to answer"
		details = "no options pending"
		suggestions = []string{
			"restate the command with the item's full name",
		}
	}
	return &ChatError{
		Type:        TypeDisambiguation,
		Severity:    SeverityLow,
		Message:     message,
		Details:     details,
		Retryable:   true,
		Suggestions: suggestions,
		Timestamp:   time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// Normalize guarantees a ChatError. Foreign errors become Service errors;
// context deadline and cancellation errors become Timeout.
func Normalize(err error, entityType string, timeout time.Duration) *ChatError {
	var chatErr *ChatError
	if stderrors.As(err, &chatErr) {
		return chatErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewTimeoutError(entityType, timeout)
	}
	return NewServiceError(entityType, err, nil)
}

// IsRetryable reports whether an error should be surfaced with a resubmit hint.
func IsRetryable(err error) bool {
	var chatErr *ChatError
	if stderrors.As(err, &chatErr) {
		return chatErr.Retryable
	}
	return false
}
