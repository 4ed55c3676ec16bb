// internal/models/context.go
package models

import "time"

// ContextTurn is one entry in a conversation history: the raw message and the
// operation it resolved to, if any.
type ContextTurn struct {
	Message   string           `json:"message"`
	Operation *ParsedOperation `json:"operation,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ConversationContext is the per (user, session) conversational memory.
// Owned exclusively by the context store; mutated only through its update API.
type ConversationContext struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"userId"`
	SessionID              string           `json:"sessionId"`
	History                []ContextTurn    `json:"history"`
	PendingOperation       *ParsedOperation `json:"pendingOperation,omitempty"`
	AwaitingDisambiguation bool             `json:"awaitingDisambiguation"`
	LastActivityAt         time.Time        `json:"lastActivityAt"`
}

// IsExpired reports whether the context has been idle longer than timeout.
func (c *ConversationContext) IsExpired(timeout time.Duration) bool {
	return time.Since(c.LastActivityAt) > timeout
}

// Touch updates the last activity timestamp.
func (c *ConversationContext) Touch() {
	c.LastActivityAt = time.Now()
}
