// Package contextstore owns the per (user, session) conversational memory.
// All mutations to one context are serialized on a per-id lock; unrelated
// sessions never contend. Idle contexts are evicted by a background sweep.
package contextstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type entry struct {
	mu  sync.Mutex
	ctx *models.ConversationContext
}

type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	sessionTimeout atomic.Int64 // nanoseconds; runtime-tunable
	sweepInterval  time.Duration
	maxHistory     int
	logger         logger.Logger
}

func New(sessionTimeout, sweepInterval time.Duration, maxHistory int, log logger.Logger) *Store {
	s := &Store{
		entries:       make(map[string]*entry),
		sweepInterval: sweepInterval,
		maxHistory:    maxHistory,
		logger:        log.With(map[string]interface{}{"component": "contextstore"}),
	}
	s.sessionTimeout.Store(int64(sessionTimeout))
	return s
}

// SetSessionTimeout changes the idle eviction bound at runtime.
func (s *Store) SetSessionTimeout(d time.Duration) {
	s.sessionTimeout.Store(int64(d))
}

func (s *Store) timeout() time.Duration {
	return time.Duration(s.sessionTimeout.Load())
}

// ContextID derives the stable id for a (user, session) pair.
func ContextID(userID, sessionID string) string {
	return fmt.Sprintf("%s/%s", userID, sessionID)
}

// With runs fn with exclusive access to the context for (userID, sessionID),
// creating it if absent and replacing it with a fresh one if it has expired.
// fn must not block on external I/O; adapter calls happen outside this lock.
func (s *Store) With(userID, sessionID string, fn func(c *models.ConversationContext)) {
	id := ContextID(userID, sessionID)

	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &entry{ctx: newContext(id, userID, sessionID)}
			s.entries[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		// The sweep may have removed this entry between the map lookup and
		// acquiring its lock; retry with a fresh entry if so.
		s.mu.Lock()
		current, ok := s.entries[id]
		s.mu.Unlock()
		if !ok || current != e {
			e.mu.Unlock()
			continue
		}

		if e.ctx.IsExpired(s.timeout()) {
			e.ctx = newContext(id, userID, sessionID)
		}

		fn(e.ctx)
		e.ctx.Touch()
		e.mu.Unlock()
		return
	}
}

// Snapshot returns a copy of the context safe to read without holding its lock.
func (s *Store) Snapshot(userID, sessionID string) *models.ConversationContext {
	var snap *models.ConversationContext
	s.With(userID, sessionID, func(c *models.ConversationContext) {
		snap = copyContext(c)
	})
	return snap
}

// Update appends one turn to the history, bounded to maxHistory (oldest
// entries dropped), and refreshes the activity timestamp.
func (s *Store) Update(userID, sessionID, message string, op *models.ParsedOperation) {
	s.With(userID, sessionID, func(c *models.ConversationContext) {
		c.History = append(c.History, models.ContextTurn{
			Message:   message,
			Operation: op,
			Timestamp: time.Now(),
		})
		if s.maxHistory > 0 && len(c.History) > s.maxHistory {
			c.History = c.History[len(c.History)-s.maxHistory:]
		}
	})
}

// Count returns the number of live contexts.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start launches the background eviction sweep. It stops when ctx is done.
func (s *Store) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep evicts every expired context. It acquires the per-id lock before
// deleting so a context mid-mutation is never dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	evicted := 0
	for id, e := range snapshot {
		e.mu.Lock()
		if e.ctx.IsExpired(s.timeout()) {
			s.mu.Lock()
			if current, ok := s.entries[id]; ok && current == e {
				delete(s.entries, id)
				evicted++
			}
			s.mu.Unlock()
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Debug("evicted expired contexts", map[string]interface{}{"count": evicted})
	}
	return evicted
}

// Clear drops every context regardless of age. Used by Cleanup.
func (s *Store) Clear() {
	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	for id, e := range snapshot {
		e.mu.Lock()
		s.mu.Lock()
		if current, ok := s.entries[id]; ok && current == e {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		e.mu.Unlock()
	}
}

func newContext(id, userID, sessionID string) *models.ConversationContext {
	return &models.ConversationContext{
		ID:             id,
		UserID:         userID,
		SessionID:      sessionID,
		LastActivityAt: time.Now(),
	}
}

func copyContext(c *models.ConversationContext) *models.ConversationContext {
	out := &models.ConversationContext{
		ID:                     c.ID,
		UserID:                 c.UserID,
		SessionID:              c.SessionID,
		PendingOperation:       c.PendingOperation,
		AwaitingDisambiguation: c.AwaitingDisambiguation,
		LastActivityAt:         c.LastActivityAt,
	}
	out.History = make([]models.ContextTurn, len(c.History))
	copy(out.History, c.History)
	return out
}
