// internal/chat/escalation.go
package chat

import (
	"sync"

	"growth-chat/internal/common/logger"
)

// EscalationHook is invoked once when a user's consecutive failure count
// reaches the threshold. Wire it to an alerting or support channel.
type EscalationHook func(userID string, consecutiveFailures int)

// escalationTracker counts consecutive failed operations per user. Any
// success resets the count. The hook fires exactly once per streak, at the
// moment the threshold is crossed.
type escalationTracker struct {
	mu        sync.Mutex
	failures  map[string]int
	threshold int
	hook      EscalationHook
	logger    logger.Logger
}

func newEscalationTracker(threshold int, hook EscalationHook, log logger.Logger) *escalationTracker {
	return &escalationTracker{
		failures:  make(map[string]int),
		threshold: threshold,
		hook:      hook,
		logger:    log.With(map[string]interface{}{"component": "escalation"}),
	}
}

func (t *escalationTracker) recordFailure(userID string) {
	t.mu.Lock()
	t.failures[userID]++
	count := t.failures[userID]
	threshold := t.threshold
	hook := t.hook
	t.mu.Unlock()

	if threshold > 0 && count == threshold {
		t.logger.Warn("consecutive failure threshold reached", map[string]interface{}{
			"userId":   userID,
			"failures": count,
		})
		if hook != nil {
			hook(userID, count)
		}
	}
}

func (t *escalationTracker) recordSuccess(userID string) {
	t.mu.Lock()
	delete(t.failures, userID)
	t.mu.Unlock()
}

func (t *escalationTracker) setThreshold(threshold int) {
	t.mu.Lock()
	t.threshold = threshold
	t.mu.Unlock()
}

func (t *escalationTracker) reset() {
	t.mu.Lock()
	t.failures = make(map[string]int)
	t.mu.Unlock()
}
