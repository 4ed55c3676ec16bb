// Package disambig implements the clarification cycle: low-confidence or tied
// parses become a question carrying human-readable options, and the next
// message from the same session is resolved against them.
//
// The state machine is explicit and lives on the conversation context:
// Idle -> AwaitingDisambiguation on a low-confidence parse, back to Idle on a
// valid reply (operation dispatched) or session timeout (pending discarded);
// an invalid reply surfaces an error and leaves the state unchanged.
package disambig

import (
	"strconv"
	"strings"

	"growth-chat/internal/chat/contextstore"
	"growth-chat/internal/chat/parser"
	cerrors "growth-chat/internal/common/errors"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type Controller struct {
	store  *contextstore.Store
	logger logger.Logger
}

func New(store *contextstore.Store, log logger.Logger) *Controller {
	return &Controller{
		store:  store,
		logger: log.With(map[string]interface{}{"component": "disambig"}),
	}
}

// NeedsDisambiguation applies the decision rule: confidence below the
// threshold, or the top two alternatives closer than tieDelta.
func NeedsDisambiguation(op *models.ParsedOperation, threshold, tieDelta float64) bool {
	if op.Confidence < threshold {
		return true
	}
	if len(op.Alternatives) >= 2 {
		if op.Alternatives[0].Confidence-op.Alternatives[1].Confidence < tieDelta {
			return true
		}
	}
	return false
}

// Begin stores the full alternative set as the pending operation, flips the
// context to AwaitingDisambiguation, and returns the option labels.
func (c *Controller) Begin(userID, sessionID string, op *models.ParsedOperation) []string {
	pending := *op
	pending.NeedsDisambiguation = true

	c.store.With(userID, sessionID, func(cc *models.ConversationContext) {
		cc.PendingOperation = &pending
		cc.AwaitingDisambiguation = true
	})

	labels := Labels(op.Alternatives)
	c.logger.Info("clarification requested", map[string]interface{}{
		"userId":  userID,
		"options": len(labels),
	})
	return labels
}

// Labels renders the human-readable option list.
func Labels(alternatives []models.OperationCandidate) []string {
	labels := make([]string, 0, len(alternatives))
	for _, a := range alternatives {
		labels = append(labels, a.Label())
	}
	return labels
}

// Resolve interprets reply against the pending alternative set. On success the
// pending state is cleared before the selected operation is returned for
// dispatch. On failure the state is left unchanged and the labels are returned
// so the caller can re-present the options.
func (c *Controller) Resolve(userID, sessionID, reply string, matchFloor float64) (*models.ParsedOperation, []string, *cerrors.ChatError) {
	var (
		selected *models.ParsedOperation
		labels   []string
		chatErr  *cerrors.ChatError
	)

	c.store.With(userID, sessionID, func(cc *models.ConversationContext) {
		pending := cc.PendingOperation
		if pending == nil || !cc.AwaitingDisambiguation {
			chatErr = cerrors.NewDisambiguationError(0)
			return
		}

		alternatives := pending.Alternatives
		labels = Labels(alternatives)

		idx, ok := matchReply(reply, alternatives, matchFloor)
		if !ok {
			chatErr = cerrors.NewDisambiguationError(len(alternatives))
			return
		}

		cc.PendingOperation = nil
		cc.AwaitingDisambiguation = false
		selected = alternatives[idx].ToOperation(pending.OriginalMessage, alternatives)
	})

	if chatErr != nil {
		return nil, labels, chatErr
	}
	return selected, nil, nil
}

// Discard drops any pending clarification without executing it.
func (c *Controller) Discard(userID, sessionID string) {
	c.store.With(userID, sessionID, func(cc *models.ConversationContext) {
		cc.PendingOperation = nil
		cc.AwaitingDisambiguation = false
	})
}

// matchReply selects an alternative by 1-based index, or by fuzzy text match
// when exactly one option clears the match floor.
func matchReply(reply string, alternatives []models.OperationCandidate, matchFloor float64) (int, bool) {
	trimmed := strings.TrimSpace(reply)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(alternatives) {
			return n - 1, true
		}
		return 0, false
	}

	replyTokens := parser.Tokenize(trimmed)
	if len(replyTokens) == 0 {
		return 0, false
	}

	qualified := 0
	bestIdx := 0
	for i, alt := range alternatives {
		score := replyOverlap(replyTokens, parser.Tokenize(alt.Label()))
		if score >= matchFloor {
			qualified++
			if qualified == 1 {
				bestIdx = i
			}
		}
	}

	if qualified == 1 {
		return bestIdx, true
	}
	return 0, false
}

// replyOverlap is the fraction of reply tokens present in the label.
func replyOverlap(replyTokens, labelTokens []string) float64 {
	labelSet := make(map[string]bool, len(labelTokens))
	for _, t := range labelTokens {
		labelSet[t] = true
	}
	hit := 0
	for _, t := range replyTokens {
		if labelSet[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(replyTokens))
}
