package disambig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-chat/internal/chat/contextstore"
	cerrors "growth-chat/internal/common/errors"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

func twoMeditationAlternatives() []models.OperationCandidate {
	return []models.OperationCandidate{
		{
			EntityType: models.EntityHabit,
			Intent:     models.IntentComplete,
			Parameters: map[string]interface{}{"name": "Evening Meditation"},
			Confidence: 0.825,
		},
		{
			EntityType: models.EntityHabit,
			Intent:     models.IntentComplete,
			Parameters: map[string]interface{}{"name": "Morning Meditation"},
			Confidence: 0.825,
		},
	}
}

func newPendingController(t *testing.T) (*Controller, *contextstore.Store) {
	t.Helper()
	store := contextstore.New(time.Minute, time.Minute, 20, logger.NewTestLogger(t))
	c := New(store, logger.NewTestLogger(t))

	alternatives := twoMeditationAlternatives()
	op := alternatives[0].ToOperation("complete my meditation", alternatives)
	labels := c.Begin("u1", "s1", op)
	require.Len(t, labels, 2)
	return c, store
}

func TestNeedsDisambiguation(t *testing.T) {
	lowConfidence := &models.ParsedOperation{Confidence: 0.6}
	assert.True(t, NeedsDisambiguation(lowConfidence, 0.75, 0.1))

	confident := &models.ParsedOperation{Confidence: 0.93}
	assert.False(t, NeedsDisambiguation(confident, 0.75, 0.1))

	tied := &models.ParsedOperation{
		Confidence:   0.825,
		Alternatives: twoMeditationAlternatives(),
	}
	assert.True(t, NeedsDisambiguation(tied, 0.75, 0.1), "near-tied top two must trigger")

	clearWinner := &models.ParsedOperation{
		Confidence: 0.93,
		Alternatives: []models.OperationCandidate{
			{Confidence: 0.93},
			{Confidence: 0.7},
		},
	}
	assert.False(t, NeedsDisambiguation(clearWinner, 0.75, 0.1))
}

func TestBeginSetsAwaitingState(t *testing.T) {
	_, store := newPendingController(t)

	snap := store.Snapshot("u1", "s1")
	assert.True(t, snap.AwaitingDisambiguation)
	require.NotNil(t, snap.PendingOperation)
	assert.True(t, snap.PendingOperation.NeedsDisambiguation)
}

func TestResolveByNumber(t *testing.T) {
	c, store := newPendingController(t)

	selected, labels, err := c.Resolve("u1", "s1", "2", 0.5)
	require.Nil(t, err)
	assert.Nil(t, labels)
	assert.Equal(t, "Morning Meditation", selected.Parameters["name"])
	assert.Equal(t, "complete my meditation", selected.OriginalMessage)

	snap := store.Snapshot("u1", "s1")
	assert.False(t, snap.AwaitingDisambiguation)
	assert.Nil(t, snap.PendingOperation)
}

func TestResolveOutOfRangeKeepsStatePending(t *testing.T) {
	c, store := newPendingController(t)

	selected, labels, err := c.Resolve("u1", "s1", "5", 0.5)
	require.NotNil(t, err)
	assert.Nil(t, selected)
	assert.Len(t, labels, 2)
	assert.Equal(t, cerrors.TypeDisambiguation, err.Type)
	assert.True(t, err.Retryable)

	snap := store.Snapshot("u1", "s1")
	assert.True(t, snap.AwaitingDisambiguation, "failed reply must not clear pending state")
	assert.NotNil(t, snap.PendingOperation)
}

func TestResolveByFuzzyMatch(t *testing.T) {
	c, store := newPendingController(t)

	selected, _, err := c.Resolve("u1", "s1", "evening", 0.5)
	require.Nil(t, err)
	assert.Equal(t, "Evening Meditation", selected.Parameters["name"])

	snap := store.Snapshot("u1", "s1")
	assert.False(t, snap.AwaitingDisambiguation)
}

func TestResolveAmbiguousReplyFails(t *testing.T) {
	c, _ := newPendingController(t)

	// "meditation" matches both options equally.
	selected, _, err := c.Resolve("u1", "s1", "meditation", 0.9)
	require.NotNil(t, err)
	assert.Nil(t, selected)
	assert.Equal(t, cerrors.TypeDisambiguation, err.Type)
}

func TestResolveNoMatchFails(t *testing.T) {
	c, _ := newPendingController(t)

	_, _, err := c.Resolve("u1", "s1", "the purple elephant", 0.5)
	require.NotNil(t, err)
}

func TestResolveWithoutPendingFails(t *testing.T) {
	store := contextstore.New(time.Minute, time.Minute, 20, logger.NewTestLogger(t))
	c := New(store, logger.NewTestLogger(t))

	_, _, err := c.Resolve("u1", "s1", "1", 0.5)
	require.NotNil(t, err)
	assert.Equal(t, cerrors.TypeDisambiguation, err.Type)
}

func TestDiscardClearsPending(t *testing.T) {
	c, store := newPendingController(t)

	c.Discard("u1", "s1")
	snap := store.Snapshot("u1", "s1")
	assert.False(t, snap.AwaitingDisambiguation)
	assert.Nil(t, snap.PendingOperation)
}
