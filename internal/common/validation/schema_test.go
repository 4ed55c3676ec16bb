package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-chat/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func TestValidateRequiredParamPresent(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntityHabit,
		Intent:     models.IntentComplete,
		Parameters: map[string]interface{}{"name": "Morning Run"},
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Missing)
}

func TestValidateRequiredParamMissing(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntityHabit,
		Intent:     models.IntentComplete,
		Parameters: map[string]interface{}{},
	})
	require.False(t, res.Valid)
	assert.Contains(t, res.Missing, "name")
	assert.Contains(t, res.Details(), "name")
}

func TestValidateRequiredParamEmptyString(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntityJournal,
		Intent:     models.IntentCreate,
		Parameters: map[string]interface{}{"content": "   "},
	})
	require.False(t, res.Valid)
	assert.Contains(t, res.Missing, "content")
}

func TestValidateRequirednessVariesByIntent(t *testing.T) {
	r := newTestRegistry(t)

	// Queries never require parameters.
	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntityHabit,
		Intent:     models.IntentQuery,
		Parameters: map[string]interface{}{},
	})
	assert.True(t, res.Valid)

	// Mood creation needs the mood itself, not a name.
	res = r.Validate(&models.ParsedOperation{
		EntityType: models.EntityMood,
		Intent:     models.IntentCreate,
		Parameters: map[string]interface{}{"mood": "calm"},
	})
	assert.True(t, res.Valid)
}

func TestValidateSchemaShapeViolation(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntityMood,
		Intent:     models.IntentCreate,
		Parameters: map[string]interface{}{"mood": "calm", "scale": 42},
	})
	require.False(t, res.Valid)
	assert.NotEmpty(t, res.Messages)
}

func TestValidateNilParameters(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Validate(&models.ParsedOperation{
		EntityType: models.EntitySynchronicity,
		Intent:     models.IntentCreate,
		Parameters: nil,
	})
	require.False(t, res.Valid)
	assert.Contains(t, res.Missing, "description")
}
