// Package validation checks parsed operation parameters against per-entity
// JSON schemas before dispatch.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"growth-chat/internal/models"
)

// parameterSchemas declares the accepted parameter shape per entity type.
// Requiredness varies by intent and is handled separately.
var parameterSchemas = map[models.EntityType]string{
	models.EntityHabit: `{
		"type": "object",
		"properties": {
			"name":      {"type": "string", "minLength": 1},
			"frequency": {"type": "string"},
			"note":      {"type": "string"}
		},
		"additionalProperties": true
	}`,
	models.EntityGoal: `{
		"type": "object",
		"properties": {
			"name":     {"type": "string", "minLength": 1},
			"deadline": {"type": "string"},
			"note":     {"type": "string"}
		},
		"additionalProperties": true
	}`,
	models.EntityJournal: `{
		"type": "object",
		"properties": {
			"name":    {"type": "string"},
			"content": {"type": "string", "minLength": 1}
		},
		"additionalProperties": true
	}`,
	models.EntityMood: `{
		"type": "object",
		"properties": {
			"name":  {"type": "string"},
			"mood":  {"type": "string", "minLength": 1},
			"scale": {"type": "number", "minimum": 0, "maximum": 10}
		},
		"additionalProperties": true
	}`,
	models.EntityRoutine: `{
		"type": "object",
		"properties": {
			"name":     {"type": "string", "minLength": 1},
			"schedule": {"type": "string"}
		},
		"additionalProperties": true
	}`,
	models.EntityBelief: `{
		"type": "object",
		"properties": {
			"name":      {"type": "string", "minLength": 1},
			"statement": {"type": "string"}
		},
		"additionalProperties": true
	}`,
	models.EntitySynchronicity: `{
		"type": "object",
		"properties": {
			"name":        {"type": "string"},
			"description": {"type": "string"}
		},
		"additionalProperties": true
	}`,
}

// requiredParams lists the parameters an intent must carry, per entity type.
// Query and discover never require parameters.
var requiredParams = map[models.EntityType]map[models.IntentType][]string{
	models.EntityHabit: {
		models.IntentCreate:   {"name"},
		models.IntentUpdate:   {"name"},
		models.IntentComplete: {"name"},
		models.IntentDelete:   {"name"},
	},
	models.EntityGoal: {
		models.IntentCreate:   {"name"},
		models.IntentUpdate:   {"name"},
		models.IntentComplete: {"name"},
		models.IntentDelete:   {"name"},
	},
	models.EntityJournal: {
		models.IntentCreate: {"content"},
		models.IntentUpdate: {"name"},
		models.IntentDelete: {"name"},
	},
	models.EntityMood: {
		models.IntentCreate: {"mood"},
		models.IntentDelete: {"name"},
	},
	models.EntityRoutine: {
		models.IntentCreate:   {"name"},
		models.IntentUpdate:   {"name"},
		models.IntentComplete: {"name"},
		models.IntentDelete:   {"name"},
	},
	models.EntityBelief: {
		models.IntentCreate: {"name"},
		models.IntentUpdate: {"name"},
		models.IntentDelete: {"name"},
	},
	models.EntitySynchronicity: {
		models.IntentCreate: {"description"},
		models.IntentDelete: {"name"},
	},
}

// Result carries the outcome of a parameter validation.
type Result struct {
	Valid    bool
	Missing  []string
	Messages []string
}

// Registry holds compiled schemas for all entity types.
type Registry struct {
	schemas map[models.EntityType]*gojsonschema.Schema
}

// NewRegistry compiles the per-entity parameter schemas.
func NewRegistry() (*Registry, error) {
	schemas := make(map[models.EntityType]*gojsonschema.Schema, len(parameterSchemas))
	for entityType, raw := range parameterSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", entityType, err)
		}
		schemas[entityType] = schema
	}
	return &Registry{schemas: schemas}, nil
}

// Validate checks the operation's parameters for required fields and shape.
func (r *Registry) Validate(op *models.ParsedOperation) *Result {
	result := &Result{Valid: true}

	for _, field := range requiredParams[op.EntityType][op.Intent] {
		v, ok := op.Parameters[field]
		if !ok {
			result.Valid = false
			result.Missing = append(result.Missing, field)
			result.Messages = append(result.Messages, fmt.Sprintf("%s: required parameter missing", field))
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			result.Valid = false
			result.Missing = append(result.Missing, field)
			result.Messages = append(result.Messages, fmt.Sprintf("%s: required parameter empty", field))
		}
	}

	schema, ok := r.schemas[op.EntityType]
	if !ok {
		return result
	}

	params := op.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	schemaResult, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		result.Valid = false
		result.Messages = append(result.Messages, err.Error())
		return result
	}
	if !schemaResult.Valid() {
		result.Valid = false
		for _, desc := range schemaResult.Errors() {
			result.Missing = append(result.Missing, desc.Field())
			result.Messages = append(result.Messages, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
	}

	return result
}

// Details joins validation messages into one string for error details.
func (r *Result) Details() string {
	return strings.Join(r.Messages, "; ")
}
