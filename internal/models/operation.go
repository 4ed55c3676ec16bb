// internal/models/operation.go
package models

import (
	"fmt"
	"strings"
)

// EntityType identifies the domain entity a chat command targets.
type EntityType string

const (
	EntityHabit         EntityType = "habit"
	EntityGoal          EntityType = "goal"
	EntityJournal       EntityType = "journal"
	EntityMood          EntityType = "mood"
	EntityRoutine       EntityType = "routine"
	EntityBelief        EntityType = "belief"
	EntitySynchronicity EntityType = "synchronicity"
)

// AllEntityTypes is the closed set of supported entity types, in registration order.
var AllEntityTypes = []EntityType{
	EntityHabit,
	EntityGoal,
	EntityJournal,
	EntityMood,
	EntityRoutine,
	EntityBelief,
	EntitySynchronicity,
}

// Valid reports whether the entity type belongs to the supported set.
func (e EntityType) Valid() bool {
	for _, t := range AllEntityTypes {
		if e == t {
			return true
		}
	}
	return false
}

// IntentType is the verb of a chat command.
type IntentType string

const (
	IntentCreate   IntentType = "create"
	IntentUpdate   IntentType = "update"
	IntentComplete IntentType = "complete"
	IntentDelete   IntentType = "delete"
	IntentQuery    IntentType = "query"
	IntentDiscover IntentType = "discover"
)

// WriteIntents are the intents that mutate state; only these are eligible for
// the degrade queue.
var WriteIntents = map[IntentType]bool{
	IntentCreate:   true,
	IntentUpdate:   true,
	IntentComplete: true,
	IntentDelete:   true,
}

// ParsedOperation is the parser's structured interpretation of one message.
// Immutable once produced.
type ParsedOperation struct {
	EntityType          EntityType             `json:"entityType"`
	Intent              IntentType             `json:"intent"`
	Parameters          map[string]interface{} `json:"parameters"`
	Confidence          float64                `json:"confidence"`
	Alternatives        []OperationCandidate   `json:"alternatives,omitempty"`
	NeedsDisambiguation bool                   `json:"needsDisambiguation"`
	OriginalMessage     string                 `json:"originalMessage"`
}

// OperationCandidate is one alternative interpretation with its own confidence.
type OperationCandidate struct {
	EntityType EntityType             `json:"entityType"`
	Intent     IntentType             `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
}

// Label renders a short human-readable description of the candidate for
// disambiguation prompts. No internal identifiers leak here.
func (c OperationCandidate) Label() string {
	if name, ok := c.Parameters["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s %s %q", c.Intent, c.EntityType, name)
	}
	return fmt.Sprintf("%s %s", c.Intent, c.EntityType)
}

// ToOperation promotes the candidate to a full operation carrying the
// original message and the full alternative set.
func (c OperationCandidate) ToOperation(original string, alternatives []OperationCandidate) *ParsedOperation {
	params := make(map[string]interface{}, len(c.Parameters))
	for k, v := range c.Parameters {
		params[k] = v
	}
	return &ParsedOperation{
		EntityType:      c.EntityType,
		Intent:          c.Intent,
		Parameters:      params,
		Confidence:      c.Confidence,
		Alternatives:    alternatives,
		OriginalMessage: original,
	}
}

// ParseEntityType maps free text to an entity type, empty if unknown.
func ParseEntityType(s string) EntityType {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return ""
}
