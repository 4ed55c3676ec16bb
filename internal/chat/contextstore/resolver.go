// internal/chat/contextstore/resolver.go
package contextstore

import (
	"regexp"
	"strings"

	"growth-chat/internal/models"
)

// typedReference matches phrases like "the same habit" that constrain the
// referent's entity type.
var typedReference = regexp.MustCompile(`(?i)\b(?:the same|that|this) (habit|goal|journal|mood|routine|belief|synchronicity)\b`)

// pronounReference matches bare back-references with no type constraint.
// Longer phrases first so "that one" wins over "that".
var pronounReference = regexp.MustCompile(`(?i)\b(that one|this one|it)\b`)

// ResolveReferences rewrites back-reference phrases in text using the most
// recently referenced compatible entity from the context history, scanning
// most-recent-first. Unresolvable phrases are left untouched; the parser will
// then fail to bind them, surfacing a Parsing or Validation error downstream.
func ResolveReferences(c *models.ConversationContext, text string) (string, bool) {
	if c == nil || len(c.History) == 0 {
		return text, false
	}

	resolved := text
	used := false

	if m := typedReference.FindStringSubmatch(resolved); m != nil {
		wantType := models.ParseEntityType(m[1])
		if name := lastReferencedName(c, wantType); name != "" {
			resolved = typedReference.ReplaceAllString(resolved, name)
			used = true
		}
	}

	if pronounReference.MatchString(resolved) {
		if name := lastReferencedName(c, ""); name != "" {
			resolved = pronounReference.ReplaceAllString(resolved, name)
			used = true
		}
	}

	return resolved, used
}

// lastReferencedName scans the history most-recent-first for an operation
// that bound a name parameter, optionally constrained to one entity type.
func lastReferencedName(c *models.ConversationContext, wantType models.EntityType) string {
	for i := len(c.History) - 1; i >= 0; i-- {
		op := c.History[i].Operation
		if op == nil {
			continue
		}
		if wantType != "" && op.EntityType != wantType {
			continue
		}
		if name, ok := op.Parameters["name"].(string); ok && strings.TrimSpace(name) != "" {
			return name
		}
	}
	return ""
}
