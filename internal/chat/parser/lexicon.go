// internal/chat/parser/lexicon.go
package parser

import (
	"sort"
	"strings"
	"sync"

	"growth-chat/internal/models"
)

// intentOrder fixes the evaluation order so parsing is deterministic.
var intentOrder = []models.IntentType{
	models.IntentCreate,
	models.IntentUpdate,
	models.IntentComplete,
	models.IntentDelete,
	models.IntentQuery,
	models.IntentDiscover,
}

// intentVerbs maps each intent to the verb tokens that signal it.
var intentVerbs = map[models.IntentType][]string{
	models.IntentCreate:   {"create", "add", "new", "start", "log", "record", "track", "begin"},
	models.IntentUpdate:   {"update", "change", "edit", "rename", "set", "adjust"},
	models.IntentComplete: {"complete", "completed", "done", "finish", "finished", "mark", "check"},
	models.IntentDelete:   {"delete", "remove", "drop", "cancel", "clear"},
	models.IntentQuery:    {"show", "list", "view", "what", "get", "display"},
	models.IntentDiscover: {"discover", "find", "explore", "detect", "search"},
}

// entityKeywords maps each entity type to the nouns that signal it.
var entityKeywords = map[models.EntityType][]string{
	models.EntityHabit:         {"habit", "habits"},
	models.EntityGoal:          {"goal", "goals", "objective", "target"},
	models.EntityJournal:       {"journal", "entry", "diary"},
	models.EntityMood:          {"mood", "feeling", "feelings"},
	models.EntityRoutine:       {"routine", "routines", "ritual"},
	models.EntityBelief:        {"belief", "beliefs"},
	models.EntitySynchronicity: {"synchronicity", "synchronicities", "coincidence"},
}

// freeParamKey is the parameter the leftover tokens bind to, per entity type.
var freeParamKey = map[models.EntityType]string{
	models.EntityHabit:         "name",
	models.EntityGoal:          "name",
	models.EntityJournal:       "content",
	models.EntityMood:          "mood",
	models.EntityRoutine:       "name",
	models.EntityBelief:        "name",
	models.EntitySynchronicity: "description",
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "to": true,
	"please": true, "for": true, "of": true, "as": true, "is": true,
}

// Lexicon is the registry of known entity names per entity type. Entity
// matches raise parser confidence and give back-references something concrete
// to resolve to.
type Lexicon struct {
	mu       sync.RWMutex
	entities map[models.EntityType][]string
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		entities: make(map[models.EntityType][]string),
	}
}

// RegisterEntity adds a known entity name. Duplicate names are ignored.
func (l *Lexicon) RegisterEntity(entityType models.EntityType, name string) {
	if !entityType.Valid() || strings.TrimSpace(name) == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entities[entityType] {
		if strings.EqualFold(existing, name) {
			return
		}
	}
	l.entities[entityType] = append(l.entities[entityType], name)
}

// KnownEntities returns a copy of the registered names for one type.
func (l *Lexicon) KnownEntities(entityType models.EntityType) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entities[entityType]))
	copy(out, l.entities[entityType])
	return out
}

// EntityMatch is a known entity name found in a message.
type EntityMatch struct {
	Type  models.EntityType
	Name  string
	Score float64 // fraction of the name's tokens present in the message
}

// MatchEntities scans the message tokens against every registered name.
// A name qualifies when at least half of its tokens appear. Results are
// ordered by score descending, then name ascending, for determinism.
func (l *Lexicon) MatchEntities(tokens []string) []EntityMatch {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matches []EntityMatch
	for _, entityType := range models.AllEntityTypes {
		for _, name := range l.entities[entityType] {
			nameTokens := Tokenize(name)
			if len(nameTokens) == 0 {
				continue
			}
			hit := 0
			for _, nt := range nameTokens {
				if tokenSet[nt] {
					hit++
				}
			}
			score := float64(hit) / float64(len(nameTokens))
			if score >= 0.5 {
				matches = append(matches, EntityMatch{Type: entityType, Name: name, Score: score})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

// Tokenize lowercases and splits text on non-alphanumeric runes.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// tokensWithoutStopwords filters filler words that carry no signal.
func tokensWithoutStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}
