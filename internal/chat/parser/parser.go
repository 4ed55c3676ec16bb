// Package parser turns a free-text utterance into a best-guess structured
// operation with a confidence score and ranked alternatives. Parsing is
// stateless, side-effect free and deterministic for identical input.
package parser

import (
	"sort"
	"strings"

	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

// Confidence weighting. The scalar must stay monotonic with interpretation
// quality and comparable across calls; the individual weights are tunable.
const (
	weightIntent  = 0.30
	weightEntity  = 0.35
	weightParams  = 0.20
	weightLexical = 0.15
)

const maxAlternatives = 3

type Parser struct {
	lexicon *Lexicon
	floor   float64
	logger  logger.Logger
}

// New creates a parser. floor is the absolute minimum plausibility below which
// Parse returns nil ("not a recognized command at all"), distinct from the
// disambiguation threshold applied downstream.
func New(lexicon *Lexicon, floor float64, log logger.Logger) *Parser {
	return &Parser{
		lexicon: lexicon,
		floor:   floor,
		logger:  log.With(map[string]interface{}{"component": "parser"}),
	}
}

// Lexicon exposes the entity name registry for registration and resolution.
func (p *Parser) Lexicon() *Lexicon {
	return p.lexicon
}

// Parse interprets text. Returns nil when no candidate clears the
// plausibility floor.
func (p *Parser) Parse(text string) *models.ParsedOperation {
	rawTokens := Tokenize(text)
	tokens := tokensWithoutStopwords(rawTokens)
	if len(tokens) == 0 {
		return nil
	}

	candidates := p.candidates(text, tokens)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Label() < candidates[j].Label()
	})

	// The same interpretation can arise from several signal paths with
	// different scores; keep only the highest-scored instance of each so a
	// candidate never ties with itself.
	seen := make(map[string]bool, len(candidates))
	unique := make([]models.OperationCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := string(c.EntityType) + "|" + string(c.Intent) + "|" + c.Label()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	candidates = unique

	best := candidates[0]
	if best.Confidence < p.floor {
		p.logger.Debug("no candidate above plausibility floor", map[string]interface{}{
			"bestConfidence": best.Confidence,
			"floor":          p.floor,
		})
		return nil
	}

	var alternatives []models.OperationCandidate
	for _, c := range candidates {
		if c.Confidence >= p.floor && len(alternatives) < maxAlternatives {
			alternatives = append(alternatives, c)
		}
	}

	op := best.ToOperation(text, alternatives)
	p.logger.Debug("parsed message", map[string]interface{}{
		"entityType":   op.EntityType,
		"intent":       op.Intent,
		"confidence":   op.Confidence,
		"alternatives": len(alternatives),
	})
	return op
}

// candidates enumerates every (intent, entity) interpretation and scores it.
func (p *Parser) candidates(original string, tokens []string) []models.OperationCandidate {
	intentHits := matchIntents(tokens)
	entityMatches := p.lexicon.MatchEntities(tokens)
	keywordHits, keywordTokens := matchKeywords(tokens)

	var out []models.OperationCandidate

	for _, intent := range intentOrder {
		hit := intentHits[intent]
		if hit == nil {
			continue
		}

		// Known entity names: the strongest signal; binds the name parameter.
		for _, em := range entityMatches {
			params := map[string]interface{}{"name": em.Name}
			matched := append([]string{}, hit.verbs...)
			matched = append(matched, Tokenize(em.Name)...)
			out = append(out, models.OperationCandidate{
				EntityType: em.Type,
				Intent:     intent,
				Parameters: params,
				Confidence: score(1.0, em.Score, completeness(em.Type, intent, params), lexicalDensity(matched, tokens)),
			})
		}

		// Entity-type keywords: bind the leftover tokens to the free parameter.
		for _, entityType := range models.AllEntityTypes {
			if !keywordHits[entityType] {
				continue
			}
			params := map[string]interface{}{}
			leftover := leftoverTokens(tokens, hit.verbSet, keywordTokens)
			entityScore := 0.6
			matched := append([]string{}, hit.verbs...)
			matched = append(matched, keywordsFor(entityType)...)
			if len(leftover) > 0 {
				params[freeParamKey[entityType]] = bindValue(entityType, leftover)
				entityScore = 0.8
				matched = append(matched, leftover...)
			}
			out = append(out, models.OperationCandidate{
				EntityType: entityType,
				Intent:     intent,
				Parameters: params,
				Confidence: score(1.0, entityScore, completeness(entityType, intent, params), lexicalDensity(matched, tokens)),
			})
		}

		// Intent with no entity signal at all. Usually lands below the floor;
		// kept so "delete it" scores low instead of picking a random type.
		if len(entityMatches) == 0 && len(keywordHits) == 0 {
			out = append(out, models.OperationCandidate{
				EntityType: models.EntityHabit,
				Intent:     intent,
				Parameters: map[string]interface{}{},
				Confidence: score(1.0, 0, 0, lexicalDensity(hit.verbs, tokens)),
			})
		}
	}

	// Entity signal with no verb: treat as a query about that entity.
	if len(intentHits) == 0 {
		for _, em := range entityMatches {
			params := map[string]interface{}{"name": em.Name}
			out = append(out, models.OperationCandidate{
				EntityType: em.Type,
				Intent:     models.IntentQuery,
				Parameters: params,
				Confidence: score(0, em.Score, 1, lexicalDensity(Tokenize(em.Name), tokens)),
			})
		}
	}

	return out
}

type intentHit struct {
	verbs   []string
	verbSet map[string]bool
}

func matchIntents(tokens []string) map[models.IntentType]*intentHit {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	hits := make(map[models.IntentType]*intentHit)
	for _, intent := range intentOrder {
		var verbs []string
		verbSet := map[string]bool{}
		for _, verb := range intentVerbs[intent] {
			if tokenSet[verb] {
				verbs = append(verbs, verb)
				verbSet[verb] = true
			}
		}
		if len(verbs) > 0 {
			hits[intent] = &intentHit{verbs: verbs, verbSet: verbSet}
		}
	}
	return hits
}

func matchKeywords(tokens []string) (map[models.EntityType]bool, map[string]bool) {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	hits := make(map[models.EntityType]bool)
	matched := map[string]bool{}
	for _, entityType := range models.AllEntityTypes {
		for _, kw := range entityKeywords[entityType] {
			if tokenSet[kw] {
				hits[entityType] = true
				matched[kw] = true
			}
		}
	}
	return hits, matched
}

func keywordsFor(entityType models.EntityType) []string {
	return entityKeywords[entityType]
}

// leftoverTokens are the message tokens consumed by neither the intent verb
// nor an entity keyword; they become the free parameter value.
func leftoverTokens(tokens []string, verbSet, keywordTokens map[string]bool) []string {
	var out []string
	for _, t := range tokens {
		if !verbSet[t] && !keywordTokens[t] {
			out = append(out, t)
		}
	}
	return out
}

// bindValue formats leftover tokens for the entity's free parameter.
// Names are title-cased; journal content and descriptions stay verbatim.
func bindValue(entityType models.EntityType, leftover []string) string {
	joined := strings.Join(leftover, " ")
	if freeParamKey[entityType] == "name" {
		return titleCase(joined)
	}
	return joined
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func score(intentScore, entityScore, paramScore, lexicalScore float64) float64 {
	v := weightIntent*intentScore + weightEntity*entityScore + weightParams*paramScore + weightLexical*lexicalScore
	if v > 1 {
		v = 1
	}
	return v
}

// completeness is the fraction of parameters the intent needs that are bound.
func completeness(entityType models.EntityType, intent models.IntentType, params map[string]interface{}) float64 {
	if intent == models.IntentQuery || intent == models.IntentDiscover {
		return 1
	}
	key := freeParamKey[entityType]
	if intent != models.IntentCreate {
		key = "name"
	}
	if v, ok := params[key]; ok {
		if s, isStr := v.(string); !isStr || s != "" {
			return 1
		}
	}
	return 0
}

func lexicalDensity(matched, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matchedSet := make(map[string]bool, len(matched))
	for _, m := range matched {
		matchedSet[m] = true
	}
	hit := 0
	for _, t := range tokens {
		if matchedSet[t] {
			hit++
		}
	}
	d := float64(hit) / float64(len(tokens))
	if d > 1 {
		d = 1
	}
	return d
}
