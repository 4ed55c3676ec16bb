// Package chat is the orchestrator for the conversational command flow:
// resolve references, parse, validate, disambiguate, dispatch, remember.
// ProcessMessage is the single entry point and always returns a structured
// response, never a raw fault.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"growth-chat/internal/chat/contextstore"
	"growth-chat/internal/chat/disambig"
	"growth-chat/internal/chat/dispatch"
	"growth-chat/internal/chat/health"
	"growth-chat/internal/chat/parser"
	"growth-chat/internal/common/config"
	cerrors "growth-chat/internal/common/errors"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/common/metrics"
	"growth-chat/internal/common/observability"
	"growth-chat/internal/common/validation"
	"growth-chat/internal/models"
)

const defaultSessionID = "default"

// thresholds are the runtime-tunable knobs, guarded by the service mutex.
type thresholds struct {
	confidence float64
	tieDelta   float64
	matchFloor float64
}

// Service wires the parser, context store, disambiguation controller,
// dispatcher and health aggregator into one message pipeline.
type Service struct {
	parser     *parser.Parser
	store      *contextstore.Store
	disambig   *disambig.Controller
	dispatcher *dispatch.Dispatcher
	validator  *validation.Registry
	health     *health.Aggregator
	escalation *escalationTracker
	degrade    *dispatch.DegradeQueue
	obs        *observability.Observability
	sugg       *userCache
	logger     logger.Logger

	mu sync.Mutex
	th thresholds
}

// Options carries the optional collaborators for NewService.
type Options struct {
	Observability  *observability.Observability
	DegradeQueue   *dispatch.DegradeQueue
	EscalationHook EscalationHook
}

// NewService assembles the pipeline from configuration. The registry must
// already hold an adapter per supported entity type.
func NewService(cfg *config.Config, registry *dispatch.Registry, log logger.Logger, opts Options) (*Service, error) {
	validator, err := validation.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build validation registry: %w", err)
	}

	store := contextstore.New(
		time.Duration(cfg.Chat.SessionTimeout)*time.Millisecond,
		time.Duration(cfg.Chat.SweepInterval)*time.Millisecond,
		cfg.Chat.MaxHistoryLength,
		log,
	)

	return &Service{
		parser:     parser.New(parser.NewLexicon(), cfg.Chat.PlausibilityFloor, log),
		store:      store,
		disambig:   disambig.New(store, log),
		dispatcher: dispatch.NewDispatcher(registry, cfg.Entities, opts.DegradeQueue, log),
		validator:  validator,
		health:     health.NewAggregator(cfg.Health),
		escalation: newEscalationTracker(cfg.Chat.EscalationThreshold, opts.EscalationHook, log),
		degrade:    opts.DegradeQueue,
		obs:        opts.Observability,
		sugg:       newUserCache(time.Duration(cfg.Chat.AdapterCacheTTL) * time.Millisecond),
		logger:     log.With(map[string]interface{}{"component": "chat-service"}),
		th: thresholds{
			confidence: cfg.Chat.ConfidenceThreshold,
			tieDelta:   cfg.Chat.TieDelta,
			matchFloor: cfg.Chat.MatchFloor,
		},
	}, nil
}

// Start launches the context store's eviction sweep.
func (s *Service) Start(ctx context.Context) {
	s.store.Start(ctx)
}

// Lexicon exposes the parser's entity name registry so callers can seed it
// with the user's known items.
func (s *Service) Lexicon() *parser.Lexicon {
	return s.parser.Lexicon()
}

// ProcessMessage interprets one chat message and executes the resulting
// operation. Every outcome, including internal failure, comes back as a
// structured response.
func (s *Service) ProcessMessage(ctx context.Context, req *models.ChatRequest) *models.ChatEntityResponse {
	start := time.Now()
	requestID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	useContext := req.Options == nil || !req.Options.DisableContext

	log := s.logger.With(map[string]interface{}{
		"requestId": requestID,
		"userId":    req.UserID,
	})

	var snap *models.ConversationContext
	if useContext {
		snap = s.store.Snapshot(req.UserID, sessionID)
	}

	// A pending clarification consumes the next message from this session.
	if useContext && snap.AwaitingDisambiguation {
		return s.resolvePending(ctx, req, sessionID, requestID, start, log)
	}

	text := req.Message
	contextUsed := false
	if useContext {
		if resolved, used := contextstore.ResolveReferences(snap, text); used {
			text = resolved
			contextUsed = true
			log.Debug("resolved back-references", map[string]interface{}{"resolved": resolved})
		}
	}

	parseStart := time.Now()
	op := s.parser.Parse(text)
	parseMs := float64(time.Since(parseStart).Milliseconds())
	metrics.ParseDuration.Observe(time.Since(parseStart).Seconds())

	if op == nil {
		chatErr := cerrors.NewParsingError(fmt.Sprintf("no plausible interpretation for %q", req.Message))
		s.recordOutcome(ctx, "parsing_error", health.Sample{ParsingMs: parseMs, TotalMs: sinceMs(start)})
		s.escalation.recordFailure(req.UserID)
		return s.errorResponse(requestID, start, nil, chatErr)
	}

	if res := s.validator.Validate(op); !res.Valid {
		chatErr := cerrors.NewValidationError(res.Details(), res.Missing)
		s.recordOutcome(ctx, "validation_error", health.Sample{
			ParsingMs: parseMs, TotalMs: sinceMs(start),
			Confidence: op.Confidence, HasConfidence: true,
		})
		s.escalation.recordFailure(req.UserID)
		return s.errorResponse(requestID, start, op, chatErr)
	}

	s.mu.Lock()
	th := s.th
	s.mu.Unlock()

	// The threshold check is unconditional: a low-confidence or tied parse is
	// never executed, with or without conversational context.
	if disambig.NeedsDisambiguation(op, th.confidence, th.tieDelta) {
		var labels []string
		if useContext {
			labels = s.disambig.Begin(req.UserID, sessionID, op)
		} else {
			// No session to park the pending operation in; the caller has to
			// rephrase, but the guess still must not reach an adapter.
			labels = disambig.Labels(op.Alternatives)
		}
		metrics.DisambiguationRequests.Inc()
		s.recordOutcome(ctx, "disambiguation", health.Sample{
			ParsingMs: parseMs, TotalMs: sinceMs(start),
			Confidence: op.Confidence, HasConfidence: true,
		})
		return s.disambiguationResponse(requestID, start, op, labels)
	}

	return s.dispatchAndRespond(ctx, req, sessionID, requestID, start, parseMs, op, contextUsed, log)
}

// resolvePending treats the message as a reply to the pending clarification.
func (s *Service) resolvePending(ctx context.Context, req *models.ChatRequest, sessionID, requestID string, start time.Time, log logger.Logger) *models.ChatEntityResponse {
	s.mu.Lock()
	matchFloor := s.th.matchFloor
	s.mu.Unlock()

	selected, labels, chatErr := s.disambig.Resolve(req.UserID, sessionID, req.Message, matchFloor)
	if chatErr != nil {
		s.recordOutcome(ctx, "disambiguation_error", health.Sample{TotalMs: sinceMs(start)})
		s.escalation.recordFailure(req.UserID)
		resp := s.errorResponse(requestID, start, nil, chatErr)
		// The pending operation can vanish between the snapshot and the
		// resolve (session expiry); with no options left there is nothing to
		// re-present.
		resp.NeedsDisambiguation = len(labels) > 0
		resp.DisambiguationOptions = labels
		return resp
	}

	log.Info("clarification resolved", map[string]interface{}{
		"entityType": selected.EntityType,
		"intent":     selected.Intent,
	})
	return s.dispatchAndRespond(ctx, req, sessionID, requestID, start, 0, selected, true, log)
}

// dispatchAndRespond executes the operation, updates memory and builds the
// final response.
func (s *Service) dispatchAndRespond(ctx context.Context, req *models.ChatRequest, sessionID, requestID string, start time.Time, parseMs float64, op *models.ParsedOperation, contextUsed bool, log logger.Logger) *models.ChatEntityResponse {
	useContext := req.Options == nil || !req.Options.DisableContext

	result := s.dispatcher.Execute(ctx, op, req.UserID, contextUsed)

	if useContext {
		s.store.Update(req.UserID, sessionID, req.Message, op)
		s.sugg.invalidate(contextstore.ContextID(req.UserID, sessionID))
	}

	outcome := "success"
	if result.Success {
		s.escalation.recordSuccess(req.UserID)
		if op.Intent == models.IntentCreate {
			if name, ok := op.Parameters["name"].(string); ok && name != "" {
				s.parser.Lexicon().RegisterEntity(op.EntityType, name)
			}
		}
	} else {
		outcome = "dispatch_error"
		s.escalation.recordFailure(req.UserID)
	}

	s.recordOutcome(ctx, outcome, health.Sample{
		Success:       result.Success,
		ParsingMs:     parseMs,
		ExecutionMs:   float64(result.ExecutionTimeMs),
		TotalMs:       sinceMs(start),
		Confidence:    op.Confidence,
		HasConfidence: true,
	})

	resp := &models.ChatEntityResponse{
		Success:   result.Success,
		Operation: op,
		Result:    result,
		Metadata:  s.metadata(requestID, start, &op.Confidence),
	}
	if result.Error != nil {
		resp.Error = result.Error
		resp.Suggestions = result.Error.Suggestions
	} else if useContext {
		resp.Suggestions = s.suggestionsFor(req.UserID, sessionID)
	}
	return resp
}

// GetSuggestions returns follow-up commands derived from the user's recent
// history. Results are cached per conversation until its context changes.
func (s *Service) GetSuggestions(userID, sessionID string) []string {
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	return s.suggestionsFor(userID, sessionID)
}

func (s *Service) suggestionsFor(userID, sessionID string) []string {
	key := contextstore.ContextID(userID, sessionID)
	if cached, ok := s.sugg.get(key); ok {
		return cached
	}

	snap := s.store.Snapshot(userID, sessionID)
	var out []string
	seen := map[string]bool{}
	for i := len(snap.History) - 1; i >= 0 && len(out) < 3; i-- {
		op := snap.History[i].Operation
		if op == nil {
			continue
		}
		name, _ := op.Parameters["name"].(string)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		switch op.Intent {
		case models.IntentCreate:
			out = append(out, fmt.Sprintf("complete %s %q", op.EntityType, name))
		case models.IntentComplete:
			out = append(out, fmt.Sprintf("show %s %q", op.EntityType, name))
		default:
			out = append(out, fmt.Sprintf("update %s %q", op.EntityType, name))
		}
	}

	s.sugg.set(key, out)
	return out
}

// GetMetrics returns the rolling performance view.
func (s *Service) GetMetrics() models.PerformanceMetrics {
	return s.health.Metrics()
}

// GetHealthStatus classifies current metrics against the health thresholds.
func (s *Service) GetHealthStatus() models.HealthStatus {
	return s.health.Health()
}

// ConfigUpdate carries a partial runtime reconfiguration; nil fields keep
// their current value.
type ConfigUpdate struct {
	ConfidenceThreshold *float64
	TieDelta            *float64
	MatchFloor          *float64
	SessionTimeoutMs    *int
	EscalationThreshold *int
	Health              *config.HealthConfig
}

// UpdateConfig applies a partial runtime reconfiguration.
func (s *Service) UpdateConfig(u ConfigUpdate) {
	s.mu.Lock()
	if u.ConfidenceThreshold != nil {
		s.th.confidence = *u.ConfidenceThreshold
	}
	if u.TieDelta != nil {
		s.th.tieDelta = *u.TieDelta
	}
	if u.MatchFloor != nil {
		s.th.matchFloor = *u.MatchFloor
	}
	s.mu.Unlock()

	if u.SessionTimeoutMs != nil {
		s.store.SetSessionTimeout(time.Duration(*u.SessionTimeoutMs) * time.Millisecond)
	}
	if u.EscalationThreshold != nil {
		s.escalation.setThreshold(*u.EscalationThreshold)
	}
	if u.Health != nil {
		s.health.UpdateThresholds(*u.Health)
	}
	s.logger.Info("runtime configuration updated", nil)
}

// ResetMetrics zeroes the rolling counters and failure streaks.
func (s *Service) ResetMetrics() {
	s.health.Reset()
	s.escalation.reset()
}

// ReplayDegraded re-executes queued degraded writes for one entity type
// through the normal dispatch path. Operator-invoked; nothing replays
// automatically.
func (s *Service) ReplayDegraded(ctx context.Context, entityType models.EntityType) (int, error) {
	if s.degrade == nil {
		return 0, fmt.Errorf("no degrade queue configured")
	}
	return s.degrade.Drain(ctx, entityType, func(op *models.ParsedOperation, userID string) error {
		result := s.dispatcher.Execute(ctx, op, userID, false)
		if !result.Success {
			return result.Error
		}
		return nil
	})
}

// Cleanup drops every conversation context and cached suggestion. Intended
// for shutdown and test teardown.
func (s *Service) Cleanup() {
	s.store.Clear()
	s.sugg.clear()
	s.escalation.reset()
}

// ContextCount reports the number of live conversation contexts.
func (s *Service) ContextCount() int {
	return s.store.Count()
}

func (s *Service) recordOutcome(ctx context.Context, outcome string, sample health.Sample) {
	s.health.Record(sample)
	metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
	if s.obs != nil {
		s.obs.RecordMessageProcessed(ctx, outcome)
		s.obs.RecordMessageDuration(ctx, time.Duration(sample.TotalMs)*time.Millisecond, outcome)
	}
}

func (s *Service) metadata(requestID string, start time.Time, confidence *float64) models.ResponseMetadata {
	return models.ResponseMetadata{
		RequestID:        requestID,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ConfidenceScore:  confidence,
	}
}

func (s *Service) errorResponse(requestID string, start time.Time, op *models.ParsedOperation, chatErr *cerrors.ChatError) *models.ChatEntityResponse {
	var confidence *float64
	if op != nil {
		confidence = &op.Confidence
	}
	return &models.ChatEntityResponse{
		Success:     false,
		Operation:   op,
		Error:       chatErr,
		Suggestions: chatErr.Suggestions,
		Metadata:    s.metadata(requestID, start, confidence),
	}
}

func (s *Service) disambiguationResponse(requestID string, start time.Time, op *models.ParsedOperation, labels []string) *models.ChatEntityResponse {
	pending := *op
	pending.NeedsDisambiguation = true
	return &models.ChatEntityResponse{
		Success:               false,
		Operation:             &pending,
		NeedsDisambiguation:   true,
		DisambiguationOptions: labels,
		Metadata:              s.metadata(requestID, start, &op.Confidence),
	}
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}
