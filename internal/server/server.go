// Package server exposes the chat service over HTTP: the chat endpoint,
// operational endpoints and the Prometheus scrape target.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"growth-chat/internal/chat"
	"growth-chat/internal/common/config"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type Server struct {
	httpServer *http.Server
	service    *chat.Service
	logger     logger.Logger
}

func New(cfg config.ServerConfig, service *chat.Service, log logger.Logger) *Server {
	s := &Server{
		service: service,
		logger:  log.With(map[string]interface{}{"component": "http-server"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/suggestions", s.handleSuggestions)
	mux.HandleFunc("/v1/config", s.handleConfig)
	mux.HandleFunc("/v1/metrics/reset", s.handleMetricsReset)
	mux.HandleFunc("/v1/degraded/", s.handleDegradedReplay)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metricsz", s.handleMetricsz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

// Handler exposes the route table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "message and userId are required", http.StatusBadRequest)
		return
	}

	resp := s.service.ProcessMessage(r.Context(), &req)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	suggestions := s.service.GetSuggestions(userID, r.URL.Query().Get("sessionId"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

type configUpdateRequest struct {
	ConfidenceThreshold *float64             `json:"confidenceThreshold,omitempty"`
	TieDelta            *float64             `json:"tieDelta,omitempty"`
	MatchFloor          *float64             `json:"matchFloor,omitempty"`
	SessionTimeoutMs    *int                 `json:"sessionTimeoutMs,omitempty"`
	EscalationThreshold *int                 `json:"escalationThreshold,omitempty"`
	Health              *config.HealthConfig `json:"health,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.service.UpdateConfig(chat.ConfigUpdate{
		ConfidenceThreshold: req.ConfidenceThreshold,
		TieDelta:            req.TieDelta,
		MatchFloor:          req.MatchFloor,
		SessionTimeoutMs:    req.SessionTimeoutMs,
		EscalationThreshold: req.EscalationThreshold,
		Health:              req.Health,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.service.ResetMetrics()
	w.WriteHeader(http.StatusNoContent)
}

// handleDegradedReplay serves POST /v1/degraded/{entityType}/replay.
func (s *Server) handleDegradedReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/degraded/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "replay" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	entityType := models.ParseEntityType(parts[0])
	if entityType == "" {
		http.Error(w, "unknown entity type", http.StatusBadRequest)
		return
	}

	drained, err := s.service.ReplayDegraded(r.Context(), entityType)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"replayed": drained,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"replayed": drained})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.GetHealthStatus()
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleMetricsz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetMetrics())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
