// Package health keeps the rolling performance counters for the chat
// subsystem and derives a coarse health classification from them. The
// aggregator is injected, never global, so tests and multiple service
// instances stay isolated.
package health

import (
	"sync"

	"growth-chat/internal/common/config"
	"growth-chat/internal/models"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Sample is the measurement recorded for one processed message.
type Sample struct {
	Success       bool
	ParsingMs     float64
	ExecutionMs   float64
	TotalMs       float64
	Confidence    float64
	HasConfidence bool
}

// Aggregator accumulates per-message samples under a single lock. Averages are
// cumulative over the aggregator's lifetime; Reset starts a new window.
type Aggregator struct {
	mu sync.Mutex

	total      int64
	successful int64

	sumParsingMs   float64
	sumExecutionMs float64
	sumTotalMs     float64

	sumConfidence   float64
	confidenceCount int64

	thresholds config.HealthConfig
}

func NewAggregator(thresholds config.HealthConfig) *Aggregator {
	return &Aggregator{thresholds: thresholds}
}

// Record folds one sample into the rolling counters.
func (a *Aggregator) Record(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if s.Success {
		a.successful++
	}
	a.sumParsingMs += s.ParsingMs
	a.sumExecutionMs += s.ExecutionMs
	a.sumTotalMs += s.TotalMs
	if s.HasConfidence {
		a.sumConfidence += s.Confidence
		a.confidenceCount++
	}
}

// Metrics returns the current rolling view. With no samples recorded the
// error rate is zero, not NaN.
func (a *Aggregator) Metrics() models.PerformanceMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metricsLocked()
}

func (a *Aggregator) metricsLocked() models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		TotalOperations:      a.total,
		SuccessfulOperations: a.successful,
	}
	if a.total > 0 {
		m.ErrorRate = float64(a.total-a.successful) / float64(a.total)
		m.AvgParsingTimeMs = a.sumParsingMs / float64(a.total)
		m.AvgExecutionTimeMs = a.sumExecutionMs / float64(a.total)
		m.AvgResponseTimeMs = a.sumTotalMs / float64(a.total)
	}
	if a.confidenceCount > 0 {
		m.AvgConfidence = a.sumConfidence / float64(a.confidenceCount)
	}
	return m
}

// Health classifies the current metrics against the configured thresholds.
// The worst individual signal wins.
func (a *Aggregator) Health() models.HealthStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.metricsLocked()
	t := a.thresholds

	// Boundaries are strict: a value sitting exactly on a threshold keeps
	// the better classification.
	status := StatusHealthy
	if m.TotalOperations > 0 {
		switch {
		case m.ErrorRate > t.UnhealthyErrorRate,
			a.confidenceCount > 0 && m.AvgConfidence < t.UnhealthyConfidence,
			m.AvgResponseTimeMs > t.UnhealthyResponseMs:
			status = StatusUnhealthy
		case m.ErrorRate > t.DegradedErrorRate,
			a.confidenceCount > 0 && m.AvgConfidence < t.DegradedConfidence,
			m.AvgResponseTimeMs > t.DegradedResponseMs:
			status = StatusDegraded
		}
	}

	return models.HealthStatus{
		Status: status,
		Details: map[string]interface{}{
			"totalOperations":   m.TotalOperations,
			"errorRate":         m.ErrorRate,
			"avgConfidence":     m.AvgConfidence,
			"avgResponseTimeMs": m.AvgResponseTimeMs,
		},
	}
}

// Reset zeroes every counter, starting a fresh measurement window.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = 0
	a.successful = 0
	a.sumParsingMs = 0
	a.sumExecutionMs = 0
	a.sumTotalMs = 0
	a.sumConfidence = 0
	a.confidenceCount = 0
}

// UpdateThresholds swaps the classification thresholds at runtime.
func (a *Aggregator) UpdateThresholds(t config.HealthConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = t
}
