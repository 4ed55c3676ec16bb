package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"growth-chat/internal/common/config"
)

func testThresholds() config.HealthConfig {
	return config.HealthConfig{
		DegradedErrorRate:   0.1,
		UnhealthyErrorRate:  0.2,
		DegradedConfidence:  0.7,
		UnhealthyConfidence: 0.5,
		DegradedResponseMs:  2000,
		UnhealthyResponseMs: 3000,
	}
}

func record(a *Aggregator, n int, success bool, confidence, totalMs float64) {
	for i := 0; i < n; i++ {
		a.Record(Sample{
			Success:       success,
			TotalMs:       totalMs,
			Confidence:    confidence,
			HasConfidence: true,
		})
	}
}

func TestMetricsEmptyAggregator(t *testing.T) {
	a := NewAggregator(testThresholds())

	m := a.Metrics()
	assert.Equal(t, int64(0), m.TotalOperations)
	assert.Equal(t, 0.0, m.ErrorRate, "no samples must not divide by zero")
	assert.Equal(t, 0.0, m.AvgConfidence)

	assert.Equal(t, StatusHealthy, a.Health().Status)
}

func TestMetricsAverages(t *testing.T) {
	a := NewAggregator(testThresholds())

	a.Record(Sample{Success: true, ParsingMs: 10, ExecutionMs: 100, TotalMs: 120, Confidence: 0.9, HasConfidence: true})
	a.Record(Sample{Success: false, ParsingMs: 20, ExecutionMs: 200, TotalMs: 240, Confidence: 0.7, HasConfidence: true})

	m := a.Metrics()
	assert.Equal(t, int64(2), m.TotalOperations)
	assert.Equal(t, int64(1), m.SuccessfulOperations)
	assert.InDelta(t, 0.5, m.ErrorRate, 0.001)
	assert.InDelta(t, 15, m.AvgParsingTimeMs, 0.001)
	assert.InDelta(t, 150, m.AvgExecutionTimeMs, 0.001)
	assert.InDelta(t, 180, m.AvgResponseTimeMs, 0.001)
	assert.InDelta(t, 0.8, m.AvgConfidence, 0.001)
}

func TestConfidenceAveragesSkipUnscoredSamples(t *testing.T) {
	a := NewAggregator(testThresholds())

	a.Record(Sample{Success: true, Confidence: 0.9, HasConfidence: true})
	a.Record(Sample{Success: false}) // parsing failure carries no confidence

	m := a.Metrics()
	assert.InDelta(t, 0.9, m.AvgConfidence, 0.001, "unscored samples must not drag the average")
}

func TestHealthTransitions(t *testing.T) {
	a := NewAggregator(testThresholds())

	record(a, 95, true, 0.9, 100)
	record(a, 5, false, 0.9, 100)
	assert.Equal(t, StatusHealthy, a.Health().Status)

	// Push the error rate past degraded (10%).
	record(a, 10, false, 0.9, 100)
	assert.Equal(t, StatusDegraded, a.Health().Status)

	// Past unhealthy (20%).
	record(a, 20, false, 0.9, 100)
	assert.Equal(t, StatusUnhealthy, a.Health().Status)
}

func TestHealthLowConfidenceDegrades(t *testing.T) {
	a := NewAggregator(testThresholds())
	record(a, 10, true, 0.65, 100)
	assert.Equal(t, StatusDegraded, a.Health().Status)

	a.Reset()
	record(a, 10, true, 0.4, 100)
	assert.Equal(t, StatusUnhealthy, a.Health().Status)
}

func TestHealthSlowResponsesDegrade(t *testing.T) {
	a := NewAggregator(testThresholds())
	record(a, 10, true, 0.9, 2500)
	assert.Equal(t, StatusDegraded, a.Health().Status)
}

func TestResetStartsFreshWindow(t *testing.T) {
	a := NewAggregator(testThresholds())
	record(a, 10, false, 0.3, 5000)
	assert.Equal(t, StatusUnhealthy, a.Health().Status)

	a.Reset()
	m := a.Metrics()
	assert.Equal(t, int64(0), m.TotalOperations)
	assert.Equal(t, StatusHealthy, a.Health().Status)
}

func TestUpdateThresholds(t *testing.T) {
	a := NewAggregator(testThresholds())
	record(a, 8, true, 0.9, 100)
	record(a, 2, false, 0.9, 100)
	assert.Equal(t, StatusDegraded, a.Health().Status)

	loose := testThresholds()
	loose.DegradedErrorRate = 0.5
	a.UpdateThresholds(loose)
	assert.Equal(t, StatusHealthy, a.Health().Status)
}

func TestHealthBoundariesAreStrict(t *testing.T) {
	// Error rate exactly at the degraded bound (10%) stays healthy.
	a := NewAggregator(testThresholds())
	record(a, 9, true, 0.9, 100)
	record(a, 1, false, 0.9, 100)
	assert.Equal(t, StatusHealthy, a.Health().Status)

	// Exactly at the unhealthy bound (20%) is degraded, not unhealthy.
	a.Reset()
	record(a, 8, true, 0.9, 100)
	record(a, 2, false, 0.9, 100)
	assert.Equal(t, StatusDegraded, a.Health().Status)

	// Confidence exactly at the degraded bound stays healthy.
	a.Reset()
	record(a, 10, true, 0.7, 100)
	assert.Equal(t, StatusHealthy, a.Health().Status)

	// Response time exactly at the degraded bound stays healthy.
	a.Reset()
	record(a, 10, true, 0.9, 2000)
	assert.Equal(t, StatusHealthy, a.Health().Status)
}
