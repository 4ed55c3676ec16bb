package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-chat/internal/chat"
	"growth-chat/internal/chat/dispatch"
	"growth-chat/internal/common/config"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/models"
)

type okAdapter struct{}

func (okAdapter) Execute(ctx context.Context, op *models.ParsedOperation) (*models.OperationResult, error) {
	return &models.OperationResult{Success: true, Data: map[string]interface{}{"ok": true}}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Entities = map[string]config.EntityConfig{
		"habit": {TimeoutMs: 1000, FallbackStrategy: dispatch.StrategyFail},
	}

	registry := dispatch.NewRegistry()
	registry.Register(models.EntityHabit, okAdapter{})

	service, err := chat.NewService(cfg, registry, logger.NewTestLogger(t), chat.Options{})
	require.NoError(t, err)
	t.Cleanup(service.Cleanup)

	srv := New(cfg.Server, service, logger.NewTestLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/chat", models.ChatRequest{
		Message: "create habit Morning Run",
		UserID:  "u1",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.ChatEntityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	require.NotNil(t, out.Operation)
	assert.Equal(t, models.EntityHabit, out.Operation.EntityType)
	assert.NotEmpty(t, out.Metadata.RequestID)
}

func TestChatEndpointRejectsMissingFields(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/chat", models.ChatRequest{Message: "hello"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
}

func TestMetricszEndpoint(t *testing.T) {
	ts := newTestServer(t)

	postJSON(t, ts.URL+"/v1/chat", models.ChatRequest{Message: "create habit Morning Run", UserID: "u1"}).Body.Close()

	resp, err := http.Get(ts.URL + "/metricsz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var m models.PerformanceMetrics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, int64(1), m.TotalOperations)
}

func TestPrometheusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfigUpdateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	payload := bytes.NewReader([]byte(`{"confidenceThreshold": 0.9}`))
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/config", payload)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMetricsResetEndpoint(t *testing.T) {
	ts := newTestServer(t)

	postJSON(t, ts.URL+"/v1/chat", models.ChatRequest{Message: "create habit Morning Run", UserID: "u1"}).Body.Close()

	resp := postJSON(t, ts.URL+"/v1/metrics/reset", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	metricsResp, err := http.Get(ts.URL + "/metricsz")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	var m models.PerformanceMetrics
	require.NoError(t, json.NewDecoder(metricsResp.Body).Decode(&m))
	assert.Equal(t, int64(0), m.TotalOperations)
}

func TestDegradedReplayWithoutQueue(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/degraded/habit/replay", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDegradedReplayUnknownEntity(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/degraded/widget/replay", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
