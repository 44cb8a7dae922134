package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/services"
)

func TestHealthzReportsUptime(t *testing.T) {
	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Environment: "staging", StartedAt: started}),
		WithHealthClock(func() time.Time { return started.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "staging", body["environment"])
	assert.Equal(t, "1m30s", body["uptime"])
	assert.Equal(t, "2024-06-01T08:01:30Z", body["timestamp"])
}

func TestReadyzHealthy(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{
		report: services.HealthReport{
			Status:      domain.HealthStatusOK,
			Environment: "prod",
			Uptime:      time.Hour,
			Checks: map[string]domain.HealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
			},
		},
	}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var payload readinessPayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, "1h0m0s", payload.Uptime)
	assert.Equal(t, healthCheckPayload{Status: "ok", LatencyMS: 12}, payload.Checks["firestore"])
	assert.Empty(t, payload.Details)
}

func TestReadyzDegradedAnswers503(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{
		report: services.HealthReport{
			Status: domain.HealthStatusDegraded,
			Checks: map[string]domain.HealthCheck{
				"pubsub":    {Status: domain.HealthStatusError, Error: "topic not found"},
				"firestore": {Status: domain.HealthStatusOK},
				"payments":  {Status: domain.HealthStatusError, Error: "no providers configured"},
			},
		},
	}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var payload readinessPayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "degraded", payload.Status)
	assert.Equal(t, []string{"payments: no providers configured", "pubsub: topic not found"}, payload.Details)
}

func TestReadyzServiceError(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("check timeout")}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, []any{"check timeout"}, body["details"])
}

func TestReadyzWithoutSystemService(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandlers().Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}
