package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/services"
)

// HealthHandlers serves liveness and readiness checks.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService sets the service consulted by /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthBuildInfo sets the metadata reported by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the clock used for uptime and timestamps.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs HealthHandlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type readinessPayload struct {
	Status         string                        `json:"status"`
	Environment    string                        `json:"environment,omitempty"`
	Store          string                        `json:"store,omitempty"`
	PaymentMethods []string                      `json:"paymentMethods,omitempty"`
	Uptime         string                        `json:"uptime"`
	Timestamp      string                        `json:"timestamp"`
	Checks         map[string]healthCheckPayload `json:"checks"`
	Details        []string                      `json:"details,omitempty"`
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":      domain.HealthStatusOK,
		"environment": h.build.Environment,
		"store":       h.build.StoreDriver,
		"uptime":      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   now.UTC().Format(time.RFC3339),
	})
}

// Readyz checks dependencies and answers 503 unless every check is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, readinessPayload{
			Status:    domain.HealthStatusOK,
			Uptime:    now.Sub(h.build.StartedAt).Round(time.Second).String(),
			Timestamp: now.UTC().Format(time.RFC3339),
			Checks:    map[string]healthCheckPayload{},
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readinessPayload{
			Status:    domain.HealthStatusError,
			Timestamp: now.UTC().Format(time.RFC3339),
			Checks:    map[string]healthCheckPayload{},
			Details:   []string{err.Error()},
		})
		return
	}

	payload := readinessPayload{
		Status:      report.Status,
		Environment: report.Environment,
		Store:       report.StoreDriver,
		Uptime:      report.Uptime.Round(time.Second).String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
	}
	for _, method := range report.PaymentMethods {
		payload.PaymentMethods = append(payload.PaymentMethods, string(method))
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		payload.Checks[name] = healthCheckPayload{
			Status:    check.Status,
			LatencyMS: check.Latency.Milliseconds(),
			Error:     check.Error,
		}
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			payload.Details = append(payload.Details, name+": "+check.Error)
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
