package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

// BuildInfo describes the running process for /healthz and /readyz.
type BuildInfo struct {
	Environment string
	StoreDriver string
	StartedAt   time.Time
}

// MethodSupport reports which payment channels are registered.
type MethodSupport interface {
	Supports(method domain.PaymentMethod) bool
}

type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Payments         MethodSupport
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	checks   repositories.HealthRepository
	payments MethodSupport
	now      func() time.Time
	build    BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService returns the readiness service. Payments is optional; without it the
// report lists no payment methods.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	s := &systemService{
		checks:   deps.HealthRepository,
		payments: deps.Payments,
		now:      func() time.Time { return now().UTC() },
		build:    deps.Build,
	}
	if s.build.StartedAt.IsZero() {
		s.build.StartedAt = s.now()
	}
	return s, nil
}

func (s *systemService) HealthReport(ctx context.Context) (HealthReport, error) {
	if ctx == nil {
		return HealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.checks.Collect(ctx)
	if err != nil {
		return HealthReport{}, err
	}

	now := s.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if strings.TrimSpace(report.Environment) == "" {
		report.Environment = s.build.Environment
	}
	if report.StoreDriver == "" {
		report.StoreDriver = s.build.StoreDriver
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.HealthCheck{}
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = rollupStatus(report.Checks)
	}
	report.PaymentMethods = s.enabledMethods()
	return report, nil
}

func (s *systemService) enabledMethods() []domain.PaymentMethod {
	if s.payments == nil {
		return nil
	}
	var enabled []domain.PaymentMethod
	for _, method := range domain.PaymentMethods() {
		if s.payments.Supports(method) {
			enabled = append(enabled, method)
		}
	}
	return enabled
}

// rollupStatus treats unknown statuses as degraded; a single error fails readiness.
func rollupStatus(checks map[string]domain.HealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case "", domain.HealthStatusOK:
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
