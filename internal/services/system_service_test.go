package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.HealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.HealthReport, error) {
	return s.report, s.err
}

type methodSet map[domain.PaymentMethod]bool

func (m methodSet) Supports(method domain.PaymentMethod) bool { return m[method] }

func TestSystemServiceReportsStoreAndPaymentMethods(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubHealthRepository{report: domain.HealthReport{
		Checks: map[string]domain.HealthCheck{"mysql": {Status: domain.HealthStatusOK}},
	}}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Payments:         methodSet{domain.PaymentMethodMomo: true, domain.PaymentMethodCOD: true},
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Environment: "prod", StoreDriver: "mysql", StartedAt: now.Add(-90 * time.Minute)},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusOK, report.Status)
	assert.Equal(t, "prod", report.Environment)
	assert.Equal(t, "mysql", report.StoreDriver)
	assert.Equal(t, 90*time.Minute, report.Uptime)
	assert.True(t, report.GeneratedAt.Equal(now))
	assert.Equal(t, []domain.PaymentMethod{domain.PaymentMethodCOD, domain.PaymentMethodMomo}, report.PaymentMethods)
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	expected := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: expected}})
	require.NoError(t, err)

	_, err = svc.HealthReport(context.Background())
	assert.ErrorIs(t, err, expected)
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	assert.Error(t, err)
}

func TestSystemServiceRollsUpMissingStatus(t *testing.T) {
	cases := map[string]struct {
		checks map[string]domain.HealthCheck
		want   string
	}{
		"degraded publisher": {
			checks: map[string]domain.HealthCheck{
				"pubsub": {Status: domain.HealthStatusDegraded},
				"mysql":  {Status: domain.HealthStatusOK},
			},
			want: domain.HealthStatusDegraded,
		},
		"store down": {
			checks: map[string]domain.HealthCheck{
				"pubsub": {Status: domain.HealthStatusDegraded},
				"mysql":  {Status: domain.HealthStatusError},
			},
			want: domain.HealthStatusError,
		},
		"no checks": {want: domain.HealthStatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.HealthReport{Checks: tc.checks}},
			})
			require.NoError(t, err)

			report, err := svc.HealthReport(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, report.Status)
			assert.Nil(t, report.PaymentMethods)
		})
	}
}
