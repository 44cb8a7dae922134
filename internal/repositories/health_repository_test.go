package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
)

func okCheck(name string) DependencyCheck {
	return DependencyCheck{Name: name, Check: func(context.Context) error { return nil }}
}

func TestNewDependencyHealthRepositoryValidatesChecks(t *testing.T) {
	noop := func(context.Context) error { return nil }
	cases := map[string][]DependencyCheck{
		"empty":     nil,
		"blank":     {{Name: "  ", Check: noop}},
		"nil check": {{Name: "mysql"}},
		"duplicate": {okCheck("mysql"), okCheck(" mysql ")},
	}
	for name, checks := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDependencyHealthRepository(checks)
			assert.Error(t, err)
		})
	}
}

func TestCollectReportsHealthyStoreAndPublisher(t *testing.T) {
	ticks := []time.Time{
		time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 3, 9, 0, 0, int(25*time.Millisecond), time.UTC),
	}
	var i int
	clock := func() time.Time {
		tick := ticks[i%len(ticks)]
		i++
		return tick
	}

	repo, err := NewDependencyHealthRepository([]DependencyCheck{okCheck("mysql")}, WithDependencyClock(clock))
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusOK, report.Status)
	require.Contains(t, report.Checks, "mysql")
	check := report.Checks["mysql"]
	assert.Equal(t, domain.HealthStatusOK, check.Status)
	assert.Equal(t, "ok", check.Detail)
	assert.Equal(t, 25*time.Millisecond, check.Latency)
	assert.Equal(t, ticks[1], check.CheckedAt)
}

func TestCollectDegradesOnFailingCheck(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		okCheck("mysql"),
		{Name: "pubsub", Check: func(context.Context) error { return errors.New("topic order-events not found") }},
	})
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusDegraded, report.Status)
	assert.Equal(t, domain.HealthStatusOK, report.Checks["mysql"].Status)
	pubsub := report.Checks["pubsub"]
	assert.Equal(t, domain.HealthStatusDegraded, pubsub.Status)
	assert.Equal(t, "topic order-events not found", pubsub.Error)
}

func TestCollectMarksSlowCheckAsTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		okCheck("storage"),
		{
			Name:    "secretManager",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			},
		},
	})
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusError, report.Status)
	secret := report.Checks["secretManager"]
	assert.Equal(t, domain.HealthStatusError, secret.Status)
	assert.Equal(t, "timeout", secret.Detail)
	assert.Equal(t, domain.HealthStatusOK, report.Checks["storage"].Status)
}

func TestCollectRequiresContext(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{okCheck("memory")})
	require.NoError(t, err)

	//nolint:staticcheck // nil context is the case under test
	_, err = repo.Collect(nil)
	assert.Error(t, err)
}
