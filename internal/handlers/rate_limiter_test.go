package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoestore/api/internal/platform/requestctx"
)

func TestPaymentRateLimiterRefillsOverWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewPaymentRateLimiter(3, time.Hour, func() time.Time { return now })
	require.NotNil(t, limiter)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("198.51.100.7"), "attempt %d", i+1)
	}
	assert.False(t, limiter.Allow("198.51.100.7"))
	assert.True(t, limiter.Allow("198.51.100.8"), "keys are independent")

	now = now.Add(21 * time.Minute)
	assert.True(t, limiter.Allow("198.51.100.7"))
	assert.False(t, limiter.Allow("198.51.100.7"))
}

func TestPaymentRateLimiterPrunesIdleKeys(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewPaymentRateLimiter(1, time.Minute, func() time.Time { return now })

	limiter.Allow("a")
	limiter.Allow("b")
	now = now.Add(2 * time.Minute)
	limiter.Allow("c")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.entries, 1)
	assert.Contains(t, limiter.entries, "c")
}

func TestNilPaymentRateLimiterAllowsEverything(t *testing.T) {
	var limiter *PaymentRateLimiter
	assert.Nil(t, NewPaymentRateLimiter(0, time.Hour, nil))
	assert.Nil(t, NewPaymentRateLimiter(5, 0, nil))
	assert.True(t, limiter.Allow("anyone"))

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestRateLimitKeyPrefersResolvedClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:443"
	assert.Equal(t, "10.0.0.2", rateLimitKey(req))

	req = req.WithContext(requestctx.WithClientIP(context.Background(), "203.0.113.50"))
	assert.Equal(t, "203.0.113.50", rateLimitKey(req))

	req.RemoteAddr = "not-an-address"
	req = req.WithContext(context.Background())
	assert.Equal(t, "not-an-address", rateLimitKey(req))
}
