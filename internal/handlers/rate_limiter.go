package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shoestore/api/internal/platform/httpx"
	"github.com/shoestore/api/internal/platform/requestctx"
)

const paymentRateLimitMessage = "Too many payment attempts, please try again later"

// PaymentRateLimiter throttles payment initiation per client IP. Each key gets a token
// bucket holding limit tokens that refills completely over window.
type PaymentRateLimiter struct {
	limit     int
	window    time.Duration
	clock     func() time.Time
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPaymentRateLimiter returns nil when limit or window is not positive; a nil limiter allows everything.
func NewPaymentRateLimiter(limit int, window time.Duration, clock func() time.Time) *PaymentRateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &PaymentRateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow consumes one token for key.
func (l *PaymentRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit),
		}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	if now.Sub(l.lastPrune) >= l.window {
		l.pruneIdleLocked(now)
		l.lastPrune = now
	}
	return allowed
}

// pruneIdleLocked drops keys idle for a full window; their buckets would be full again anyway.
func (l *PaymentRateLimiter) pruneIdleLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) >= l.window {
			delete(l.entries, key)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *PaymentRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(rateLimitKey(r)) {
			w.Header().Set("RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("Retry-After", strconv.Itoa(int((l.window / time.Duration(l.limit)).Seconds())))
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", paymentRateLimitMessage, http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if ip := requestctx.ClientIP(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
