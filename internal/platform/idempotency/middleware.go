package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/platform/httpx"
	"github.com/shoestore/api/internal/platform/requestctx"
)

const (
	defaultHeader = "Idempotency-Key"
	replayHeader  = "Idempotent-Replayed"
	maxKeyLength  = 255

	// DefaultMaxBodyBytes matches the largest body the order and payment handlers accept.
	DefaultMaxBodyBytes int64 = 16 * 1024
)

type config struct {
	header  string
	ttl     time.Duration
	now     func() time.Time
	maxBody int64
}

// Option customises the middleware.
type Option func(*config)

func WithHeader(name string) Option {
	return func(c *config) {
		if name = strings.TrimSpace(name); name != "" {
			c.header = name
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxBodyBytes caps how much of a keyed request body is buffered for fingerprinting.
func WithMaxBodyBytes(limit int64) Option {
	return func(c *config) {
		if limit > 0 {
			c.maxBody = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// Middleware replays the first response for a repeated Idempotency-Key so a retried
// placement does not create a second order or payment. Requests without the header pass
// through unchanged. Keys are scoped to the authenticated user, so it must run after auth.
// Server errors release the key so the client may retry.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{header: defaultHeader, ttl: DefaultTTL, now: time.Now, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(cfg.header))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(key) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_idempotency_key", "Idempotency key is too long", http.StatusBadRequest))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, cfg.maxBody+1))
			_ = r.Body.Close()
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Unable to read request body", http.StatusBadRequest))
				return
			}
			if int64(len(body)) > cfg.maxBody {
				httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := requester(r) + ":" + key
			record, state, err := store.Reserve(ctx, scope, fingerprint(r, body), cfg.now().UTC(), cfg.ttl)
			switch {
			case err == ErrKeyReused:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_conflict", "Idempotency key was already used for a different request", http.StatusConflict))
				return
			case err != nil:
				requestctx.Logger(ctx).Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "Unable to process idempotency key", http.StatusServiceUnavailable))
				return
			case state == StateInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "A request with this idempotency key is still in progress", http.StatusConflict))
				return
			case state == StateReplay:
				replay(w, record)
				return
			}

			tee := &teeWriter{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					_ = store.Release(ctx, scope)
					panic(rec)
				}
			}()
			next.ServeHTTP(tee, r)

			if tee.status() >= http.StatusInternalServerError {
				if err := store.Release(ctx, scope); err != nil {
					requestctx.Logger(ctx).Warn("idempotency release failed", zap.Error(err))
				}
				return
			}
			record.Status = tee.status()
			record.ContentType = tee.Header().Get("Content-Type")
			record.Body = tee.body.Bytes()
			if err := store.Complete(ctx, record); err != nil {
				requestctx.Logger(ctx).Warn("idempotency response not stored", zap.Error(err))
			}
		})
	}
}

func requester(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UserID != "" {
		return identity.UserID
	}
	return "anonymous"
}

func fingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, record Record) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	status := record.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.Body)
}

// teeWriter streams the response to the client while keeping a copy for the store.
type teeWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (t *teeWriter) WriteHeader(code int) {
	if t.code == 0 {
		t.code = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(p []byte) (int, error) {
	if t.code == 0 {
		t.code = http.StatusOK
	}
	t.body.Write(p)
	return t.ResponseWriter.Write(p)
}

func (t *teeWriter) status() int {
	if t.code == 0 {
		return http.StatusOK
	}
	return t.code
}
