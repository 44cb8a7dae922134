// Package requestctx carries per-request values (logger, trace, caller address and
// locale) from the HTTP middleware chain down to services.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type key int

const (
	loggerKey key = iota
	traceKey
	clientIPKey
	localeKey
)

var nop = zap.NewNop()

// TraceInfo is the Cloud Trace context of the current request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func lookup[T any](ctx context.Context, k key) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// WithLogger attaches logger; nil attaches a no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = nop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger never returns nil.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := lookup[*zap.Logger](ctx, loggerKey); ok && logger != nil {
		return logger
	}
	return nop
}

// HasLogger is false when only the no-op logger is present.
func HasLogger(ctx context.Context) bool {
	logger, ok := lookup[*zap.Logger](ctx, loggerKey)
	return ok && logger != nil && logger != nop
}

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(ctx, traceKey, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	return lookup[TraceInfo](ctx, traceKey)
}

func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithClientIP records the caller address passed to payment providers and used as the
// payment rate limit key.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := lookup[string](ctx, clientIPKey)
	return ip
}

// WithLocale records the negotiated language ("vi" or "en").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// Locale is "" when no language was negotiated.
func Locale(ctx context.Context) string {
	locale, _ := lookup[string](ctx, localeKey)
	return locale
}
