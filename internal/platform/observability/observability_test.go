package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shoestore/api/internal/platform/requestctx"
)

const sampleTraceID = "105445aa7843bc8bf206b12000100000"

func TestCloudTraceHeaderRoundTrip(t *testing.T) {
	header := sampleTraceID + "/12345;o=1"

	spanCtx, ok := parseCloudTraceContext(header)
	require.True(t, ok)
	assert.Equal(t, sampleTraceID, spanCtx.TraceID().String())
	assert.True(t, spanCtx.IsSampled())
	assert.True(t, spanCtx.IsRemote())
	assert.Equal(t, header, formatCloudTraceHeader(spanCtx))

	unsampled, ok := parseCloudTraceContext(sampleTraceID + "/7")
	require.True(t, ok)
	assert.False(t, unsampled.IsSampled())
}

func TestParseCloudTraceContextRejectsMalformed(t *testing.T) {
	for _, header := range []string{
		"",
		"not-a-trace",
		sampleTraceID,
		"abc/123;o=1",
		sampleTraceID + "/zero;o=1",
		sampleTraceID + "/0;o=1",
		"00000000000000000000000000000000/5;o=1",
	} {
		_, ok := parseCloudTraceContext(header)
		assert.False(t, ok, "header %q", header)
	}
}

func TestTraceMiddlewareContinuesIncomingTrace(t *testing.T) {
	var info requestctx.TraceInfo
	handler := TraceMiddleware("shoe-store")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/order", nil)
	req.Header.Set(cloudTraceHeader, sampleTraceID+"/99;o=1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, sampleTraceID, info.TraceID)
	assert.Equal(t, "shoe-store", info.ProjectID)
	assert.Equal(t, sampleTraceID+"/99;o=1", rr.Header().Get(cloudTraceHeader))
}

func TestRecoveryMiddlewareWritesInternalError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/order/cod", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["code"])
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRequestLoggerMiddlewareLogsRouteAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestctx.WithClientIP(req.Context(), "203.0.113.9")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(InjectLoggerMiddleware(zap.New(core)))
	r.Use(RequestLoggerMiddleware())
	r.Get("/api/order/{orderID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/order/abc", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/api/order/{orderID}", fields["route"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, "203.0.113.9", fields["remote_ip"])
	assert.Equal(t, "GET", fields["method"])
}

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zapcore.InfoLevel)
	requestCore, requestLogs := observer.New(zapcore.InfoLevel)
	log := ServiceLogger(zap.New(fallbackCore), "payments")

	log(context.Background(), "payment.confirmed", map[string]any{"orderId": "o-1"})
	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore))
	log(ctx, "payment.failed", map[string]any{"orderId": "o-2"})

	require.Equal(t, 1, fallbackLogs.Len())
	first := fallbackLogs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, first.Level)
	assert.Equal(t, "payments", first.ContextMap()["component"])
	assert.Equal(t, "o-1", first.ContextMap()["orderId"])

	require.Equal(t, 1, requestLogs.Len())
	assert.Equal(t, zapcore.WarnLevel, requestLogs.All()[0].Level)
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "/", SanitizeRoute(""))
	assert.Equal(t, "/api/orderx", SanitizeRoute("/api/order\x00x"))
	assert.Equal(t, "/api/orderforged", SanitizeRoute("/api/order\nforged"))
	assert.Equal(t, "/", SanitizeRoute("\r\n"))
	assert.Len(t, SanitizeMethod("GETGETGETGETGET"), 10)
	assert.Equal(t, "POST", SanitizeMethod("post"))
}
