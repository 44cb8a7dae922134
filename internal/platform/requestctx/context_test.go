package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoggerFallsBackToNop(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, Logger(ctx))
	assert.False(t, HasLogger(ctx))
	assert.False(t, HasLogger(WithLogger(ctx, nil)))

	logger := zap.NewExample()
	ctx = WithLogger(ctx, logger)
	assert.Same(t, logger, Logger(ctx))
	assert.True(t, HasLogger(ctx))
}

func TestRequestValuesDoNotCollide(t *testing.T) {
	ctx := WithClientIP(context.Background(), "198.51.100.7")
	ctx = WithLocale(ctx, "vi")
	ctx = WithTrace(ctx, TraceInfo{TraceID: "abc", Sampled: true})

	assert.Equal(t, "198.51.100.7", ClientIP(ctx))
	assert.Equal(t, "vi", Locale(ctx))
	assert.Equal(t, "abc", TraceID(ctx))

	empty := context.Background()
	assert.Empty(t, ClientIP(empty))
	assert.Empty(t, Locale(empty))
	_, ok := Trace(empty)
	assert.False(t, ok)
}
