package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/platform/requestctx"
	"github.com/shoestore/api/internal/services"
)

const defaultCleanupBatchSize = 500

// IdempotencyJanitor removes expired idempotency records.
type IdempotencyJanitor interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// InternalHandlersDeps bundles collaborators for scheduler-triggered jobs.
type InternalHandlersDeps struct {
	Revenue            services.RevenueService
	Idempotency        IdempotencyJanitor
	CleanupBatchSize   int
	Clock              func() time.Time
	ExposeErrorDetails bool
}

// InternalHandlers serves /internal routes. Callers are authenticated by the router's OIDC middleware.
type InternalHandlers struct {
	revenue     services.RevenueService
	idempotency IdempotencyJanitor
	batchSize   int
	clock       func() time.Time
	errors      errorWriter
}

// NewInternalHandlers constructs InternalHandlers.
func NewInternalHandlers(deps InternalHandlersDeps) *InternalHandlers {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	batch := deps.CleanupBatchSize
	if batch <= 0 {
		batch = defaultCleanupBatchSize
	}
	return &InternalHandlers{
		revenue:     deps.Revenue,
		idempotency: deps.Idempotency,
		batchSize:   batch,
		clock:       clock,
		errors:      errorWriter{exposeDetails: deps.ExposeErrorDetails},
	}
}

// Routes registers the internal job endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/reports/revenue-export", h.exportRevenue)
	r.Post("/maintenance/idempotency-cleanup", h.cleanupIdempotency)
}

type revenueExportResponse struct {
	Success     bool   `json:"success"`
	Year        int    `json:"year"`
	Object      string `json:"object"`
	DownloadURL string `json:"downloadUrl"`
	ExpiresAt   string `json:"expiresAt"`
	Rows        int    `json:"rows"`
}

// exportRevenue renders the monthly report for ?year=, defaulting to the current year.
func (h *InternalHandlers) exportRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		writeServiceUnavailable(ctx, w, "revenue")
		return
	}

	year := h.clock().UTC().Year()
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(ctx, w, "year must be an integer")
			return
		}
		year = parsed
	}

	export, err := h.revenue.ExportMonthly(ctx, year)
	if err != nil {
		h.errors.write(ctx, w, err, "Error exporting revenue report")
		return
	}

	fields := []zap.Field{zap.Int("year", year), zap.String("object", export.Object), zap.Int("rows", export.Rows)}
	if caller, ok := auth.ServiceIdentityFromContext(ctx); ok {
		fields = append(fields, zap.String("caller", caller.Email))
	}
	requestctx.Logger(ctx).Info("revenue report exported", fields...)

	writeJSONResponse(w, http.StatusOK, revenueExportResponse{
		Success:     true,
		Year:        year,
		Object:      export.Object,
		DownloadURL: export.DownloadURL,
		ExpiresAt:   formatTime(export.ExpiresAt),
		Rows:        export.Rows,
	})
}

func (h *InternalHandlers) cleanupIdempotency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.idempotency == nil {
		writeServiceUnavailable(ctx, w, "idempotency")
		return
	}

	deleted, err := h.idempotency.DeleteExpired(ctx, h.clock().UTC(), h.batchSize)
	if err != nil {
		h.errors.write(ctx, w, err, "Error cleaning up idempotency keys")
		return
	}
	requestctx.Logger(ctx).Info("idempotency keys pruned", zap.Int("deleted", deleted))
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
		// A full batch means more expired records are probably waiting.
		"more": deleted >= h.batchSize,
	})
}
