package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/platform/httpx"
	"github.com/shoestore/api/internal/platform/requestctx"
	"github.com/shoestore/api/internal/services"
)

const defaultMaxBodySize = 16 * 1024

var (
	errEmptyBody     = errors.New("request body is required")
	errBodyTooLarge  = errors.New("request body too large")
	errMalformedBody = errors.New("request body must be valid JSON")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the request body, writing a 400 or 413 when it cannot.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	data, err := readLimitedBody(r, limit)
	if err == nil {
		if jsonErr := json.Unmarshal(data, dst); jsonErr != nil {
			err = errMalformedBody
		}
	}
	switch {
	case err == nil:
		return true
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
	return false
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "Not authorized, no token", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// errorWriter maps service failures onto the API error envelope. Internal error text is
// echoed in the "error" field only when exposeDetails is set (non-production).
type errorWriter struct {
	exposeDetails bool
}

func (e errorWriter) write(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	if err == nil {
		return
	}

	var orderErr *services.OrderError
	if errors.As(err, &orderErr) {
		status, code := http.StatusBadRequest, "insufficient_stock"
		switch {
		case errors.Is(orderErr.Kind, services.ErrProductUnavailable):
			status, code = http.StatusNotFound, "product_not_found"
		case errors.Is(orderErr.Kind, services.ErrSizeUnavailable):
			code = "size_unavailable"
		}
		details := map[string]any{"productId": orderErr.ProductID}
		if orderErr.Size > 0 {
			details["size"] = orderErr.Size
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, orderErr.Error(), status).WithDetails(details))
		return
	}

	var apiErr httpx.Error
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		apiErr = httpx.NewError("cart_empty", "Cart is empty", http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidStatus):
		apiErr = httpx.NewError("invalid_status", "Invalid status", http.StatusBadRequest)
	case errors.Is(err, services.ErrNotDelivered):
		apiErr = httpx.NewError("order_not_delivered", "Only delivered orders can be returned", http.StatusBadRequest)
	case errors.Is(err, services.ErrAlreadyRequested):
		apiErr = httpx.NewError("return_already_requested", "Return already requested for this order", http.StatusBadRequest)
	case errors.Is(err, services.ErrAlreadyProcessed):
		apiErr = httpx.NewError("return_already_processed", "Return request already processed", http.StatusBadRequest)
	case errors.Is(err, services.ErrNoReturnRequest):
		apiErr = httpx.NewError("return_not_requested", "No return request found for this order", http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidInput):
		apiErr = httpx.NewError("invalid_request", inputMessage(err), http.StatusBadRequest)
	case errors.Is(err, services.ErrOrderNotFound):
		apiErr = httpx.NewError("order_not_found", "Order not found", http.StatusNotFound)
	case errors.Is(err, services.ErrUnauthorized):
		apiErr = httpx.NewError("order_forbidden", "Not authorized to access this order", http.StatusForbidden)
	case errors.Is(err, services.ErrForbidden):
		apiErr = httpx.NewError("forbidden", inputMessage(err), http.StatusForbidden)
	case errors.Is(err, services.ErrConflict):
		apiErr = httpx.NewError("conflict", "The resource changed concurrently, please retry", http.StatusConflict)
	case errors.Is(err, services.ErrUnsupportedProvider):
		apiErr = httpx.NewError("payment_method_unavailable", "Payment method is not available", http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrProviderUnavailable):
		apiErr = httpx.NewError("payment_provider_unavailable", "Payment provider is unavailable, please try again later", http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrUnavailable):
		apiErr = httpx.NewError("service_unavailable", "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		requestctx.Logger(ctx).Error("request failed", zap.Error(err))
		apiErr = httpx.NewError("internal_error", fallback, http.StatusInternalServerError)
		if e.exposeDetails {
			apiErr = apiErr.WithDetail(err.Error())
		}
	}
	httpx.WriteError(ctx, w, apiErr)
}

// inputMessage strips the sentinel prefix so callers see only the validation detail.
func inputMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{services.ErrInvalidInput, services.ErrForbidden} {
		if trimmed, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return trimmed
		}
	}
	return msg
}

func requiredFieldsMessage(fields ...string) string {
	switch len(fields) {
	case 0:
		return "missing required fields"
	case 1:
		return fmt.Sprintf("Please provide %s", fields[0])
	default:
		return fmt.Sprintf("Please provide %s and %s", strings.Join(fields[:len(fields)-1], ", "), fields[len(fields)-1])
	}
}
