package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shoestore/api/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
	traceLimit   = 64
)

// Error is an API failure rendered as
// {"success": false, "message": ..., "code": ..., "error": ...} plus any extra fields.
type Error struct {
	Code    string
	Message string
	Status  int
	// Detail carries the underlying error text. Handlers set it outside production only.
	Detail string
	Extra  map[string]any
}

// NewError builds an Error; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    oneLine(code, codeLimit),
		Message: oneLine(message, messageLimit),
		Status:  status,
	}
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e Error) WithDetail(detail string) Error {
	e.Detail = oneLine(detail, messageLimit)
	return e
}

// WithDetails merges fields into the top level of the envelope. Reserved keys are not
// overwritten.
func (e Error) WithDetails(fields map[string]any) Error {
	if len(fields) == 0 {
		return e
	}
	extra := make(map[string]any, len(e.Extra)+len(fields))
	maps.Copy(extra, e.Extra)
	maps.Copy(extra, fields)
	e.Extra = extra
	return e
}

func (e Error) envelope(ctx context.Context) map[string]any {
	body := make(map[string]any, len(e.Extra)+5)
	maps.Copy(body, e.Extra)
	body["success"] = false
	body["message"] = e.Message
	body["code"] = e.Code
	if e.Detail != "" {
		body["error"] = e.Detail
	}
	if id := oneLine(middleware.GetReqID(ctx), codeLimit); id != "" {
		body["requestId"] = id
	}
	if id := oneLine(requestctx.TraceID(ctx), traceLimit); id != "" {
		body["traceId"] = id
	}
	return body
}

// WriteError renders err with the request and trace ids found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, err.envelope(ctx))
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func oneLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
