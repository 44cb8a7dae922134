package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments"
	"github.com/shoestore/api/internal/platform/requestctx"
	"github.com/shoestore/api/internal/platform/textutil"
	"github.com/shoestore/api/internal/services"
)

// Momo IPN acknowledgements. Momo retries anything that is not a 2xx.
const (
	momoResultAcknowledged = 0
	momoResultRejected     = 1
)

type paymentConfirmationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
	Code    string `json:"code,omitempty"`
}

type momoIPNResponse struct {
	Message    string `json:"message"`
	ResultCode int    `json:"resultCode"`
}

// startPayment places an order for an online method and returns what the storefront
// needs to continue at the provider.
func (h *OrderHandlers) startPayment(method domain.PaymentMethod) http.HandlerFunc {
	requiresReturnURL := method == domain.PaymentMethodVNPay || method == domain.PaymentMethodMomo
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.payments == nil {
			writeServiceUnavailable(ctx, w, "payment")
			return
		}
		identity, ok := requireIdentity(ctx, w)
		if !ok {
			return
		}

		var req placeOrderRequest
		if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
			return
		}
		switch {
		case requiresReturnURL && (req.ShippingAddress == nil || req.ContactInfo == nil || strings.TrimSpace(req.ReturnURL) == ""):
			writeBadRequest(ctx, w, "Please provide shipping address, contact information, and return URL")
			return
		case req.ShippingAddress == nil || req.ContactInfo == nil:
			writeBadRequest(ctx, w, "Please provide shipping address and contact information")
			return
		}

		notifyURL := strings.TrimSpace(req.NotifyURL)
		if method == domain.PaymentMethodMomo {
			notifyURL = textutil.FirstNonEmpty(notifyURL, h.momoNotifyURL)
		}

		start, err := h.payments.StartPayment(ctx, services.StartPaymentCommand{
			PlaceOrderCommand: req.command(identity.UserID, method),
			ReturnURL:         strings.TrimSpace(req.ReturnURL),
			NotifyURL:         notifyURL,
			ClientIP:          rateLimitKey(r),
			Locale:            requestctx.Locale(ctx),
		})
		if err != nil {
			h.errors.write(ctx, w, err, fmt.Sprintf("Error processing %s payment", method))
			return
		}
		writeJSONResponse(w, http.StatusOK, paymentStartBody(method, start))
	}
}

// paymentStartBody flattens provider fields next to the common keys, so Stripe answers
// with sessionId and Razorpay with razorpayOrderId, amount, currency and keyId.
func paymentStartBody(method domain.PaymentMethod, start services.PaymentStart) map[string]any {
	body := map[string]any{
		"success": start.Success,
		"orderId": start.OrderID,
	}
	if start.PaymentURL != "" {
		body["paymentUrl"] = start.PaymentURL
	}
	for key, value := range start.Fields {
		if key == "amount" {
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				body[key] = n
				continue
			}
		}
		body[key] = value
	}
	if method == domain.PaymentMethodSolana && start.Reference != "" {
		body["reference"] = start.Reference
	}
	return body
}

func (h *OrderHandlers) confirm(w http.ResponseWriter, r *http.Request, method domain.PaymentMethod, params map[string]string) {
	ctx := r.Context()
	result, err := h.payments.ConfirmPayment(ctx, method, payments.Callback{Params: params})
	if err != nil {
		h.errors.write(ctx, w, err, fmt.Sprintf("Error verifying %s payment", method))
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentConfirmationResponse{
		Success: result.Success,
		Message: result.Message,
		OrderID: result.OrderID,
		Code:    result.Code,
	})
}

func (h *OrderHandlers) verifyStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeBadRequest(ctx, w, "Please provide session ID")
		return
	}
	h.confirm(w, r, domain.PaymentMethodStripe, map[string]string{"sessionId": strings.TrimSpace(req.SessionID)})
}

func (h *OrderHandlers) verifyRazorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		writeBadRequest(ctx, w, "Please provide all payment details")
		return
	}
	h.confirm(w, r, domain.PaymentMethodRazorpay, map[string]string{
		"razorpay_order_id":   strings.TrimSpace(req.OrderID),
		"razorpay_payment_id": strings.TrimSpace(req.PaymentID),
		"razorpay_signature":  strings.TrimSpace(req.Signature),
	})
}

func (h *OrderHandlers) verifySolana(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	var req struct {
		OrderID   string `json:"orderId"`
		Signature string `json:"signature"`
	}
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.Signature) == "" {
		writeBadRequest(ctx, w, requiredFieldsMessage("order ID", "transaction signature"))
		return
	}
	h.confirm(w, r, domain.PaymentMethodSolana, map[string]string{
		"orderId":   strings.TrimSpace(req.OrderID),
		"signature": strings.TrimSpace(req.Signature),
	})
}

// vnpayReturn verifies the signed browser redirect and forwards the customer to the storefront.
func (h *OrderHandlers) vnpayReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		h.redirectFailure(w, r)
		return
	}
	result, err := h.payments.ConfirmPayment(ctx, domain.PaymentMethodVNPay, payments.Callback{
		Params: textutil.FlattenQuery(r.URL.Query()),
	})
	if err != nil {
		requestctx.Logger(ctx).Error("vnpay return verification failed", zap.Error(err))
		h.redirectFailure(w, r)
		return
	}
	http.Redirect(w, r, h.verifyRedirect(result.Success, result.OrderID, result.Message), http.StatusFound)
}

// momoReturn only reflects the redirect parameters; the IPN is what marks the order paid.
func (h *OrderHandlers) momoReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	success := strings.TrimSpace(query.Get("resultCode")) == "0"
	message := "Payment failed"
	if success {
		message = "Payment successful"
	}
	http.Redirect(w, r, h.verifyRedirect(success, strings.TrimSpace(query.Get("orderId")), message), http.StatusFound)
}

func (h *OrderHandlers) momoIPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	data, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	params, err := decodeMomoIPN(data)
	if err != nil {
		writeBadRequest(ctx, w, errMalformedBody.Error())
		return
	}

	result, err := h.payments.ConfirmPayment(ctx, domain.PaymentMethodMomo, payments.Callback{Params: params})
	switch {
	case err != nil:
		h.errors.write(ctx, w, err, "Error processing Momo IPN")
	case result.SignatureInvalid:
		writeJSONResponse(w, http.StatusOK, momoIPNResponse{Message: "Invalid signature", ResultCode: momoResultRejected})
	case result.NotFound:
		writeJSONResponse(w, http.StatusOK, momoIPNResponse{Message: "Order not found", ResultCode: momoResultRejected})
	case result.Cancelled:
		writeJSONResponse(w, http.StatusOK, momoIPNResponse{Message: "Order cancelled", ResultCode: momoResultAcknowledged})
	default:
		writeJSONResponse(w, http.StatusOK, momoIPNResponse{Message: "Successfully processed", ResultCode: momoResultAcknowledged})
	}
}

// decodeMomoIPN flattens the IPN JSON into strings exactly as Momo signed them. Numbers
// are kept as their literal text so amounts and timestamps survive without float rounding.
func decodeMomoIPN(data []byte) (map[string]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	params := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			params[key] = ""
		case string:
			params[key] = v
		case json.Number:
			params[key] = v.String()
		case bool:
			params[key] = strconv.FormatBool(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			params[key] = string(encoded)
		}
	}
	return params, nil
}
