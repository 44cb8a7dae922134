package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments/signing"
)

func razorpayServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "rzp-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
			return
		}
		var body razorpayOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(razorpayOrder{
			ID:       "order_rzp1",
			Amount:   body.Amount,
			Currency: body.Currency,
			Receipt:  body.Receipt,
			Status:   "created",
		})
	})
	mux.HandleFunc("/v1/orders/order_rzp1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"order_rzp1","amount":47000000,"currency":"INR","receipt":"01HXORDER","status":"paid"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRazorpay(t *testing.T, baseURL, secret string) *RazorpayProvider {
	t.Helper()
	p, err := NewRazorpayProvider(RazorpayProviderConfig{
		KeyID:    "rzp_test",
		Secret:   secret,
		Currency: "inr",
		BaseURL:  baseURL,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestRazorpayCreatePayment(t *testing.T) {
	server := razorpayServer(t)
	p := newTestRazorpay(t, server.URL, "rzp-secret")

	redirect, err := p.CreatePayment(context.Background(), PaymentRequest{Order: domain.Order{ID: "01HXORDER", TotalPrice: 470000}})
	require.NoError(t, err)
	assert.Empty(t, redirect.URL)
	assert.Equal(t, "order_rzp1", redirect.Reference)
	assert.Equal(t, map[string]string{
		"razorpayOrderId": "order_rzp1",
		"amount":          "47000000",
		"currency":        "INR",
		"keyId":           "rzp_test",
	}, redirect.Fields)
}

func TestRazorpayCreatePaymentRejected(t *testing.T) {
	server := razorpayServer(t)
	p := newTestRazorpay(t, server.URL, "wrong")

	_, err := p.CreatePayment(context.Background(), PaymentRequest{Order: domain.Order{ID: "o1", TotalPrice: 1}})
	require.ErrorIs(t, err, ErrProviderRejected)
}

func TestRazorpayVerifyCallback(t *testing.T) {
	server := razorpayServer(t)
	p := newTestRazorpay(t, server.URL, "rzp-secret")

	valid := Callback{Params: map[string]string{
		"razorpay_order_id":   "order_rzp1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  signing.RazorpaySignature("order_rzp1", "pay_1", "rzp-secret"),
	}}
	outcome, err := p.VerifyCallback(context.Background(), valid)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "01HXORDER", outcome.OrderID)
	assert.Equal(t, "pay_1", outcome.TransactionID)

	forged := Callback{Params: map[string]string{
		"razorpay_order_id":   "order_rzp1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "deadbeef",
	}}
	_, err = p.VerifyCallback(context.Background(), forged)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	valid.Params["orderId"] = "someone-else"
	outcome, err = p.VerifyCallback(context.Background(), valid)
	require.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, "someone-else", outcome.OrderID)

	_, err = p.VerifyCallback(context.Background(), Callback{})
	require.ErrorIs(t, err, ErrInvalidCallback)
}
