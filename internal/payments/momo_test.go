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

func newTestMomo(t *testing.T, endpoint string, timeout time.Duration) *MomoProvider {
	t.Helper()
	p, err := NewMomoProvider(MomoProviderConfig{
		PartnerCode: "MOMO01",
		AccessKey:   "access",
		SecretKey:   "momo-secret",
		Endpoint:    endpoint,
		Timeout:     timeout,
		RequestID:   func() string { return "REQ-fixed" },
	})
	require.NoError(t, err)
	return p
}

func TestMomoCreatePaymentSignsAndReturnsPayURL(t *testing.T) {
	var received momoCreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultCode":0,"message":"Successful.","payUrl":"https://test-payment.momo.vn/pay/abc"}`))
	}))
	defer server.Close()

	p := newTestMomo(t, server.URL, time.Second)
	redirect, err := p.CreatePayment(context.Background(), PaymentRequest{
		Order:     domain.Order{ID: "01HXORDER", TotalPrice: 470000},
		ReturnURL: "https://shop.example.com/momo/return",
		NotifyURL: "https://api.example.com/api/order/momo/ipn",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://test-payment.momo.vn/pay/abc", redirect.URL)
	assert.Equal(t, "REQ-fixed", redirect.Reference)

	raw := "accessKey=access&amount=470000&extraData=&ipnUrl=https://api.example.com/api/order/momo/ipn" +
		"&orderId=01HXORDER&orderInfo=Thanh toan don hang #01HXORDER&partnerCode=MOMO01" +
		"&redirectUrl=https://shop.example.com/momo/return&requestId=REQ-fixed&requestType=captureWallet"
	assert.Equal(t, signing.HMACSHA256Hex(raw, "momo-secret"), received.Signature)
	assert.Equal(t, "captureWallet", received.RequestType)
	assert.Equal(t, "vi", received.Lang)
}

func TestMomoCreatePaymentRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultCode":11,"message":"Access denied"}`))
	}))
	defer server.Close()

	p := newTestMomo(t, server.URL, time.Second)
	_, err := p.CreatePayment(context.Background(), PaymentRequest{
		Order:     domain.Order{ID: "o1", TotalPrice: 1000},
		ReturnURL: "https://shop/return",
		NotifyURL: "https://api/ipn",
	})
	require.ErrorIs(t, err, ErrProviderRejected)
	assert.Contains(t, err.Error(), "Momo payment error: Access denied")
}

func TestMomoCreatePaymentTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := newTestMomo(t, server.URL, 50*time.Millisecond)
	_, err := p.CreatePayment(context.Background(), PaymentRequest{
		Order:     domain.Order{ID: "o1", TotalPrice: 1000},
		ReturnURL: "https://shop/return",
		NotifyURL: "https://api/ipn",
	})
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func momoIPN(secret string, resultCode string) map[string]string {
	params := map[string]string{
		"partnerCode":  "MOMO01",
		"orderId":      "01HXORDER",
		"requestId":    "REQ-fixed",
		"amount":       "470000",
		"orderInfo":    "Thanh toan don hang #01HXORDER",
		"orderType":    "momo_wallet",
		"transId":      "4088878653",
		"resultCode":   resultCode,
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1714532645000",
		"extraData":    "",
	}
	raw := signing.RawPairs(
		[2]string{"accessKey", "access"},
		[2]string{"amount", params["amount"]},
		[2]string{"extraData", params["extraData"]},
		[2]string{"message", params["message"]},
		[2]string{"orderId", params["orderId"]},
		[2]string{"orderInfo", params["orderInfo"]},
		[2]string{"orderType", params["orderType"]},
		[2]string{"partnerCode", params["partnerCode"]},
		[2]string{"payType", params["payType"]},
		[2]string{"requestId", params["requestId"]},
		[2]string{"responseTime", params["responseTime"]},
		[2]string{"resultCode", params["resultCode"]},
		[2]string{"transId", params["transId"]},
	)
	params["signature"] = signing.HMACSHA256Hex(raw, secret)
	return params
}

func TestMomoVerifyCallback(t *testing.T) {
	p := newTestMomo(t, "", time.Second)

	outcome, err := p.VerifyCallback(context.Background(), Callback{Params: momoIPN("momo-secret", "0")})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "4088878653", outcome.TransactionID)
	assert.Equal(t, time.UnixMilli(1714532645000).UTC(), outcome.PaidAt)

	outcome, err = p.VerifyCallback(context.Background(), Callback{Params: momoIPN("momo-secret", "1006")})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "1006", outcome.Code)

	outcome, err = p.VerifyCallback(context.Background(), Callback{Params: momoIPN("wrong-secret", "0")})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, "01HXORDER", outcome.OrderID)
}
