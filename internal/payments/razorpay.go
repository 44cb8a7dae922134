package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments/signing"
)

const (
	// DefaultRazorpayBaseURL is the Razorpay REST API root.
	DefaultRazorpayBaseURL = "https://api.razorpay.com"

	razorpayProviderName = "Razorpay"
)

// RazorpayProviderConfig configures the RazorpayProvider.
type RazorpayProviderConfig struct {
	KeyID      string
	Secret     string
	Currency   string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
	Clock      func() time.Time
}

// RazorpayProvider creates Razorpay orders and verifies checkout signatures.
type RazorpayProvider struct {
	keyID    string
	secret   string
	currency string
	baseURL  string
	client   jsonClient
	logger   Logger
	clock    func() time.Time
}

// NewRazorpayProvider validates API credentials and builds the adapter.
func NewRazorpayProvider(cfg RazorpayProviderConfig) (*RazorpayProvider, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	secret := strings.TrimSpace(cfg.Secret)
	if keyID == "" || secret == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &RazorpayProvider{
		keyID:    keyID,
		secret:   secret,
		currency: strings.ToUpper(defaultString(strings.TrimSpace(cfg.Currency), "INR")),
		baseURL:  strings.TrimRight(defaultString(strings.TrimSpace(cfg.BaseURL), DefaultRazorpayBaseURL), "/"),
		client:   newJSONClient(cfg.HTTPClient, cfg.Timeout).withBasicAuth(keyID, secret),
		logger:   logger,
		clock:    clock,
	}, nil
}

// Method identifies the adapter.
func (p *RazorpayProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodRazorpay
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreatePayment creates a Razorpay order. Checkout completes in the browser, so the
// redirect carries the fields the storefront widget needs instead of a URL.
func (p *RazorpayProvider) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	orderID := strings.TrimSpace(req.Order.ID)
	if orderID == "" {
		return Redirect{}, errors.New("razorpay: order id is required")
	}

	body := razorpayOrderRequest{
		Amount:   req.Order.TotalPrice * 100,
		Currency: p.currency,
		Receipt:  orderID,
		Notes:    map[string]string{"orderId": orderID},
	}

	var created struct {
		razorpayOrder
		razorpayErrorBody
	}
	if err := p.client.post(ctx, p.baseURL+"/v1/orders", body, &created); err != nil {
		p.logger(ctx, "payments.razorpay.order.failed", map[string]any{
			"orderId":     orderID,
			"timeout":     isTimeout(err),
			"description": created.Error.Description,
		})
		return Redirect{}, fmt.Errorf("razorpay: create order: %w", err)
	}

	p.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"orderId":         orderID,
		"razorpayOrderId": created.ID,
	})

	return Redirect{
		Reference: created.ID,
		Fields: map[string]string{
			"razorpayOrderId": created.ID,
			"amount":          strconv.FormatInt(created.Amount, 10),
			"currency":        created.Currency,
			"keyId":           p.keyID,
		},
	}, nil
}

// VerifyCallback checks the checkout signature over "razorpay_order_id|razorpay_payment_id"
// and resolves our order id from the Razorpay order receipt.
func (p *RazorpayProvider) VerifyCallback(ctx context.Context, cb Callback) (Outcome, error) {
	rzpOrderID := cb.Param("razorpay_order_id")
	paymentID := cb.Param("razorpay_payment_id")
	outcome := Outcome{
		OrderID:  cb.Param("orderId"),
		Provider: razorpayProviderName,
	}
	if rzpOrderID == "" || paymentID == "" {
		return outcome, fmt.Errorf("%w: razorpay_order_id and razorpay_payment_id are required", ErrInvalidCallback)
	}
	if !signing.VerifyRazorpaySignature(rzpOrderID, paymentID, cb.Param("razorpay_signature"), p.secret) {
		p.logger(ctx, "payments.razorpay.signature_mismatch", map[string]any{"razorpayOrderId": rzpOrderID})
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}

	var order razorpayOrder
	if err := p.client.get(ctx, p.baseURL+"/v1/orders/"+url.PathEscape(rzpOrderID), &order); err != nil {
		return outcome, fmt.Errorf("razorpay: fetch order: %w", err)
	}
	if outcome.OrderID != "" && outcome.OrderID != order.Receipt {
		p.logger(ctx, "payments.razorpay.receipt_mismatch", map[string]any{
			"razorpayOrderId": rzpOrderID,
			"claimed":         outcome.OrderID,
			"receipt":         order.Receipt,
		})
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}
	outcome.OrderID = order.Receipt
	outcome.Code = order.Status
	outcome.TransactionID = paymentID
	outcome.PaidAt = p.clock().UTC()
	outcome.Success = true
	outcome.Message = "Payment successful"
	return outcome, nil
}
