package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	domain "github.com/shoestore/api/internal/domain"
)

const (
	stripeProviderName = "Stripe"
	stripeOrderIDKey   = "orderId"
	// VND is a zero-decimal currency, so unit amounts are whole dong.
	stripeCurrency = "vnd"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey     string
	AccountID  string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Logger     Logger
	Clock      func() time.Time
	Clients    *stripeClients
}

// StripeProvider implements the Provider interface using Stripe Checkout.
type StripeProvider struct {
	api        stripeClients
	account    string
	successURL string
	cancelURL  string
	clock      func() time.Time
	logger     Logger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{sessions: sc.CheckoutSessions}
	}
	if clients.sessions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &StripeProvider{
		api:        clients,
		account:    strings.TrimSpace(cfg.AccountID),
		successURL: strings.TrimSpace(cfg.SuccessURL),
		cancelURL:  strings.TrimSpace(cfg.CancelURL),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Method identifies the adapter.
func (p *StripeProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodStripe
}

// CreatePayment creates a Stripe Checkout session for the order total.
func (p *StripeProvider) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	if p == nil {
		return Redirect{}, errors.New("stripe: provider is nil")
	}
	order := req.Order
	if strings.TrimSpace(order.ID) == "" {
		return Redirect{}, errors.New("stripe: order id is required")
	}

	successURL := defaultString(p.successURL, req.ReturnURL)
	cancelURL := defaultString(p.cancelURL, req.ReturnURL)
	if successURL == "" || cancelURL == "" {
		return Redirect{}, errors.New("stripe: success and cancel urls are required")
	}

	metadata := map[string]string{stripeOrderIDKey: order.ID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionPlaceholder(successURL, order.ID)),
		CancelURL:         stripe.String(withSessionPlaceholder(cancelURL, order.ID)),
		ClientReferenceID: stripe.String(order.ID),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{stripeOrderIDKey: order.ID},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + order.ID)
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(order.Contact.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if locale := stripeLocale(req.Locale); locale != "" {
		params.Locale = stripe.String(locale)
	}
	params.LineItems = stripeLineItems(order)

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Redirect{}, fmt.Errorf("stripe: create checkout session: %w", classifyStripeError(err))
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"orderId":   order.ID,
	})

	return Redirect{
		URL:       session.URL,
		Reference: session.ID,
		Fields:    map[string]string{"sessionId": session.ID},
	}, nil
}

// VerifyCallback retrieves the session named by the "sessionId" parameter and reports
// whether it has been paid.
func (p *StripeProvider) VerifyCallback(ctx context.Context, cb Callback) (Outcome, error) {
	if p == nil {
		return Outcome{}, errors.New("stripe: provider is nil")
	}
	sessionID := defaultString(cb.Param("sessionId"), cb.Param("session_id"))
	if sessionID == "" {
		return Outcome{Provider: stripeProviderName}, fmt.Errorf("%w: sessionId missing", ErrInvalidCallback)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	params.AddExpand("payment_intent")
	session, err := p.api.sessions.Get(sessionID, params)
	if err != nil {
		return Outcome{Provider: stripeProviderName}, fmt.Errorf("stripe: retrieve checkout session: %w", classifyStripeError(err))
	}

	outcome := Outcome{
		OrderID:       defaultString(session.ClientReferenceID, session.Metadata[stripeOrderIDKey]),
		Provider:      stripeProviderName,
		Code:          string(session.PaymentStatus),
		TransactionID: session.ID,
		PaidAt:        p.clock(),
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		outcome.TransactionID = session.PaymentIntent.ID
	}
	if session.CustomerDetails != nil {
		outcome.Email = session.CustomerDetails.Email
	}
	if claimed := cb.Param("orderId"); claimed != "" && claimed != outcome.OrderID {
		p.logger(ctx, "payments.stripe.order_mismatch", map[string]any{
			"sessionId": sessionID,
			"claimed":   claimed,
			"orderId":   outcome.OrderID,
		})
		outcome.OrderID = claimed
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}

	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		outcome.Success = true
		outcome.Message = "Payment successful"
	} else {
		outcome.Message = "Payment failed with status: " + outcome.Code
	}
	p.logger(ctx, "payments.stripe.session.verified", map[string]any{
		"sessionId": sessionID,
		"orderId":   outcome.OrderID,
		"status":    outcome.Code,
	})
	return outcome, nil
}

func stripeLineItems(order domain.Order) []*stripe.CheckoutSessionLineItemParams {
	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+2)
	for _, item := range order.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(fmt.Sprintf("%s (size %d)", item.Name, item.Size)),
			Metadata: map[string]string{"productId": item.ProductID},
		}
		if item.Image != "" {
			product.Images = stripe.StringSlice([]string{item.Image})
		}
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(max(item.Quantity, 1))),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(stripeCurrency),
				UnitAmount:  stripe.Int64(item.Price),
				ProductData: product,
			},
		})
	}
	for _, extra := range []struct {
		name   string
		amount int64
	}{
		{"Shipping", order.ShippingPrice},
		{"Tax", order.TaxPrice},
	} {
		if extra.amount <= 0 {
			continue
		}
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(stripeCurrency),
				UnitAmount: stripe.Int64(extra.amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(extra.name),
				},
			},
		})
	}
	return lines
}

// withSessionPlaceholder appends the Checkout template variable so the storefront can
// call the verify endpoint with the session id.
func withSessionPlaceholder(raw, orderID string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "orderId=" + url.QueryEscape(orderID) + "&session_id={CHECKOUT_SESSION_ID}"
}

func stripeLocale(locale string) string {
	switch lower := strings.ToLower(strings.TrimSpace(locale)); {
	case strings.HasPrefix(lower, "vi"):
		return "vi"
	case strings.HasPrefix(lower, "en"):
		return "en"
	default:
		return ""
	}
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.Type == stripe.ErrorTypeAPI {
			return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrProviderRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
