package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
)

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrSignatureMismatch is returned when a callback signature does not verify.
	ErrSignatureMismatch = errors.New("payments: signature mismatch")
	// ErrProviderRejected is returned when the PSP answers but refuses the request.
	ErrProviderRejected = errors.New("payments: provider rejected request")
	// ErrProviderUnavailable is returned when the PSP cannot be reached or times out.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrInvalidCallback is returned when required callback parameters are missing.
	ErrInvalidCallback = errors.New("payments: invalid callback")
)

// Logger defines the logging contract shared by provider adapters.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// PaymentRequest carries everything an adapter needs to start a payment for a placed order.
type PaymentRequest struct {
	Order     domain.Order
	ReturnURL string
	NotifyURL string
	ClientIP  string
	// Locale is a BCP 47 tag such as "vi" or "en".
	Locale string
}

// Redirect is what the storefront needs to send the customer to the PSP.
// URL is empty for providers that complete client side (Razorpay) or offline (COD).
type Redirect struct {
	URL       string
	Reference string
	Fields    map[string]string
}

// Callback holds the flattened parameters a PSP delivered on return, IPN, or verify.
type Callback struct {
	Params map[string]string
}

// Param returns a trimmed parameter value.
func (c Callback) Param(key string) string {
	if c.Params == nil {
		return ""
	}
	return strings.TrimSpace(c.Params[key])
}

// Outcome is the normalised verification result of a callback.
type Outcome struct {
	OrderID       string
	Success       bool
	Code          string
	Message       string
	TransactionID string
	Provider      string
	Email         string
	PaidAt        time.Time
}

// PaymentResult converts a successful outcome into the record stored on the order.
func (o Outcome) PaymentResult() domain.PaymentResult {
	return domain.PaymentResult{
		ID:            o.TransactionID,
		Status:        "Completed",
		UpdateTime:    o.PaidAt.UTC().Format(time.RFC3339Nano),
		EmailAddress:  o.Email,
		TransactionID: o.TransactionID,
		Provider:      o.Provider,
	}
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	Method() domain.PaymentMethod
	CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error)
	// VerifyCallback authenticates a PSP callback. On ErrSignatureMismatch the returned
	// outcome still carries the claimed order id so callers can report it.
	VerifyCallback(ctx context.Context, cb Callback) (Outcome, error)
}

// Manager coordinates provider selection by payment method.
type Manager struct {
	providers map[domain.PaymentMethod]Provider
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers ...Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	registered := make(map[domain.PaymentMethod]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider registration")
		}
		method := p.Method()
		if !method.Valid() {
			return nil, fmt.Errorf("payments: invalid provider registration for method %q", method)
		}
		if _, dup := registered[method]; dup {
			return nil, fmt.Errorf("payments: duplicate provider for method %q", method)
		}
		registered[method] = p
	}
	return &Manager{providers: registered}, nil
}

// Supports reports whether a provider is registered for the method.
func (m *Manager) Supports(method domain.PaymentMethod) bool {
	_, err := m.resolveProvider(method)
	return err == nil
}

// Provider returns the adapter registered for method.
func (m *Manager) Provider(method domain.PaymentMethod) (Provider, error) {
	return m.resolveProvider(method)
}

func (m *Manager) resolveProvider(method domain.PaymentMethod) (Provider, error) {
	if m == nil {
		return nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	if p, ok := m.providers[method]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, method)
}

// CreatePayment delegates to the provider registered for the order's payment method.
func (m *Manager) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	provider, err := m.resolveProvider(req.Order.PaymentMethod)
	if err != nil {
		return Redirect{}, err
	}
	return provider.CreatePayment(ctx, req)
}

// VerifyCallback delegates to the provider registered for method.
func (m *Manager) VerifyCallback(ctx context.Context, method domain.PaymentMethod, cb Callback) (Outcome, error) {
	provider, err := m.resolveProvider(method)
	if err != nil {
		return Outcome{}, err
	}
	return provider.VerifyCallback(ctx, cb)
}

func orderInfo(orderID string) string {
	return "Thanh toan don hang #" + orderID
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
