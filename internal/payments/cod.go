package payments

import (
	"context"
	"fmt"

	domain "github.com/shoestore/api/internal/domain"
)

// CODProvider represents cash on delivery. Nothing is collected online.
type CODProvider struct{}

// Method identifies the adapter.
func (CODProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodCOD
}

// CreatePayment returns an empty redirect; the order stays unpaid until delivery.
func (CODProvider) CreatePayment(_ context.Context, req PaymentRequest) (Redirect, error) {
	return Redirect{Reference: req.Order.ID}, nil
}

// VerifyCallback is not supported for cash on delivery.
func (CODProvider) VerifyCallback(context.Context, Callback) (Outcome, error) {
	return Outcome{}, fmt.Errorf("%w: COD has no callback", ErrUnsupportedProvider)
}
