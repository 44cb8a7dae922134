package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments"
	"github.com/shoestore/api/internal/repositories"
)

// PaymentGateway is the subset of payments.Manager the service depends on.
type PaymentGateway interface {
	Supports(method domain.PaymentMethod) bool
	CreatePayment(ctx context.Context, req payments.PaymentRequest) (payments.Redirect, error)
	VerifyCallback(ctx context.Context, method domain.PaymentMethod, cb payments.Callback) (payments.Outcome, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Placement OrderService
	Orders    repositories.OrderRepository
	Gateway   PaymentGateway
	Clock     func() time.Time
	Events    OrderEventPublisher
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	placement OrderService
	orders    repositories.OrderRepository
	gateway   PaymentGateway
	clock     func() time.Time
	events    OrderEventPublisher
	metrics   *orderMetrics
	logger    func(context.Context, string, map[string]any)
}

var (
	// errNothingToApply aborts a confirmation transaction that would not change the order.
	errNothingToApply = errors.New("payment already recorded")
	// errOrderCancelled aborts a confirmation that arrives after the order was cancelled.
	errOrderCancelled = errors.New("order cancelled")
)

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Placement == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: payment gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &paymentService{
		placement: deps.Placement,
		orders:    deps.Orders,
		gateway:   deps.Gateway,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:  deps.Events,
		metrics: newOrderMetrics(deps.Meter),
		logger:  logger,
	}, nil
}

func (s *paymentService) StartPayment(ctx context.Context, cmd StartPaymentCommand) (PaymentStart, error) {
	method := cmd.PaymentMethod
	if method == domain.PaymentMethodCOD || !method.Valid() {
		return PaymentStart{}, fmt.Errorf("%w: %q is not an online payment method", ErrInvalidInput, method)
	}
	if !s.gateway.Supports(method) {
		return PaymentStart{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, method)
	}

	order, err := s.placement.PlaceOrder(ctx, cmd.PlaceOrderCommand)
	if err != nil {
		return PaymentStart{}, err
	}

	redirect, err := s.gateway.CreatePayment(ctx, payments.PaymentRequest{
		Order:     order,
		ReturnURL: cmd.ReturnURL,
		NotifyURL: cmd.NotifyURL,
		ClientIP:  cmd.ClientIP,
		Locale:    cmd.Locale,
	})
	if err != nil {
		s.compensate(ctx, order, err)
		return PaymentStart{}, fmt.Errorf("start %s payment for order %s: %w", method, order.ID, err)
	}

	s.logger(ctx, "payment.started", map[string]any{
		"orderId":   order.ID,
		"method":    string(method),
		"reference": redirect.Reference,
	})
	return PaymentStart{
		Success:    true,
		OrderID:    order.ID,
		PaymentURL: redirect.URL,
		Reference:  redirect.Reference,
		Fields:     redirect.Fields,
		Order:      order,
	}, nil
}

// compensate cancels an order whose provider call failed, returning its stock and the
// buyer's cart lines in the same transaction. It outlives the request context so a client
// disconnect cannot strand stock.
func (s *paymentService) compensate(ctx context.Context, order Order, cause error) {
	now := s.clock()
	cancelled, err := s.orders.Update(context.WithoutCancel(ctx), repositories.UpdateOrderRequest{
		OrderID:     order.ID,
		Restock:     true,
		RestoreCart: true,
		Now:         now,
		Mutate: func(o *domain.Order) error {
			if o.Status == domain.OrderStatusCancelled {
				return errNothingToApply
			}
			o.Status = domain.OrderStatusCancelled
			o.IsPaid = false
			o.PaidAt = nil
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, errNothingToApply) {
			return
		}
		s.logger(ctx, "payment.compensation.failed", map[string]any{
			"orderId": order.ID,
			"cause":   cause.Error(),
			"error":   err.Error(),
		})
		return
	}
	s.logger(ctx, "payment.compensated", map[string]any{
		"orderId": order.ID,
		"method":  string(order.PaymentMethod),
		"cause":   cause.Error(),
	})
	event := orderEvent(OrderEventCancelled, cancelled, now)
	event.PreviousStatus = string(order.Status)
	event.Metadata = map[string]string{"reason": "provider_error"}
	publishOrderEvent(ctx, s.events, s.logger, event)
}

func (s *paymentService) ConfirmPayment(ctx context.Context, method PaymentMethod, cb payments.Callback) (PaymentConfirmation, error) {
	if method == domain.PaymentMethodSolana {
		// The expected amount must come from the stored order, never from the client.
		resolved, result, err := s.withStoredAmount(ctx, cb)
		if err != nil || result != nil {
			if result != nil {
				s.metrics.recordConfirmation(ctx, method, "order_not_found")
				return *result, nil
			}
			return PaymentConfirmation{}, err
		}
		cb = resolved
	}

	outcome, err := s.gateway.VerifyCallback(ctx, method, cb)
	switch {
	case errors.Is(err, payments.ErrSignatureMismatch):
		s.metrics.recordConfirmation(ctx, method, "invalid_signature")
		s.logger(ctx, "payment.confirm.invalid_signature", map[string]any{
			"method":  string(method),
			"orderId": outcome.OrderID,
		})
		return PaymentConfirmation{
			OrderID:          outcome.OrderID,
			Message:          "Invalid signature",
			SignatureInvalid: true,
		}, nil
	case errors.Is(err, payments.ErrInvalidCallback):
		return PaymentConfirmation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case err != nil:
		return PaymentConfirmation{}, err
	}

	if !outcome.Success {
		known, err := s.orderExists(ctx, outcome.OrderID)
		if err != nil {
			return PaymentConfirmation{}, err
		}
		if !known {
			s.metrics.recordConfirmation(ctx, method, "order_not_found")
			return PaymentConfirmation{OrderID: outcome.OrderID, Message: "Order not found", NotFound: true}, nil
		}
		s.metrics.recordConfirmation(ctx, method, "failed")
		s.logger(ctx, "payment.confirm.failed", map[string]any{
			"method":  string(method),
			"orderId": outcome.OrderID,
			"code":    outcome.Code,
		})
		return PaymentConfirmation{
			OrderID: outcome.OrderID,
			Message: outcome.Message,
			Code:    outcome.Code,
		}, nil
	}

	now := s.clock()
	if outcome.PaidAt.IsZero() {
		outcome.PaidAt = now
	}

	applied := false
	order, err := s.orders.Update(ctx, repositories.UpdateOrderRequest{
		OrderID: outcome.OrderID,
		Now:     now,
		Mutate: func(o *domain.Order) error {
			// Reset on every attempt; the backend may retry the transaction.
			applied = false
			if o.Status == domain.OrderStatusCancelled && !o.IsPaid {
				return errOrderCancelled
			}
			changed := false
			if !o.IsPaid {
				paidAt := outcome.PaidAt
				o.IsPaid = true
				o.PaidAt = &paidAt
				changed = true
			}
			if o.PaymentResult == nil {
				result := outcome.PaymentResult()
				o.PaymentResult = &result
				changed = true
			}
			if !changed {
				return errNothingToApply
			}
			applied = true
			return nil
		},
	})
	switch {
	case errors.Is(err, errNothingToApply):
		applied = false
	case errors.Is(err, errOrderCancelled):
		s.metrics.recordConfirmation(ctx, method, "order_cancelled")
		s.logger(ctx, "payment.confirm.refund_required.failed", map[string]any{
			"method":        string(method),
			"orderId":       outcome.OrderID,
			"transactionId": outcome.TransactionID,
		})
		return PaymentConfirmation{OrderID: outcome.OrderID, Message: "Order cancelled", Cancelled: true}, nil
	case isRepoNotFound(err):
		s.metrics.recordConfirmation(ctx, method, "order_not_found")
		return PaymentConfirmation{OrderID: outcome.OrderID, Message: "Order not found", NotFound: true}, nil
	case err != nil:
		return PaymentConfirmation{}, translateRepoError(err, ErrOrderNotFound)
	}

	result := "duplicate"
	if applied {
		result = "applied"
		publishOrderEvent(ctx, s.events, s.logger, orderEvent(OrderEventPaid, order, now))
	}
	s.metrics.recordConfirmation(ctx, method, result)
	s.logger(ctx, "payment.confirmed", map[string]any{
		"method":        string(method),
		"orderId":       outcome.OrderID,
		"transactionId": outcome.TransactionID,
		"applied":       applied,
	})

	return PaymentConfirmation{
		Success: true,
		OrderID: outcome.OrderID,
		Message: defaultMessage(outcome.Message, "Payment successful"),
		Code:    outcome.Code,
		Applied: applied,
	}, nil
}

func (s *paymentService) withStoredAmount(ctx context.Context, cb payments.Callback) (payments.Callback, *PaymentConfirmation, error) {
	orderID := cb.Param("orderId")
	if orderID == "" {
		return cb, nil, fmt.Errorf("%w: orderId is required", ErrInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return cb, &PaymentConfirmation{OrderID: orderID, Message: "Order not found", NotFound: true}, nil
		}
		return cb, nil, translateRepoError(err, nil)
	}
	params := make(map[string]string, len(cb.Params)+1)
	maps.Copy(params, cb.Params)
	params["amount"] = strconv.FormatInt(order.TotalPrice, 10)
	return payments.Callback{Params: params}, nil, nil
}

func (s *paymentService) orderExists(ctx context.Context, orderID string) (bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return false, nil
	}
	_, err := s.orders.FindByID(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case isRepoNotFound(err):
		return false, nil
	default:
		return false, translateRepoError(err, nil)
	}
}

func defaultMessage(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
