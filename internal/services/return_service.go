package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

const maxReturnReasonLength = 1000

// ReturnServiceDeps bundles collaborators required to construct the return service.
type ReturnServiceDeps struct {
	Orders repositories.OrderRepository
	Users  repositories.UserRepository
	Clock  func() time.Time
	Events OrderEventPublisher
	Logger func(ctx context.Context, event string, fields map[string]any)
	// RestockOnApproval returns the order's items to stock when a return is approved.
	RestockOnApproval bool
}

type returnService struct {
	orders    repositories.OrderRepository
	users     repositories.UserRepository
	clock     func() time.Time
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
	restock   bool
}

// NewReturnService wires dependencies into a concrete ReturnService implementation.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	if deps.Orders == nil {
		return nil, errors.New("return service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("return service: user repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &returnService{
		orders: deps.Orders,
		users:  deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:    deps.Events,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		restock:   deps.RestockOnApproval,
	}, nil
}

func (s *returnService) Request(ctx context.Context, orderID, reason, userID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	reason = s.sanitizeReason(reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	now := s.clock()
	order, err := s.orders.Update(ctx, repositories.UpdateOrderRequest{
		OrderID: orderID,
		Now:     now,
		Mutate: func(o *domain.Order) error {
			if o.UserID != userID {
				return ErrUnauthorized
			}
			if o.Status != domain.OrderStatusDelivered {
				return ErrNotDelivered
			}
			if o.ReturnRequest.IsRequested {
				return ErrAlreadyRequested
			}
			requestedAt := now
			o.ReturnRequest = domain.ReturnRequest{
				IsRequested: true,
				Reason:      reason,
				Status:      domain.ReturnStatusPending,
				RequestedAt: &requestedAt,
			}
			return nil
		},
	})
	if err != nil {
		return Order{}, translateRepoError(err, ErrOrderNotFound)
	}

	s.logger(ctx, "order.return.requested", map[string]any{
		"orderId": order.ID,
		"userId":  userID,
	})
	publishOrderEvent(ctx, s.events, s.logger, orderEvent(OrderEventReturnRequested, order, now))
	return order, nil
}

func (s *returnService) Process(ctx context.Context, orderID string, status ReturnStatus) (Order, error) {
	if status != domain.ReturnStatusApproved && status != domain.ReturnStatusRejected {
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	now := s.clock()
	order, err := s.orders.Update(ctx, repositories.UpdateOrderRequest{
		OrderID: orderID,
		Now:     now,
		Restock: s.restock && status == domain.ReturnStatusApproved,
		Mutate: func(o *domain.Order) error {
			if !o.ReturnRequest.IsRequested {
				return ErrNoReturnRequest
			}
			if o.ReturnRequest.Status != domain.ReturnStatusPending {
				return ErrAlreadyProcessed
			}
			processedAt := now
			o.ReturnRequest.Status = status
			o.ReturnRequest.ProcessedAt = &processedAt
			return nil
		},
	})
	if err != nil {
		return Order{}, translateRepoError(err, ErrOrderNotFound)
	}

	s.logger(ctx, "order.return.processed", map[string]any{
		"orderId":   order.ID,
		"status":    string(status),
		"restocked": s.restock && status == domain.ReturnStatusApproved,
	})
	event := orderEvent(OrderEventReturnProcessed, order, now)
	event.Metadata = map[string]string{"returnStatus": string(status)}
	publishOrderEvent(ctx, s.events, s.logger, event)
	return order, nil
}

func (s *returnService) List(ctx context.Context, query ReturnQuery) (OrderPage, error) {
	if query.Status != "" && query.Status != domain.ReturnStatusPending &&
		query.Status != domain.ReturnStatusApproved && query.Status != domain.ReturnStatusRejected {
		return OrderPage{}, fmt.Errorf("%w: %q", ErrInvalidStatus, query.Status)
	}
	page, limit := normalizePage(query.Page, query.Limit)
	result, err := s.orders.List(ctx, repositories.OrderListQuery{
		ReturnRequested: true,
		ReturnStatus:    query.Status,
		SortBy:          repositories.SortRequestedAt,
		SortOrder:       domain.SortDesc,
		Offset:          (page - 1) * limit,
		Limit:           limit,
	})
	if err != nil {
		return OrderPage{}, translateRepoError(err, nil)
	}
	orders, err := populateUsers(ctx, s.users, result.Items)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Orders: orders, Pagination: newPagination(page, limit, result.TotalItems)}, nil
}

// sanitizeReason strips markup so the stored reason is plain text.
func (s *returnService) sanitizeReason(reason string) string {
	cleaned := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(reason)))
	if runes := []rune(cleaned); len(runes) > maxReturnReasonLength {
		cleaned = strings.TrimSpace(string(runes[:maxReturnReasonLength]))
	}
	return cleaned
}
