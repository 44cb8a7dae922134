package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

var adminSortFields = map[string]string{
	"createdAt":  repositories.SortCreatedAt,
	"updatedAt":  repositories.SortUpdatedAt,
	"totalPrice": repositories.SortTotalPrice,
	"status":     repositories.SortStatus,
}

// AdminOrderServiceDeps bundles collaborators required to construct the admin order service.
type AdminOrderServiceDeps struct {
	Orders          repositories.OrderRepository
	Users           repositories.UserRepository
	Clock           func() time.Time
	Events          OrderEventPublisher
	Logger          func(ctx context.Context, event string, fields map[string]any)
	AllowBulkDelete bool
}

type adminOrderService struct {
	orders          repositories.OrderRepository
	users           repositories.UserRepository
	clock           func() time.Time
	events          OrderEventPublisher
	logger          func(context.Context, string, map[string]any)
	allowBulkDelete bool
}

// NewAdminOrderService wires dependencies into a concrete AdminOrderService implementation.
func NewAdminOrderService(deps AdminOrderServiceDeps) (AdminOrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("admin order service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("admin order service: user repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &adminOrderService{
		orders: deps.Orders,
		users:  deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:          deps.Events,
		logger:          logger,
		allowBulkDelete: deps.AllowBulkDelete,
	}, nil
}

func (s *adminOrderService) ListOrders(ctx context.Context, query AdminOrderQuery) (OrderPage, error) {
	if query.Status != "" && !query.Status.Valid() {
		return OrderPage{}, fmt.Errorf("%w: %q", ErrInvalidStatus, query.Status)
	}
	sortBy, ok := adminSortFields[strings.TrimSpace(query.SortBy)]
	if !ok {
		sortBy = repositories.SortCreatedAt
	}
	direction := domain.SortDesc
	if strings.EqualFold(string(query.Order), string(domain.SortAsc)) {
		direction = domain.SortAsc
	}
	page, limit := normalizePage(query.Page, query.Limit)

	result, err := s.orders.List(ctx, repositories.OrderListQuery{
		Status:    query.Status,
		SortBy:    sortBy,
		SortOrder: direction,
		Offset:    (page - 1) * limit,
		Limit:     limit,
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

func (s *adminOrderService) UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error) {
	status = OrderStatus(strings.TrimSpace(string(status)))
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	now := s.clock()
	var previous OrderStatus
	order, err := s.orders.Update(ctx, repositories.UpdateOrderRequest{
		OrderID: orderID,
		Now:     now,
		Mutate: func(o *domain.Order) error {
			previous = o.Status
			o.Status = status
			if status == domain.OrderStatusDelivered {
				deliveredAt := now
				o.DeliveredAt = &deliveredAt
			}
			return nil
		},
	})
	if err != nil {
		return Order{}, translateRepoError(err, ErrOrderNotFound)
	}

	s.logger(ctx, "order.status.updated", map[string]any{
		"orderId":        order.ID,
		"previousStatus": string(previous),
		"status":         string(status),
	})
	event := orderEvent(OrderEventStatusChanged, order, now)
	event.PreviousStatus = string(previous)
	publishOrderEvent(ctx, s.events, s.logger, event)
	return order, nil
}

func (s *adminOrderService) DeleteAll(ctx context.Context) (int, error) {
	if !s.allowBulkDelete {
		return 0, fmt.Errorf("%w: bulk order deletion is disabled", ErrForbidden)
	}
	deleted, err := s.orders.DeleteAll(ctx)
	if err != nil {
		return 0, translateRepoError(err, nil)
	}
	s.logger(ctx, "order.bulk_deleted", map[string]any{"deleted": deleted})
	return deleted, nil
}

// populateUsers attaches {id, name, email} of each order's owner. Unknown owners are left nil.
func populateUsers(ctx context.Context, users repositories.UserRepository, orders []Order) ([]Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]string, 0, len(orders))
	seen := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		if _, ok := seen[order.UserID]; ok || order.UserID == "" {
			continue
		}
		seen[order.UserID] = struct{}{}
		ids = append(ids, order.UserID)
	}
	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, translateRepoError(err, nil)
	}
	out := make([]Order, len(orders))
	for i, order := range orders {
		if user, ok := found[order.UserID]; ok {
			order.User = &domain.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email}
		}
		out[i] = order
	}
	return out, nil
}
