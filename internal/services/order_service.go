package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

const defaultCountry = "Vietnam"

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Meter       metric.Meter
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// DeferProviderPayment leaves non-COD orders unpaid until the provider confirms.
	DeferProviderPayment bool
}

type orderService struct {
	orders       repositories.OrderRepository
	users        repositories.UserRepository
	clock        func() time.Time
	newID        func() string
	events       OrderEventPublisher
	metrics      *orderMetrics
	logger       func(context.Context, string, map[string]any)
	deferPayment bool
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	svc, err := newOrderService(deps)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func newOrderService(deps OrderServiceDeps) (*orderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &orderService{
		orders: deps.Orders,
		users:  deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:        idGen,
		events:       deps.Events,
		metrics:      newOrderMetrics(deps.Meter),
		logger:       logger,
		deferPayment: deps.DeferProviderPayment,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	cmd, err := normalizePlaceOrder(cmd)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	orderID := s.newID()
	names := make(map[string]string)

	order, err := s.orders.PlaceOrder(ctx, repositories.PlaceOrderRequest{
		UserID: cmd.UserID,
		Build:  s.orderBuilder(cmd, orderID, now, names),
	})
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			err = stockOrderError(stockErr, names)
		} else {
			err = translateRepoError(err, nil)
		}
		s.metrics.recordPlacement(ctx, cmd.PaymentMethod, placementOutcome(err))
		s.logger(ctx, "order.place.failed", map[string]any{
			"userId": cmd.UserID,
			"method": string(cmd.PaymentMethod),
			"error":  err.Error(),
		})
		return Order{}, err
	}

	s.metrics.recordPlacement(ctx, order.PaymentMethod, "placed")
	s.logger(ctx, "order.placed", map[string]any{
		"orderId":    order.ID,
		"userId":     order.UserID,
		"method":     string(order.PaymentMethod),
		"totalPrice": order.TotalPrice,
		"items":      len(order.Items),
	})
	publishOrderEvent(ctx, s.events, s.logger, orderEvent(OrderEventPlaced, order, now))
	return order, nil
}

// orderBuilder runs inside the placement transaction against freshly read products.
// It records product names so stock errors raised later by the repository stay readable.
func (s *orderService) orderBuilder(cmd PlaceOrderCommand, orderID string, now time.Time, names map[string]string) repositories.OrderBuilder {
	return func(cart domain.Cart, products map[string]domain.Product) (domain.Order, error) {
		if len(cart.Items) == 0 {
			return domain.Order{}, ErrEmptyCart
		}

		items := make([]domain.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			product, ok := products[line.ProductID]
			if !ok {
				return domain.Order{}, &OrderError{Kind: ErrProductUnavailable, ProductID: line.ProductID, Size: line.Size}
			}
			names[product.ID] = product.Name

			idx := product.FindSize(line.Size)
			if idx < 0 {
				return domain.Order{}, &OrderError{Kind: ErrSizeUnavailable, ProductID: product.ID, Name: product.Name, Size: line.Size}
			}
			if product.Sizes[idx].Stock < line.Quantity {
				return domain.Order{}, &OrderError{Kind: ErrInsufficientStock, ProductID: product.ID, Name: product.Name, Size: line.Size}
			}
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Image:     product.PrimaryImage(),
				Size:      line.Size,
				Quantity:  line.Quantity,
				Price:     product.Price,
			})
		}

		pricing := domain.PriceOrder(cart.TotalAmount)
		order := domain.Order{
			ID:              orderID,
			UserID:          cmd.UserID,
			Items:           items,
			ShippingAddress: cmd.ShippingAddress,
			Contact:         cmd.Contact,
			PaymentMethod:   cmd.PaymentMethod,
			ItemsPrice:      pricing.Items,
			ShippingPrice:   pricing.Shipping,
			TaxPrice:        pricing.Tax,
			TotalPrice:      pricing.Total,
			Status:          domain.OrderStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if cmd.PaymentMethod != domain.PaymentMethodCOD && !s.deferPayment {
			paidAt := now
			order.IsPaid = true
			order.PaidAt = &paidAt
		}
		return order, nil
	}
}

func normalizePlaceOrder(cmd PlaceOrderCommand) (PlaceOrderCommand, error) {
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if cmd.UserID == "" {
		return cmd, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !cmd.PaymentMethod.Valid() {
		return cmd, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, cmd.PaymentMethod)
	}

	addr := &cmd.ShippingAddress
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)
	if addr.Country == "" {
		addr.Country = defaultCountry
	}
	if addr.Street == "" || addr.City == "" {
		return cmd, fmt.Errorf("%w: shipping street and city are required", ErrInvalidInput)
	}

	contact := &cmd.Contact
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Phone = strings.TrimSpace(contact.Phone)
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.Name == "" || contact.Phone == "" {
		return cmd, fmt.Errorf("%w: contact name and phone are required", ErrInvalidInput)
	}
	return cmd, nil
}

func placementOutcome(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrSizeUnavailable), errors.Is(err, ErrProductUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (s *orderService) ListUserOrders(ctx context.Context, query UserOrdersQuery) (OrderPage, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return OrderPage{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	page, limit := normalizePage(query.Page, query.Limit)
	result, err := s.orders.List(ctx, repositories.OrderListQuery{
		UserID:    userID,
		SortBy:    repositories.SortCreatedAt,
		SortOrder: domain.SortDesc,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return OrderPage{}, translateRepoError(err, nil)
	}
	return OrderPage{Orders: result.Items, Pagination: newPagination(page, limit, result.TotalItems)}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, callerID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateRepoError(err, ErrOrderNotFound)
	}
	if order.UserID == callerID {
		return order, nil
	}
	isAdmin, err := s.isAdmin(ctx, callerID)
	if err != nil {
		return Order{}, err
	}
	if !isAdmin {
		return Order{}, ErrUnauthorized
	}
	return order, nil
}

func (s *orderService) isAdmin(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return false, nil
		}
		return false, translateRepoError(err, nil)
	}
	return user.Role == domain.RoleAdmin, nil
}
