package repositories

import (
	"context"
	"time"

	domain "github.com/shoestore/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists the per-user basket.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

// ProductRepository exposes read access to catalogue entries referenced by carts and orders.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// UserRepository resolves accounts for role checks and listing population.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error)
}

// OrderBuilder turns the cart and the freshly read products into the order to persist.
// It runs inside the placement transaction and may be invoked more than once when the
// backend retries, so it must not have side effects.
type OrderBuilder func(cart domain.Cart, products map[string]domain.Product) (domain.Order, error)

// PlaceOrderRequest describes an atomic cart-to-order conversion.
type PlaceOrderRequest struct {
	UserID string
	Build  OrderBuilder
}

// OrderMutator applies a state transition to the current order. Returning an error aborts
// the transaction without persisting anything.
type OrderMutator func(order *domain.Order) error

// UpdateOrderRequest describes a transactional read-modify-write on one order.
type UpdateOrderRequest struct {
	OrderID string
	Mutate  OrderMutator
	// Restock returns the order's line quantities to product stock in the same transaction.
	Restock bool
	// RestoreCart merges the order's lines back into the owner's cart in the same transaction.
	RestoreCart bool
	Now     time.Time
}

// Sort keys accepted by OrderListQuery.SortBy. Unknown keys fall back to SortCreatedAt.
const (
	SortCreatedAt   = "createdAt"
	SortUpdatedAt   = "updatedAt"
	SortTotalPrice  = "totalPrice"
	SortStatus      = "status"
	SortRequestedAt = "requestedAt"
)

// OrderListQuery filters and pages order listings.
type OrderListQuery struct {
	UserID          string
	Status          domain.OrderStatus
	ReturnRequested bool
	ReturnStatus    domain.ReturnStatus
	SortBy          string
	SortOrder       domain.SortOrder
	Offset          int
	Limit           int
}

// PaidOrderQuery selects paid, non-cancelled orders created in [From, To].
// Zero bounds are open.
type PaidOrderQuery struct {
	From time.Time
	To   time.Time
}

// OrderRepository persists orders and owns every transactional order mutation.
type OrderRepository interface {
	// PlaceOrder reads the cart and products, builds the order, decrements stock per line
	// conditionally, inserts the order and clears the cart, all in one transaction.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error)
	// Update applies req.Mutate to the stored order inside a transaction and returns the result.
	Update(ctx context.Context, req UpdateOrderRequest) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, query OrderListQuery) (domain.Page[domain.Order], error)
	ListPaid(ctx context.Context, query PaidOrderQuery) ([]domain.Order, error)
	DeleteAll(ctx context.Context) (int, error)
}

// HealthRepository exposes dependency health checks for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
