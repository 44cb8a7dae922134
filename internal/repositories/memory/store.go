// Package memory provides a process-local repository registry used by tests and by
// STORE_DRIVER=memory for local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

// Store keeps every collection behind one mutex so a placement observes and mutates carts,
// products and orders as a single critical section.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	products map[string]domain.Product
	carts    map[string]domain.Cart
	users    map[string]domain.User
	orders   map[string]domain.Order
}

// Option customises the store.
type Option func(*Store)

// WithClock overrides the clock used for cart timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
		users:    make(map[string]domain.User),
		orders:   make(map[string]domain.Order),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ repositories.Registry = (*Store)(nil)

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Carts() repositories.CartRepository       { return cartRepo{s} }
func (s *Store) Products() repositories.ProductRepository { return productRepo{s} }
func (s *Store) Orders() repositories.OrderRepository     { return orderRepo{s} }
func (s *Store) Users() repositories.UserRepository       { return userRepo{s} }

func (s *Store) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "memory", Check: func(context.Context) error { return nil }},
	})
	return repo
}

// PutProduct seeds or replaces a catalogue entry.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = repositories.CloneProduct(product)
}

// PutUser seeds or replaces an account.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutOrder seeds or replaces an order.
func (s *Store) PutOrder(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
}

type productRepo struct{ s *Store }

func (r productRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, notFound("products.get", "product %s not found", productID)
	}
	return repositories.CloneProduct(product), nil
}

type cartRepo struct{ s *Store }

func (r cartRepo) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.cartLocked(userID), nil
}

func (r cartRepo) SaveCart(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	cart.Recalculate()
	cart.UpdatedAt = r.s.now().UTC()
	r.s.carts[cart.UserID] = cart
	return cart, nil
}

func (s *Store) cartLocked(userID string) domain.Cart {
	cart, ok := s.carts[userID]
	if !ok {
		return domain.Cart{UserID: userID}
	}
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	return cart
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, userID string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[userID]
	if !ok {
		return domain.User{}, notFound("users.get", "user %s not found", userID)
	}
	return user, nil
}

func (r userRepo) FindByIDs(_ context.Context, userIDs []string) (map[string]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := make(map[string]domain.User, len(userIDs))
	for _, id := range userIDs {
		if user, ok := r.s.users[id]; ok {
			found[id] = user
		}
	}
	return found, nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) PlaceOrder(_ context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cart := r.s.cartLocked(req.UserID)
	products := make(map[string]domain.Product, len(cart.Items))
	for _, item := range cart.Items {
		if product, ok := r.s.products[item.ProductID]; ok {
			products[item.ProductID] = repositories.CloneProduct(product)
		}
	}

	order, err := req.Build(cart, products)
	if err != nil {
		return domain.Order{}, err
	}
	if _, exists := r.s.orders[order.ID]; exists {
		return domain.Order{}, conflict("orders.place", "order %s already exists", order.ID)
	}

	// Work on copies so a failure halfway leaves the store untouched.
	updated := make(map[string]domain.Product, len(products))
	for _, item := range order.Items {
		product, ok := updated[item.ProductID]
		if !ok {
			product, ok = products[item.ProductID]
			if !ok {
				return domain.Order{}, repositories.NewStockError(repositories.StockErrorProductNotFound, item.ProductID, item.Size)
			}
		}
		if err := repositories.TakeStock(&product, item.Size, item.Quantity); err != nil {
			return domain.Order{}, err
		}
		updated[item.ProductID] = product
	}

	for id, product := range updated {
		r.s.products[id] = product
	}
	r.s.orders[order.ID] = cloneOrder(order)
	r.s.carts[req.UserID] = domain.Cart{UserID: req.UserID, UpdatedAt: order.CreatedAt}
	return cloneOrder(order), nil
}

func (r orderRepo) Update(_ context.Context, req repositories.UpdateOrderRequest) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[req.OrderID]
	if !ok {
		return domain.Order{}, notFound("orders.update", "order %s not found", req.OrderID)
	}
	order := cloneOrder(current)
	if err := req.Mutate(&order); err != nil {
		return domain.Order{}, err
	}
	if req.Restock {
		for _, item := range order.Items {
			product, ok := r.s.products[item.ProductID]
			if !ok {
				continue
			}
			product = repositories.CloneProduct(product)
			repositories.ReturnStock(&product, item.Size, item.Quantity)
			r.s.products[item.ProductID] = product
		}
	}
	if !req.Now.IsZero() {
		order.UpdatedAt = req.Now
	}
	if req.RestoreCart {
		cart := r.s.cartLocked(order.UserID)
		repositories.RestoreCartLines(&cart, order.Items)
		cart.UpdatedAt = order.UpdatedAt
		r.s.carts[order.UserID] = cart
	}
	r.s.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func (r orderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.get", "order %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r orderRepo) List(_ context.Context, query repositories.OrderListQuery) (domain.Page[domain.Order], error) {
	r.s.mu.Lock()
	matched := make([]domain.Order, 0, len(r.s.orders))
	for _, order := range r.s.orders {
		if matchesQuery(order, query) {
			matched = append(matched, cloneOrder(order))
		}
	}
	r.s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	sortOrders(matched, query.SortBy, query.SortOrder)

	page := domain.Page[domain.Order]{TotalItems: len(matched)}
	start := query.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		page.Items = []domain.Order{}
		return page, nil
	}
	end := len(matched)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}
	page.Items = matched[start:end]
	return page, nil
}

func (r orderRepo) ListPaid(_ context.Context, query repositories.PaidOrderQuery) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var paid []domain.Order
	for _, order := range r.s.orders {
		if !order.IsPaid || order.Status == domain.OrderStatusCancelled {
			continue
		}
		if !query.From.IsZero() && order.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && order.CreatedAt.After(query.To) {
			continue
		}
		paid = append(paid, cloneOrder(order))
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].CreatedAt.Before(paid[j].CreatedAt) })
	return paid, nil
}

func (r orderRepo) DeleteAll(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := len(r.s.orders)
	r.s.orders = make(map[string]domain.Order)
	return count, nil
}

func matchesQuery(order domain.Order, query repositories.OrderListQuery) bool {
	if query.UserID != "" && order.UserID != query.UserID {
		return false
	}
	if query.Status != "" && order.Status != query.Status {
		return false
	}
	if query.ReturnRequested && !order.ReturnRequest.IsRequested {
		return false
	}
	if query.ReturnStatus != "" && order.ReturnRequest.Status != query.ReturnStatus {
		return false
	}
	return true
}

func sortOrders(orders []domain.Order, sortBy string, direction domain.SortOrder) {
	less := func(a, b domain.Order) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch sortBy {
	case repositories.SortUpdatedAt:
		less = func(a, b domain.Order) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case repositories.SortTotalPrice:
		less = func(a, b domain.Order) bool { return a.TotalPrice < b.TotalPrice }
	case repositories.SortStatus:
		less = func(a, b domain.Order) bool { return a.Status < b.Status }
	case repositories.SortRequestedAt:
		less = func(a, b domain.Order) bool { return timeOrZero(a.ReturnRequest.RequestedAt).Before(timeOrZero(b.ReturnRequest.RequestedAt)) }
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if direction == domain.SortAsc {
			return less(orders[i], orders[j])
		}
		return less(orders[j], orders[i])
	})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func cloneOrder(order domain.Order) domain.Order {
	dup := order
	dup.Items = append([]domain.OrderItem(nil), order.Items...)
	if order.PaymentResult != nil {
		result := *order.PaymentResult
		dup.PaymentResult = &result
	}
	if order.User != nil {
		user := *order.User
		dup.User = &user
	}
	return dup
}
