package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

var seq atomic.Int64

func snapshotBuilder(userID string) repositories.OrderBuilder {
	return func(cart domain.Cart, products map[string]domain.Product) (domain.Order, error) {
		order := domain.Order{
			ID:        fmt.Sprintf("o_%d", seq.Add(1)),
			UserID:    userID,
			Status:    domain.OrderStatusPending,
			CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		for _, item := range cart.Items {
			product := products[item.ProductID]
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: item.ProductID,
				Name:      product.Name,
				Size:      item.Size,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
		}
		return order, nil
	}
}

func seedCart(t *testing.T, store *Store, userID string, items ...domain.CartItem) {
	t.Helper()
	_, err := store.Carts().SaveCart(context.Background(), domain.Cart{UserID: userID, Items: items})
	require.NoError(t, err)
}

func TestPlaceOrderDecrementsStockAndClearsCart(t *testing.T) {
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Name: "Runner", Price: 500_000, Sizes: []domain.SizeStock{{Size: 42, Stock: 3}}})
	seedCart(t, store, "u1", domain.CartItem{ProductID: "p1", Size: 42, Quantity: 2, Price: 500_000})

	order, err := store.Orders().PlaceOrder(context.Background(), repositories.PlaceOrderRequest{UserID: "u1", Build: snapshotBuilder("u1")})
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)

	product, err := store.Products().FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, product.Sizes[0].Stock)

	cart, err := store.Carts().GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalAmount)
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Sizes: []domain.SizeStock{{Size: 42, Stock: 5}}})
	store.PutProduct(domain.Product{ID: "p2", Sizes: []domain.SizeStock{{Size: 40, Stock: 1}}})
	seedCart(t, store, "u1",
		domain.CartItem{ProductID: "p1", Size: 42, Quantity: 2, Price: 100},
		domain.CartItem{ProductID: "p2", Size: 40, Quantity: 2, Price: 100},
	)

	_, err := store.Orders().PlaceOrder(context.Background(), repositories.PlaceOrderRequest{UserID: "u1", Build: snapshotBuilder("u1")})
	var stockErr *repositories.StockError
	require.True(t, errors.As(err, &stockErr), "expected stock error, got %v", err)
	assert.Equal(t, "p2", stockErr.ProductID)

	product, _ := store.Products().FindByID(context.Background(), "p1")
	assert.Equal(t, 5, product.Sizes[0].Stock, "first line must not be decremented")
	cart, _ := store.Carts().GetCart(context.Background(), "u1")
	assert.Len(t, cart.Items, 2, "cart must survive a failed placement")

	page, err := store.Orders().List(context.Background(), repositories.OrderListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalItems)
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Sizes: []domain.SizeStock{{Size: 42, Stock: 1}}})
	for _, user := range []string{"u1", "u2"} {
		seedCart(t, store, user, domain.CartItem{ProductID: "p1", Size: 42, Quantity: 1, Price: 100})
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for _, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := store.Orders().PlaceOrder(context.Background(), repositories.PlaceOrderRequest{UserID: user, Build: snapshotBuilder(user)})
			var stockErr *repositories.StockError
			switch {
			case err == nil:
				successes.Add(1)
			case errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorInsufficient:
				failures.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(user)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 1, failures.Load())
	product, _ := store.Products().FindByID(context.Background(), "p1")
	assert.Equal(t, 0, product.Sizes[0].Stock)
}

func TestUpdateRestocksAndAbortsOnMutatorError(t *testing.T) {
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Sizes: []domain.SizeStock{{Size: 42, Stock: 0}}})
	store.PutOrder(domain.Order{ID: "o1", Status: domain.OrderStatusPending, Items: []domain.OrderItem{{ProductID: "p1", Size: 42, Quantity: 2}}})

	boom := errors.New("boom")
	_, err := store.Orders().Update(context.Background(), repositories.UpdateOrderRequest{
		OrderID: "o1",
		Restock: true,
		Mutate:  func(*domain.Order) error { return boom },
	})
	require.ErrorIs(t, err, boom)
	product, _ := store.Products().FindByID(context.Background(), "p1")
	assert.Equal(t, 0, product.Sizes[0].Stock)

	updated, err := store.Orders().Update(context.Background(), repositories.UpdateOrderRequest{
		OrderID: "o1",
		Restock: true,
		Mutate: func(order *domain.Order) error {
			order.Status = domain.OrderStatusCancelled
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)
	product, _ = store.Products().FindByID(context.Background(), "p1")
	assert.Equal(t, 2, product.Sizes[0].Stock)

	_, err = store.Orders().Update(context.Background(), repositories.UpdateOrderRequest{OrderID: "missing", Mutate: func(*domain.Order) error { return nil }})
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}

func TestUpdateRestoresCartOnlyWhenMutatorSucceeds(t *testing.T) {
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Price: 600_000, Sizes: []domain.SizeStock{{Size: 42, Stock: 3}}})
	seedCart(t, store, "u1", domain.CartItem{ProductID: "p1", Size: 42, Quantity: 2, Price: 600_000})

	order, err := store.Orders().PlaceOrder(context.Background(), repositories.PlaceOrderRequest{UserID: "u1", Build: snapshotBuilder("u1")})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Orders().Update(context.Background(), repositories.UpdateOrderRequest{
		OrderID:     order.ID,
		RestoreCart: true,
		Mutate:      func(*domain.Order) error { return boom },
	})
	require.ErrorIs(t, err, boom)
	cart, _ := store.Carts().GetCart(context.Background(), "u1")
	assert.Empty(t, cart.Items)

	now := time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC)
	_, err = store.Orders().Update(context.Background(), repositories.UpdateOrderRequest{
		OrderID:     order.ID,
		Restock:     true,
		RestoreCart: true,
		Now:         now,
		Mutate: func(o *domain.Order) error {
			o.Status = domain.OrderStatusCancelled
			return nil
		},
	})
	require.NoError(t, err)

	cart, err = store.Carts().GetCart(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, domain.CartItem{ProductID: "p1", Size: 42, Quantity: 2, Price: 600_000}, cart.Items[0])
	assert.Equal(t, int64(1_200_000), cart.TotalAmount)
	assert.Equal(t, now, cart.UpdatedAt)
	product, _ := store.Products().FindByID(context.Background(), "p1")
	assert.Equal(t, 3, product.Sizes[0].Stock)
}

func TestListFiltersSortsAndPages(t *testing.T) {
	store := NewStore()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.PutOrder(domain.Order{
			ID:         fmt.Sprintf("o%d", i),
			UserID:     map[bool]string{true: "u1", false: "u2"}[i%2 == 0],
			Status:     domain.OrderStatusPending,
			TotalPrice: int64(100 * (5 - i)),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	page, err := store.Orders().List(context.Background(), repositories.OrderListQuery{SortOrder: domain.SortDesc, Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "o3", page.Items[0].ID)
	assert.Equal(t, "o2", page.Items[1].ID)

	page, err = store.Orders().List(context.Background(), repositories.OrderListQuery{UserID: "u1", SortBy: repositories.SortTotalPrice, SortOrder: domain.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, "o4", page.Items[0].ID)

	page, err = store.Orders().List(context.Background(), repositories.OrderListQuery{Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.TotalItems)
}

func TestListPaidExcludesCancelledAndUnpaid(t *testing.T) {
	store := NewStore()
	day := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store.PutOrder(domain.Order{ID: "paid", IsPaid: true, Status: domain.OrderStatusDelivered, CreatedAt: day})
	store.PutOrder(domain.Order{ID: "cancelled", IsPaid: true, Status: domain.OrderStatusCancelled, CreatedAt: day})
	store.PutOrder(domain.Order{ID: "unpaid", Status: domain.OrderStatusPending, CreatedAt: day})
	store.PutOrder(domain.Order{ID: "old", IsPaid: true, Status: domain.OrderStatusDelivered, CreatedAt: day.AddDate(0, -1, 0)})

	orders, err := store.Orders().ListPaid(context.Background(), repositories.PaidOrderQuery{From: day.Add(-time.Hour), To: day.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "paid", orders[0].ID)

	deleted, err := store.Orders().DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
}
