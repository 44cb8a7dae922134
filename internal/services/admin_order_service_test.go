package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories/memory"
)

func newTestAdminService(t *testing.T, store *memory.Store, events *recordingPublisher, allowDelete bool) AdminOrderService {
	t.Helper()
	deps := AdminOrderServiceDeps{
		Orders:          store.Orders(),
		Users:           store.Users(),
		Clock:           fixedClock,
		AllowBulkDelete: allowDelete,
	}
	if events != nil {
		deps.Events = events
	}
	svc, err := NewAdminOrderService(deps)
	require.NoError(t, err)
	return svc
}

func seedAdminOrders(store *memory.Store) {
	store.PutOrder(domain.Order{ID: "a", UserID: "u1", Status: domain.OrderStatusPending, TotalPrice: 300, CreatedAt: testNow})
	store.PutOrder(domain.Order{ID: "b", UserID: "u2", Status: domain.OrderStatusShipped, TotalPrice: 100, CreatedAt: testNow.Add(time.Hour)})
	store.PutOrder(domain.Order{ID: "c", UserID: "ghost", Status: domain.OrderStatusPending, TotalPrice: 200, CreatedAt: testNow.Add(2 * time.Hour)})
}

func TestAdminListOrdersPopulatesUsers(t *testing.T) {
	store := newSeededStore()
	seedAdminOrders(store)
	svc := newTestAdminService(t, store, nil, false)

	page, err := svc.ListOrders(context.Background(), AdminOrderQuery{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 3)
	assert.Equal(t, []string{"c", "b", "a"}, orderIDs(page.Orders))
	assert.Nil(t, page.Orders[0].User)
	require.NotNil(t, page.Orders[2].User)
	assert.Equal(t, UserSummary{ID: "u1", Name: "Lan", Email: "lan@example.com"}, *page.Orders[2].User)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestAdminListOrdersFiltersAndSorts(t *testing.T) {
	store := newSeededStore()
	seedAdminOrders(store)
	svc := newTestAdminService(t, store, nil, false)

	page, err := svc.ListOrders(context.Background(), AdminOrderQuery{Status: domain.OrderStatusPending, SortBy: "totalPrice", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, orderIDs(page.Orders))

	page, err = svc.ListOrders(context.Background(), AdminOrderQuery{SortBy: "$where", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, orderIDs(page.Orders))

	_, err = svc.ListOrders(context.Background(), AdminOrderQuery{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAdminUpdateStatus(t *testing.T) {
	store := newSeededStore()
	seedAdminOrders(store)
	events := &recordingPublisher{}
	svc := newTestAdminService(t, store, events, false)

	order, err := svc.UpdateStatus(context.Background(), "b", domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, testNow, *order.DeliveredAt)
	require.Len(t, events.events, 1)
	assert.Equal(t, OrderEventStatusChanged, events.events[0].Type)
	assert.Equal(t, string(domain.OrderStatusShipped), events.events[0].PreviousStatus)

	order, err = svc.UpdateStatus(context.Background(), "a", domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Nil(t, order.DeliveredAt)

	_, err = svc.UpdateStatus(context.Background(), "a", "teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(context.Background(), "missing", domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAdminDeleteAll(t *testing.T) {
	store := newSeededStore()
	seedAdminOrders(store)

	_, err := newTestAdminService(t, store, nil, false).DeleteAll(context.Background())
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := newTestAdminService(t, store, nil, true).DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func orderIDs(orders []Order) []string {
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	return ids
}
