package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories/memory"
)

type capturingUploader struct {
	object      string
	contentType string
	data        []byte
	err         error
}

func (u *capturingUploader) UploadReport(_ context.Context, object, contentType string, data []byte) (string, time.Time, error) {
	if u.err != nil {
		return "", time.Time{}, u.err
	}
	u.object = object
	u.contentType = contentType
	u.data = append([]byte(nil), data...)
	return "https://storage.example.com/" + object, testNow.Add(15 * time.Minute), nil
}

func seedRevenueOrders(store *memory.Store) {
	line := func(id string, qty int, price int64) domain.OrderItem {
		return domain.OrderItem{ProductID: id, Name: "Shoe " + id, Size: 42, Quantity: qty, Price: price}
	}
	store.PutOrder(domain.Order{
		ID: "jan-1", UserID: "u1", IsPaid: true, Status: domain.OrderStatusDelivered,
		Items: []domain.OrderItem{line("p1", 2, 100), line("p2", 1, 500)}, TotalPrice: 700,
		CreatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	})
	store.PutOrder(domain.Order{
		ID: "jan-2", UserID: "u1", IsPaid: true, Status: domain.OrderStatusPending,
		Items: []domain.OrderItem{line("p1", 1, 100)}, TotalPrice: 100,
		CreatedAt: time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC),
	})
	store.PutOrder(domain.Order{
		ID: "mar-1", UserID: "u2", IsPaid: true, Status: domain.OrderStatusShipped,
		Items: []domain.OrderItem{line("p3", 1, 500)}, TotalPrice: 500,
		CreatedAt: time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC),
	})
	store.PutOrder(domain.Order{
		ID: "unpaid", UserID: "u2", Status: domain.OrderStatusPending,
		Items: []domain.OrderItem{line("p1", 9, 100)}, TotalPrice: 900,
		CreatedAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	})
	store.PutOrder(domain.Order{
		ID: "cancelled", UserID: "u2", IsPaid: true, Status: domain.OrderStatusCancelled,
		Items: []domain.OrderItem{line("p1", 9, 100)}, TotalPrice: 900,
		CreatedAt: time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC),
	})
}

func newTestRevenueService(t *testing.T, store *memory.Store, uploader ReportUploader) RevenueService {
	t.Helper()
	svc, err := NewRevenueService(RevenueServiceDeps{
		Orders:       store.Orders(),
		Uploader:     uploader,
		ReportPrefix: "/reports/",
		Clock:        fixedClock,
	})
	require.NoError(t, err)
	return svc
}

func TestRevenueByDay(t *testing.T) {
	store := newSeededStore()
	seedRevenueOrders(store)
	svc := newTestRevenueService(t, store, nil)

	days, err := svc.ByDay(context.Background(),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []DailyRevenue{
		{Date: "2025-01-10", TotalRevenue: 800, Count: 2},
		{Date: "2025-03-02", TotalRevenue: 500, Count: 1},
	}, days)

	_, err = svc.ByDay(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRevenueByMonth(t *testing.T) {
	store := newSeededStore()
	seedRevenueOrders(store)
	svc := newTestRevenueService(t, store, nil)

	months, err := svc.ByMonth(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, []MonthlyRevenue{
		{Month: 1, TotalRevenue: 800, Count: 2},
		{Month: 3, TotalRevenue: 500, Count: 1},
	}, months)

	months, err = svc.ByMonth(context.Background(), 2024)
	require.NoError(t, err)
	assert.Empty(t, months)

	_, err = svc.ByMonth(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRevenueByProductRanksByRevenue(t *testing.T) {
	store := newSeededStore()
	seedRevenueOrders(store)
	svc := newTestRevenueService(t, store, nil)

	products, err := svc.ByProduct(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ProductRevenue{
		{ProductID: "p2", Name: "Shoe p2", TotalRevenue: 500, TotalQuantity: 1},
		{ProductID: "p3", Name: "Shoe p3", TotalRevenue: 500, TotalQuantity: 1},
		{ProductID: "p1", Name: "Shoe p1", TotalRevenue: 300, TotalQuantity: 3},
	}, products)
}

func TestRevenueExportMonthlyUploadsCSV(t *testing.T) {
	store := newSeededStore()
	seedRevenueOrders(store)
	uploader := &capturingUploader{}
	svc := newTestRevenueService(t, store, uploader)

	export, err := svc.ExportMonthly(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "reports/revenue/2025/monthly-20250501T030405Z.csv", export.Object)
	assert.Equal(t, uploader.object, export.Object)
	assert.Equal(t, "text/csv", uploader.contentType)
	assert.Equal(t, 2, export.Rows)
	assert.True(t, strings.HasPrefix(export.DownloadURL, "https://storage.example.com/"))
	assert.Equal(t, "month,totalRevenue,orderCount\n1,800,2\n3,500,1\n", string(uploader.data))
}

func TestRevenueExportRequiresUploader(t *testing.T) {
	store := newSeededStore()
	_, err := newTestRevenueService(t, store, nil).ExportMonthly(context.Background(), 2025)
	assert.ErrorIs(t, err, ErrUnavailable)

	failing := &capturingUploader{err: errors.New("bucket gone")}
	_, err = newTestRevenueService(t, store, failing).ExportMonthly(context.Background(), 2025)
	assert.ErrorContains(t, err, "bucket gone")
}
