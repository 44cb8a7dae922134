package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shoestore/api/internal/repositories"
)

const (
	topProductsLimit = 10
	reportCSVType    = "text/csv"
)

// ReportUploader stores a rendered report and returns a time-limited download URL.
type ReportUploader interface {
	UploadReport(ctx context.Context, object, contentType string, data []byte) (url string, expiresAt time.Time, err error)
}

// RevenueServiceDeps bundles collaborators required to construct the revenue service.
type RevenueServiceDeps struct {
	Orders       repositories.OrderRepository
	Uploader     ReportUploader
	Location     *time.Location
	ReportPrefix string
	Clock        func() time.Time
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type revenueService struct {
	orders   repositories.OrderRepository
	uploader ReportUploader
	loc      *time.Location
	prefix   string
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewRevenueService wires dependencies into a concrete RevenueService implementation.
func NewRevenueService(deps RevenueServiceDeps) (RevenueService, error) {
	if deps.Orders == nil {
		return nil, errors.New("revenue service: order repository is required")
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &revenueService{
		orders:   deps.Orders,
		uploader: deps.Uploader,
		loc:      loc,
		prefix:   strings.Trim(strings.TrimSpace(deps.ReportPrefix), "/"),
		clock:    clock,
		logger:   logger,
	}, nil
}

func (s *revenueService) ByDay(ctx context.Context, start, end time.Time) ([]DailyRevenue, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	}
	from := startOfDay(start, s.loc)
	to := startOfDay(end, s.loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	orders, err := s.orders.ListPaid(ctx, repositories.PaidOrderQuery{From: from, To: to})
	if err != nil {
		return nil, translateRepoError(err, nil)
	}

	buckets := make(map[string]*DailyRevenue)
	for _, order := range orders {
		key := order.CreatedAt.In(s.loc).Format(time.DateOnly)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &DailyRevenue{Date: key}
			buckets[key] = bucket
		}
		bucket.TotalRevenue += order.TotalPrice
		bucket.Count++
	}

	out := make([]DailyRevenue, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *revenueService) ByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("%w: invalid year %d", ErrInvalidInput, year)
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)

	orders, err := s.orders.ListPaid(ctx, repositories.PaidOrderQuery{From: from, To: to})
	if err != nil {
		return nil, translateRepoError(err, nil)
	}

	var months [12]MonthlyRevenue
	for _, order := range orders {
		m := int(order.CreatedAt.In(s.loc).Month())
		months[m-1].TotalRevenue += order.TotalPrice
		months[m-1].Count++
	}
	out := make([]MonthlyRevenue, 0, 12)
	for i, bucket := range months {
		if bucket.Count == 0 {
			continue
		}
		bucket.Month = i + 1
		out = append(out, bucket)
	}
	return out, nil
}

func (s *revenueService) ByProduct(ctx context.Context) ([]ProductRevenue, error) {
	orders, err := s.orders.ListPaid(ctx, repositories.PaidOrderQuery{})
	if err != nil {
		return nil, translateRepoError(err, nil)
	}

	byID := make(map[string]*ProductRevenue)
	for _, order := range orders {
		for _, item := range order.Items {
			entry, ok := byID[item.ProductID]
			if !ok {
				entry = &ProductRevenue{ProductID: item.ProductID, Name: item.Name}
				byID[item.ProductID] = entry
			}
			entry.TotalRevenue += item.Price * int64(item.Quantity)
			entry.TotalQuantity += item.Quantity
		}
	}

	out := make([]ProductRevenue, 0, len(byID))
	for _, entry := range byID {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > topProductsLimit {
		out = out[:topProductsLimit]
	}
	return out, nil
}

func (s *revenueService) ExportMonthly(ctx context.Context, year int) (RevenueExport, error) {
	if s.uploader == nil {
		return RevenueExport{}, fmt.Errorf("%w: report export is not configured", ErrUnavailable)
	}
	months, err := s.ByMonth(ctx, year)
	if err != nil {
		return RevenueExport{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"month", "totalRevenue", "orderCount"})
	for _, m := range months {
		_ = w.Write([]string{
			strconv.Itoa(m.Month),
			strconv.FormatInt(m.TotalRevenue, 10),
			strconv.Itoa(m.Count),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return RevenueExport{}, fmt.Errorf("render revenue csv: %w", err)
	}

	generated := s.clock().UTC()
	object := path.Join(s.prefix, "revenue", strconv.Itoa(year),
		fmt.Sprintf("monthly-%s.csv", generated.Format("20060102T150405Z")))
	url, expiresAt, err := s.uploader.UploadReport(ctx, object, reportCSVType, buf.Bytes())
	if err != nil {
		return RevenueExport{}, fmt.Errorf("upload revenue report: %w", err)
	}

	s.logger(ctx, "revenue.export.uploaded", map[string]any{
		"object": object,
		"year":   year,
		"rows":   len(months),
	})
	return RevenueExport{Object: object, DownloadURL: url, ExpiresAt: expiresAt, Rows: len(months)}, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
