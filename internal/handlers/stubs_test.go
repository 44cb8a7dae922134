package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shoestore/api/internal/payments"
	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/services"
)

type stubOrderService struct {
	placeFn func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
	listFn  func(ctx context.Context, query services.UserOrdersQuery) (services.OrderPage, error)
	getFn   func(ctx context.Context, orderID, callerID string) (services.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	return s.placeFn(ctx, cmd)
}

func (s *stubOrderService) ListUserOrders(ctx context.Context, query services.UserOrdersQuery) (services.OrderPage, error) {
	return s.listFn(ctx, query)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, callerID string) (services.Order, error) {
	return s.getFn(ctx, orderID, callerID)
}

type stubPaymentService struct {
	startFn   func(ctx context.Context, cmd services.StartPaymentCommand) (services.PaymentStart, error)
	confirmFn func(ctx context.Context, method services.PaymentMethod, cb payments.Callback) (services.PaymentConfirmation, error)
}

func (s *stubPaymentService) StartPayment(ctx context.Context, cmd services.StartPaymentCommand) (services.PaymentStart, error) {
	return s.startFn(ctx, cmd)
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, method services.PaymentMethod, cb payments.Callback) (services.PaymentConfirmation, error) {
	return s.confirmFn(ctx, method, cb)
}

type stubAdminOrderService struct {
	listFn   func(ctx context.Context, query services.AdminOrderQuery) (services.OrderPage, error)
	updateFn func(ctx context.Context, orderID string, status services.OrderStatus) (services.Order, error)
	deleteFn func(ctx context.Context) (int, error)
}

func (s *stubAdminOrderService) ListOrders(ctx context.Context, query services.AdminOrderQuery) (services.OrderPage, error) {
	return s.listFn(ctx, query)
}

func (s *stubAdminOrderService) UpdateStatus(ctx context.Context, orderID string, status services.OrderStatus) (services.Order, error) {
	return s.updateFn(ctx, orderID, status)
}

func (s *stubAdminOrderService) DeleteAll(ctx context.Context) (int, error) {
	return s.deleteFn(ctx)
}

type stubReturnService struct {
	requestFn func(ctx context.Context, orderID, reason, userID string) (services.Order, error)
	processFn func(ctx context.Context, orderID string, status services.ReturnStatus) (services.Order, error)
	listFn    func(ctx context.Context, query services.ReturnQuery) (services.OrderPage, error)
}

func (s *stubReturnService) Request(ctx context.Context, orderID, reason, userID string) (services.Order, error) {
	return s.requestFn(ctx, orderID, reason, userID)
}

func (s *stubReturnService) Process(ctx context.Context, orderID string, status services.ReturnStatus) (services.Order, error) {
	return s.processFn(ctx, orderID, status)
}

func (s *stubReturnService) List(ctx context.Context, query services.ReturnQuery) (services.OrderPage, error) {
	return s.listFn(ctx, query)
}

type stubRevenueService struct {
	byDayFn     func(ctx context.Context, start, end time.Time) ([]services.DailyRevenue, error)
	byMonthFn   func(ctx context.Context, year int) ([]services.MonthlyRevenue, error)
	byProductFn func(ctx context.Context) ([]services.ProductRevenue, error)
	exportFn    func(ctx context.Context, year int) (services.RevenueExport, error)
}

func (s *stubRevenueService) ByDay(ctx context.Context, start, end time.Time) ([]services.DailyRevenue, error) {
	return s.byDayFn(ctx, start, end)
}

func (s *stubRevenueService) ByMonth(ctx context.Context, year int) ([]services.MonthlyRevenue, error) {
	return s.byMonthFn(ctx, year)
}

func (s *stubRevenueService) ByProduct(ctx context.Context) ([]services.ProductRevenue, error) {
	return s.byProductFn(ctx)
}

func (s *stubRevenueService) ExportMonthly(ctx context.Context, year int) (services.RevenueExport, error) {
	return s.exportFn(ctx, year)
}

type stubCartService struct {
	getFn    func(ctx context.Context, userID string) (services.Cart, error)
	addFn    func(ctx context.Context, cmd services.CartLineCommand) (services.Cart, error)
	updateFn func(ctx context.Context, cmd services.CartLineCommand) (services.Cart, error)
	removeFn func(ctx context.Context, userID, productID string, size int) (services.Cart, error)
	clearFn  func(ctx context.Context, userID string) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	return s.getFn(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.CartLineCommand) (services.Cart, error) {
	return s.addFn(ctx, cmd)
}

func (s *stubCartService) UpdateItem(ctx context.Context, cmd services.CartLineCommand) (services.Cart, error) {
	return s.updateFn(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID string, size int) (services.Cart, error) {
	return s.removeFn(ctx, userID, productID, size)
}

func (s *stubCartService) Clear(ctx context.Context, userID string) (services.Cart, error) {
	return s.clearFn(ctx, userID)
}

type stubSystemService struct {
	report services.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

var (
	_ services.OrderService      = (*stubOrderService)(nil)
	_ services.PaymentService    = (*stubPaymentService)(nil)
	_ services.AdminOrderService = (*stubAdminOrderService)(nil)
	_ services.ReturnService     = (*stubReturnService)(nil)
	_ services.RevenueService    = (*stubRevenueService)(nil)
	_ services.CartService       = (*stubCartService)(nil)
	_ services.SystemService     = (*stubSystemService)(nil)
)

var (
	customerIdentity = &auth.Identity{UserID: "user-1", Email: "buyer@example.com", Role: auth.RoleUser}
	adminIdentity    = &auth.Identity{UserID: "admin-1", Email: "ops@example.com", Role: auth.RoleAdmin}
)

// mountAs serves routes under prefix with identity already attached, standing in for RequireAuth.
func mountAs(identity *auth.Identity, prefix string, routes func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(identityMiddleware(identity))
	r.Route(prefix, routes)
	return r
}

func identityMiddleware(identity *auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if identity != nil {
				req = req.WithContext(auth.WithIdentity(req.Context(), identity))
			}
			next.ServeHTTP(w, req)
		})
	}
}
