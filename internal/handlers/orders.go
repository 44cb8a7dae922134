package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/platform/pagination"
	"github.com/shoestore/api/internal/services"
)

const (
	maxOrderBodySize = 16 * 1024
	maxOrderPageSize = 100
)

var adminOrderSortFields = []string{"createdAt", "updatedAt", "totalPrice", "status"}

// OrderHandlersDeps bundles the services behind /api/order.
type OrderHandlersDeps struct {
	Authenticator *auth.Authenticator
	Orders        services.OrderService
	Payments      services.PaymentService
	Admin         services.AdminOrderService
	Returns       services.ReturnService
	Revenue       services.RevenueService
	// RateLimiter throttles payment initiation; nil disables it.
	RateLimiter *PaymentRateLimiter
	// Idempotency wraps the placement routes when set.
	Idempotency   func(http.Handler) http.Handler
	FrontendURL   string
	MomoNotifyURL string
	// ReportLocation interprets revenue date parameters. Defaults to UTC.
	ReportLocation     *time.Location
	ExposeErrorDetails bool
}

// OrderHandlers serves placement, payment callbacks, order reads, returns and back-office routes.
type OrderHandlers struct {
	authn         *auth.Authenticator
	orders        services.OrderService
	payments      services.PaymentService
	admin         services.AdminOrderService
	returns       services.ReturnService
	revenue       services.RevenueService
	limiter       *PaymentRateLimiter
	idempotency   func(http.Handler) http.Handler
	frontendURL   string
	momoNotifyURL string
	location      *time.Location
	errors        errorWriter
}

// NewOrderHandlers constructs OrderHandlers.
func NewOrderHandlers(deps OrderHandlersDeps) *OrderHandlers {
	loc := deps.ReportLocation
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandlers{
		authn:         deps.Authenticator,
		orders:        deps.Orders,
		payments:      deps.Payments,
		admin:         deps.Admin,
		returns:       deps.Returns,
		revenue:       deps.Revenue,
		limiter:       deps.RateLimiter,
		idempotency:   deps.Idempotency,
		frontendURL:   strings.TrimRight(strings.TrimSpace(deps.FrontendURL), "/"),
		momoNotifyURL: strings.TrimSpace(deps.MomoNotifyURL),
		location:      loc,
		errors:        errorWriter{exposeDetails: deps.ExposeErrorDetails},
	}
}

// Routes registers the /api/order endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	// PSP redirects and notifications carry no bearer token.
	r.Get("/vnpay/return", h.vnpayReturn)
	r.Post("/momo/ipn", h.momoIPN)
	r.Get("/momo/return", h.momoReturn)

	r.Group(func(r chi.Router) {
		if h.authn != nil {
			r.Use(h.authn.RequireAuth())
		}

		var placement []func(http.Handler) http.Handler
		if h.idempotency != nil {
			placement = append(placement, h.idempotency)
		}
		online := append([]func(http.Handler) http.Handler{h.limiter.Middleware, LocaleMiddleware}, placement...)

		r.With(placement...).Post("/cod", h.placeCOD)
		r.With(online...).Post("/vnpay", h.startPayment(domain.PaymentMethodVNPay))
		r.With(online...).Post("/momo", h.startPayment(domain.PaymentMethodMomo))
		r.With(online...).Post("/stripe", h.startPayment(domain.PaymentMethodStripe))
		r.With(online...).Post("/razorpay", h.startPayment(domain.PaymentMethodRazorpay))
		r.With(online...).Post("/solana", h.startPayment(domain.PaymentMethodSolana))

		r.Post("/stripe/verify", h.verifyStripe)
		r.Post("/razorpay/verify", h.verifyRazorpay)
		r.Post("/solana/verify", h.verifySolana)

		r.Get("/", h.listOrders)
		r.Post("/return", h.requestReturn)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/return", h.listReturns)
			r.Put("/return/{orderID}", h.processReturn)
			r.Get("/admin/all", h.listAllOrders)
			r.Put("/admin/status/{orderID}", h.updateStatus)
			r.Delete("/admin/all", h.deleteAllOrders)
			r.Get("/revenue-by-day", h.revenueByDay)
			r.Get("/revenue-by-month", h.revenueByMonth)
			r.Get("/revenue-by-product", h.revenueByProduct)
		})

		r.Get("/{orderID}", h.getOrder)
	})
}

type placeOrderRequest struct {
	ShippingAddress *addressPayload `json:"shippingAddress"`
	ContactInfo     *contactPayload `json:"contactInfo"`
	ReturnURL       string          `json:"returnUrl"`
	NotifyURL       string          `json:"notifyUrl"`
}

func (req placeOrderRequest) command(userID string, method domain.PaymentMethod) services.PlaceOrderCommand {
	return services.PlaceOrderCommand{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		Contact:         req.ContactInfo.toDomain(),
		PaymentMethod:   method,
	}
}

func (h *OrderHandlers) placeCOD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if req.ShippingAddress == nil || req.ContactInfo == nil {
		writeBadRequest(ctx, w, "Please provide shipping address and contact information")
		return
	}

	order, err := h.orders.PlaceOrder(ctx, req.command(identity.UserID, domain.PaymentMethodCOD))
	if err != nil {
		h.errors.write(ctx, w, err, "Error placing order")
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{
		Success: true,
		Message: "Order placed successfully",
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.Parse(r.URL.Query(), pagination.Options{MaxLimit: maxOrderPageSize})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	page, err := h.orders.ListUserOrders(ctx, services.UserOrdersQuery{
		UserID: identity.UserID,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching orders")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeBadRequest(ctx, w, "order id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, identity.UserID)
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching order details")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Success: true, Order: buildOrderPayload(order)})
}

type returnRequest struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		writeServiceUnavailable(ctx, w, "return")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req returnRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.Reason) == "" {
		writeBadRequest(ctx, w, "Please provide order ID and reason")
		return
	}

	order, err := h.returns.Request(ctx, strings.TrimSpace(req.OrderID), req.Reason, identity.UserID)
	if err != nil {
		h.errors.write(ctx, w, err, "Error requesting order return")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{
		Success: true,
		Message: "Return request submitted successfully",
		Order:   buildOrderPayload(order),
	})
}

// verifyRedirect builds the storefront landing URL for PSP browser redirects.
func (h *OrderHandlers) verifyRedirect(success bool, orderID, message string) string {
	status := "failed"
	if success {
		status = "success"
	}
	query := make([]string, 0, 3)
	query = append(query, "status="+status)
	if orderID != "" {
		query = append(query, "orderId="+url.QueryEscape(orderID))
	}
	if message != "" {
		query = append(query, "message="+url.QueryEscape(message))
	}
	return h.frontendURL + "/verify?" + strings.Join(query, "&")
}

func (h *OrderHandlers) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.verifyRedirect(false, "", "Payment verification failed"), http.StatusFound)
}
