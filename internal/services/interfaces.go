package services

import (
	"context"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderStatus   = domain.OrderStatus
	Cart          = domain.Cart
	CartItem      = domain.CartItem
	Product       = domain.Product
	User          = domain.User
	UserSummary   = domain.UserSummary
	Address       = domain.Address
	ContactInfo   = domain.ContactInfo
	PaymentMethod = domain.PaymentMethod
	ReturnStatus  = domain.ReturnStatus
	SortOrder     = domain.SortOrder
	HealthReport  = domain.HealthReport
)

// Pagination mirrors the listing envelope the storefront and admin consume.
type Pagination struct {
	Page        int
	Limit       int
	Skip        int
	TotalItems  int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
	NextPage    *int
	PrevPage    *int
}

// OrderPage is one page of orders together with its pagination envelope.
type OrderPage struct {
	Orders     []Order
	Pagination Pagination
}

// PlaceOrderCommand converts the caller's cart into an order.
type PlaceOrderCommand struct {
	UserID          string
	ShippingAddress Address
	Contact         ContactInfo
	PaymentMethod   PaymentMethod
}

// UserOrdersQuery pages the caller's own orders.
type UserOrdersQuery struct {
	UserID string
	Page   int
	Limit  int
}

// OrderService handles placement and customer-facing reads.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	ListUserOrders(ctx context.Context, query UserOrdersQuery) (OrderPage, error)
	// GetOrder returns the order when the caller owns it or is an admin.
	GetOrder(ctx context.Context, orderID, callerID string) (Order, error)
}

// StartPaymentCommand places an order for a provider and starts the PSP flow.
type StartPaymentCommand struct {
	PlaceOrderCommand
	ReturnURL string
	NotifyURL string
	ClientIP  string
	Locale    string
}

// PaymentStart is returned to the storefront after an order is placed with a provider.
type PaymentStart struct {
	Success    bool
	OrderID    string
	PaymentURL string
	Reference  string
	Fields     map[string]string
	Order      Order
}

// PaymentConfirmation is the soft result of processing a PSP callback.
type PaymentConfirmation struct {
	Success bool
	OrderID string
	Message string
	Code    string
	// Applied is true when this callback marked the order paid.
	Applied bool
	// NotFound is true when the callback referenced an unknown order.
	NotFound bool
	// SignatureInvalid is true when the callback failed authentication.
	SignatureInvalid bool
	// Cancelled is true when a successful payment reached an order that had already been
	// cancelled. The order stays unpaid and the payment needs a manual refund.
	Cancelled bool
}

// PaymentService starts provider payments and applies their confirmations.
type PaymentService interface {
	StartPayment(ctx context.Context, cmd StartPaymentCommand) (PaymentStart, error)
	// ConfirmPayment verifies a callback and marks the order paid at most once.
	// Verification failures are reported in the result, not as errors.
	ConfirmPayment(ctx context.Context, method PaymentMethod, cb payments.Callback) (PaymentConfirmation, error)
}

// AdminOrderQuery filters the back-office order listing.
type AdminOrderQuery struct {
	Page   int
	Limit  int
	Status OrderStatus
	SortBy string
	Order  SortOrder
}

// AdminOrderService exposes back-office order management.
type AdminOrderService interface {
	ListOrders(ctx context.Context, query AdminOrderQuery) (OrderPage, error)
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error)
	DeleteAll(ctx context.Context) (int, error)
}

// ReturnQuery filters the return request listing.
type ReturnQuery struct {
	Page   int
	Limit  int
	Status ReturnStatus
}

// ReturnService drives the return request lifecycle.
type ReturnService interface {
	Request(ctx context.Context, orderID, reason, userID string) (Order, error)
	Process(ctx context.Context, orderID string, status ReturnStatus) (Order, error)
	List(ctx context.Context, query ReturnQuery) (OrderPage, error)
}

// DailyRevenue aggregates paid orders created on one calendar day (YYYY-MM-DD).
type DailyRevenue struct {
	Date         string
	TotalRevenue int64
	Count        int
}

// MonthlyRevenue aggregates paid orders created in one month (1..12).
type MonthlyRevenue struct {
	Month        int
	TotalRevenue int64
	Count        int
}

// ProductRevenue aggregates sold lines by product.
type ProductRevenue struct {
	ProductID     string
	Name          string
	TotalRevenue  int64
	TotalQuantity int
}

// RevenueExport describes an uploaded revenue report.
type RevenueExport struct {
	Object      string
	DownloadURL string
	ExpiresAt   time.Time
	Rows        int
}

// RevenueService aggregates paid, non-cancelled orders.
type RevenueService interface {
	ByDay(ctx context.Context, start, end time.Time) ([]DailyRevenue, error)
	ByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error)
	ByProduct(ctx context.Context) ([]ProductRevenue, error)
	ExportMonthly(ctx context.Context, year int) (RevenueExport, error)
}

// CartLineCommand adds or sets a cart line.
type CartLineCommand struct {
	UserID    string
	ProductID string
	Size      int
	Quantity  int
}

// CartService manages the basket that feeds order placement.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd CartLineCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd CartLineCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID, productID string, size int) (Cart, error)
	Clear(ctx context.Context, userID string) (Cart, error)
}

// SystemService reports process and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}
