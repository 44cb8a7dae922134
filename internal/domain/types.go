package domain

import (
	"strings"
	"time"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Role distinguishes storefront customers from back-office operators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User carries the account attributes the order subsystem needs.
type User struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// UserSummary is the populated user reference attached to admin listings.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// SizeStock tracks on-hand stock for a single shoe size.
type SizeStock struct {
	Size  int
	Stock int
}

// Product is the catalogue entry an order line is snapshotted from.
type Product struct {
	ID        string
	Name      string
	Images    []string
	Price     int64
	Sizes     []SizeStock
	UpdatedAt time.Time
}

// FindSize returns the index of the size entry, or -1 when the product does not carry it.
func (p Product) FindSize(size int) int {
	for i, entry := range p.Sizes {
		if entry.Size == size {
			return i
		}
	}
	return -1
}

// PrimaryImage returns the first image URL or an empty string.
func (p Product) PrimaryImage() string {
	for _, image := range p.Images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// CartItem is a pending purchase line with its price captured when it was added.
type CartItem struct {
	ProductID string
	Size      int
	Quantity  int
	Price     int64
}

// Cart is the per-user pre-order basket.
type Cart struct {
	UserID      string
	Items       []CartItem
	TotalAmount int64
	UpdatedAt   time.Time
}

// Recalculate refreshes TotalAmount from the item lines.
func (c *Cart) Recalculate() {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	c.TotalAmount = total
}

// PaymentMethod enumerates the supported payment channels.
type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "COD"
	PaymentMethodVNPay    PaymentMethod = "VNPay"
	PaymentMethodMomo     PaymentMethod = "Momo"
	PaymentMethodStripe   PaymentMethod = "Stripe"
	PaymentMethodRazorpay PaymentMethod = "Razorpay"
	PaymentMethodSolana   PaymentMethod = "Solana"
)

// PaymentMethods lists every channel in checkout display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodMomo,
		PaymentMethodStripe, PaymentMethodRazorpay, PaymentMethodSolana,
	}
}

// Valid reports whether the payment method is one of the supported channels.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodMomo,
		PaymentMethodStripe, PaymentMethodRazorpay, PaymentMethodSolana:
		return true
	}
	return false
}

// OrderStatus tracks fulfilment progress.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every accepted fulfilment status.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether the status is one of the enumerated values.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ReturnStatus tracks the admin decision on a return request.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "pending"
	ReturnStatusApproved ReturnStatus = "approved"
	ReturnStatusRejected ReturnStatus = "rejected"
)

// Address is the shipping destination snapshot stored on the order.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// ContactInfo is the recipient contact snapshot stored on the order.
type ContactInfo struct {
	Name  string
	Phone string
	Email string
}

// OrderItem freezes the product attributes at placement time.
type OrderItem struct {
	ProductID string
	Name      string
	Image     string
	Size      int
	Quantity  int
	Price     int64
}

// PaymentResult records the provider confirmation details.
type PaymentResult struct {
	ID            string
	Status        string
	UpdateTime    string
	EmailAddress  string
	TransactionID string
	Provider      string
}

// ReturnRequest is the return/refund sub-record. IsRequested never resets once set.
type ReturnRequest struct {
	IsRequested bool
	Reason      string
	Status      ReturnStatus
	RequestedAt *time.Time
	ProcessedAt *time.Time
}

// Order is the central transactional entity of the shop.
type Order struct {
	ID              string
	UserID          string
	User            *UserSummary
	Items           []OrderItem
	ShippingAddress Address
	Contact         ContactInfo
	PaymentMethod   PaymentMethod
	PaymentResult   *PaymentResult
	ItemsPrice      int64
	ShippingPrice   int64
	TaxPrice        int64
	TotalPrice      int64
	IsPaid          bool
	PaidAt          *time.Time
	Status          OrderStatus
	DeliveredAt     *time.Time
	ReturnRequest   ReturnRequest
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Page is an offset-paginated slice of results together with the total count.
type Page[T any] struct {
	Items      []T
	TotalItems int
}

// Health statuses reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck is the outcome of probing one dependency.
type HealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency status for readiness endpoints.
type HealthReport struct {
	Status         string
	Checks         map[string]HealthCheck
	Environment    string
	StoreDriver    string
	PaymentMethods []PaymentMethod
	Uptime         time.Duration
	GeneratedAt    time.Time
}
