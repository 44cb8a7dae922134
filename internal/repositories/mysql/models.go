package mysql

import (
	"time"

	domain "github.com/shoestore/api/internal/domain"
)

// Row types map tables only; gorm associations are not used so every query stays explicit.

type productRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255;not null"`
	Images    []string  `gorm:"serializer:json"`
	Price     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (productRow) TableName() string { return "products" }

type productSizeRow struct {
	ProductID string `gorm:"primaryKey;size:64"`
	Size      int    `gorm:"primaryKey"`
	Stock     int    `gorm:"not null;check:stock >= 0"`
}

func (productSizeRow) TableName() string { return "product_sizes" }

type cartItemRow struct {
	UserID    string `gorm:"primaryKey;size:64"`
	ProductID string `gorm:"primaryKey;size:64"`
	Size      int    `gorm:"primaryKey"`
	Quantity  int    `gorm:"not null"`
	Price     int64  `gorm:"not null"`
	Position  int    `gorm:"not null;default:0"`
}

func (cartItemRow) TableName() string { return "cart_items" }

type userRow struct {
	ID    string `gorm:"primaryKey;size:64"`
	Name  string `gorm:"size:255"`
	Email string `gorm:"size:255"`
	Role  string `gorm:"size:16;not null;default:user"`
}

func (userRow) TableName() string { return "users" }

type orderRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"size:64;index;not null"`
	Street        string `gorm:"size:255"`
	City          string `gorm:"size:128"`
	State         string `gorm:"size:128"`
	PostalCode    string `gorm:"size:32"`
	Country       string `gorm:"size:64"`
	ContactName   string `gorm:"size:255"`
	ContactPhone  string `gorm:"size:32"`
	ContactEmail  string `gorm:"size:255"`
	PaymentMethod string `gorm:"size:16;not null"`

	PaymentID            *string `gorm:"size:128"`
	PaymentStatus        string  `gorm:"size:64"`
	PaymentUpdateTime    string  `gorm:"size:64"`
	PaymentEmail         string  `gorm:"size:255"`
	PaymentTransactionID string  `gorm:"size:128"`
	PaymentProvider      string  `gorm:"size:32"`

	ItemsPrice    int64 `gorm:"not null"`
	ShippingPrice int64 `gorm:"not null"`
	TaxPrice      int64 `gorm:"not null"`
	TotalPrice    int64 `gorm:"not null"`
	IsPaid        bool  `gorm:"index;not null"`
	PaidAt        *time.Time
	Status        string `gorm:"size:16;index;not null"`
	DeliveredAt   *time.Time

	ReturnRequested   bool   `gorm:"index;not null"`
	ReturnReason      string `gorm:"type:text"`
	ReturnStatus      string `gorm:"size:16"`
	ReturnRequestedAt *time.Time
	ReturnProcessedAt *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	OrderID   string `gorm:"primaryKey;size:64"`
	Line      int    `gorm:"primaryKey"`
	ProductID string `gorm:"size:64;not null"`
	Name      string `gorm:"size:255"`
	Image     string `gorm:"size:1024"`
	Size      int    `gorm:"not null"`
	Quantity  int    `gorm:"not null"`
	Price     int64  `gorm:"not null"`
}

func (orderItemRow) TableName() string { return "order_items" }

var allModels = []any{&productRow{}, &productSizeRow{}, &cartItemRow{}, &userRow{}, &orderRow{}, &orderItemRow{}}

func toProduct(row productRow, sizes []productSizeRow) domain.Product {
	product := domain.Product{
		ID:        row.ID,
		Name:      row.Name,
		Images:    append([]string(nil), row.Images...),
		Price:     row.Price,
		UpdatedAt: row.UpdatedAt,
	}
	for _, s := range sizes {
		product.Sizes = append(product.Sizes, domain.SizeStock{Size: s.Size, Stock: s.Stock})
	}
	return product
}

func toUser(row userRow) domain.User {
	role := domain.RoleUser
	if domain.Role(row.Role) == domain.RoleAdmin {
		role = domain.RoleAdmin
	}
	return domain.User{ID: row.ID, Name: row.Name, Email: row.Email, Role: role}
}

func fromOrder(o domain.Order) (orderRow, []orderItemRow) {
	row := orderRow{
		ID:                o.ID,
		UserID:            o.UserID,
		Street:            o.ShippingAddress.Street,
		City:              o.ShippingAddress.City,
		State:             o.ShippingAddress.State,
		PostalCode:        o.ShippingAddress.PostalCode,
		Country:           o.ShippingAddress.Country,
		ContactName:       o.Contact.Name,
		ContactPhone:      o.Contact.Phone,
		ContactEmail:      o.Contact.Email,
		PaymentMethod:     string(o.PaymentMethod),
		ItemsPrice:        o.ItemsPrice,
		ShippingPrice:     o.ShippingPrice,
		TaxPrice:          o.TaxPrice,
		TotalPrice:        o.TotalPrice,
		IsPaid:            o.IsPaid,
		PaidAt:            o.PaidAt,
		Status:            string(o.Status),
		DeliveredAt:       o.DeliveredAt,
		ReturnRequested:   o.ReturnRequest.IsRequested,
		ReturnReason:      o.ReturnRequest.Reason,
		ReturnStatus:      string(o.ReturnRequest.Status),
		ReturnRequestedAt: o.ReturnRequest.RequestedAt,
		ReturnProcessedAt: o.ReturnRequest.ProcessedAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if pr := o.PaymentResult; pr != nil {
		id := pr.ID
		row.PaymentID = &id
		row.PaymentStatus = pr.Status
		row.PaymentUpdateTime = pr.UpdateTime
		row.PaymentEmail = pr.EmailAddress
		row.PaymentTransactionID = pr.TransactionID
		row.PaymentProvider = pr.Provider
	}
	items := make([]orderItemRow, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemRow{
			OrderID:   o.ID,
			Line:      i,
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return row, items
}

func toOrder(row orderRow, items []orderItemRow) domain.Order {
	order := domain.Order{
		ID:     row.ID,
		UserID: row.UserID,
		ShippingAddress: domain.Address{
			Street:     row.Street,
			City:       row.City,
			State:      row.State,
			PostalCode: row.PostalCode,
			Country:    row.Country,
		},
		Contact:       domain.ContactInfo{Name: row.ContactName, Phone: row.ContactPhone, Email: row.ContactEmail},
		PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
		ItemsPrice:    row.ItemsPrice,
		ShippingPrice: row.ShippingPrice,
		TaxPrice:      row.TaxPrice,
		TotalPrice:    row.TotalPrice,
		IsPaid:        row.IsPaid,
		PaidAt:        row.PaidAt,
		Status:        domain.OrderStatus(row.Status),
		DeliveredAt:   row.DeliveredAt,
		ReturnRequest: domain.ReturnRequest{
			IsRequested: row.ReturnRequested,
			Reason:      row.ReturnReason,
			Status:      domain.ReturnStatus(row.ReturnStatus),
			RequestedAt: row.ReturnRequestedAt,
			ProcessedAt: row.ReturnProcessedAt,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.PaymentID != nil {
		order.PaymentResult = &domain.PaymentResult{
			ID:            *row.PaymentID,
			Status:        row.PaymentStatus,
			UpdateTime:    row.PaymentUpdateTime,
			EmailAddress:  row.PaymentEmail,
			TransactionID: row.PaymentTransactionID,
			Provider:      row.PaymentProvider,
		}
	}
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return order
}
