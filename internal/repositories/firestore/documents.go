package firestore

import (
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
)

type productDocument struct {
	Name      string              `firestore:"name"`
	Images    []string            `firestore:"images"`
	Price     int64               `firestore:"price"`
	Sizes     []sizeStockDocument `firestore:"sizes"`
	UpdatedAt time.Time           `firestore:"updatedAt"`
}

type sizeStockDocument struct {
	Size  int `firestore:"size"`
	Stock int `firestore:"stock"`
}

func (d productDocument) toDomain(id string) domain.Product {
	sizes := make([]domain.SizeStock, len(d.Sizes))
	for i, s := range d.Sizes {
		sizes[i] = domain.SizeStock{Size: s.Size, Stock: s.Stock}
	}
	return domain.Product{
		ID:        id,
		Name:      strings.TrimSpace(d.Name),
		Images:    append([]string(nil), d.Images...),
		Price:     d.Price,
		Sizes:     sizes,
		UpdatedAt: d.UpdatedAt,
	}
}

func newProductDocument(p domain.Product, now time.Time) productDocument {
	sizes := make([]sizeStockDocument, len(p.Sizes))
	for i, s := range p.Sizes {
		sizes[i] = sizeStockDocument{Size: s.Size, Stock: s.Stock}
	}
	return productDocument{
		Name:      p.Name,
		Images:    append([]string(nil), p.Images...),
		Price:     p.Price,
		Sizes:     sizes,
		UpdatedAt: now,
	}
}

type cartDocument struct {
	Items       []cartItemDocument `firestore:"items"`
	TotalAmount int64              `firestore:"totalAmount"`
	UpdatedAt   time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string `firestore:"productId"`
	Size      int    `firestore:"size"`
	Quantity  int    `firestore:"quantity"`
	Price     int64  `firestore:"price"`
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return domain.Cart{UserID: userID, Items: items, TotalAmount: d.TotalAmount, UpdatedAt: d.UpdatedAt}
}

func newCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemDocument{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity, Price: item.Price}
	}
	return cartDocument{Items: items, TotalAmount: cart.TotalAmount, UpdatedAt: cart.UpdatedAt.UTC()}
}

type userDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Role  string `firestore:"role"`
}

func (d userDocument) toDomain(id string) domain.User {
	role := domain.Role(strings.ToLower(strings.TrimSpace(d.Role)))
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.User{ID: id, Name: strings.TrimSpace(d.Name), Email: strings.TrimSpace(d.Email), Role: role}
}

type orderDocument struct {
	UserID          string                 `firestore:"userId"`
	Items           []orderItemDocument    `firestore:"items"`
	ShippingAddress addressDocument        `firestore:"shippingAddress"`
	ContactInfo     contactDocument        `firestore:"contactInfo"`
	PaymentMethod   string                 `firestore:"paymentMethod"`
	PaymentResult   *paymentResultDocument `firestore:"paymentResult,omitempty"`
	ItemsPrice      int64                  `firestore:"itemsPrice"`
	ShippingPrice   int64                  `firestore:"shippingPrice"`
	TaxPrice        int64                  `firestore:"taxPrice"`
	TotalPrice      int64                  `firestore:"totalPrice"`
	IsPaid          bool                   `firestore:"isPaid"`
	PaidAt          *time.Time             `firestore:"paidAt,omitempty"`
	Status          string                 `firestore:"status"`
	DeliveredAt     *time.Time             `firestore:"deliveredAt,omitempty"`
	ReturnRequest   returnRequestDocument  `firestore:"returnRequest"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Image     string `firestore:"image"`
	Size      int    `firestore:"size"`
	Quantity  int    `firestore:"quantity"`
	Price     int64  `firestore:"price"`
}

type addressDocument struct {
	Street     string `firestore:"street"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type contactDocument struct {
	Name  string `firestore:"name"`
	Phone string `firestore:"phone"`
	Email string `firestore:"email"`
}

type paymentResultDocument struct {
	ID            string `firestore:"id"`
	Status        string `firestore:"status"`
	UpdateTime    string `firestore:"updateTime"`
	EmailAddress  string `firestore:"emailAddress"`
	TransactionID string `firestore:"transactionId"`
	Provider      string `firestore:"provider"`
}

type returnRequestDocument struct {
	IsRequested bool       `firestore:"isRequested"`
	Reason      string     `firestore:"reason,omitempty"`
	Status      string     `firestore:"status,omitempty"`
	RequestedAt *time.Time `firestore:"requestedAt,omitempty"`
	ProcessedAt *time.Time `firestore:"processedAt,omitempty"`
}

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]orderItemDocument, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	doc := orderDocument{
		UserID: o.UserID,
		Items:  items,
		ShippingAddress: addressDocument{
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		ContactInfo:   contactDocument{Name: o.Contact.Name, Phone: o.Contact.Phone, Email: o.Contact.Email},
		PaymentMethod: string(o.PaymentMethod),
		ItemsPrice:    o.ItemsPrice,
		ShippingPrice: o.ShippingPrice,
		TaxPrice:      o.TaxPrice,
		TotalPrice:    o.TotalPrice,
		IsPaid:        o.IsPaid,
		PaidAt:        utcPtr(o.PaidAt),
		Status:        string(o.Status),
		DeliveredAt:   utcPtr(o.DeliveredAt),
		ReturnRequest: returnRequestDocument{
			IsRequested: o.ReturnRequest.IsRequested,
			Reason:      o.ReturnRequest.Reason,
			Status:      string(o.ReturnRequest.Status),
			RequestedAt: utcPtr(o.ReturnRequest.RequestedAt),
			ProcessedAt: utcPtr(o.ReturnRequest.ProcessedAt),
		},
		CreatedAt: o.CreatedAt.UTC(),
		UpdatedAt: o.UpdatedAt.UTC(),
	}
	if o.PaymentResult != nil {
		doc.PaymentResult = &paymentResultDocument{
			ID:            o.PaymentResult.ID,
			Status:        o.PaymentResult.Status,
			UpdateTime:    o.PaymentResult.UpdateTime,
			EmailAddress:  o.PaymentResult.EmailAddress,
			TransactionID: o.PaymentResult.TransactionID,
			Provider:      o.PaymentResult.Provider,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	order := domain.Order{
		ID:     id,
		UserID: d.UserID,
		Items:  items,
		ShippingAddress: domain.Address{
			Street:     d.ShippingAddress.Street,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		Contact:       domain.ContactInfo{Name: d.ContactInfo.Name, Phone: d.ContactInfo.Phone, Email: d.ContactInfo.Email},
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		ItemsPrice:    d.ItemsPrice,
		ShippingPrice: d.ShippingPrice,
		TaxPrice:      d.TaxPrice,
		TotalPrice:    d.TotalPrice,
		IsPaid:        d.IsPaid,
		PaidAt:        d.PaidAt,
		Status:        domain.OrderStatus(d.Status),
		DeliveredAt:   d.DeliveredAt,
		ReturnRequest: domain.ReturnRequest{
			IsRequested: d.ReturnRequest.IsRequested,
			Reason:      d.ReturnRequest.Reason,
			Status:      domain.ReturnStatus(d.ReturnRequest.Status),
			RequestedAt: d.ReturnRequest.RequestedAt,
			ProcessedAt: d.ReturnRequest.ProcessedAt,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.PaymentResult != nil {
		order.PaymentResult = &domain.PaymentResult{
			ID:            d.PaymentResult.ID,
			Status:        d.PaymentResult.Status,
			UpdateTime:    d.PaymentResult.UpdateTime,
			EmailAddress:  d.PaymentResult.EmailAddress,
			TransactionID: d.PaymentResult.TransactionID,
			Provider:      d.PaymentResult.Provider,
		}
	}
	return order
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
