package handlers

import (
	"strings"
	"time"

	"github.com/shoestore/api/internal/services"
)

type addressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type contactPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type orderItemPayload struct {
	ProductID string `json:"product"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type paymentResultPayload struct {
	ID            string `json:"id,omitempty"`
	Status        string `json:"status,omitempty"`
	UpdateTime    string `json:"update_time,omitempty"`
	EmailAddress  string `json:"email_address,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

type returnRequestPayload struct {
	IsRequested bool    `json:"isRequested"`
	Reason      string  `json:"reason,omitempty"`
	Status      string  `json:"status,omitempty"`
	RequestedAt *string `json:"requestedAt,omitempty"`
	ProcessedAt *string `json:"processedAt,omitempty"`
}

type userSummaryPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId"`
	User            *userSummaryPayload   `json:"user,omitempty"`
	Items           []orderItemPayload    `json:"items"`
	ShippingAddress addressPayload        `json:"shippingAddress"`
	ContactInfo     contactPayload        `json:"contactInfo"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentResult   *paymentResultPayload `json:"paymentResult,omitempty"`
	ItemsPrice      int64                 `json:"itemsPrice"`
	ShippingPrice   int64                 `json:"shippingPrice"`
	TaxPrice        int64                 `json:"taxPrice"`
	TotalPrice      int64                 `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *string               `json:"paidAt,omitempty"`
	Status          string                `json:"status"`
	DeliveredAt     *string               `json:"deliveredAt,omitempty"`
	ReturnRequest   returnRequestPayload  `json:"returnRequest"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt,omitempty"`
}

type paginationPayload struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Skip        int  `json:"skip"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	NextPage    *int `json:"nextPage"`
	PrevPage    *int `json:"prevPage"`
}

type orderListResponse struct {
	Success    bool              `json:"success"`
	Pagination paginationPayload `json:"pagination"`
	Orders     []orderPayload    `json:"orders"`
}

type orderResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Order   orderPayload `json:"order"`
}

type cartItemPayload struct {
	ProductID string `json:"product"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type cartPayload struct {
	Items       []cartItemPayload `json:"items"`
	TotalAmount int64             `json:"totalAmount"`
}

type cartResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Cart    cartPayload `json:"cart"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	payload := orderPayload{
		ID:     order.ID,
		UserID: order.UserID,
		Items:  items,
		ShippingAddress: addressPayload{
			Street:     order.ShippingAddress.Street,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		ContactInfo: contactPayload{
			Name:  order.Contact.Name,
			Phone: order.Contact.Phone,
			Email: order.Contact.Email,
		},
		PaymentMethod: string(order.PaymentMethod),
		ItemsPrice:    order.ItemsPrice,
		ShippingPrice: order.ShippingPrice,
		TaxPrice:      order.TaxPrice,
		TotalPrice:    order.TotalPrice,
		IsPaid:        order.IsPaid,
		PaidAt:        formatTimePtr(order.PaidAt),
		Status:        string(order.Status),
		DeliveredAt:   formatTimePtr(order.DeliveredAt),
		ReturnRequest: returnRequestPayload{
			IsRequested: order.ReturnRequest.IsRequested,
			Reason:      order.ReturnRequest.Reason,
			Status:      string(order.ReturnRequest.Status),
			RequestedAt: formatTimePtr(order.ReturnRequest.RequestedAt),
			ProcessedAt: formatTimePtr(order.ReturnRequest.ProcessedAt),
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
	if order.User != nil {
		payload.User = &userSummaryPayload{
			ID:    order.User.ID,
			Name:  order.User.Name,
			Email: order.User.Email,
		}
	}
	if result := order.PaymentResult; result != nil {
		payload.PaymentResult = &paymentResultPayload{
			ID:            result.ID,
			Status:        result.Status,
			UpdateTime:    result.UpdateTime,
			EmailAddress:  result.EmailAddress,
			TransactionID: result.TransactionID,
			Provider:      result.Provider,
		}
	}
	return payload
}

func buildOrderPage(page services.OrderPage) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Success:    true,
		Pagination: buildPaginationPayload(page.Pagination),
		Orders:     orders,
	}
}

func buildPaginationPayload(p services.Pagination) paginationPayload {
	return paginationPayload{
		Page:        p.Page,
		Limit:       p.Limit,
		Skip:        p.Skip,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		HasNextPage: p.HasNextPage,
		HasPrevPage: p.HasPrevPage,
		NextPage:    p.NextPage,
		PrevPage:    p.PrevPage,
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return cartPayload{Items: items, TotalAmount: cart.TotalAmount}
}

func (p addressPayload) toDomain() services.Address {
	return services.Address{
		Street:     strings.TrimSpace(p.Street),
		City:       strings.TrimSpace(p.City),
		State:      strings.TrimSpace(p.State),
		PostalCode: strings.TrimSpace(p.PostalCode),
		Country:    strings.TrimSpace(p.Country),
	}
}

func (p contactPayload) toDomain() services.ContactInfo {
	return services.ContactInfo{
		Name:  strings.TrimSpace(p.Name),
		Phone: strings.TrimSpace(p.Phone),
		Email: strings.TrimSpace(p.Email),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
