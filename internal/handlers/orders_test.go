package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/services"
)

const codBody = `{
	"shippingAddress": {"street": "12 Ly Thuong Kiet", "city": "Hanoi", "state": "HN", "postalCode": "100000", "country": "Vietnam"},
	"contactInfo": {"name": "Lan", "phone": "0900000000", "email": "lan@example.com"}
}`

func sampleOrder() services.Order {
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	return services.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Items: []services.OrderItem{
			{ProductID: "p1", Name: "Runner", Image: "runner.jpg", Size: 42, Quantity: 2, Price: 500_000},
		},
		PaymentMethod: domain.PaymentMethodCOD,
		ItemsPrice:    1_000_000,
		ShippingPrice: 30_000,
		TaxPrice:      100_000,
		TotalPrice:    1_130_000,
		Status:        domain.OrderStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func serveOrders(h *OrderHandlers, identity *auth.Identity, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mountAs(identity, "/api/order", h.Routes).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestPlaceCODCreatesOrder(t *testing.T) {
	var got services.PlaceOrderCommand
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
				got = cmd
				return sampleOrder(), nil
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, domain.PaymentMethodCOD, got.PaymentMethod)
	assert.Equal(t, "Hanoi", got.ShippingAddress.City)
	assert.Equal(t, "0900000000", got.Contact.Phone)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Order placed successfully", resp.Message)
	assert.Equal(t, "ord-1", resp.Order.ID)
	assert.EqualValues(t, 1_130_000, resp.Order.TotalPrice)
	assert.False(t, resp.Order.IsPaid)
	assert.Nil(t, resp.Order.PaidAt)
	require.Len(t, resp.Order.Items, 1)
	assert.Equal(t, 42, resp.Order.Items[0].Size)
}

func TestPlaceCODRequiresAddressAndContact(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, error) {
				t.Fatal("service must not be called")
				return services.Order{}, nil
			},
		},
	})

	body := `{"shippingAddress": {"street": "x", "city": "y"}}`
	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody(t, rr)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Please provide shipping address and contact information", resp["message"])
}

func TestPlaceCODRequiresIdentity(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}})

	rr := serveOrders(h, nil, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPlaceCODReportsOffendingLine(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, error) {
				return services.Order{}, fmt.Errorf("place order: %w", &services.OrderError{
					Kind:      services.ErrInsufficientStock,
					ProductID: "p1",
					Name:      "Runner",
					Size:      42,
				})
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody(t, rr)
	assert.Equal(t, "insufficient_stock", resp["code"])
	assert.Equal(t, "Not enough stock for Runner in size 42", resp["message"])
	assert.Equal(t, "p1", resp["productId"])
	assert.EqualValues(t, 42, resp["size"])
}

func TestServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", services.ErrEmptyCart, http.StatusBadRequest, "cart_empty"},
		{"size", &services.OrderError{Kind: services.ErrSizeUnavailable, ProductID: "p1", Size: 50}, http.StatusBadRequest, "size_unavailable"},
		{"invalid input", fmt.Errorf("%w: contact phone is required", services.ErrInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"not found", fmt.Errorf("%w: ord-9", services.ErrOrderNotFound), http.StatusNotFound, "order_not_found"},
		{"owner", services.ErrUnauthorized, http.StatusForbidden, "order_forbidden"},
		{"conflict", services.ErrConflict, http.StatusConflict, "conflict"},
		{"provider down", fmt.Errorf("start payment: %w", services.ErrProviderUnavailable), http.StatusServiceUnavailable, "payment_provider_unavailable"},
		{"store down", services.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOrderHandlers(OrderHandlersDeps{
				Orders: &stubOrderService{
					placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, error) {
						return services.Order{}, tc.err
					},
				},
			})
			rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decodeBody(t, rr)["code"])
		})
	}
}

func TestInvalidInputMessageDropsSentinelPrefix(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, error) {
				return services.Order{}, fmt.Errorf("%w: contact phone is required", services.ErrInvalidInput)
			},
		},
	})
	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))

	assert.Equal(t, "contact phone is required", decodeBody(t, rr)["message"])
}

func TestInternalErrorDetailOnlyOutsideProduction(t *testing.T) {
	failing := &stubOrderService{
		placeFn: func(context.Context, services.PlaceOrderCommand) (services.Order, error) {
			return services.Order{}, errors.New("firestore: deadline exceeded")
		},
	}

	prod := NewOrderHandlers(OrderHandlersDeps{Orders: failing})
	rr := serveOrders(prod, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))
	resp := decodeBody(t, rr)
	assert.Equal(t, "Error placing order", resp["message"])
	assert.NotContains(t, resp, "error")

	dev := NewOrderHandlers(OrderHandlersDeps{Orders: failing, ExposeErrorDetails: true})
	rr = serveOrders(dev, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/cod", strings.NewReader(codBody)))
	assert.Equal(t, "firestore: deadline exceeded", decodeBody(t, rr)["error"])
}

func TestListOrdersPassesPagination(t *testing.T) {
	next := 3
	prev := 1
	var got services.UserOrdersQuery
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			listFn: func(_ context.Context, query services.UserOrdersQuery) (services.OrderPage, error) {
				got = query
				return services.OrderPage{
					Orders: []services.Order{sampleOrder()},
					Pagination: services.Pagination{
						Page: 2, Limit: 5, Skip: 5, TotalItems: 12, TotalPages: 3,
						HasNextPage: true, HasPrevPage: true, NextPage: &next, PrevPage: &prev,
					},
				}, nil
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodGet, "/api/order?page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, services.UserOrdersQuery{UserID: "user-1", Page: 2, Limit: 5}, got)

	var resp orderListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Pagination.TotalItems)
	require.NotNil(t, resp.Pagination.NextPage)
	assert.Equal(t, 3, *resp.Pagination.NextPage)
	assert.Len(t, resp.Orders, 1)
}

func TestListOrdersRejectsBadLimit(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodGet, "/api/order?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetOrderForbiddenForOtherUser(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Orders: &stubOrderService{
			getFn: func(_ context.Context, orderID, callerID string) (services.Order, error) {
				assert.Equal(t, "ord-1", orderID)
				assert.Equal(t, "user-1", callerID)
				return services.Order{}, services.ErrUnauthorized
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodGet, "/api/order/ord-1", nil))

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Not authorized to access this order", decodeBody(t, rr)["message"])
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Admin: &stubAdminOrderService{
			listFn: func(context.Context, services.AdminOrderQuery) (services.OrderPage, error) {
				t.Fatal("service must not be called")
				return services.OrderPage{}, nil
			},
		},
	})

	for _, path := range []string{"/api/order/admin/all", "/api/order/return", "/api/order/revenue-by-product"} {
		rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusForbidden, rr.Code, path)
	}
}

func TestAdminListOrdersParsesQuery(t *testing.T) {
	var got services.AdminOrderQuery
	h := NewOrderHandlers(OrderHandlersDeps{
		Admin: &stubAdminOrderService{
			listFn: func(_ context.Context, query services.AdminOrderQuery) (services.OrderPage, error) {
				got = query
				order := sampleOrder()
				order.User = &domain.UserSummary{ID: "user-1", Name: "Lan", Email: "lan@example.com"}
				return services.OrderPage{Orders: []services.Order{order}, Pagination: services.Pagination{Page: 1, Limit: 10, TotalItems: 1, TotalPages: 1}}, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/admin/all?status=shipped&sortBy=totalPrice&order=asc", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	assert.Equal(t, "totalPrice", got.SortBy)
	assert.Equal(t, domain.SortAsc, got.Order)

	var resp orderListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	require.NotNil(t, resp.Orders[0].User)
	assert.Equal(t, "lan@example.com", resp.Orders[0].User.Email)
}

func TestAdminListOrdersRejectsUnknownSortField(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{Admin: &stubAdminOrderService{}})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/admin/all?sortBy=password", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateStatus(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Admin: &stubAdminOrderService{
			updateFn: func(_ context.Context, orderID string, status services.OrderStatus) (services.Order, error) {
				if status == "teleported" {
					return services.Order{}, fmt.Errorf("%w: %q", services.ErrInvalidStatus, status)
				}
				order := sampleOrder()
				order.ID = orderID
				order.Status = status
				return order, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodPut, "/api/order/admin/status/ord-7", strings.NewReader(`{"status":"delivered"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody(t, rr)
	assert.Equal(t, "Order status updated successfully", resp["message"])
	assert.Equal(t, "delivered", resp["order"].(map[string]any)["status"])

	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodPut, "/api/order/admin/status/ord-7", strings.NewReader(`{"status":"teleported"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_status", decodeBody(t, rr)["code"])

	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodPut, "/api/order/admin/status/ord-7", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Please provide status", decodeBody(t, rr)["message"])
}

func TestDeleteAllOrders(t *testing.T) {
	enabled := true
	h := NewOrderHandlers(OrderHandlersDeps{
		Admin: &stubAdminOrderService{
			deleteFn: func(context.Context) (int, error) {
				if !enabled {
					return 0, fmt.Errorf("%w: bulk order deletion is disabled", services.ErrForbidden)
				}
				return 4, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodDelete, "/api/order/admin/all", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 4, decodeBody(t, rr)["deletedCount"])

	enabled = false
	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodDelete, "/api/order/admin/all", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "bulk order deletion is disabled", decodeBody(t, rr)["message"])
}

func TestRequestReturn(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Returns: &stubReturnService{
			requestFn: func(_ context.Context, orderID, reason, userID string) (services.Order, error) {
				assert.Equal(t, "ord-1", orderID)
				assert.Equal(t, "too small", reason)
				assert.Equal(t, "user-1", userID)
				order := sampleOrder()
				order.Status = domain.OrderStatusDelivered
				order.ReturnRequest = domain.ReturnRequest{IsRequested: true, Reason: reason, Status: domain.ReturnStatusPending}
				return order, nil
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/return", strings.NewReader(`{"orderId":"ord-1","reason":"too small"}`)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Return request submitted successfully", resp.Message)
	assert.True(t, resp.Order.ReturnRequest.IsRequested)
	assert.Equal(t, "pending", resp.Order.ReturnRequest.Status)

	rr = serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/return", strings.NewReader(`{"orderId":"ord-1"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRequestReturnNotDelivered(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Returns: &stubReturnService{
			requestFn: func(context.Context, string, string, string) (services.Order, error) {
				return services.Order{}, services.ErrNotDelivered
			},
		},
	})

	rr := serveOrders(h, customerIdentity, httptest.NewRequest(http.MethodPost, "/api/order/return", strings.NewReader(`{"orderId":"ord-1","reason":"wrong colour"}`)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Only delivered orders can be returned", decodeBody(t, rr)["message"])
}

func TestProcessReturn(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Returns: &stubReturnService{
			processFn: func(_ context.Context, orderID string, status services.ReturnStatus) (services.Order, error) {
				order := sampleOrder()
				order.ID = orderID
				order.ReturnRequest = domain.ReturnRequest{IsRequested: true, Status: status}
				return order, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodPut, "/api/order/return/ord-3", strings.NewReader(`{"status":"approved"}`)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Return request approved", decodeBody(t, rr)["message"])
}

func TestListReturnsFiltersByStatus(t *testing.T) {
	var got services.ReturnQuery
	h := NewOrderHandlers(OrderHandlersDeps{
		Returns: &stubReturnService{
			listFn: func(_ context.Context, query services.ReturnQuery) (services.OrderPage, error) {
				got = query
				return services.OrderPage{}, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/return?status=pending&page=1&limit=20", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, services.ReturnQuery{Page: 1, Limit: 20, Status: domain.ReturnStatusPending}, got)
	assert.NotNil(t, decodeBody(t, rr)["orders"])
}

func TestRevenueByDay(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	h := NewOrderHandlers(OrderHandlersDeps{
		ReportLocation: loc,
		Revenue: &stubRevenueService{
			byDayFn: func(_ context.Context, start, end time.Time) ([]services.DailyRevenue, error) {
				assert.True(t, start.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, loc)))
				assert.True(t, end.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, loc)))
				return []services.DailyRevenue{{Date: "2024-05-02", TotalRevenue: 1_130_000, Count: 1}}, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-day?startDate=2024-05-01&endDate=2024-05-31", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	revenue := decodeBody(t, rr)["revenue"].([]any)
	require.Len(t, revenue, 1)
	assert.Equal(t, "2024-05-02", revenue[0].(map[string]any)["id"])

	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-day?startDate=2024-05-01", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Please provide start date and end date", decodeBody(t, rr)["message"])

	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-day?startDate=yesterday&endDate=2024-05-31", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRevenueByMonthRequiresYear(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Revenue: &stubRevenueService{
			byMonthFn: func(_ context.Context, year int) ([]services.MonthlyRevenue, error) {
				assert.Equal(t, 2024, year)
				return []services.MonthlyRevenue{{Month: 3, TotalRevenue: 500, Count: 2}}, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-month", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-month?year=2024", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	revenue := decodeBody(t, rr)["revenue"].([]any)
	assert.EqualValues(t, 3, revenue[0].(map[string]any)["id"])
}

func TestRevenueByProduct(t *testing.T) {
	h := NewOrderHandlers(OrderHandlersDeps{
		Revenue: &stubRevenueService{
			byProductFn: func(context.Context) ([]services.ProductRevenue, error) {
				return []services.ProductRevenue{{ProductID: "p1", Name: "Runner", TotalRevenue: 1_000_000, TotalQuantity: 2}}, nil
			},
		},
	})

	rr := serveOrders(h, adminIdentity, httptest.NewRequest(http.MethodGet, "/api/order/revenue-by-product", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	entry := decodeBody(t, rr)["revenue"].([]any)[0].(map[string]any)
	assert.Equal(t, "Runner", entry["name"])
	assert.EqualValues(t, 2, entry["totalQuantity"])
}
