package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/platform/pagination"
	"github.com/shoestore/api/internal/services"
)

type statusRequest struct {
	Status string `json:"status"`
}

type deleteOrdersResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

type dailyRevenuePayload struct {
	ID           string `json:"id"`
	TotalRevenue int64  `json:"totalRevenue"`
	Count        int    `json:"count"`
}

type monthlyRevenuePayload struct {
	ID           int   `json:"id"`
	TotalRevenue int64 `json:"totalRevenue"`
	Count        int   `json:"count"`
}

type productRevenuePayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TotalRevenue  int64  `json:"totalRevenue"`
	TotalQuantity int    `json:"totalQuantity"`
}

type revenueResponse[T any] struct {
	Success bool `json:"success"`
	Revenue []T  `json:"revenue"`
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeServiceUnavailable(ctx, w, "admin_order")
		return
	}
	query := r.URL.Query()
	params, err := pagination.Parse(query, pagination.Options{
		MaxLimit:   maxOrderPageSize,
		SortFields: adminOrderSortFields,
	})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	page, err := h.admin.ListOrders(ctx, services.AdminOrderQuery{
		Page:   params.Page,
		Limit:  params.Limit,
		Status: domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
		SortBy: params.SortBy,
		Order:  domain.SortOrder(params.Order),
	})
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching all orders")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeServiceUnavailable(ctx, w, "admin_order")
		return
	}
	var req statusRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeBadRequest(ctx, w, "Please provide status")
		return
	}

	order, err := h.admin.UpdateStatus(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")), domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		h.errors.write(ctx, w, err, "Error updating order status")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{
		Success: true,
		Message: "Order status updated successfully",
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) deleteAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeServiceUnavailable(ctx, w, "admin_order")
		return
	}
	deleted, err := h.admin.DeleteAll(ctx)
	if err != nil {
		h.errors.write(ctx, w, err, "Error deleting all orders")
		return
	}
	writeJSONResponse(w, http.StatusOK, deleteOrdersResponse{
		Success:      true,
		Message:      "All orders deleted successfully",
		DeletedCount: deleted,
	})
}

func (h *OrderHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		writeServiceUnavailable(ctx, w, "return")
		return
	}
	query := r.URL.Query()
	params, err := pagination.Parse(query, pagination.Options{MaxLimit: maxOrderPageSize})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	page, err := h.returns.List(ctx, services.ReturnQuery{
		Page:   params.Page,
		Limit:  params.Limit,
		Status: domain.ReturnStatus(strings.TrimSpace(query.Get("status"))),
	})
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching return requests")
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
}

func (h *OrderHandlers) processReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		writeServiceUnavailable(ctx, w, "return")
		return
	}
	var req statusRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		writeBadRequest(ctx, w, "Please provide status (approved/rejected)")
		return
	}

	order, err := h.returns.Process(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")), domain.ReturnStatus(status))
	if err != nil {
		h.errors.write(ctx, w, err, "Error processing return request")
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{
		Success: true,
		Message: "Return request " + status,
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) revenueByDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		writeServiceUnavailable(ctx, w, "revenue")
		return
	}
	query := r.URL.Query()
	rawStart, rawEnd := strings.TrimSpace(query.Get("startDate")), strings.TrimSpace(query.Get("endDate"))
	if rawStart == "" || rawEnd == "" {
		writeBadRequest(ctx, w, "Please provide start date and end date")
		return
	}
	start, err := parseReportDate(rawStart, h.location)
	if err != nil {
		writeBadRequest(ctx, w, "startDate must be YYYY-MM-DD or RFC3339")
		return
	}
	end, err := parseReportDate(rawEnd, h.location)
	if err != nil {
		writeBadRequest(ctx, w, "endDate must be YYYY-MM-DD or RFC3339")
		return
	}

	days, err := h.revenue.ByDay(ctx, start, end)
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching revenue by day")
		return
	}
	payload := make([]dailyRevenuePayload, 0, len(days))
	for _, day := range days {
		payload = append(payload, dailyRevenuePayload{ID: day.Date, TotalRevenue: day.TotalRevenue, Count: day.Count})
	}
	writeJSONResponse(w, http.StatusOK, revenueResponse[dailyRevenuePayload]{Success: true, Revenue: payload})
}

func (h *OrderHandlers) revenueByMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		writeServiceUnavailable(ctx, w, "revenue")
		return
	}
	rawYear := strings.TrimSpace(r.URL.Query().Get("year"))
	if rawYear == "" {
		writeBadRequest(ctx, w, "Please provide year")
		return
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		writeBadRequest(ctx, w, "year must be an integer")
		return
	}

	months, err := h.revenue.ByMonth(ctx, year)
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching revenue by month")
		return
	}
	payload := make([]monthlyRevenuePayload, 0, len(months))
	for _, month := range months {
		payload = append(payload, monthlyRevenuePayload{ID: month.Month, TotalRevenue: month.TotalRevenue, Count: month.Count})
	}
	writeJSONResponse(w, http.StatusOK, revenueResponse[monthlyRevenuePayload]{Success: true, Revenue: payload})
}

func (h *OrderHandlers) revenueByProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		writeServiceUnavailable(ctx, w, "revenue")
		return
	}
	products, err := h.revenue.ByProduct(ctx)
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching revenue by product")
		return
	}
	payload := make([]productRevenuePayload, 0, len(products))
	for _, p := range products {
		payload = append(payload, productRevenuePayload{
			ID:            p.ProductID,
			Name:          p.Name,
			TotalRevenue:  p.TotalRevenue,
			TotalQuantity: p.TotalQuantity,
		})
	}
	writeJSONResponse(w, http.StatusOK, revenueResponse[productRevenuePayload]{Success: true, Revenue: payload})
}

// parseReportDate accepts a calendar date in the report location or a full RFC3339 timestamp.
func parseReportDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
