package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shoestore/api/internal/platform/auth"
	"github.com/shoestore/api/internal/services"
)

const maxCartBodySize = 4 * 1024

// CartHandlers exposes the authenticated basket that feeds order placement.
type CartHandlers struct {
	authn  *auth.Authenticator
	carts  services.CartService
	errors errorWriter
}

// NewCartHandlers constructs handlers enforcing authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService, exposeErrorDetails bool) *CartHandlers {
	return &CartHandlers{
		authn:  authn,
		carts:  carts,
		errors: errorWriter{exposeDetails: exposeErrorDetails},
	}
}

// Routes wires the /api/cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Post("/", h.addItem)
	r.Put("/", h.updateItem)
	r.Delete("/", h.clearCart)
	r.Delete("/{productID}/{size}", h.removeItem)
}

// cartLineRequest accepts size as a number or numeric string; storefront forms send both.
type cartLineRequest struct {
	ProductID string      `json:"productId"`
	Size      flexibleInt `json:"size"`
	Quantity  flexibleInt `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UserID)
	if err != nil {
		h.errors.write(ctx, w, err, "Error fetching cart")
		return
	}
	writeCart(w, cart, "")
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, false)
}

// updateItem sets the line quantity; zero removes the line.
func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, true)
}

func (h *CartHandlers) mutateLine(w http.ResponseWriter, r *http.Request, replace bool) {
	ctx := r.Context()
	if h.carts == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cartLineRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.ProductID) == "" || !req.Size.set || !req.Quantity.set {
		writeBadRequest(ctx, w, "Please provide product ID, quantity, and size")
		return
	}

	cmd := services.CartLineCommand{
		UserID:    identity.UserID,
		ProductID: strings.TrimSpace(req.ProductID),
		Size:      req.Size.value,
		Quantity:  req.Quantity.value,
	}
	var (
		cart services.Cart
		err  error
	)
	if replace {
		cart, err = h.carts.UpdateItem(ctx, cmd)
	} else {
		cart, err = h.carts.AddItem(ctx, cmd)
	}
	if err != nil {
		h.errors.write(ctx, w, err, "Error updating cart")
		return
	}
	message := "Item added to cart"
	if replace {
		message = "Cart updated"
	}
	writeCart(w, cart, message)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	size, err := strconv.Atoi(chi.URLParam(r, "size"))
	if err != nil || size <= 0 {
		writeBadRequest(ctx, w, "size must be a positive integer")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, identity.UserID, strings.TrimSpace(chi.URLParam(r, "productID")), size)
	if err != nil {
		h.errors.write(ctx, w, err, "Error removing item from cart")
		return
	}
	writeCart(w, cart, "Item removed from cart")
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.Clear(ctx, identity.UserID)
	if err != nil {
		h.errors.write(ctx, w, err, "Error clearing cart")
		return
	}
	writeCart(w, cart, "Cart cleared")
}

func writeCart(w http.ResponseWriter, cart services.Cart, message string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, cartResponse{
		Success: true,
		Message: message,
		Cart:    buildCartPayload(cart),
	})
}

type flexibleInt struct {
	value int
	set   bool
}

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	f.value, f.set = n, true
	return nil
}
