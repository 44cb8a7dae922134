package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoestore/api/internal/services"
)

func TestRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "route_not_found", decodeBody(t, rr)["code"])
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "method_not_allowed", decodeBody(t, rr)["code"])
}

func TestRouterLeavesUnconfiguredGroupsUnmounted(t *testing.T) {
	router := NewRouter(WithCartRoutes(func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	}))

	for _, path := range []string{"/api/order", "/api/order/history", "/internal/reports/revenue-export"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, "route_not_found", decodeBody(t, rr)["code"], path)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouterMountsCartAndInternalMiddleware(t *testing.T) {
	carts := &stubCartService{
		getFn: func(context.Context, string) (services.Cart, error) {
			return services.Cart{UserID: "user-1"}, nil
		},
	}
	cart := NewCartHandlers(nil, carts, false)

	var internalHits int
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			internalHits++
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	router := NewRouter(
		WithMiddlewares(identityMiddleware(customerIdentity)),
		WithCartRoutes(cart.Routes),
		WithInternalRoutes(NewInternalHandlers(InternalHandlersDeps{}).Routes),
		WithInternalMiddlewares(guard),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/maintenance/idempotency-cleanup", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 1, internalHits)
}

func TestRouterRoutesOrderGroup(t *testing.T) {
	orders := NewOrderHandlers(OrderHandlersDeps{})
	router := NewRouter(
		WithMiddlewares(identityMiddleware(customerIdentity)),
		WithOrderRoutes(orders.Routes),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/order", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "order_unavailable", decodeBody(t, rr)["code"])
}

func TestRouteRegistrarAcceptsChiRouter(t *testing.T) {
	var reg RouteRegistrar = func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	}
	router := NewRouter(WithOrderRoutes(reg))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/order/ping", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
}
