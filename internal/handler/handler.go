// Package handler exposes the storefront's HTTP API. Handlers translate
// between the wire format and the domain services; all business decisions
// live in internal/domain.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline/storefront/internal/domain/address"
	"github.com/threadline/storefront/internal/domain/cart"
	"github.com/threadline/storefront/internal/domain/coupon"
	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/notification"
	"github.com/threadline/storefront/internal/domain/order"
	"github.com/threadline/storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler wires the domain services into HTTP routes.
type Handler struct {
	products      product.Repository
	carts         *cart.Service
	checker       *inventory.Checker
	coupons       coupon.Validator
	orders        *order.Service
	notifications *notification.Service
	addresses     address.Repository
	security      *Security
	imageBaseURL  string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	checker *inventory.Checker,
	coupons coupon.Validator,
	orders *order.Service,
	notifications *notification.Service,
	addresses address.Repository,
	security *Security,
) *Handler {
	return &Handler{
		products:      products,
		carts:         carts,
		checker:       checker,
		coupons:       coupons,
		orders:        orders,
		notifications: notifications,
		addresses:     addresses,
		security:      security,
		imageBaseURL:  cfg.ImageBaseURL,
	}
}

// Routes builds the API router. Customer routes are scoped by the X-User-ID
// header; admin routes require an API key.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Delete("/", h.clearCart)
				r.Post("/items", h.addCartItem)
				r.Put("/items", h.updateCartItem)
				r.Delete("/items", h.removeCartItem)
				r.Post("/check-stock", h.checkCartStock)
			})

			r.Post("/coupons/validate", h.validateCoupon)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.placeOrder)
				r.Get("/", h.listOrders)
				r.Get("/{id}", h.getOrder)
				r.Post("/{id}/cancel", h.cancelOrder)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.listNotifications)
				r.Get("/stream", h.streamUnreadCount)
				r.Post("/read-all", h.markAllNotificationsRead)
				r.Post("/{id}/read", h.markNotificationRead)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.listAddresses)
				r.Post("/", h.createAddress)
				r.Put("/{id}", h.updateAddress)
				r.Delete("/{id}", h.deleteAddress)
				r.Post("/{id}/default", h.setDefaultAddress)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.security.RequireAPIKey)
			r.Patch("/orders/{id}/status", h.adminUpdateOrderStatus)
			r.Get("/notifications", h.adminListNotifications)
			r.Post("/notifications/{id}/read", h.adminMarkNotificationRead)
		})
	})

	return r
}

type userIDKey struct{}

// userID returns the authenticated user set by requireUser.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// requireUser rejects requests without an X-User-ID header. Identity is
// established upstream (the BaaS session); this service only scopes data by
// it.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-ID")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
