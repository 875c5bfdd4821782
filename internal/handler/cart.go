package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/cart"
	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/product"
)

type cartResponse struct {
	Items    []cart.Item     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func cartBody(items []cart.Item) cartResponse {
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{Items: items, Subtotal: cart.Subtotal(items)}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Get(r.Context(), userID(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartBody(items))
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	key := cart.Key{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	items, err := h.carts.AddItem(r.Context(), userID(r.Context()), key, req.Quantity)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartBody(items))
}

type updateCartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := cart.Key{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	items, err := h.carts.UpdateQuantity(r.Context(), userID(r.Context()), key, req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartBody(items))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := cart.Key{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	items, err := h.carts.RemoveItem(r.Context(), userID(r.Context()), key)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartBody(items))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), userID(r.Context())); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartBody(nil))
}

// checkCartStock runs the advisory pre-flight stock check over the user's
// current cart. The checkout transaction remains authoritative.
func (h *Handler) checkCartStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Get(r.Context(), userID(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	lines := make([]inventory.Line, len(items))
	for i, item := range items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	report, err := h.checker.CheckCart(r.Context(), lines)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
