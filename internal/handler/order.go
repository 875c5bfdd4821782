package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/order"
	"github.com/threadline/storefront/internal/domain/pricing"
)

type placeOrderRequest struct {
	AddressID     string `json:"addressId"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PaymentMethod string `json:"paymentMethod"`
	CouponCode    string `json:"couponCode"`
	OrderNotes    string `json:"orderNotes"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	Status          order.Status          `json:"status"`
	Items           []order.Item          `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentStatus   string                `json:"paymentStatus"`
	Pricing         pricing.Quote         `json:"pricing"`
	CouponCode      string                `json:"couponCode,omitempty"`
	CouponDiscount  decimal.Decimal       `json:"couponDiscount"`
	OrderNotes      string                `json:"orderNotes,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Pricing:         o.Pricing,
		CouponCode:      o.CouponCode,
		CouponDiscount:  o.CouponDiscount,
		OrderNotes:      o.OrderNotes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        userID(r.Context()),
		Email:         req.Email,
		Phone:         req.Phone,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
		OrderNotes:    req.OrderNotes,
	})
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// mapOrderError translates domain errors to the API's error taxonomy:
// precondition failures are 400, business rejections 409/422, missing or
// foreign orders 404/403, everything else 500.
func (h *Handler) mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNoAddress),
		errors.Is(err, order.ErrInvalidPhone),
		errors.Is(err, order.ErrUnsupportedPayment):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, order.ErrForbidden):
		writeError(w, http.StatusForbidden, "order belongs to another user")
		return
	}

	var rejected *order.CouponRejectedError
	if errors.As(err, &rejected) {
		writeError(w, http.StatusUnprocessableEntity, rejected.Message)
		return
	}

	var short *inventory.InsufficientStockError
	if errors.As(err, &short) {
		writeError(w, http.StatusConflict, short.Error())
		return
	}

	var transition *order.InvalidTransitionError
	if errors.As(err, &transition) {
		writeError(w, http.StatusConflict, transition.Error())
		return
	}

	writeInternalError(w, r, err)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	orders, err := h.orders.ListForUser(r.Context(), userID(r.Context()), limit)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
