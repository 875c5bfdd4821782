package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/cart"
)

type validateCouponRequest struct {
	Code string `json:"code"`
}

type validateCouponResponse struct {
	Valid          bool            `json:"valid"`
	Message        string          `json:"message"`
	Code           string          `json:"code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// validateCoupon checks a code against the user's current cart subtotal. The
// amount is always derived server-side; a client-supplied total is never
// trusted. Rejections are verdicts, not errors, so the response is 200 either
// way.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	uid := userID(r.Context())
	items, err := h.carts.Get(r.Context(), uid)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	verdict, err := h.coupons.Validate(r.Context(), req.Code, cart.Subtotal(items), uid)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := validateCouponResponse{
		Valid:          verdict.Valid,
		Message:        verdict.Message,
		DiscountAmount: verdict.DiscountAmount,
	}
	if verdict.Coupon != nil {
		resp.Code = verdict.Coupon.Code
	}
	writeJSON(w, http.StatusOK, resp)
}
