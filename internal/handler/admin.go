package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline/storefront/internal/domain/order"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

// adminUpdateOrderStatus drives the fulfilment state machine. Illegal
// transitions are rejected with 409 and the machine's message.
func (h *Handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	next := order.Status(req.Status)
	if !next.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), next)
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
