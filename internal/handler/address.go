package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/threadline/storefront/internal/domain/address"
)

type addressRequest struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.addresses.ListByUser(r.Context(), userID(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if addrs == nil {
		addrs = []address.Address{}
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := address.Address{
		ID:        uuid.New().String(),
		UserID:    userID(r.Context()),
		Type:      req.Type,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		IsDefault: req.IsDefault,
	}
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.addresses.Create(r.Context(), &a); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := address.Address{
		ID:      chi.URLParam(r, "id"),
		UserID:  userID(r.Context()),
		Type:    req.Type,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Pincode: req.Pincode,
	}
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.addresses.Update(r.Context(), &a); err != nil {
		if errors.Is(err, address.ErrNotFound) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	err := h.addresses.Delete(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	err := h.addresses.SetDefault(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
