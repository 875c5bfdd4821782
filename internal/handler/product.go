package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/product"
)

type productResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Sizes    []string        `json:"sizes"`
	Colors   []string        `json:"colors"`
	Images   []string        `json:"images"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		Category: p.Category,
		Sizes:    p.Sizes,
		Colors:   p.Colors,
		Images:   h.imageURLs(p.Images),
	}
}

// imageURLs prepends the configured base URL to relative image paths.
func (h *Handler) imageURLs(images []string) []string {
	if h.imageBaseURL == "" {
		return images
	}
	out := make([]string, len(images))
	for i, img := range images {
		if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
			out[i] = img
			continue
		}
		out[i] = strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(img, "/")
	}
	return out
}
