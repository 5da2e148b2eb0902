package http

import (
	"net/http"
	"strings"

	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/pricing"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog   catalog.Catalog
	localizer *catalog.Localizer
}

func NewProductHandler(cat catalog.Catalog, localizer *catalog.Localizer) *ProductHandler {
	return &ProductHandler{catalog: cat, localizer: localizer}
}

type ProductResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Currency    string   `json:"currency"`
	Image       string   `json:"image"`
	Images      []string `json:"images,omitempty"`
	CategoryKey string   `json:"categoryKey"`
	Slug        string   `json:"slug"`
	Colors      []string `json:"colors"`
	Sizes       []string `json:"sizes,omitempty"`
	Stock       int      `json:"stock"`
	MaxQuantity int      `json:"maxQuantity"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// allCategories disables the category filter, as an absent parameter does.
const allCategories = "all"

// GET /api/v1/products?category=<categoryKey>&q=<text>
//
// q matches the localized product name, case-insensitively.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	messages := h.localizer.For(localeFrom(r))
	category := r.URL.Query().Get("category")
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	products := make([]ProductResponse, 0)
	for _, p := range h.catalog.Products() {
		if category != "" && category != allCategories && p.CategoryKey != category {
			continue
		}
		resp := toProductResponse(p, messages)
		if query != "" && !strings.Contains(strings.ToLower(resp.Name), query) {
			continue
		}
		products = append(products, resp)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.Product(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p, h.localizer.For(localeFrom(r))))
}

// GET /api/v1/products/slug/{slug}
func (h *ProductHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.ProductBySlug(chi.URLParam(r, "slug"))
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p, h.localizer.For(localeFrom(r))))
}

func toProductResponse(p domain.Product, messages *catalog.Messages) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        messages.Translate(p.NameKey),
		Description: messages.Translate(p.DescriptionKey),
		Price:       pricing.Display(p.Price),
		Currency:    p.Currency,
		Image:       p.Image,
		Images:      p.Images,
		CategoryKey: p.CategoryKey,
		Slug:        p.Slug,
		Colors:      p.Colors,
		Sizes:       p.Sizes,
		Stock:       p.Stock,
		MaxQuantity: p.MaxQuantity(),
	}
}
