package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/pricing"
	"github.com/axel-fz/echostore/internal/session"
	"go.uber.org/zap"
)

type CartHandler struct {
	registry  *session.Registry
	catalog   catalog.Catalog
	localizer *catalog.Localizer
	logger    *zap.Logger
	timeout   time.Duration
}

func NewCartHandler(registry *session.Registry, cat catalog.Catalog, localizer *catalog.Localizer, logger *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		registry:  registry,
		catalog:   cat,
		localizer: localizer,
		logger:    logger,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID     string  `json:"productId"`
	SelectedColor *string `json:"selectedColor"`
	SelectedSize  *string `json:"selectedSize"`
	Quantity      *int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	ProductID     string  `json:"productId"`
	SelectedColor *string `json:"selectedColor"`
	SelectedSize  *string `json:"selectedSize"`
	Quantity      *int    `json:"quantity"`
}

type RemoveItemRequestDTO struct {
	ProductID     string  `json:"productId"`
	SelectedColor *string `json:"selectedColor"`
	SelectedSize  *string `json:"selectedSize"`
}

type CartItemDTO struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Image         string  `json:"image"`
	SelectedColor *string `json:"selectedColor,omitempty"`
	SelectedSize  *string `json:"selectedSize,omitempty"`
	Quantity      int     `json:"quantity"`
	MaxQuantity   int     `json:"maxQuantity"`
	UnitPrice     string  `json:"unitPrice"`
	Subtotal      string  `json:"subtotal"`
	Currency      string  `json:"currency"`
}

type CartResponseDTO struct {
	Items          []CartItemDTO `json:"items"`
	TotalItemCount int           `json:"totalItemCount"`
	TotalPrice     string        `json:"totalPrice"`
	Badge          string        `json:"badge"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(sess.Store().Cart(), h.localizer.For(localeFrom(r))))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	product, ok := h.product(w, req.ProductID)
	if !ok {
		return
	}
	if !validVariant(w, product, req.SelectedColor, req.SelectedSize) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().AddItem(product, req.SelectedColor, req.SelectedSize, quantity)

	respondJSON(w, http.StatusCreated, toCartResponse(sess.Store().Cart(), h.localizer.For(localeFrom(r))))
}

// PATCH /api/v1/cart/items
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	if !h.knownVariant(w, req.ProductID, req.SelectedColor, req.SelectedSize) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().UpdateQuantity(req.ProductID, *req.Quantity, req.SelectedColor, req.SelectedSize)

	respondJSON(w, http.StatusOK, toCartResponse(sess.Store().Cart(), h.localizer.For(localeFrom(r))))
}

// DELETE /api/v1/cart/items
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req RemoveItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if !h.knownVariant(w, req.ProductID, req.SelectedColor, req.SelectedSize) {
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().RemoveItem(req.ProductID, req.SelectedColor, req.SelectedSize)

	respondJSON(w, http.StatusOK, toCartResponse(sess.Store().Cart(), h.localizer.For(localeFrom(r))))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().Clear()

	respondJSON(w, http.StatusOK, toCartResponse(sess.Store().Cart(), h.localizer.For(localeFrom(r))))
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	return resolveSession(ctx, w, h.registry, h.logger)
}

func (h *CartHandler) product(w http.ResponseWriter, productID string) (domain.Product, bool) {
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return domain.Product{}, false
	}
	product, ok := h.catalog.Product(productID)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return domain.Product{}, false
	}
	return product, true
}

func resolveSession(ctx context.Context, w http.ResponseWriter, registry *session.Registry, logger *zap.Logger) (*session.Session, bool) {
	sess, err := registry.Get(ctx, getSessionID(ctx))
	switch {
	case err == nil:
		return sess, true
	case errors.Is(err, session.ErrMissingSessionID):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session id")
	case errors.Is(err, session.ErrRegistryClosed):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "shutting down")
	default:
		logger.Error("session lookup failed", zap.String("request_id", getRequestID(ctx)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
	return nil, false
}

func toCartResponse(cart domain.Cart, translator *catalog.Messages) CartResponseDTO {
	totals := pricing.Compute(cart)
	items := make([]CartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		p := item.Product
		items = append(items, CartItemDTO{
			ProductID:     p.ID,
			Name:          translator.Translate(p.NameKey),
			Slug:          p.Slug,
			Image:         p.Image,
			SelectedColor: item.SelectedColor,
			SelectedSize:  item.SelectedSize,
			Quantity:      item.Quantity,
			MaxQuantity:   p.MaxQuantity(),
			UnitPrice:     pricing.Display(p.Price),
			Subtotal:      pricing.Display(pricing.Subtotal(item)),
			Currency:      p.Currency,
		})
	}
	return CartResponseDTO{
		Items:          items,
		TotalItemCount: totals.ItemCount,
		TotalPrice:     pricing.Display(totals.Total),
		Badge:          pricing.BadgeLabel(totals.ItemCount),
	}
}

// knownVariant checks color and size of a catalog product. Unknown products
// pass: the store treats them as a no-op.
func (h *CartHandler) knownVariant(w http.ResponseWriter, productID string, color, size *string) bool {
	product, ok := h.catalog.Product(productID)
	if !ok {
		return true
	}
	return validVariant(w, product, color, size)
}

func validVariant(w http.ResponseWriter, product domain.Product, color, size *string) bool {
	if color != nil && !slices.Contains(product.Colors, *color) {
		respondError(w, http.StatusBadRequest, "invalid_color", "color not offered for this product")
		return false
	}
	if size != nil && !slices.Contains(product.Sizes, *size) {
		respondError(w, http.StatusBadRequest, "invalid_size", "size not offered for this product")
		return false
	}
	return true
}
