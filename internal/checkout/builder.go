package checkout

import (
	"encoding/json"
	"strings"

	"github.com/axel-fz/echostore/internal/domain"
	"github.com/shopspring/decimal"
)

// NameSeparator joins the product name with its selected color and size.
const NameSeparator = " • "

// Translator resolves a translation key to display text.
type Translator interface {
	Translate(key string) string
}

type TranslatorFunc func(key string) string

func (f TranslatorFunc) Translate(key string) string { return f(key) }

// ProductSnapshot is the product as sent to the provider, with resolved text.
type ProductSnapshot struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	NameKey        string      `json:"nameKey"`
	DescriptionKey string      `json:"descriptionKey"`
	Price          json.Number `json:"price"`
	Currency       string      `json:"currency"`
	Image          string      `json:"image"`
	Images         []string    `json:"images,omitempty"`
	CategoryKey    string      `json:"categoryKey"`
	Slug           string      `json:"slug"`
	Colors         []string    `json:"colors"`
	Sizes          []string    `json:"sizes,omitempty"`
	Stock          int         `json:"stock"`
}

type LineItem struct {
	Product       ProductSnapshot `json:"product"`
	SelectedColor *string         `json:"selectedColor,omitempty"`
	SelectedSize  *string         `json:"selectedSize,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     json.Number     `json:"unitPrice"`
	Currency      string          `json:"currency"`
}

// BuildLineItems turns the cart into the provider payload, in cart order.
func BuildLineItems(cart domain.Cart, translator Translator) ([]LineItem, error) {
	if cart.IsEmpty() {
		return nil, &ValidationError{Field: "items", Reason: "empty", Err: ErrEmptyCart}
	}

	items := make([]LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		p := item.Product
		price := json.Number(p.Price.String())
		colors := p.Colors
		if colors == nil {
			colors = []string{}
		}
		items = append(items, LineItem{
			Product: ProductSnapshot{
				ID:             p.ID,
				Name:           DisplayName(translator.Translate(p.NameKey), item.SelectedColor, item.SelectedSize),
				Description:    translator.Translate(p.DescriptionKey),
				NameKey:        p.NameKey,
				DescriptionKey: p.DescriptionKey,
				Price:          price,
				Currency:       p.Currency,
				Image:          p.Image,
				Images:         p.Images,
				CategoryKey:    p.CategoryKey,
				Slug:           p.Slug,
				Colors:         colors,
				Sizes:          p.Sizes,
				Stock:          p.Stock,
			},
			SelectedColor: item.SelectedColor,
			SelectedSize:  item.SelectedSize,
			Quantity:      item.Quantity,
			UnitPrice:     price,
			Currency:      p.Currency,
		})
	}

	if err := ValidateLineItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// DisplayName appends the set attributes to name, color first.
func DisplayName(name string, color, size *string) string {
	var b strings.Builder
	b.WriteString(name)
	if color != nil {
		b.WriteString(NameSeparator)
		b.WriteString(*color)
	}
	if size != nil {
		b.WriteString(NameSeparator)
		b.WriteString(*size)
	}
	return b.String()
}

// ValidateLineItems checks the required fields of every record.
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "empty", Err: ErrEmptyCart}
	}
	for _, item := range items {
		switch {
		case item.Product.ID == "":
			return &ValidationError{Field: "product.id", Reason: "required"}
		case strings.TrimSpace(item.Product.Name) == "":
			return &ValidationError{Field: "product.name", Reason: "required"}
		case item.Currency == "":
			return &ValidationError{Field: "currency", Reason: "required"}
		case item.Quantity < 1:
			return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
		}
		price, err := decimal.NewFromString(item.UnitPrice.String())
		if err != nil || price.IsNegative() {
			return &ValidationError{Field: "unitPrice", Reason: "must be a non-negative amount"}
		}
	}
	return nil
}
