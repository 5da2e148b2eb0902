package domain

import "github.com/shopspring/decimal"

// DefaultStockCeiling bounds quantities for products that carry no stock figure.
const DefaultStockCeiling = 99

// Product is read-only catalog data. Name and description are translation keys,
// resolved by the localization collaborator at checkout time.
type Product struct {
	ID             string
	NameKey        string
	DescriptionKey string
	Price          decimal.Decimal
	Currency       string
	Image          string
	Images         []string
	CategoryKey    string
	Slug           string
	Colors         []string
	Sizes          []string
	Stock          int
}

// MaxQuantity is the per-line quantity ceiling for the product.
func (p Product) MaxQuantity() int {
	if p.Stock > 0 {
		return p.Stock
	}
	return DefaultStockCeiling
}

// Clamp bounds quantity to [1, ceiling].
func Clamp(quantity, ceiling int) int {
	if ceiling < 1 {
		ceiling = DefaultStockCeiling
	}
	if quantity < 1 {
		return 1
	}
	if quantity > ceiling {
		return ceiling
	}
	return quantity
}
