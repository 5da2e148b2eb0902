// Package pricing computes cart subtotals, totals and item counts.
// Amounts stay exact until Display rounds them for presentation.
package pricing

import (
	"strconv"

	"github.com/axel-fz/echostore/internal/domain"
	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits shown for an amount.
const MinorUnits = 2

// BadgeLimit is the largest count the header badge prints verbatim.
const BadgeLimit = 99

type Totals struct {
	ItemCount int
	Total     decimal.Decimal
}

func Subtotal(item domain.CartItem) decimal.Decimal {
	return item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func Total(cart domain.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(Subtotal(item))
	}
	return total
}

func ItemCount(cart domain.Cart) int {
	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count
}

func Compute(cart domain.Cart) Totals {
	return Totals{
		ItemCount: ItemCount(cart),
		Total:     Total(cart),
	}
}

// Display rounds half away from zero to MinorUnits digits.
func Display(amount decimal.Decimal) string {
	return amount.StringFixed(MinorUnits)
}

// BadgeLabel renders the cart count the way the header shows it.
func BadgeLabel(count int) string {
	if count > BadgeLimit {
		return strconv.Itoa(BadgeLimit) + "+"
	}
	return strconv.Itoa(count)
}
