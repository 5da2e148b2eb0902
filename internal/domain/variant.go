package domain

// absent marks an unset color or size. It cannot collide with any value a
// shopper can pick, including the empty string.
const absent = "\x00absent"

// VariantKey identifies a cart line. Two items are the same line if and only if
// their keys are equal.
type VariantKey struct {
	ProductID string
	Color     string
	Size      string
}

// ResolveKey derives the identity of a (product, color, size) combination.
// Attribute values are compared verbatim: "Black" and "black" are distinct.
func ResolveKey(productID string, color, size *string) VariantKey {
	return VariantKey{
		ProductID: productID,
		Color:     encode(color),
		Size:      encode(size),
	}
}

func encode(v *string) string {
	if v == nil {
		return absent
	}
	return *v
}

// HasColor reports whether the key carries a selected color.
func (k VariantKey) HasColor() bool { return k.Color != absent }

// HasSize reports whether the key carries a selected size.
func (k VariantKey) HasSize() bool { return k.Size != absent }
