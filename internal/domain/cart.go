package domain

// CartItem is one line of the cart.
type CartItem struct {
	Product       Product
	SelectedColor *string
	SelectedSize  *string
	Quantity      int
}

func (i CartItem) Key() VariantKey {
	return ResolveKey(i.Product.ID, i.SelectedColor, i.SelectedSize)
}

// Cart keeps items in insertion order.
type Cart struct {
	Items []CartItem
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IndexOf returns the position of the line with key, or -1.
func (c Cart) IndexOf(key VariantKey) int {
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no mutable state with c.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.SelectedColor = copyString(item.SelectedColor)
		item.SelectedSize = copyString(item.SelectedSize)
		items[i] = item
	}
	return Cart{Items: items}
}

// Snapshot returns the persisted form of the cart.
func (c Cart) Snapshot() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, SnapshotItem{
			ProductID:     item.Product.ID,
			SelectedColor: copyString(item.SelectedColor),
			SelectedSize:  copyString(item.SelectedSize),
			Quantity:      item.Quantity,
		})
	}
	return out
}

// SnapshotItem is what gets stored for a cart line. Catalog data is re-joined
// on load, so only identity and quantity are kept.
type SnapshotItem struct {
	ProductID     string  `json:"productId"`
	SelectedColor *string `json:"selectedColor,omitempty"`
	SelectedSize  *string `json:"selectedSize,omitempty"`
	Quantity      int     `json:"quantity"`
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
