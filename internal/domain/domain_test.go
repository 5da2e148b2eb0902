package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestResolveKey_AbsentDiffersFromEmpty(t *testing.T) {
	absentKey := ResolveKey("p1", nil, nil)
	emptyKey := ResolveKey("p1", ptr(""), ptr(""))

	assert.NotEqual(t, absentKey, emptyKey)
	assert.False(t, absentKey.HasColor())
	assert.False(t, absentKey.HasSize())
	assert.True(t, emptyKey.HasColor())
	assert.True(t, emptyKey.HasSize())
}

func TestResolveKey_CaseSensitive(t *testing.T) {
	assert.NotEqual(t,
		ResolveKey("p1", ptr("Black"), ptr("M")),
		ResolveKey("p1", ptr("black"), ptr("M")))
	assert.NotEqual(t,
		ResolveKey("p1", ptr("Black"), ptr("M")),
		ResolveKey("p1", ptr("Black "), ptr("M")))
}

func TestResolveKey_EqualInputsEqualKeys(t *testing.T) {
	assert.Equal(t,
		ResolveKey("p1", ptr("Black"), ptr("M")),
		ResolveKey("p1", ptr("Black"), ptr("M")))
	assert.Equal(t, ResolveKey("p2", nil, nil), ResolveKey("p2", nil, nil))
}

func TestResolveKey_ColorAndSizeDoNotSwap(t *testing.T) {
	assert.NotEqual(t,
		ResolveKey("p1", ptr("M"), nil),
		ResolveKey("p1", nil, ptr("M")))
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		ceiling  int
		want     int
	}{
		{"below one", 0, 10, 1},
		{"negative", -4, 10, 1},
		{"within", 5, 10, 5},
		{"above ceiling", 11, 10, 10},
		{"unset ceiling uses default", 150, 0, DefaultStockCeiling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.quantity, tt.ceiling))
		})
	}
}

func TestProduct_MaxQuantity(t *testing.T) {
	assert.Equal(t, 5, Product{Stock: 5}.MaxQuantity())
	assert.Equal(t, DefaultStockCeiling, Product{}.MaxQuantity())
}

func TestCart_CloneIsIndependent(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Product: Product{ID: "p1"}, SelectedColor: ptr("Black"), Quantity: 2},
	}}

	clone := cart.Clone()
	clone.Items[0].Quantity = 7
	*clone.Items[0].SelectedColor = "White"

	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "Black", *cart.Items[0].SelectedColor)
}

func TestCart_IndexOf(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Product: Product{ID: "p1"}, SelectedColor: ptr("Black"), Quantity: 1},
		{Product: Product{ID: "p1"}, SelectedColor: ptr("White"), Quantity: 1},
	}}

	assert.Equal(t, 1, cart.IndexOf(ResolveKey("p1", ptr("White"), nil)))
	assert.Equal(t, -1, cart.IndexOf(ResolveKey("p1", nil, nil)))
}

func TestCart_Snapshot(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Product: Product{ID: "p1"}, SelectedColor: ptr("Black"), SelectedSize: ptr("M"), Quantity: 2},
		{Product: Product{ID: "p2"}, Quantity: 1},
	}}

	snap := cart.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "p1", snap[0].ProductID)
	assert.Equal(t, "M", *snap[0].SelectedSize)
	assert.Nil(t, snap[1].SelectedColor)
	assert.Equal(t, 1, snap[1].Quantity)
}
