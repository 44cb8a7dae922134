package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceOrder(t *testing.T) {
	cases := []struct {
		name  string
		items int64
		want  PricingBreakdown
	}{
		{name: "free shipping above threshold", items: 1_200_000, want: PricingBreakdown{Items: 1_200_000, Shipping: 0, Tax: 120_000, Total: 1_320_000}},
		{name: "flat shipping below threshold", items: 400_000, want: PricingBreakdown{Items: 400_000, Shipping: 30_000, Tax: 40_000, Total: 470_000}},
		{name: "threshold itself pays shipping", items: 1_000_000, want: PricingBreakdown{Items: 1_000_000, Shipping: 30_000, Tax: 100_000, Total: 1_130_000}},
		{name: "tax rounds half up", items: 15, want: PricingBreakdown{Items: 15, Shipping: 30_000, Tax: 2, Total: 30_017}},
		{name: "tax rounds down", items: 14, want: PricingBreakdown{Items: 14, Shipping: 30_000, Tax: 1, Total: 30_015}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PriceOrder(tc.items)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got.Items+got.Shipping+got.Tax, got.Total)
		})
	}
}

func TestCartRecalculate(t *testing.T) {
	cart := Cart{Items: []CartItem{{Price: 250_000, Quantity: 2}, {Price: 100_000, Quantity: 1}}}
	cart.Recalculate()
	assert.Equal(t, int64(600_000), cart.TotalAmount)
}

func TestProductFindSize(t *testing.T) {
	p := Product{Sizes: []SizeStock{{Size: 40, Stock: 1}, {Size: 42, Stock: 0}}}
	assert.Equal(t, 1, p.FindSize(42))
	assert.Equal(t, -1, p.FindSize(44))
}
