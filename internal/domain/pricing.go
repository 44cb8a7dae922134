package domain

import "github.com/shopspring/decimal"

const (
	// FreeShippingThreshold is the items subtotal (VND) above which shipping is waived.
	FreeShippingThreshold int64 = 1_000_000
	// FlatShippingFee is charged on orders at or below the free shipping threshold.
	FlatShippingFee int64 = 30_000
)

// TaxRate is the VAT rate applied to the items subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

// PricingBreakdown captures the monetary fields frozen on an order at creation.
type PricingBreakdown struct {
	Items    int64
	Shipping int64
	Tax      int64
	Total    int64
}

// PriceOrder computes shipping, tax and total from the items subtotal.
func PriceOrder(itemsPrice int64) PricingBreakdown {
	shipping := FlatShippingFee
	if itemsPrice > FreeShippingThreshold {
		shipping = 0
	}
	tax := decimal.NewFromInt(itemsPrice).Mul(TaxRate).Round(0).IntPart()
	return PricingBreakdown{
		Items:    itemsPrice,
		Shipping: shipping,
		Tax:      tax,
		Total:    itemsPrice + shipping + tax,
	}
}
