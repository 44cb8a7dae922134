package repositories

import domain "github.com/shoestore/api/internal/domain"

// RestoreCartLines adds order lines back to cart. A line already in the cart for the same
// product and size keeps its position and gains the order quantity.
func RestoreCartLines(cart *domain.Cart, items []domain.OrderItem) {
	for _, item := range items {
		merged := false
		for i := range cart.Items {
			if cart.Items[i].ProductID == item.ProductID && cart.Items[i].Size == item.Size {
				cart.Items[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			cart.Items = append(cart.Items, domain.CartItem{
				ProductID: item.ProductID,
				Size:      item.Size,
				Quantity:  item.Quantity,
				Price:     item.Price,
			})
		}
	}
	cart.Recalculate()
}
