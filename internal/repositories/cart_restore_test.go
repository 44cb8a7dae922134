package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/shoestore/api/internal/domain"
)

func TestRestoreCartLinesMergesMatchingSizes(t *testing.T) {
	cart := domain.Cart{UserID: "u1", Items: []domain.CartItem{{ProductID: "p1", Size: 42, Quantity: 1, Price: 500_000}}}

	RestoreCartLines(&cart, []domain.OrderItem{
		{ProductID: "p1", Size: 42, Quantity: 2, Price: 500_000},
		{ProductID: "p1", Size: 43, Quantity: 1, Price: 500_000},
	})

	assert.Equal(t, []domain.CartItem{
		{ProductID: "p1", Size: 42, Quantity: 3, Price: 500_000},
		{ProductID: "p1", Size: 43, Quantity: 1, Price: 500_000},
	}, cart.Items)
	assert.EqualValues(t, 2_000_000, cart.TotalAmount)
}
