package repositories

import (
	"fmt"

	domain "github.com/shoestore/api/internal/domain"
)

// StockErrorCode enumerates why a placement could not take stock for a line.
type StockErrorCode string

const (
	// StockErrorProductNotFound indicates the cart references a product that no longer exists.
	StockErrorProductNotFound StockErrorCode = "stock_product_not_found"
	// StockErrorSizeNotFound indicates the product does not carry the requested size.
	StockErrorSizeNotFound StockErrorCode = "stock_size_not_found"
	// StockErrorInsufficient indicates the requested quantity exceeds the size's stock.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
)

// StockError reports the offending line of a failed placement.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ProductID string
	Size      int
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: product %s size %d", e.Code, e.ProductID, e.Size)
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error for one order line.
func NewStockError(code StockErrorCode, productID string, size int) *StockError {
	return &StockError{Code: code, ProductID: productID, Size: size}
}

// TakeStock decrements the size entry for one line on an in-memory product copy. Callers
// persist the mutated product afterwards; the check is repeated by every backend inside its
// transaction so concurrent placements cannot oversell.
func TakeStock(product *domain.Product, size, quantity int) error {
	idx := product.FindSize(size)
	if idx < 0 {
		return NewStockError(StockErrorSizeNotFound, product.ID, size)
	}
	if product.Sizes[idx].Stock < quantity {
		return NewStockError(StockErrorInsufficient, product.ID, size)
	}
	product.Sizes[idx].Stock -= quantity
	return nil
}

// ReturnStock adds quantity back to a size entry. Unknown sizes are ignored since the
// catalogue may have dropped them after the order was placed.
func ReturnStock(product *domain.Product, size, quantity int) {
	if idx := product.FindSize(size); idx >= 0 {
		product.Sizes[idx].Stock += quantity
	}
}

// CloneProduct returns a copy whose size slice can be mutated independently.
func CloneProduct(product domain.Product) domain.Product {
	dup := product
	dup.Images = append([]string(nil), product.Images...)
	dup.Sizes = append([]domain.SizeStock(nil), product.Sizes...)
	return dup
}
