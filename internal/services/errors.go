package services

import (
	"errors"
	"fmt"

	"github.com/shoestore/api/internal/payments"
	"github.com/shoestore/api/internal/repositories"
)

var (
	// ErrInvalidInput signals the caller provided invalid data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCart is returned when placement finds no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductUnavailable indicates a cart line references a product that no longer exists.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrSizeUnavailable indicates the product does not carry the requested size.
	ErrSizeUnavailable = errors.New("size unavailable")
	// ErrInsufficientStock indicates a line quantity exceeds the size's stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnauthorized is returned when the caller does not own the order.
	ErrUnauthorized = errors.New("not authorized for this order")
	// ErrForbidden is returned when the operation is disabled or requires a role the caller lacks.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatus is returned for statuses outside the accepted set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotDelivered is returned when a return is requested before delivery.
	ErrNotDelivered = errors.New("order not delivered")
	// ErrAlreadyRequested is returned when a return request already exists.
	ErrAlreadyRequested = errors.New("return already requested")
	// ErrAlreadyProcessed is returned when the return request is no longer pending.
	ErrAlreadyProcessed = errors.New("return already processed")
	// ErrNoReturnRequest is returned when processing an order without a return request.
	ErrNoReturnRequest = errors.New("no return request")
	// ErrConflict indicates a concurrent write won.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("service unavailable")

	// ErrProviderUnavailable and ErrUnsupportedProvider are the payments sentinels so
	// errors.Is works across both packages.
	ErrProviderUnavailable = payments.ErrProviderUnavailable
	ErrUnsupportedProvider = payments.ErrUnsupportedProvider
	ErrProviderRejected    = payments.ErrProviderRejected
)

// OrderError identifies the cart line that blocked placement. Kind is one of
// ErrProductUnavailable, ErrSizeUnavailable or ErrInsufficientStock.
type OrderError struct {
	Kind      error
	ProductID string
	Name      string
	Size      int
}

func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	switch e.Kind {
	case ErrSizeUnavailable:
		return fmt.Sprintf("Size %d is not available for %s", e.Size, name)
	case ErrInsufficientStock:
		return fmt.Sprintf("Not enough stock for %s in size %d", name, e.Size)
	case ErrProductUnavailable:
		return fmt.Sprintf("Product %s is no longer available", name)
	default:
		return fmt.Sprintf("%v: product %s size %d", e.Kind, name, e.Size)
	}
}

func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func stockOrderError(err *repositories.StockError, names map[string]string) *OrderError {
	kind := ErrInsufficientStock
	switch err.Code {
	case repositories.StockErrorProductNotFound:
		kind = ErrProductUnavailable
	case repositories.StockErrorSizeNotFound:
		kind = ErrSizeUnavailable
	}
	return &OrderError{Kind: kind, ProductID: err.ProductID, Name: names[err.ProductID], Size: err.Size}
}

// translateRepoError maps persistence failures onto service sentinels. Errors that
// already carry a service sentinel pass through unchanged.
func translateRepoError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		return stockOrderError(stockErr, nil)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
