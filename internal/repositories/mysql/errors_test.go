package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/shoestore/api/internal/repositories"
)

func TestWrapErrorClassifies(t *testing.T) {
	var repoErr repositories.RepositoryError

	err := wrapError("orders.get", gorm.ErrRecordNotFound)
	if assert.True(t, errors.As(err, &repoErr)) {
		assert.True(t, repoErr.IsNotFound())
	}

	err = wrapError("orders.place", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey))
	if assert.True(t, errors.As(err, &repoErr)) {
		assert.True(t, repoErr.IsConflict())
	}

	err = wrapError("orders.list", driver.ErrBadConn)
	if assert.True(t, errors.As(err, &repoErr)) {
		assert.True(t, repoErr.IsUnavailable())
	}

	assert.ErrorIs(t, wrapError("orders.list", context.Canceled), context.Canceled)
	assert.Nil(t, wrapError("noop", nil))
}

func TestUnwrapCallbackSurfacesStockErrors(t *testing.T) {
	stockErr := repositories.NewStockError(repositories.StockErrorInsufficient, "p1", 42)
	err := unwrapCallback("orders.place", fmt.Errorf("tx: %w", &callbackError{err: stockErr}))

	var got *repositories.StockError
	if assert.True(t, errors.As(err, &got)) {
		assert.Equal(t, "orders.place", got.Op)
		assert.Equal(t, "p1", got.ProductID)
	}
	_, isRepoErr := err.(*Error)
	assert.False(t, isRepoErr, "callback errors must not be reclassified")
}
