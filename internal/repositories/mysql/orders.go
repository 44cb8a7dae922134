package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

var orderSortColumns = map[string]string{
	repositories.SortCreatedAt:   "created_at",
	repositories.SortUpdatedAt:   "updated_at",
	repositories.SortTotalPrice:  "total_price",
	repositories.SortStatus:      "status",
	repositories.SortRequestedAt: "return_requested_at",
}

// callbackError keeps caller-raised failures distinguishable from database errors after the
// transaction has rolled back.
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

type orderRepo struct{ db *gorm.DB }

// PlaceOrder locks the cart rows, builds the order and takes stock with conditional updates.
// A zero-row update means another placement consumed the stock first.
func (r orderRepo) PlaceOrder(ctx context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	if req.Build == nil {
		return domain.Order{}, errors.New("order place: builder is required")
	}
	var placed domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx.Clauses(clause.Locking{Strength: "UPDATE"}), req.UserID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(cart.Items))
		for _, item := range cart.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := loadProducts(tx, ids)
		if err != nil {
			return err
		}

		order, err := req.Build(cart, products)
		if err != nil {
			return &callbackError{err: err}
		}

		for _, item := range order.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return &callbackError{err: repositories.NewStockError(repositories.StockErrorProductNotFound, item.ProductID, item.Size)}
			}
			if product.FindSize(item.Size) < 0 {
				return &callbackError{err: repositories.NewStockError(repositories.StockErrorSizeNotFound, item.ProductID, item.Size)}
			}
			res := tx.Model(&productSizeRow{}).
				Where("product_id = ? AND size = ? AND stock >= ?", item.ProductID, item.Size, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &callbackError{err: repositories.NewStockError(repositories.StockErrorInsufficient, item.ProductID, item.Size)}
			}
		}

		row, items := fromOrder(order)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", req.UserID).Delete(&cartItemRow{}).Error; err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, unwrapCallback("orders.place", err)
	}
	return placed, nil
}

func (r orderRepo) Update(ctx context.Context, req repositories.UpdateOrderRequest) (domain.Order, error) {
	if req.Mutate == nil {
		return domain.Order{}, errors.New("order update: mutator is required")
	}
	var result domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", req.OrderID).Error; err != nil {
			return err
		}
		var itemRows []orderItemRow
		if err := tx.Where("order_id = ?", row.ID).Order("line ASC").Find(&itemRows).Error; err != nil {
			return err
		}
		order := toOrder(row, itemRows)
		if err := req.Mutate(&order); err != nil {
			return &callbackError{err: err}
		}
		order.UpdatedAt = req.Now
		if order.UpdatedAt.IsZero() {
			order.UpdatedAt = time.Now().UTC()
		}

		if req.Restock {
			for _, item := range order.Items {
				err := tx.Model(&productSizeRow{}).
					Where("product_id = ? AND size = ?", item.ProductID, item.Size).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
				if err != nil {
					return err
				}
			}
		}

		if req.RestoreCart {
			if err := restoreCart(tx, order); err != nil {
				return err
			}
		}

		updated, _ := fromOrder(order)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, unwrapCallback("orders.update", err)
	}
	return result, nil
}

func (r orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	db := r.db.WithContext(ctx)
	var row orderRow
	if err := db.First(&row, "id = ?", orderID).Error; err != nil {
		return domain.Order{}, wrapError("orders.get", err)
	}
	orders, err := attachItems(db, []orderRow{row})
	if err != nil {
		return domain.Order{}, wrapError("orders.get", err)
	}
	return orders[0], nil
}

func (r orderRepo) List(ctx context.Context, query repositories.OrderListQuery) (domain.Page[domain.Order], error) {
	db := r.db.WithContext(ctx)
	filtered := db.Model(&orderRow{})
	if query.UserID != "" {
		filtered = filtered.Where("user_id = ?", query.UserID)
	}
	if query.Status != "" {
		filtered = filtered.Where("status = ?", string(query.Status))
	}
	if query.ReturnRequested {
		filtered = filtered.Where("return_requested = ?", true)
	}
	if query.ReturnStatus != "" {
		filtered = filtered.Where("return_status = ?", string(query.ReturnStatus))
	}

	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.count", err)
	}

	column, ok := orderSortColumns[query.SortBy]
	if !ok {
		column = orderSortColumns[repositories.SortCreatedAt]
	}
	paged := filtered.Session(&gorm.Session{}).Order(clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   query.SortOrder != domain.SortAsc,
	})
	if query.Offset > 0 {
		paged = paged.Offset(query.Offset)
	}
	if query.Limit > 0 {
		paged = paged.Limit(query.Limit)
	}
	var rows []orderRow
	if err := paged.Find(&rows).Error; err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.list", err)
	}
	orders, err := attachItems(db, rows)
	if err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.list", err)
	}
	return domain.Page[domain.Order]{Items: orders, TotalItems: int(total)}, nil
}

func (r orderRepo) ListPaid(ctx context.Context, query repositories.PaidOrderQuery) ([]domain.Order, error) {
	db := r.db.WithContext(ctx)
	q := db.Where("is_paid = ? AND status <> ?", true, string(domain.OrderStatusCancelled))
	if !query.From.IsZero() {
		q = q.Where("created_at >= ?", query.From)
	}
	if !query.To.IsZero() {
		q = q.Where("created_at <= ?", query.To)
	}
	var rows []orderRow
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, wrapError("orders.listPaid", err)
	}
	orders, err := attachItems(db, rows)
	if err != nil {
		return nil, wrapError("orders.listPaid", err)
	}
	return orders, nil
}

func (r orderRepo) DeleteAll(ctx context.Context) (int, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&orderItemRow{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&orderRow{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, wrapError("orders.deleteAll", err)
	}
	return int(deleted), nil
}

func attachItems(db *gorm.DB, rows []orderRow) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var items []orderItemRow
	if err := db.Where("order_id IN ?", ids).Order("order_id, line ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	byOrder := make(map[string][]orderItemRow, len(rows))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for _, row := range rows {
		orders = append(orders, toOrder(row, byOrder[row.ID]))
	}
	return orders, nil
}

func unwrapCallback(op string, err error) error {
	var cb *callbackError
	if errors.As(err, &cb) {
		var stockErr *repositories.StockError
		if errors.As(cb.err, &stockErr) && stockErr.Op == "" {
			stockErr.Op = op
		}
		return cb.err
	}
	return wrapError(op, err)
}
