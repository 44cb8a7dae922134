package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/repositories"
)

type productRepo struct{ db *gorm.DB }

func (r productRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	products, err := loadProducts(r.db.WithContext(ctx), []string{productID})
	if err != nil {
		return domain.Product{}, wrapError("products.get", err)
	}
	product, ok := products[productID]
	if !ok {
		return domain.Product{}, wrapError("products.get", gorm.ErrRecordNotFound)
	}
	return product, nil
}

// loadProducts reads products and their sizes. Missing IDs are absent from the result.
func loadProducts(tx *gorm.DB, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []productRow
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	var sizes []productSizeRow
	if err := tx.Where("product_id IN ?", ids).Order("size ASC").Find(&sizes).Error; err != nil {
		return nil, err
	}
	byProduct := make(map[string][]productSizeRow, len(rows))
	for _, s := range sizes {
		byProduct[s.ProductID] = append(byProduct[s.ProductID], s)
	}
	for _, row := range rows {
		result[row.ID] = toProduct(row, byProduct[row.ID])
	}
	return result, nil
}

type cartRepo struct{ db *gorm.DB }

func (r cartRepo) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := loadCart(r.db.WithContext(ctx), userID)
	if err != nil {
		return domain.Cart{}, wrapError("carts.get", err)
	}
	return cart, nil
}

func (r cartRepo) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	saved := cart
	saved.Items = append([]domain.CartItem(nil), cart.Items...)
	saved.Recalculate()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", cart.UserID).Delete(&cartItemRow{}).Error; err != nil {
			return err
		}
		return writeCartRows(tx, saved)
	})
	if err != nil {
		return domain.Cart{}, wrapError("carts.save", err)
	}
	return saved, nil
}

// restoreCart rewrites the owner's cart rows with the order lines merged in.
func restoreCart(tx *gorm.DB, order domain.Order) error {
	cart, err := loadCart(tx.Clauses(clause.Locking{Strength: "UPDATE"}), order.UserID)
	if err != nil {
		return err
	}
	repositories.RestoreCartLines(&cart, order.Items)
	if err := tx.Where("user_id = ?", order.UserID).Delete(&cartItemRow{}).Error; err != nil {
		return err
	}
	return writeCartRows(tx, cart)
}

func writeCartRows(tx *gorm.DB, cart domain.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	rows := make([]cartItemRow, len(cart.Items))
	for i, item := range cart.Items {
		rows[i] = cartItemRow{
			UserID:    cart.UserID,
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Position:  i,
		}
	}
	return tx.Create(&rows).Error
}

func loadCart(tx *gorm.DB, userID string) (domain.Cart, error) {
	var rows []cartItemRow
	if err := tx.Where("user_id = ?", userID).Order("position ASC").Find(&rows).Error; err != nil {
		return domain.Cart{}, err
	}
	cart := domain.Cart{UserID: userID, Items: make([]domain.CartItem, 0, len(rows))}
	for _, row := range rows {
		cart.Items = append(cart.Items, domain.CartItem{ProductID: row.ProductID, Size: row.Size, Quantity: row.Quantity, Price: row.Price})
	}
	cart.Recalculate()
	return cart, nil
}

type userRepo struct{ db *gorm.DB }

func (r userRepo) FindByID(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", userID).Error; err != nil {
		return domain.User{}, wrapError("users.get", err)
	}
	return toUser(row), nil
}

func (r userRepo) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	result := make(map[string]domain.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var rows []userRow
	if err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, wrapError("users.getAll", err)
	}
	for _, row := range rows {
		result[row.ID] = toUser(row)
	}
	return result, nil
}
