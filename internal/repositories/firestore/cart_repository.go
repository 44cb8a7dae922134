package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	pfirestore "github.com/shoestore/api/internal/platform/firestore"
	"github.com/shoestore/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores one cart document per user, keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection),
	}, nil
}

// GetCart loads the user's cart. A missing document is an empty cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: uid, Items: []domain.CartItem{}}, nil
		}
		return domain.Cart{}, err
	}
	cart := doc.Data.toDomain(uid)
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.UpdateTime
	}
	return cart, nil
}

// SaveCart replaces the cart document after recomputing its total.
func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	saved := cart
	saved.UserID = uid
	saved.Items = append([]domain.CartItem(nil), cart.Items...)
	saved.Recalculate()
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now().UTC()
	}

	result, err := r.base.Set(ctx, uid, newCartDocument(saved))
	if err != nil {
		return domain.Cart{}, err
	}
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}
