package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shoestore/api/internal/repositories"
)

const maxCartLineQuantity = 99

// CartServiceDeps wires the repositories the cart needs to validate lines.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Logger   func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &cartService{carts: deps.Carts, products: deps.Products, logger: logger}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, translateRepoError(err, nil)
	}
	return cart, nil
}

// AddItem merges the line into an existing one for the same product and size.
// Stock is checked against the merged quantity.
func (s *cartService) AddItem(ctx context.Context, cmd CartLineCommand) (Cart, error) {
	cmd, err := normalizeCartLine(cmd)
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	index := findCartLine(cart.Items, cmd.ProductID, cmd.Size)
	quantity := cmd.Quantity
	if index >= 0 {
		quantity += cart.Items[index].Quantity
	}
	product, err := s.checkAvailability(ctx, cmd.ProductID, cmd.Size, quantity)
	if err != nil {
		return Cart{}, err
	}

	line := CartItem{ProductID: product.ID, Size: cmd.Size, Quantity: quantity, Price: product.Price}
	if index >= 0 {
		cart.Items[index] = line
	} else {
		cart.Items = append(cart.Items, line)
	}
	return s.save(ctx, cart, "cart.item.added", cmd)
}

// UpdateItem sets the line quantity. Zero removes the line.
func (s *cartService) UpdateItem(ctx context.Context, cmd CartLineCommand) (Cart, error) {
	cmd, err := normalizeCartLine(cmd)
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if cmd.Quantity == 0 {
		return s.RemoveItem(ctx, cmd.UserID, cmd.ProductID, cmd.Size)
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}
	index := findCartLine(cart.Items, cmd.ProductID, cmd.Size)
	if index < 0 {
		return Cart{}, fmt.Errorf("%w: item not in cart", ErrInvalidInput)
	}
	product, err := s.checkAvailability(ctx, cmd.ProductID, cmd.Size, cmd.Quantity)
	if err != nil {
		return Cart{}, err
	}
	cart.Items[index].Quantity = cmd.Quantity
	cart.Items[index].Price = product.Price
	return s.save(ctx, cart, "cart.item.updated", cmd)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID string, size int) (Cart, error) {
	cmd, err := normalizeCartLine(CartLineCommand{UserID: userID, ProductID: productID, Size: size})
	if err != nil {
		return Cart{}, err
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}
	index := findCartLine(cart.Items, cmd.ProductID, cmd.Size)
	if index < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:index], cart.Items[index+1:]...)
	return s.save(ctx, cart, "cart.item.removed", cmd)
}

func (s *cartService) Clear(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	saved, err := s.carts.SaveCart(ctx, Cart{UserID: userID})
	if err != nil {
		return Cart{}, translateRepoError(err, nil)
	}
	s.logger(ctx, "cart.cleared", map[string]any{"userId": userID})
	return saved, nil
}

func (s *cartService) checkAvailability(ctx context.Context, productID string, size, quantity int) (Product, error) {
	if quantity > maxCartLineQuantity {
		return Product{}, fmt.Errorf("%w: quantity exceeds %d", ErrInvalidInput, maxCartLineQuantity)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, &OrderError{Kind: ErrProductUnavailable, ProductID: productID, Name: productID}
		}
		return Product{}, translateRepoError(err, nil)
	}
	idx := product.FindSize(size)
	if idx < 0 {
		return Product{}, &OrderError{Kind: ErrSizeUnavailable, ProductID: productID, Name: product.Name, Size: size}
	}
	if product.Sizes[idx].Stock < quantity {
		return Product{}, &OrderError{Kind: ErrInsufficientStock, ProductID: productID, Name: product.Name, Size: size}
	}
	return product, nil
}

func (s *cartService) save(ctx context.Context, cart Cart, event string, cmd CartLineCommand) (Cart, error) {
	cart.Recalculate()
	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		return Cart{}, translateRepoError(err, nil)
	}
	s.logger(ctx, event, map[string]any{
		"userId":    cmd.UserID,
		"productId": cmd.ProductID,
		"size":      cmd.Size,
		"quantity":  cmd.Quantity,
	})
	return saved, nil
}

func normalizeCartLine(cmd CartLineCommand) (CartLineCommand, error) {
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	cmd.ProductID = strings.TrimSpace(cmd.ProductID)
	switch {
	case cmd.UserID == "":
		return cmd, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case cmd.ProductID == "":
		return cmd, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	case cmd.Size <= 0:
		return cmd, fmt.Errorf("%w: size must be positive", ErrInvalidInput)
	}
	return cmd, nil
}

func findCartLine(items []CartItem, productID string, size int) int {
	for i, item := range items {
		if item.ProductID == productID && item.Size == size {
			return i
		}
	}
	return -1
}
