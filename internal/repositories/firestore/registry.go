package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/shoestore/api/internal/platform/firestore"
	"github.com/shoestore/api/internal/repositories"
)

// Registry wires the Firestore repositories behind a single shared provider.
type Registry struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	products *ProductRepository
	orders   *OrderRepository
	users    *UserRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository. Extra checks (Pub/Sub, Storage) join the Firestore check
// in the readiness report.
func NewRegistry(provider *pfirestore.Provider, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{Name: "firestore", Check: pingFirestore(provider)}}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		products: products,
		orders:   orders,
		users:    users,
		health:   health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error          { return r.provider.Close(ctx) }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Users() repositories.UserRepository       { return r.users }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// Provider exposes the shared client provider for stores outside the registry (idempotency).
func (r *Registry) Provider() *pfirestore.Provider { return r.provider }

func pingFirestore(provider *pfirestore.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}
		iter := client.Collection(orderCollection).Select().Limit(1).Documents(ctx)
		defer iter.Stop()
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
