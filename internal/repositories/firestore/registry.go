package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/beautydiscount/api/internal/platform/firestore"
	"github.com/beautydiscount/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract consumed by the dependency container.
type Registry struct {
	provider *pfirestore.Provider
	carts    *CartRepository
	orders   *OrderRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

// NewRegistry constructs the repository registry. The health repository is
// optional; readiness reporting degrades gracefully without it.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		carts:    carts,
		orders:   orders,
		counters: counters,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Carts exposes the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders exposes the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Counters exposes the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health exposes the dependency health repository when configured.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn directly. Order writes touch a single document each, so
// cross-repository transactions are not required here; the hook exists so
// services keep a seam for stores that do need one.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
