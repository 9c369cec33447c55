package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beautydiscount/api/internal/platform/config"
	"github.com/beautydiscount/api/internal/repositories"
	"github.com/beautydiscount/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart     services.CartService
	Checkout services.CheckoutService
	Orders   services.OrderService
	System   services.SystemService
}

// Options carries cross-cutting collaborators that are not repositories.
type Options struct {
	Events services.OrderEventPublisher
	Build  services.BuildInfo
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts Options) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, opts)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, opts Options) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}

	cartsRepo := reg.Carts()
	if cartsRepo != nil {
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository: cartsRepo,
			Clock:      time.Now,
			Logger:     opts.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	ordersRepo := reg.Orders()
	if ordersRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders: ordersRepo,
			Events: opts.Events,
			Clock:  time.Now,
			Logger: opts.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if cartsRepo != nil && ordersRepo != nil && reg.Counters() != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:            cartsRepo,
			Orders:           ordersRepo,
			Counters:         reg.Counters(),
			Events:           opts.Events,
			Clock:            time.Now,
			Logger:           opts.Logger,
			DeliveryLeadTime: cfg.Checkout.DeliveryLeadTime,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		build := opts.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
