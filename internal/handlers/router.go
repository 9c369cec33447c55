package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/beautydiscount/api/internal/platform/httpx"
)

// RouteRegistrar hangs a group of routes off the given sub-router.
type RouteRegistrar func(r chi.Router)

type routerSettings struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	cart     RouteRegistrar
	checkout RouteRegistrar
	orders   RouteRegistrar
	admin    RouteRegistrar

	adminMiddlewares []func(http.Handler) http.Handler
}

// Option adjusts the router before it is built.
type Option func(*routerSettings)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter builds the chi router: health probes at the root, the versioned
// API groups below the prefix. Groups without a registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerSettings{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		mount := func(path string, registrar RouteRegistrar, name string, groupMW []func(http.Handler) http.Handler) {
			api.Route(path, func(group chi.Router) {
				for _, mw := range groupMW {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar != nil {
					registrar(group)
					return
				}
				mountPlaceholder(group, name)
			})
		}

		mount("/cart", cfg.cart, "cart", nil)
		mount("/checkout", cfg.checkout, "checkout", nil)
		mount("/orders", cfg.orders, "orders", nil)
		mount("/admin", cfg.admin, "admin", cfg.adminMiddlewares)
	})

	return r
}

// WithMiddlewares adds global middleware after the built-in chain.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerSettings) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers swaps the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerSettings) {
		cfg.health = h
	}
}

// WithCartRoutes mounts the cart endpoints.
func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerSettings) {
		cfg.cart = reg
	}
}

// WithCheckoutRoutes mounts the checkout endpoints.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerSettings) {
		cfg.checkout = reg
	}
}

// WithOrderRoutes mounts the customer order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerSettings) {
		cfg.orders = reg
	}
}

// WithAdminRoutes mounts the back-office endpoints.
func WithAdminRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerSettings) {
		cfg.admin = reg
	}
}

// WithAdminMiddlewares adds middleware scoped to the /admin group.
func WithAdminMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerSettings) {
		cfg.adminMiddlewares = append(cfg.adminMiddlewares, mw...)
	}
}

func mountPlaceholder(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
