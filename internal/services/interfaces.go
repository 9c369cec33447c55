package services

import (
	"context"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	ShippingInfo       = domain.ShippingInfo
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	SystemHealthReport = domain.SystemHealthReport
)

// CartService owns the shopping cart line-item store. Mutations return the
// updated cart so handlers can render derived totals without re-reading.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID string, productID string) (Cart, error)
	UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) (Cart, error)
	ClearCart(ctx context.Context, userID string) (Cart, error)
	ReplaceWithSingleItem(ctx context.Context, cmd ReplaceItemCommand) (Cart, error)
	SetShippingInfo(ctx context.Context, userID string, info ShippingInfo) (Cart, error)
}

// AddItemCommand carries the product snapshot added to the cart. Quantity is
// always 1 per call; repeat calls on the same product increment the line.
type AddItemCommand struct {
	UserID string
	Line   CartLine
}

// ReplaceItemCommand discards the cart content in favour of a single line,
// used by buy-now flows that bypass the shared cart.
type ReplaceItemCommand struct {
	UserID   string
	Line     CartLine
	Quantity int
}

// CartTotals bundles the derived aggregates of a cart. Values are recomputed
// from the live lines on every call, never cached.
type CartTotals struct {
	Subtotal     int64
	ShippingCost int64
	Total        int64
	ItemsCount   int
}

// CheckoutService sequences the two-phase transition from cart to order:
// CreateOrder writes the order and keeps the cart intact; FinishCheckout
// clears the cart once the confirmation view has safely located the order.
type CheckoutService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	FinishCheckout(ctx context.Context, cmd FinishCheckoutCommand) (Cart, error)
}

// CreateOrderCommand captures the checkout submission inputs.
type CreateOrderCommand struct {
	UserID        string
	PaymentMethod PaymentMethod
	Metadata      map[string]any
}

// FinishCheckoutCommand acknowledges that the confirmation view rendered the
// order identified by OrderID.
type FinishCheckoutCommand struct {
	UserID  string
	OrderID string
}

// OrderService exposes the order read side plus the administrative status
// transition used by the back office.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListByPhone(ctx context.Context, query OrderPhoneQuery) ([]Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
}

// OrderPhoneQuery narrows order listings to a customer phone number, newest first.
type OrderPhoneQuery struct {
	Phone      string
	Pagination Pagination
	StartAfter []any
}

// UpdateOrderStatusCommand mutates the status of an existing order.
type UpdateOrderStatusCommand struct {
	OrderID  string
	Status   OrderStatus
	ActorID  string
	Metadata map[string]any
}

// OrderEvent describes a lifecycle notification emitted after order mutations.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]string
}

// OrderEventPublisher delivers order events to downstream consumers. Publish
// failures are logged and never fail the originating operation.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// SystemService surfaces operational health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
