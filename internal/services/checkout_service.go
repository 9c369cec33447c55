package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/platform/textutil"
	"github.com/beautydiscount/api/internal/repositories"
)

const (
	orderNumberCounterID        = "orders"
	defaultDeliveryLeadTime     = 48 * time.Hour
	eventTypeOrderCreated       = "order.created"
	eventTypeCheckoutFinished   = "checkout.finished"
	eventTypeOrderStatusChanged = "order.status.changed"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrMissingCheckoutData indicates the cart lacks items or a shipping
	// contact, so no order can be placed from it.
	ErrMissingCheckoutData = errors.New("checkout: missing checkout data")
	// ErrOrderCreationFailed indicates the order document could not be
	// persisted. The cart is left exactly as it was.
	ErrOrderCreationFailed = errors.New("checkout: order creation failed")
	// ErrCheckoutConflict indicates a concurrent modification prevented completing checkout.
	ErrCheckoutConflict = errors.New("checkout: conflict")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts            repositories.CartRepository
	Orders           repositories.OrderRepository
	Counters         repositories.CounterRepository
	Events           OrderEventPublisher
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
	IDGenerator      func() string
	DeliveryLeadTime time.Duration
}

type checkoutService struct {
	carts    repositories.CartRepository
	orders   repositories.OrderRepository
	counters repositories.CounterRepository
	events   OrderEventPublisher
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
	newID    func() string
	leadTime time.Duration
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.IDGenerator
	if newID == nil {
		entropy := ulid.Monotonic(rand.New(rand.NewSource(clock().UnixNano())), 0)
		newID = func() string {
			return "ord_" + ulid.MustNew(ulid.Timestamp(clock().UTC()), entropy).String()
		}
	}
	leadTime := deps.DeliveryLeadTime
	if leadTime <= 0 {
		leadTime = defaultDeliveryLeadTime
	}

	return &checkoutService{
		carts:    deps.Carts,
		orders:   deps.Orders,
		counters: deps.Counters,
		events:   deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:   logger,
		newID:    newID,
		leadTime: leadTime,
	}, nil
}

// CreateOrder snapshots the cart into a new order document and marks the cart
// as processing. The cart lines stay in place until FinishCheckout confirms
// the buyer saw the confirmation view; a refresh between the two calls must
// not lose the cart.
func (s *checkoutService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	paymentMethod := cmd.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentCashOnDelivery
	}
	if paymentMethod != domain.PaymentCashOnDelivery && paymentMethod != domain.PaymentCard {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, paymentMethod)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrMissingCheckoutData
		}
		return Order{}, s.translateCartError(err)
	}
	cart = normaliseCart(cart, userID)

	if err := validateCheckoutCart(cart); err != nil {
		return Order{}, err
	}

	now := s.now()
	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		s.logger(ctx, "checkout.order_number_failed", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return Order{}, ErrOrderCreationFailed
	}

	totals := ComputeCartTotals(cart)
	order := Order{
		ID:                s.newID(),
		OrderNumber:       orderNumber,
		UserID:            userID,
		Items:             snapshotOrderItems(cart.Items),
		ShippingInfo:      *cart.ShippingInfo,
		Subtotal:          totals.Subtotal,
		ShippingCost:      totals.ShippingCost,
		Total:             totals.Total,
		Status:            domain.OrderStatusPending,
		PaymentMethod:     paymentMethod,
		Metadata:          cloneAnyMap(cmd.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: now.Add(s.leadTime),
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		s.logger(ctx, "checkout.order_persist_failed", map[string]any{
			"userId":      userID,
			"orderNumber": orderNumber,
			"error":       err.Error(),
		})
		return Order{}, ErrOrderCreationFailed
	}

	// The cart flip is best effort: the order exists either way, and the
	// confirmation view looks it up by ID. A failure here only means the
	// cart keeps its lines until the buyer clears it.
	expectedUpdate := cartUpdateTime(cart)
	cart.CurrentOrderID = saved.ID
	cart.ProcessingCheckout = true
	cart.UpdatedAt = now
	if _, err := s.carts.UpsertCart(ctx, cart, expectedUpdate); err != nil {
		s.logger(ctx, "checkout.cart_flag_failed", map[string]any{
			"userId":  userID,
			"orderId": saved.ID,
			"error":   err.Error(),
		})
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          eventTypeOrderCreated,
		OrderID:       saved.ID,
		OrderNumber:   saved.OrderNumber,
		CurrentStatus: saved.Status,
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: textutil.NormalizeStringMap(map[string]string{
			"paymentMethod": string(saved.PaymentMethod),
		}),
	})

	return saved, nil
}

// FinishCheckout clears the cart once the confirmation view has located the
// order. An unknown order leaves the cart untouched so the buyer can retry.
func (s *checkoutService) FinishCheckout(ctx context.Context, cmd FinishCheckoutCommand) (Cart, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return Cart{}, ErrCheckoutUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Cart{}, fmt.Errorf("%w: order id is required", ErrCheckoutInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrOrderNotFound
		}
		return Cart{}, ErrCheckoutUnavailable
	}
	if order.UserID != "" && order.UserID != userID {
		return Cart{}, ErrOrderNotFound
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return emptyCart(userID, s.now()), nil
		}
		return Cart{}, s.translateCartError(err)
	}
	cart = normaliseCart(cart, userID)

	now := s.now()
	expectedUpdate := cartUpdateTime(cart)
	cart.Items = []CartLine{}
	cart.ProcessingCheckout = false
	cart.CurrentOrderID = ""
	cart.UpdatedAt = now

	saved, err := s.carts.UpsertCart(ctx, cart, expectedUpdate)
	if err != nil {
		return Cart{}, s.translateCartError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          eventTypeCheckoutFinished,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: order.Status,
		ActorID:       userID,
		OccurredAt:    now,
	})

	return normaliseCart(saved, userID), nil
}

// nextOrderNumber derives the human-facing number from the year and a
// monotonic sequence, e.g. BD-2026-000042.
func (s *checkoutService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BD-%04d-%06d", now.Year(), seq), nil
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) translateCartError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return ErrCheckoutConflict
	}
	return ErrCheckoutUnavailable
}

func validateCheckoutCart(cart domain.Cart) error {
	if len(cart.Items) == 0 {
		return ErrMissingCheckoutData
	}
	info := cart.ShippingInfo
	if info == nil {
		return ErrMissingCheckoutData
	}
	if strings.TrimSpace(info.Phone) == "" {
		return ErrMissingCheckoutData
	}
	if strings.TrimSpace(info.FirstName) == "" || strings.TrimSpace(info.LastName) == "" {
		return ErrMissingCheckoutData
	}
	return nil
}

func snapshotOrderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Brand:         line.Brand,
			Price:         line.Price,
			OriginalPrice: line.OriginalPrice,
			ImageURL:      line.ImageURL,
			Slug:          line.Slug,
			Quantity:      line.Quantity,
		})
	}
	return items
}

func cartUpdateTime(cart domain.Cart) *time.Time {
	if cart.UpdatedAt.IsZero() {
		return nil
	}
	ts := cart.UpdatedAt.UTC()
	return &ts
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
