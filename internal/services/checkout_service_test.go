package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/repositories"
)

type fakeOrderRepository struct {
	orders    map[string]domain.Order
	insertErr error
	findErr   error
	listErr   error
	updateErr error
	inserted  []domain.Order
	listCalls []repositories.OrderListFilter
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{orders: map[string]domain.Order{}}
}

func (r *fakeOrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r.insertErr != nil {
		return domain.Order{}, r.insertErr
	}
	r.orders[order.ID] = order
	r.inserted = append(r.inserted, order)
	return order, nil
}

func (r *fakeOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if r.updateErr != nil {
		return domain.Order{}, r.updateErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, fakeRepoError{notFound: true}
	}
	order.Status = status
	order.UpdatedAt = update.UpdatedAt
	if update.ConfirmedAt != nil {
		order.ConfirmedAt = update.ConfirmedAt
	}
	if update.ShippedAt != nil {
		order.ShippedAt = update.ShippedAt
	}
	if update.DeliveredAt != nil {
		order.DeliveredAt = update.DeliveredAt
	}
	if update.CancelledAt != nil {
		order.CancelledAt = update.CancelledAt
	}
	r.orders[orderID] = order
	return order, nil
}

func (r *fakeOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r.findErr != nil {
		return domain.Order{}, r.findErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, fakeRepoError{notFound: true}
	}
	return order, nil
}

func (r *fakeOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.listCalls = append(r.listCalls, filter)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Order
	for _, order := range r.orders {
		if filter.Phone != "" && order.ShippingInfo.Phone != filter.Phone {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

var _ repositories.OrderRepository = (*fakeOrderRepository)(nil)

type fakeCounterRepository struct {
	next int64
	err  error
}

func (r *fakeCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.next += step
	return r.next, nil
}

func (r *fakeCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

var _ repositories.CounterRepository = (*fakeCounterRepository)(nil)

type fakeEventPublisher struct {
	events []OrderEvent
	err    error
}

func (p *fakeEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	p.events = append(p.events, event)
	if p.err != nil {
		return "", p.err
	}
	return "msg-1", nil
}

var _ OrderEventPublisher = (*fakeEventPublisher)(nil)

func readyCart(userID string) domain.Cart {
	return domain.Cart{
		ID:     userID,
		UserID: userID,
		Items: []domain.CartLine{
			{ProductID: "prod-1", Name: "Serum", Price: 150, Quantity: 2},
			{ProductID: "prod-2", Name: "Creme", Price: 100, Quantity: 1},
		},
		ShippingInfo: &domain.ShippingInfo{
			FirstName: "Amina", LastName: "Benali", Phone: "0612345678",
			Address: "12 rue des Fleurs", City: "Rabat", Region: "Rabat-Salé-Kénitra",
		},
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestCheckoutService(t *testing.T, carts repositories.CartRepository, orders repositories.OrderRepository, counters repositories.CounterRepository, events OrderEventPublisher, now time.Time) CheckoutService {
	t.Helper()
	var seq int
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:    carts,
		Orders:   orders,
		Counters: counters,
		Events:   events,
		Clock:    func() time.Time { return now },
		IDGenerator: func() string {
			seq++
			return "ord_test" + string(rune('0'+seq))
		},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return svc
}

func TestCheckoutCreateOrderSnapshotsCartAndKeepsLines(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	orders := newFakeOrderRepository()
	counters := &fakeCounterRepository{}
	events := &fakeEventPublisher{}
	svc := newTestCheckoutService(t, carts, orders, counters, events, now)

	order, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.OrderNumber != "BD-2026-000001" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.Subtotal != 400 || order.ShippingCost != 25 || order.Total != 425 {
		t.Fatalf("unexpected totals: %d / %d / %d", order.Subtotal, order.ShippingCost, order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.EstimatedDelivery != now.Add(48*time.Hour) {
		t.Fatalf("unexpected estimated delivery %s", order.EstimatedDelivery)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 snapshot items, got %d", len(order.Items))
	}

	saved := carts.carts["user-1"]
	if len(saved.Items) != 2 {
		t.Fatalf("cart lines must survive order creation, got %d", len(saved.Items))
	}
	if !saved.ProcessingCheckout {
		t.Fatalf("expected processingCheckout flag set")
	}
	if saved.CurrentOrderID != order.ID {
		t.Fatalf("expected currentOrderId %s, got %s", order.ID, saved.CurrentOrderID)
	}

	if len(events.events) != 1 || events.events[0].Type != "order.created" {
		t.Fatalf("expected order.created event, got %+v", events.events)
	}
}

func TestCheckoutCreateOrderRequiresItemsAndShipping(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := newFakeOrderRepository()
	counters := &fakeCounterRepository{}

	empty := readyCart("user-1")
	empty.Items = nil
	noShipping := readyCart("user-2")
	noShipping.ShippingInfo = nil
	noPhone := readyCart("user-3")
	noPhone.ShippingInfo = &domain.ShippingInfo{FirstName: "Amina", LastName: "Benali"}

	carts := newFakeCartRepository()
	carts.carts["user-1"] = empty
	carts.carts["user-2"] = noShipping
	carts.carts["user-3"] = noPhone
	svc := newTestCheckoutService(t, carts, orders, counters, nil, now)

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{UserID: userID})
		if !errors.Is(err, ErrMissingCheckoutData) {
			t.Fatalf("user %s: expected ErrMissingCheckoutData, got %v", userID, err)
		}
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("no order should be written, got %d", len(orders.inserted))
	}
}

func TestCheckoutCreateOrderPersistFailureLeavesCartIntact(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	orders := newFakeOrderRepository()
	orders.insertErr = fakeRepoError{unavailable: true}
	svc := newTestCheckoutService(t, carts, orders, &fakeCounterRepository{}, nil, now)

	_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{UserID: "user-1"})
	if !errors.Is(err, ErrOrderCreationFailed) {
		t.Fatalf("expected ErrOrderCreationFailed, got %v", err)
	}

	saved := carts.carts["user-1"]
	if saved.ProcessingCheckout || saved.CurrentOrderID != "" {
		t.Fatalf("cart must stay untouched on persistence failure: %+v", saved)
	}
	if len(saved.Items) != 2 {
		t.Fatalf("cart lines must survive, got %d", len(saved.Items))
	}
}

func TestCheckoutCreateOrderDefaultsToCashOnDelivery(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	svc := newTestCheckoutService(t, carts, newFakeOrderRepository(), &fakeCounterRepository{}, nil, now)

	order, err := svc.CreateOrder(context.Background(), CreateOrderCommand{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.PaymentMethod != domain.PaymentCashOnDelivery {
		t.Fatalf("PaymentMethod = %s, want %s", order.PaymentMethod, domain.PaymentCashOnDelivery)
	}
}

func TestCheckoutCreateOrderAcceptsCardPayment(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	svc := newTestCheckoutService(t, carts, newFakeOrderRepository(), &fakeCounterRepository{}, nil, now)

	order, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.PaymentMethod != domain.PaymentCard {
		t.Fatalf("PaymentMethod = %s, want %s", order.PaymentMethod, domain.PaymentCard)
	}
}

func TestCheckoutCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	svc := newTestCheckoutService(t, carts, newFakeOrderRepository(), &fakeCounterRepository{}, nil, now)

	_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethod("cheque"),
	})
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCheckoutFinishClearsCartWhenOrderFound(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	cart := readyCart("user-1")
	cart.ProcessingCheckout = true
	cart.CurrentOrderID = "ord_known"
	carts.carts["user-1"] = cart

	orders := newFakeOrderRepository()
	orders.orders["ord_known"] = domain.Order{
		ID: "ord_known", UserID: "user-1", OrderNumber: "BD-2026-000007",
		Status: domain.OrderStatusPending,
	}
	svc := newTestCheckoutService(t, carts, orders, &fakeCounterRepository{}, nil, now)

	result, err := svc.FinishCheckout(context.Background(), FinishCheckoutCommand{
		UserID:  "user-1",
		OrderID: "ord_known",
	})
	if err != nil {
		t.Fatalf("FinishCheckout: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected cart cleared, got %d lines", len(result.Items))
	}
	if result.ProcessingCheckout || result.CurrentOrderID != "" {
		t.Fatalf("expected checkout state reset, got %+v", result)
	}
}

func TestCheckoutFinishUnknownOrderLeavesCartUntouched(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	cart := readyCart("user-1")
	cart.ProcessingCheckout = true
	cart.CurrentOrderID = "ord_known"
	carts.carts["user-1"] = cart
	svc := newTestCheckoutService(t, carts, newFakeOrderRepository(), &fakeCounterRepository{}, nil, now)

	_, err := svc.FinishCheckout(context.Background(), FinishCheckoutCommand{
		UserID:  "user-1",
		OrderID: "ord_unknown",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	saved := carts.carts["user-1"]
	if len(saved.Items) != 2 || !saved.ProcessingCheckout {
		t.Fatalf("cart must stay untouched, got %+v", saved)
	}
}

func TestCheckoutFinishRejectsForeignOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	orders := newFakeOrderRepository()
	orders.orders["ord_other"] = domain.Order{ID: "ord_other", UserID: "user-2"}
	svc := newTestCheckoutService(t, carts, orders, &fakeCounterRepository{}, nil, now)

	_, err := svc.FinishCheckout(context.Background(), FinishCheckoutCommand{
		UserID:  "user-1",
		OrderID: "ord_other",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCheckoutPublishFailureDoesNotFailCreateOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	carts := newFakeCartRepository()
	carts.carts["user-1"] = readyCart("user-1")
	events := &fakeEventPublisher{err: errors.New("broker down")}
	svc := newTestCheckoutService(t, carts, newFakeOrderRepository(), &fakeCounterRepository{}, events, now)

	if _, err := svc.CreateOrder(context.Background(), CreateOrderCommand{UserID: "user-1"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
}
