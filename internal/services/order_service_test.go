package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
)

func newTestOrderService(t *testing.T, orders *fakeOrderRepository, events OrderEventPublisher, now time.Time) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: orders,
		Events: events,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func TestOrderServiceGetOrder(t *testing.T) {
	orders := newFakeOrderRepository()
	orders.orders["ord_1"] = domain.Order{ID: "ord_1", OrderNumber: "BD-2026-000001"}
	svc := newTestOrderService(t, orders, nil, time.Now())

	order, err := svc.GetOrder(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.OrderNumber != "BD-2026-000001" {
		t.Fatalf("unexpected order %+v", order)
	}

	if _, err := svc.GetOrder(context.Background(), "ord_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceListByPhone(t *testing.T) {
	orders := newFakeOrderRepository()
	orders.orders["ord_1"] = domain.Order{
		ID:           "ord_1",
		ShippingInfo: domain.ShippingInfo{Phone: "0612345678"},
	}
	orders.orders["ord_2"] = domain.Order{
		ID:           "ord_2",
		ShippingInfo: domain.ShippingInfo{Phone: "0600000000"},
	}
	svc := newTestOrderService(t, orders, nil, time.Now())

	result, err := svc.ListByPhone(context.Background(), OrderPhoneQuery{Phone: "0612345678"})
	if err != nil {
		t.Fatalf("ListByPhone: %v", err)
	}
	if len(result) != 1 || result[0].ID != "ord_1" {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := svc.ListByPhone(context.Background(), OrderPhoneQuery{}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for empty phone, got %v", err)
	}
}

func TestOrderServiceUpdateStatusStampsLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	orders := newFakeOrderRepository()
	orders.orders["ord_1"] = domain.Order{ID: "ord_1", Status: domain.OrderStatusPending}
	events := &fakeEventPublisher{}
	svc := newTestOrderService(t, orders, events, now)

	order, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "ord_1",
		Status:  domain.OrderStatusConfirmed,
		ActorID: "staff-1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", order.Status)
	}
	if order.ConfirmedAt == nil || !order.ConfirmedAt.Equal(now) {
		t.Fatalf("expected confirmedAt %s, got %v", now, order.ConfirmedAt)
	}
	if len(events.events) != 1 || events.events[0].Type != "order.status.changed" {
		t.Fatalf("expected status changed event, got %+v", events.events)
	}
	if events.events[0].PreviousStatus != domain.OrderStatusPending {
		t.Fatalf("expected previous status pending, got %s", events.events[0].PreviousStatus)
	}
}

func TestOrderServiceUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{"pending to confirmed", domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{"pending to cancelled", domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{"pending to shipped", domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{"confirmed to shipped", domain.OrderStatusConfirmed, domain.OrderStatusShipped, true},
		{"shipped to delivered", domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{"shipped to cancelled", domain.OrderStatusShipped, domain.OrderStatusCancelled, true},
		{"delivered to cancelled", domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{"cancelled to pending", domain.OrderStatusCancelled, domain.OrderStatusPending, false},
	}

	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := newFakeOrderRepository()
			orders.orders["ord_1"] = domain.Order{ID: "ord_1", Status: tc.from}
			svc := newTestOrderService(t, orders, nil, now)

			_, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
				OrderID: "ord_1",
				Status:  tc.to,
			})
			if tc.allowed && err != nil {
				t.Fatalf("expected transition allowed, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrOrderInvalidState) {
				t.Fatalf("expected invalid state, got %v", err)
			}
		})
	}
}

func TestOrderServiceUpdateStatusSameStatusIsNoOp(t *testing.T) {
	orders := newFakeOrderRepository()
	orders.orders["ord_1"] = domain.Order{ID: "ord_1", Status: domain.OrderStatusConfirmed}
	events := &fakeEventPublisher{}
	svc := newTestOrderService(t, orders, events, time.Now())

	order, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "ord_1",
		Status:  domain.OrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(events.events) != 0 {
		t.Fatalf("no event expected for no-op transition, got %d", len(events.events))
	}
}

func TestOrderServiceUpdateStatusRejectsUnknownStatus(t *testing.T) {
	orders := newFakeOrderRepository()
	orders.orders["ord_1"] = domain.Order{ID: "ord_1", Status: domain.OrderStatusPending}
	svc := newTestOrderService(t, orders, nil, time.Now())

	_, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "ord_1",
		Status:  domain.OrderStatus("archived"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
