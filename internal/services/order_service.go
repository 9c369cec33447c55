package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/platform/textutil"
	"github.com/beautydiscount/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the order store is currently unreachable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// orderStateTransitions lists the allowed next statuses per current status.
// Cancellation is reachable from every non-terminal status; delivered and
// cancelled are terminal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCancelled: {},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		events: deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// ListByPhone returns the orders placed under the given shipping phone
// number, newest first. This is the back-office lookup for customers who
// order by phone rather than through an account.
func (s *orderService) ListByPhone(ctx context.Context, query OrderPhoneQuery) ([]Order, error) {
	if s == nil || s.orders == nil {
		return nil, ErrOrderUnavailable
	}
	phone := strings.TrimSpace(query.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrOrderInvalidInput)
	}

	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		Phone:      phone,
		Pagination: query.Pagination,
		StartAfter: query.StartAfter,
	})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// UpdateStatus applies an administrative status transition, stamping the
// lifecycle timestamp matching the target status.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.Status
	if strings.TrimSpace(string(target)) == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if _, known := orderStateTransitions[target]; !known {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.Status == target {
		return order, nil
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.now()
	prevStatus := order.Status
	update := repositories.OrderStatusUpdate{
		UpdatedAt: now,
		Metadata:  cloneAnyMap(cmd.Metadata),
	}
	stampLifecycle(&update, target, now)

	updated, err := s.orders.UpdateStatus(ctx, orderID, target, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	eventMeta := textutil.NormalizeStringMap(map[string]string{
		"actorId":        cmd.ActorID,
		"previousStatus": string(prevStatus),
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           eventTypeOrderStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: prevStatus,
		CurrentStatus:  updated.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
		Metadata:       eventMeta,
	})

	return updated, nil
}

func stampLifecycle(update *repositories.OrderStatusUpdate, status domain.OrderStatus, now time.Time) {
	switch status {
	case domain.OrderStatusConfirmed:
		update.ConfirmedAt = &now
	case domain.OrderStatusShipped:
		update.ShippedAt = &now
	case domain.OrderStatusDelivered:
		update.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		update.CancelledAt = &now
	}
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		}
	}
	return ErrOrderUnavailable
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"status":  string(event.CurrentStatus),
			"error":   err.Error(),
		})
	}
}
