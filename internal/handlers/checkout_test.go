package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/services"
)

type stubCheckoutService struct {
	createOrderFunc    func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	finishCheckoutFunc func(ctx context.Context, cmd services.FinishCheckoutCommand) (services.Cart, error)
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createOrderFunc == nil {
		return services.Order{}, nil
	}
	return s.createOrderFunc(ctx, cmd)
}

func (s *stubCheckoutService) FinishCheckout(ctx context.Context, cmd services.FinishCheckoutCommand) (services.Cart, error) {
	if s.finishCheckoutFunc == nil {
		return services.Cart{}, nil
	}
	return s.finishCheckoutFunc(ctx, cmd)
}

func newCheckoutRouter(service services.CheckoutService, limiter *RateLimiter) chi.Router {
	handler := NewCheckoutHandlers(nil, service, limiter)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)
	return router
}

func sampleOrder() services.Order {
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	return services.Order{
		ID:          "ord_01HZX",
		OrderNumber: "BD-2026-000314",
		UserID:      "user-7",
		Items: []services.OrderItem{
			{ProductID: "prod-1", Name: "Sérum vitamine C", Price: 150, Quantity: 2},
		},
		ShippingInfo: domain.ShippingInfo{
			FirstName: "Amina",
			LastName:  "Benali",
			Phone:     "+212600000000",
			City:      "Rabat",
		},
		Subtotal:          300,
		ShippingCost:      25,
		Total:             325,
		Status:            domain.OrderStatusPending,
		PaymentMethod:     domain.PaymentCashOnDelivery,
		CreatedAt:         created,
		EstimatedDelivery: created.Add(48 * time.Hour),
	}
}

func TestCheckoutHandlersCreateOrder(t *testing.T) {
	var received services.CreateOrderCommand
	service := &stubCheckoutService{
		createOrderFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			received = cmd
			return sampleOrder(), nil
		},
	}

	router := newCheckoutRouter(service, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", strings.NewReader(`{"paymentMethod":"cod"}`), "user-7"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.UserID != "user-7" || received.PaymentMethod != domain.PaymentCashOnDelivery {
		t.Fatalf("unexpected command %#v", received)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.OrderNumber != "BD-2026-000314" {
		t.Fatalf("unexpected order number %q", resp.Order.OrderNumber)
	}
	if resp.Order.Status != "pending" || resp.Order.Progress != 25 {
		t.Fatalf("unexpected projection %q/%d", resp.Order.Status, resp.Order.Progress)
	}
	if resp.Order.TotalDisplay != "325 DH" {
		t.Fatalf("unexpected total display %q", resp.Order.TotalDisplay)
	}
	if resp.Order.EstimatedDelivery == "" {
		t.Fatalf("expected estimated delivery timestamp")
	}
}

func TestCheckoutHandlersCreateOrderAllowsEmptyBody(t *testing.T) {
	service := &stubCheckoutService{
		createOrderFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			if cmd.PaymentMethod != "" {
				t.Fatalf("expected empty payment method, got %q", cmd.PaymentMethod)
			}
			return sampleOrder(), nil
		},
	}

	router := newCheckoutRouter(service, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", nil, "user-7"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutHandlersCreateOrderRequiresIdentity(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCheckoutHandlersFinishCheckout(t *testing.T) {
	var received services.FinishCheckoutCommand
	service := &stubCheckoutService{
		finishCheckoutFunc: func(ctx context.Context, cmd services.FinishCheckoutCommand) (services.Cart, error) {
			received = cmd
			return services.Cart{ID: "cart_user-7", UserID: cmd.UserID}, nil
		},
	}

	router := newCheckoutRouter(service, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders/ord_01HZX/confirm", nil, "user-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.OrderID != "ord_01HZX" || received.UserID != "user-7" {
		t.Fatalf("unexpected command %#v", received)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Cart.Items) != 0 {
		t.Fatalf("expected empty cart payload, got %#v", resp.Cart.Items)
	}
}

func TestCheckoutHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "missing checkout data", err: services.ErrMissingCheckoutData, status: http.StatusBadRequest},
		{name: "invalid input", err: services.ErrCheckoutInvalidInput, status: http.StatusBadRequest},
		{name: "order not found", err: services.ErrOrderNotFound, status: http.StatusNotFound},
		{name: "conflict", err: services.ErrCheckoutConflict, status: http.StatusConflict},
		{name: "creation failed", err: services.ErrOrderCreationFailed, status: http.StatusServiceUnavailable},
		{name: "unavailable", err: services.ErrCheckoutUnavailable, status: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				createOrderFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			router := newCheckoutRouter(service, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", nil, "user-7"))

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestCheckoutHandlersRateLimited(t *testing.T) {
	service := &stubCheckoutService{
		createOrderFunc: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return sampleOrder(), nil
		},
	}
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute, func() time.Time { return now })
	router := newCheckoutRouter(service, limiter)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", nil, "user-7"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d: expected status 201, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", nil, "user-7"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/checkout/orders", nil, "user-8"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected other user unaffected, got %d", rr.Code)
	}
}
