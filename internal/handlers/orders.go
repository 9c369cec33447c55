package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/platform/auth"
	"github.com/beautydiscount/api/internal/platform/httpx"
	"github.com/beautydiscount/api/internal/platform/pagination"
	"github.com/beautydiscount/api/internal/services"
)

const (
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	maxOrderStatusBodySize = 4 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusConfirmed: {},
	domain.OrderStatusShipped:   {},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCancelled: {},
}

// OrderHandlers exposes the confirmation view lookup for buyers and the
// back-office listing and status transition endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the buyer-facing /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/{orderID}", h.getOrder)
}

// AdminRoutes registers the back-office endpoints. Callers must hold the
// staff or admin role.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/orders", h.listOrdersByPhone)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	// Buyers only see their own orders; back-office roles see everything.
	if !strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID)) &&
		!identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrdersByPhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.requireBackOffice(ctx, w)
	if !ok {
		return
	}
	_ = identity

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "phone is required", http.StatusBadRequest))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListByPhone(ctx, services.OrderPhoneQuery{
		Phone: phone,
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
		StartAfter: params.Cursor.StartAfter,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderSummary(order))
	}

	response := orderListResponse{Items: items}
	if len(orders) == params.PageSize && params.PageSize > 0 {
		last := orders[len(orders)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC()},
		})
		if err == nil {
			response.NextPageToken = token
		}
	}
	writeJSONResponse(w, http.StatusOK, response)
}

type updateOrderStatusRequest struct {
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := h.requireBackOffice(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderStatusBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req updateOrderStatusRequest
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errEmptyBody.Error(), http.StatusBadRequest))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	status, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:  orderID,
		Status:   status,
		ActorID:  strings.TrimSpace(identity.UID),
		Metadata: cloneMap(req.Metadata),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireBackOffice(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	if !identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "staff role required", http.StatusForbidden))
		return nil, false
	}
	return identity, true
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type orderSummaryPayload struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"orderNumber"`
	Status       string `json:"status"`
	StatusLabel  string `json:"statusLabel"`
	Total        int64  `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
	Phone        string `json:"phone,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type orderPayload struct {
	ID                string               `json:"id"`
	OrderNumber       string               `json:"orderNumber"`
	UserID            string               `json:"userId"`
	Status            string               `json:"status"`
	StatusLabel       string               `json:"statusLabel"`
	StatusColor       string               `json:"statusColor"`
	Progress          int                  `json:"progress"`
	Timeline          []timelineStep       `json:"timeline"`
	Items             []orderItemPayload   `json:"items"`
	ShippingInfo      *shippingInfoPayload `json:"shippingInfo,omitempty"`
	Subtotal          int64                `json:"subtotal"`
	SubtotalDisplay   string               `json:"subtotalDisplay"`
	ShippingCost      int64                `json:"shippingCost"`
	ShippingDisplay   string               `json:"shippingDisplay"`
	Total             int64                `json:"total"`
	TotalDisplay      string               `json:"totalDisplay"`
	PaymentMethod     string               `json:"paymentMethod"`
	Metadata          map[string]any       `json:"metadata,omitempty"`
	CreatedAt         string               `json:"createdAt"`
	UpdatedAt         string               `json:"updatedAt,omitempty"`
	EstimatedDelivery string               `json:"estimatedDelivery,omitempty"`
	ConfirmedAt       string               `json:"confirmedAt,omitempty"`
	ShippedAt         string               `json:"shippedAt,omitempty"`
	DeliveredAt       string               `json:"deliveredAt,omitempty"`
	CancelledAt       string               `json:"cancelledAt,omitempty"`
}

type timelineStep struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Reached bool   `json:"reached"`
}

type orderItemPayload struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Price         int64  `json:"price"`
	PriceDisplay  string `json:"priceDisplay"`
	OriginalPrice *int64 `json:"originalPrice,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	Slug          string `json:"slug,omitempty"`
	Quantity      int    `json:"quantity"`
	LineTotal     int64  `json:"lineTotal"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		Status:       strings.TrimSpace(string(order.Status)),
		StatusLabel:  domain.StatusLabel(order.Status),
		Total:        order.Total,
		TotalDisplay: domain.FormatDirhams(order.Total),
		Phone:        strings.TrimSpace(order.ShippingInfo.Phone),
		CreatedAt:    formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              strings.TrimSpace(order.ID),
		OrderNumber:     strings.TrimSpace(order.OrderNumber),
		UserID:          strings.TrimSpace(order.UserID),
		Status:          strings.TrimSpace(string(order.Status)),
		StatusLabel:     domain.StatusLabel(order.Status),
		StatusColor:     domain.StatusColor(order.Status),
		Progress:        domain.StatusProgress(order.Status),
		Timeline:        buildTimeline(order.Status),
		Items:           buildOrderItems(order.Items),
		Subtotal:        order.Subtotal,
		SubtotalDisplay: domain.FormatDirhams(order.Subtotal),
		ShippingCost:    order.ShippingCost,
		ShippingDisplay: domain.FormatDirhams(order.ShippingCost),
		Total:           order.Total,
		TotalDisplay:    domain.FormatDirhams(order.Total),
		PaymentMethod:   strings.TrimSpace(string(order.PaymentMethod)),
		Metadata:        cloneMap(order.Metadata),
		CreatedAt:       formatTime(order.CreatedAt),
		ConfirmedAt:     formatOptionalTime(order.ConfirmedAt),
		ShippedAt:       formatOptionalTime(order.ShippedAt),
		DeliveredAt:     formatOptionalTime(order.DeliveredAt),
		CancelledAt:     formatOptionalTime(order.CancelledAt),
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	if !order.EstimatedDelivery.IsZero() {
		payload.EstimatedDelivery = formatTime(order.EstimatedDelivery)
	}
	if !order.ShippingInfo.IsZero() {
		info := buildShippingInfoPayload(order.ShippingInfo)
		payload.ShippingInfo = &info
	}
	return payload
}

func buildTimeline(status domain.OrderStatus) []timelineStep {
	steps := domain.Timeline(status)
	payload := make([]timelineStep, 0, len(steps))
	for _, step := range steps {
		payload = append(payload, timelineStep{
			Key:     step.Key,
			Label:   step.Label,
			Reached: step.Reached,
		})
	}
	return payload
}

func buildOrderItems(items []services.OrderItem) []orderItemPayload {
	if len(items) == 0 {
		return []orderItemPayload{}
	}
	payload := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderItemPayload{
			ProductID:     strings.TrimSpace(item.ProductID),
			Name:          strings.TrimSpace(item.Name),
			Brand:         strings.TrimSpace(item.Brand),
			Price:         item.Price,
			PriceDisplay:  domain.FormatDirhams(item.Price),
			OriginalPrice: item.OriginalPrice,
			ImageURL:      item.ImageURL,
			Slug:          item.Slug,
			Quantity:      item.Quantity,
			LineTotal:     item.Price * int64(item.Quantity),
		})
	}
	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func parseOrderStatus(raw string) (services.OrderStatus, bool) {
	status := domain.OrderStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}
