package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/platform/auth"
	"github.com/beautydiscount/api/internal/platform/httpx"
	"github.com/beautydiscount/api/internal/services"
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateQuantity)
	r.Delete("/items/{productID}", h.removeItem)
	r.Post("/buy-now", h.buyNow)
	r.Put("/shipping", h.setShippingInfo)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cartLineRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddItemCommand{
		UserID: uid,
		Line:   req.toLine(),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, uid, productID, *req.Quantity)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, uid, productID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) buyNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		cartLineRequest
		Quantity int `json:"quantity"`
	}
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	cart, err := h.carts.ReplaceWithSingleItem(ctx, services.ReplaceItemCommand{
		UserID:   uid,
		Line:     req.toLine(),
		Quantity: quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) setShippingInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req shippingInfoPayload
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.SetShippingInfo(ctx, uid, domain.ShippingInfo{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	h.respondCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *CartHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errEmptyBody.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *CartHandlers) respondCart(w http.ResponseWriter, status int, cart services.Cart) {
	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, status, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

func setCartResponseHeaders(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	totals := services.ComputeCartTotals(cart)

	payload := cartPayload{
		ID:                 strings.TrimSpace(cart.ID),
		UserID:             strings.TrimSpace(cart.UserID),
		Items:              buildCartLines(cart.Items),
		ItemsCount:         totals.ItemsCount,
		Subtotal:           totals.Subtotal,
		SubtotalDisplay:    domain.FormatDirhams(totals.Subtotal),
		ShippingCost:       totals.ShippingCost,
		ShippingDisplay:    domain.FormatDirhams(totals.ShippingCost),
		Total:              totals.Total,
		TotalDisplay:       domain.FormatDirhams(totals.Total),
		ProcessingCheckout: cart.ProcessingCheckout,
		CurrentOrderID:     strings.TrimSpace(cart.CurrentOrderID),
		Metadata:           cloneMap(cart.Metadata),
	}
	if cart.ShippingInfo != nil {
		info := buildShippingInfoPayload(*cart.ShippingInfo)
		payload.ShippingInfo = &info
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartLines(lines []services.CartLine) []cartLinePayload {
	if len(lines) == 0 {
		return []cartLinePayload{}
	}
	payload := make([]cartLinePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, cartLinePayload{
			ProductID:     strings.TrimSpace(line.ProductID),
			Name:          line.Name,
			Brand:         line.Brand,
			Price:         line.Price,
			PriceDisplay:  domain.FormatDirhams(line.Price),
			OriginalPrice: line.OriginalPrice,
			ImageURL:      line.ImageURL,
			Slug:          line.Slug,
			Quantity:      line.Quantity,
			InStock:       line.InStock,
			LineTotal:     line.LineTotal(),
		})
	}
	return payload
}

func buildShippingInfoPayload(info domain.ShippingInfo) shippingInfoPayload {
	return shippingInfoPayload{
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Email:      info.Email,
		Phone:      info.Phone,
		Address:    info.Address,
		City:       info.City,
		Region:     info.Region,
		PostalCode: info.PostalCode,
		Notes:      info.Notes,
	}
}

func buildCartETag(cart services.Cart) string {
	if strings.TrimSpace(cart.ID) == "" || cart.UpdatedAt.IsZero() {
		return ""
	}
	input := fmt.Sprintf("%s:%d", strings.TrimSpace(cart.ID), cart.UpdatedAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(input))
	token := hex.EncodeToString(sum[:8])
	return fmt.Sprintf(`W/"%s"`, token)
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID                 string               `json:"id"`
	UserID             string               `json:"userId"`
	Items              []cartLinePayload    `json:"items"`
	ItemsCount         int                  `json:"itemsCount"`
	Subtotal           int64                `json:"subtotal"`
	SubtotalDisplay    string               `json:"subtotalDisplay"`
	ShippingCost       int64                `json:"shippingCost"`
	ShippingDisplay    string               `json:"shippingDisplay"`
	Total              int64                `json:"total"`
	TotalDisplay       string               `json:"totalDisplay"`
	ShippingInfo       *shippingInfoPayload `json:"shippingInfo,omitempty"`
	ProcessingCheckout bool                 `json:"processingCheckout"`
	CurrentOrderID     string               `json:"currentOrderId,omitempty"`
	Metadata           map[string]any       `json:"metadata,omitempty"`
	UpdatedAt          string               `json:"updatedAt,omitempty"`
}

type cartLinePayload struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Price         int64  `json:"price"`
	PriceDisplay  string `json:"priceDisplay"`
	OriginalPrice *int64 `json:"originalPrice,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	Slug          string `json:"slug,omitempty"`
	Quantity      int    `json:"quantity"`
	InStock       bool   `json:"inStock"`
	LineTotal     int64  `json:"lineTotal"`
}

type shippingInfoPayload struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type cartLineRequest struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Brand         string `json:"brand"`
	Price         int64  `json:"price"`
	OriginalPrice *int64 `json:"originalPrice"`
	ImageURL      string `json:"imageUrl"`
	Slug          string `json:"slug"`
	InStock       bool   `json:"inStock"`
}

func (r cartLineRequest) toLine() domain.CartLine {
	return domain.CartLine{
		ProductID:     strings.TrimSpace(r.ProductID),
		Name:          strings.TrimSpace(r.Name),
		Brand:         strings.TrimSpace(r.Brand),
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		ImageURL:      strings.TrimSpace(r.ImageURL),
		Slug:          strings.TrimSpace(r.Slug),
		InStock:       r.InStock,
	}
}
