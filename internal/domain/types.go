package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CartLine stores a single product entry within a cart. At most one line
// exists per product identifier; quantity below 1 removes the line.
type CartLine struct {
	ProductID     string
	Name          string
	Brand         string
	Price         int64
	OriginalPrice *int64
	ImageURL      string
	Slug          string
	Quantity      int
	InStock       bool
}

// LineTotal returns the price contribution of this line.
func (l CartLine) LineTotal() int64 {
	if l.Quantity <= 0 {
		return 0
	}
	return l.Price * int64(l.Quantity)
}

// Discounted reports whether the line carries a pre-discount price higher
// than the current price.
func (l CartLine) Discounted() bool {
	return l.OriginalPrice != nil && *l.OriginalPrice > l.Price
}

// ShippingInfo captures the delivery destination and contact details entered
// during checkout. Phone and names are mandatory for order submission; email
// is optional.
type ShippingInfo struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	City       string
	Region     string
	PostalCode string
	Notes      string
}

// HasDestination reports whether the customer has supplied at least a city or
// a region. Shipping stays unpriced until a destination is known.
func (s ShippingInfo) HasDestination() bool {
	return s.City != "" || s.Region != ""
}

// IsZero reports whether no shipping information has been captured yet.
func (s ShippingInfo) IsZero() bool {
	return s == ShippingInfo{}
}

// Cart aggregates the mutable shopping session state for a user. The drawer
// visibility flag lives in the UI layer and is deliberately absent here so it
// never reaches the persisted document.
type Cart struct {
	ID                 string
	UserID             string
	Items              []CartLine
	ShippingInfo       *ShippingInfo
	ProcessingCheckout bool
	CurrentOrderID     string
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Subtotal sums price times quantity over the current lines.
func (c Cart) Subtotal() int64 {
	var subtotal int64
	for _, line := range c.Items {
		subtotal += line.LineTotal()
	}
	return subtotal
}

// ItemsCount sums the quantities of all lines.
func (c Cart) ItemsCount() int {
	var count int
	for _, line := range c.Items {
		if line.Quantity > 0 {
			count += line.Quantity
		}
	}
	return count
}

// OrderStatus enumerates the forward-moving order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was submitted and awaits review.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order was validated by the back office.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the parcel left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the parcel reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was abandoned before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentMethod enumerates the supported payment options.
type PaymentMethod string

const (
	// PaymentCashOnDelivery is the default pay-on-delivery option.
	PaymentCashOnDelivery PaymentMethod = "cod"
	// PaymentCard is a card payment settled outside this system.
	PaymentCard PaymentMethod = "card"
)

// OrderItem is an immutable snapshot of a cart line at submission time,
// decoupled from the live cart.
type OrderItem struct {
	ProductID     string
	Name          string
	Brand         string
	Price         int64
	OriginalPrice *int64
	ImageURL      string
	Slug          string
	Quantity      int
}

// Order is the persisted record created at checkout submission. Only the
// status field mutates afterwards, driven by the back office.
type Order struct {
	ID                string
	OrderNumber       string
	UserID            string
	Items             []OrderItem
	ShippingInfo      ShippingInfo
	Subtotal          int64
	ShippingCost      int64
	Total             int64
	Status            OrderStatus
	PaymentMethod     PaymentMethod
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
	EstimatedDelivery time.Time
	ConfirmedAt       *time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
}

// HealthStatus represents the coarse health classification for the API.
type HealthStatus string

const (
	// HealthStatusOK indicates all checks passed.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates at least one non-critical check failed.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck captures the outcome of probing one dependency.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency checks plus build metadata.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
}
