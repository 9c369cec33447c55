package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/beautydiscount/api/internal/domain"
	pfirestore "github.com/beautydiscount/api/internal/platform/firestore"
	"github.com/beautydiscount/api/internal/repositories"
)

const (
	orderCollection = "orders"
)

// OrderRepository persists order documents within Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert writes a new order document under the provided order ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrder(order)
	result, err := r.base.Set(ctx, orderID, doc)
	if err != nil {
		return domain.Order{}, err
	}

	saved := order
	saved.ID = orderID
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// UpdateStatus performs a partial update of the status field plus the
// lifecycle timestamp matching the transition, then reloads the document.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	updatedAt := update.UpdatedAt.UTC()
	if update.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt},
	}
	appendTimeUpdate := func(path string, value *time.Time) {
		if value == nil || value.IsZero() {
			return
		}
		updates = append(updates, firestore.Update{Path: path, Value: value.UTC()})
	}
	appendTimeUpdate("confirmedAt", update.ConfirmedAt)
	appendTimeUpdate("shippedAt", update.ShippedAt)
	appendTimeUpdate("deliveredAt", update.DeliveredAt)
	appendTimeUpdate("cancelledAt", update.CancelledAt)

	if len(update.Metadata) > 0 {
		updates = append(updates, firestore.Update{Path: "metadata", Value: cloneAnyMap(update.Metadata)})
	}

	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return domain.Order{}, err
	}

	return r.FindByID(ctx, id)
}

// FindByID loads an order document by its persistence identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc), nil
}

// List queries order documents newest first, narrowed by the filter.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if phone := strings.TrimSpace(filter.Phone); phone != "" {
			query = query.Where("shippingInfo.phone", "==", phone)
		}
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			query = query.Where("userId", "==", userID)
		}
		if len(filter.Status) == 1 {
			query = query.Where("status", "==", string(filter.Status[0]))
		} else if len(filter.Status) > 1 {
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			query = query.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc)
		if len(filter.StartAfter) > 0 {
			query = query.StartAfter(filter.StartAfter...)
		}
		if filter.Pagination.PageSize > 0 {
			query = query.Limit(filter.Pagination.PageSize)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:     strings.TrimSpace(item.ProductID),
			Name:          item.Name,
			Brand:         item.Brand,
			Price:         item.Price,
			OriginalPrice: item.OriginalPrice,
			ImageURL:      item.ImageURL,
			Slug:          item.Slug,
			Quantity:      item.Quantity,
		})
	}

	shipping := encodeShippingInfo(&order.ShippingInfo)

	doc := orderDocument{
		OrderNumber:       strings.TrimSpace(order.OrderNumber),
		UserID:            strings.TrimSpace(order.UserID),
		Items:             items,
		ShippingInfo:      shipping,
		Subtotal:          order.Subtotal,
		ShippingCost:      order.ShippingCost,
		Total:             order.Total,
		Status:            string(order.Status),
		PaymentMethod:     string(order.PaymentMethod),
		Metadata:          cloneAnyMap(order.Metadata),
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
		EstimatedDelivery: order.EstimatedDelivery.UTC(),
	}
	if order.ConfirmedAt != nil {
		ts := order.ConfirmedAt.UTC()
		doc.ConfirmedAt = &ts
	}
	if order.ShippedAt != nil {
		ts := order.ShippedAt.UTC()
		doc.ShippedAt = &ts
	}
	if order.DeliveredAt != nil {
		ts := order.DeliveredAt.UTC()
		doc.DeliveredAt = &ts
	}
	if order.CancelledAt != nil {
		ts := order.CancelledAt.UTC()
		doc.CancelledAt = &ts
	}
	return doc
}

func decodeOrder(doc pfirestore.Document[orderDocument]) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Data.Items))
	for _, item := range doc.Data.Items {
		items = append(items, domain.OrderItem{
			ProductID:     strings.TrimSpace(item.ProductID),
			Name:          item.Name,
			Brand:         item.Brand,
			Price:         item.Price,
			OriginalPrice: item.OriginalPrice,
			ImageURL:      item.ImageURL,
			Slug:          item.Slug,
			Quantity:      item.Quantity,
		})
	}

	order := domain.Order{
		ID:                doc.ID,
		OrderNumber:       strings.TrimSpace(doc.Data.OrderNumber),
		UserID:            strings.TrimSpace(doc.Data.UserID),
		Items:             items,
		Subtotal:          doc.Data.Subtotal,
		ShippingCost:      doc.Data.ShippingCost,
		Total:             doc.Data.Total,
		Status:            domain.OrderStatus(strings.TrimSpace(doc.Data.Status)),
		PaymentMethod:     domain.PaymentMethod(strings.TrimSpace(doc.Data.PaymentMethod)),
		Metadata:          cloneAnyMap(doc.Data.Metadata),
		CreatedAt:         doc.Data.CreatedAt,
		EstimatedDelivery: doc.Data.EstimatedDelivery,
		ConfirmedAt:       doc.Data.ConfirmedAt,
		ShippedAt:         doc.Data.ShippedAt,
		DeliveredAt:       doc.Data.DeliveredAt,
		CancelledAt:       doc.Data.CancelledAt,
	}
	if info := decodeShippingInfo(doc.Data.ShippingInfo); info != nil {
		order.ShippingInfo = *info
	}
	order.UpdatedAt = doc.Data.UpdatedAt
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = doc.UpdateTime
	}
	return order
}

type orderDocument struct {
	OrderNumber       string                `firestore:"orderNumber"`
	UserID            string                `firestore:"userId,omitempty"`
	Items             []orderItemDocument   `firestore:"items"`
	ShippingInfo      *shippingInfoDocument `firestore:"shippingInfo"`
	Subtotal          int64                 `firestore:"subtotal"`
	ShippingCost      int64                 `firestore:"shippingCost"`
	Total             int64                 `firestore:"total"`
	Status            string                `firestore:"status"`
	PaymentMethod     string                `firestore:"paymentMethod"`
	Metadata          map[string]any        `firestore:"metadata,omitempty"`
	CreatedAt         time.Time             `firestore:"createdAt"`
	UpdatedAt         time.Time             `firestore:"updatedAt"`
	EstimatedDelivery time.Time             `firestore:"estimatedDelivery"`
	ConfirmedAt       *time.Time            `firestore:"confirmedAt,omitempty"`
	ShippedAt         *time.Time            `firestore:"shippedAt,omitempty"`
	DeliveredAt       *time.Time            `firestore:"deliveredAt,omitempty"`
	CancelledAt       *time.Time            `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ProductID     string `firestore:"productId"`
	Name          string `firestore:"name,omitempty"`
	Brand         string `firestore:"brand,omitempty"`
	Price         int64  `firestore:"price"`
	OriginalPrice *int64 `firestore:"originalPrice,omitempty"`
	ImageURL      string `firestore:"imageUrl,omitempty"`
	Slug          string `firestore:"slug,omitempty"`
	Quantity      int    `firestore:"quantity"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
