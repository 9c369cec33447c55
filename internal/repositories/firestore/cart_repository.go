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
	cartCollection = "carts"
)

// CartRepository persists cart documents within Firestore. One document per
// user, keyed by the user ID.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// UpsertCart persists the cart document using the user ID as document
// identifier. When expectedUpdate is supplied the write carries a
// last-update-time precondition, surfacing concurrent edits as conflicts.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	cartID := strings.TrimSpace(firstCartID(cart))
	if cartID == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		Items:              encodeCartLines(cart.Items),
		ShippingInfo:       encodeShippingInfo(cart.ShippingInfo),
		ProcessingCheckout: cart.ProcessingCheckout,
		CurrentOrderID:     strings.TrimSpace(cart.CurrentOrderID),
		Metadata:           cloneAnyMap(cart.Metadata),
		ItemsCount:         len(cart.Items),
		CreatedAt:          createdAt,
		UpdatedAt:          now,
	}

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, cartID, doc)
		if err != nil {
			return domain.Cart{}, err
		}

		saved := cloneCart(cart)
		saved.ID = cartID
		saved.UserID = cartID
		saved.CreatedAt = doc.CreatedAt
		saved.UpdatedAt = result.UpdateTime
		return saved, nil
	}

	updates := []firestore.Update{
		{Path: "items", Value: doc.Items},
		{Path: "itemsCount", Value: doc.ItemsCount},
		{Path: "processingCheckout", Value: doc.ProcessingCheckout},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}

	if doc.ShippingInfo == nil {
		updates = append(updates, firestore.Update{Path: "shippingInfo", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "shippingInfo", Value: doc.ShippingInfo})
	}

	if doc.CurrentOrderID == "" {
		updates = append(updates, firestore.Update{Path: "currentOrderId", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "currentOrderId", Value: doc.CurrentOrderID})
	}

	if len(doc.Metadata) == 0 {
		updates = append(updates, firestore.Update{Path: "metadata", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "metadata", Value: doc.Metadata})
	}

	result, err := r.base.Update(ctx, cartID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cloneCart(cart)
	saved.ID = cartID
	saved.UserID = cartID
	saved.CreatedAt = cart.CreatedAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// GetCart loads the cart document for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.Cart{
		ID:                 doc.ID,
		UserID:             doc.ID,
		Items:              decodeCartLines(doc.Data.Items),
		ShippingInfo:       decodeShippingInfo(doc.Data.ShippingInfo),
		ProcessingCheckout: doc.Data.ProcessingCheckout,
		CurrentOrderID:     strings.TrimSpace(doc.Data.CurrentOrderID),
		Metadata:           cloneAnyMap(doc.Data.Metadata),
		UpdatedAt: func() time.Time {
			if !doc.UpdateTime.IsZero() {
				return doc.UpdateTime
			}
			return doc.Data.UpdatedAt
		}(),
		CreatedAt: func() time.Time {
			if !doc.Data.CreatedAt.IsZero() {
				return doc.Data.CreatedAt
			}
			return doc.UpdateTime
		}(),
	}

	return cart, nil
}

func firstCartID(cart domain.Cart) string {
	if strings.TrimSpace(cart.ID) != "" {
		return strings.TrimSpace(cart.ID)
	}
	return strings.TrimSpace(cart.UserID)
}

func cloneCart(cart domain.Cart) domain.Cart {
	dup := cart
	if cart.Items != nil {
		dup.Items = make([]domain.CartLine, len(cart.Items))
		copy(dup.Items, cart.Items)
	}
	if cart.ShippingInfo != nil {
		info := *cart.ShippingInfo
		dup.ShippingInfo = &info
	}
	if cart.Metadata != nil {
		dup.Metadata = cloneAnyMap(cart.Metadata)
	}
	return dup
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

func encodeCartLines(lines []domain.CartLine) []cartLineDocument {
	docs := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		docs = append(docs, cartLineDocument{
			ProductID:     strings.TrimSpace(line.ProductID),
			Name:          line.Name,
			Brand:         line.Brand,
			Price:         line.Price,
			OriginalPrice: line.OriginalPrice,
			ImageURL:      line.ImageURL,
			Slug:          line.Slug,
			Quantity:      line.Quantity,
			InStock:       line.InStock,
		})
	}
	return docs
}

func decodeCartLines(docs []cartLineDocument) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, domain.CartLine{
			ProductID:     strings.TrimSpace(doc.ProductID),
			Name:          doc.Name,
			Brand:         doc.Brand,
			Price:         doc.Price,
			OriginalPrice: doc.OriginalPrice,
			ImageURL:      doc.ImageURL,
			Slug:          doc.Slug,
			Quantity:      doc.Quantity,
			InStock:       doc.InStock,
		})
	}
	return lines
}

func encodeShippingInfo(info *domain.ShippingInfo) *shippingInfoDocument {
	if info == nil {
		return nil
	}
	return &shippingInfoDocument{
		FirstName:  strings.TrimSpace(info.FirstName),
		LastName:   strings.TrimSpace(info.LastName),
		Email:      strings.TrimSpace(info.Email),
		Phone:      strings.TrimSpace(info.Phone),
		Address:    strings.TrimSpace(info.Address),
		City:       strings.TrimSpace(info.City),
		Region:     strings.TrimSpace(info.Region),
		PostalCode: strings.TrimSpace(info.PostalCode),
		Notes:      strings.TrimSpace(info.Notes),
	}
}

func decodeShippingInfo(doc *shippingInfoDocument) *domain.ShippingInfo {
	if doc == nil {
		return nil
	}
	return &domain.ShippingInfo{
		FirstName:  doc.FirstName,
		LastName:   doc.LastName,
		Email:      doc.Email,
		Phone:      doc.Phone,
		Address:    doc.Address,
		City:       doc.City,
		Region:     doc.Region,
		PostalCode: doc.PostalCode,
		Notes:      doc.Notes,
	}
}

type cartDocument struct {
	Items              []cartLineDocument    `firestore:"items"`
	ShippingInfo       *shippingInfoDocument `firestore:"shippingInfo,omitempty"`
	ProcessingCheckout bool                  `firestore:"processingCheckout"`
	CurrentOrderID     string                `firestore:"currentOrderId,omitempty"`
	Metadata           map[string]any        `firestore:"metadata,omitempty"`
	ItemsCount         int                   `firestore:"itemsCount"`
	CreatedAt          time.Time             `firestore:"createdAt"`
	UpdatedAt          time.Time             `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID     string `firestore:"productId"`
	Name          string `firestore:"name,omitempty"`
	Brand         string `firestore:"brand,omitempty"`
	Price         int64  `firestore:"price"`
	OriginalPrice *int64 `firestore:"originalPrice,omitempty"`
	ImageURL      string `firestore:"imageUrl,omitempty"`
	Slug          string `firestore:"slug,omitempty"`
	Quantity      int    `firestore:"quantity"`
	InStock       bool   `firestore:"inStock"`
}

type shippingInfoDocument struct {
	FirstName  string `firestore:"firstName"`
	LastName   string `firestore:"lastName"`
	Email      string `firestore:"email,omitempty"`
	Phone      string `firestore:"phone"`
	Address    string `firestore:"address,omitempty"`
	City       string `firestore:"city,omitempty"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Notes      string `firestore:"notes,omitempty"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
