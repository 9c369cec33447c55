package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/repositories"
)

// maxLineQuantity is the upper bound enforced on any single cart line. The
// storefront UI rejects larger values before calling; the store enforces it
// again so the invariant holds unconditionally.
const maxLineQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart store is currently unreachable.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartConflict indicates a concurrent modification was detected.
var ErrCartConflict = errors.New("cart service: conflict")

var errCartRepositoryRequired = errors.New("cart service: repository is required")

// CartServiceDeps wires the dependencies required by the cart service.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
	sanitize func(string) string
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService validating required dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	policy := bluemonday.StrictPolicy()

	return &cartService{
		repo: deps.Repository,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		sanitize: func(value string) string {
			return strings.TrimSpace(policy.Sanitize(value))
		},
	}, nil
}

// GetCart loads the cart for the user, returning an empty cart when none has
// been persisted yet.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return emptyCart(uid, s.now()), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(cart, uid), nil
}

// AddItem inserts a new line with quantity 1, or increments the existing line
// for the same product. Metadata of an existing line is left untouched: the
// snapshot taken when the product was first added wins.
func (s *cartService) AddItem(ctx context.Context, cmd AddItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.Line.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Line.Price < 0 {
		return Cart{}, fmt.Errorf("%w: price must not be negative", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				if cart.Items[i].Quantity < maxLineQuantity {
					cart.Items[i].Quantity++
				}
				return
			}
		}
		line := cmd.Line
		line.ProductID = productID
		line.Quantity = 1
		cart.Items = append(cart.Items, line)
	})
}

// RemoveItem deletes the line for the product. Removing an absent product is
// a no-op, not an error.
func (s *cartService) RemoveItem(ctx context.Context, userID string, productID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		cart.Items = removeLine(cart.Items, pid)
	})
}

// UpdateQuantity sets the quantity of an existing line. Values below 1 remove
// the line; values above the cap are rejected.
func (s *cartService) UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if quantity > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must not exceed %d", ErrCartInvalidInput, maxLineQuantity)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		if quantity < 1 {
			cart.Items = removeLine(cart.Items, pid)
			return
		}
		for i := range cart.Items {
			if cart.Items[i].ProductID == pid {
				cart.Items[i].Quantity = quantity
				return
			}
		}
	})
}

// ClearCart unconditionally empties the line list. The checkout guard lives
// in the checkout service, not here.
func (s *cartService) ClearCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		cart.Items = []CartLine{}
	})
}

// ReplaceWithSingleItem discards every line and sets the cart to exactly one
// line with the given quantity.
func (s *cartService) ReplaceWithSingleItem(ctx context.Context, cmd ReplaceItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.Line.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 1 || cmd.Quantity > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxLineQuantity)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		line := cmd.Line
		line.ProductID = productID
		line.Quantity = cmd.Quantity
		cart.Items = []CartLine{line}
	})
}

// SetShippingInfo validates and stores the delivery destination on the cart.
// Free-text fields are stripped of any markup before persisting.
func (s *cartService) SetShippingInfo(ctx context.Context, userID string, info ShippingInfo) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cleaned := ShippingInfo{
		FirstName:  s.sanitize(info.FirstName),
		LastName:   s.sanitize(info.LastName),
		Email:      strings.TrimSpace(info.Email),
		Phone:      strings.TrimSpace(info.Phone),
		Address:    s.sanitize(info.Address),
		City:       strings.TrimSpace(info.City),
		Region:     strings.TrimSpace(info.Region),
		PostalCode: strings.TrimSpace(info.PostalCode),
		Notes:      s.sanitize(info.Notes),
	}

	if cleaned.Phone == "" {
		return Cart{}, fmt.Errorf("%w: phone is required", ErrCartInvalidInput)
	}
	if cleaned.FirstName == "" || cleaned.LastName == "" {
		return Cart{}, fmt.Errorf("%w: first and last name are required", ErrCartInvalidInput)
	}

	return s.mutateCart(ctx, uid, func(cart *Cart) {
		cart.ShippingInfo = &cleaned
	})
}

// ComputeCartTotals derives the cart aggregates. Pure function of the cart
// content and the shipping destination.
func ComputeCartTotals(cart Cart) CartTotals {
	subtotal := cart.Subtotal()
	count := cart.ItemsCount()
	shipping := domain.ShippingCost(cart.ShippingInfo, count, subtotal)
	return CartTotals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal + shipping,
		ItemsCount:   count,
	}
}

func (s *cartService) mutateCart(ctx context.Context, userID string, mutate func(cart *Cart)) (Cart, error) {
	now := s.now()

	cart, err := s.repo.GetCart(ctx, userID)
	var expectedUpdate *time.Time
	switch {
	case err == nil:
		cart = normaliseCart(cart, userID)
		if !cart.UpdatedAt.IsZero() {
			ts := cart.UpdatedAt.UTC()
			expectedUpdate = &ts
		}
	case isRepoNotFound(err):
		cart = emptyCart(userID, now)
	default:
		return Cart{}, s.translateRepoError(err)
	}

	mutate(&cart)
	cart.UpdatedAt = now

	saved, err := s.repo.UpsertCart(ctx, cart, expectedUpdate)
	if err != nil {
		s.logger(ctx, "cart.persist.failed", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(saved, userID), nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return ErrCartConflict
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func emptyCart(userID string, now time.Time) Cart {
	return Cart{
		ID:        userID,
		UserID:    userID,
		Items:     []CartLine{},
		CreatedAt: now,
	}
}

func normaliseCart(cart Cart, userID string) Cart {
	cart.ID = strings.TrimSpace(firstNonEmpty(cart.ID, cart.UserID, userID))
	cart.UserID = strings.TrimSpace(firstNonEmpty(cart.UserID, userID, cart.ID))
	if cart.Items == nil {
		cart.Items = []CartLine{}
	}
	return cart
}

func removeLine(lines []CartLine, productID string) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == productID {
			continue
		}
		out = append(out, line)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
