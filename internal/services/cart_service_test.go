package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/repositories"
)

type fakeRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e fakeRepoError) Error() string       { return "repository error" }
func (e fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e fakeRepoError) IsConflict() bool    { return e.conflict }
func (e fakeRepoError) IsUnavailable() bool { return e.unavailable }

var _ repositories.RepositoryError = fakeRepoError{}

type fakeCartRepository struct {
	carts      map[string]domain.Cart
	getErr     error
	upsertErr  error
	upsertCall int
	lastUpsert domain.Cart
}

func newFakeCartRepository() *fakeCartRepository {
	return &fakeCartRepository{carts: map[string]domain.Cart{}}
}

func (r *fakeCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r.getErr != nil {
		return domain.Cart{}, r.getErr
	}
	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, fakeRepoError{notFound: true}
	}
	return cart, nil
}

func (r *fakeCartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	r.upsertCall++
	if r.upsertErr != nil {
		return domain.Cart{}, r.upsertErr
	}
	r.carts[cart.UserID] = cart
	r.lastUpsert = cart
	return cart, nil
}

var _ repositories.CartRepository = (*fakeCartRepository)(nil)

func newTestCartService(t *testing.T, repo repositories.CartRepository, now time.Time) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceGetCartReturnsEmptyWhenMissing(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestCartService(t, newFakeCartRepository(), now)

	cart, err := svc.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", cart.UserID)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
}

func TestCartServiceAddItemCreatesLineWithQuantityOne(t *testing.T) {
	repo := newFakeCartRepository()
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.AddItem(context.Background(), AddItemCommand{
		UserID: "user-1",
		Line:   domain.CartLine{ProductID: "prod-1", Name: "Serum", Price: 120, Quantity: 7},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity 1 regardless of input, got %d", cart.Items[0].Quantity)
	}
}

func TestCartServiceAddItemIncrementsExistingLineKeepingSnapshot(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Name: "Serum", Price: 120, Quantity: 2},
		},
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.AddItem(context.Background(), AddItemCommand{
		UserID: "user-1",
		Line:   domain.CartLine{ProductID: "prod-1", Name: "Serum Deluxe", Price: 999},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Items[0].Quantity)
	}
	if cart.Items[0].Name != "Serum" || cart.Items[0].Price != 120 {
		t.Fatalf("expected original snapshot preserved, got %+v", cart.Items[0])
	}
}

func TestCartServiceAddItemCapsQuantity(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 10, Quantity: 99},
		},
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.AddItem(context.Background(), AddItemCommand{
		UserID: "user-1",
		Line:   domain.CartLine{ProductID: "prod-1", Price: 10},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if cart.Items[0].Quantity != 99 {
		t.Fatalf("expected quantity to stay at 99, got %d", cart.Items[0].Quantity)
	}
}

func TestCartServiceRemoveItemIsNoOpWhenAbsent(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 10, Quantity: 1},
		},
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.RemoveItem(context.Background(), "user-1", "prod-missing")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line untouched, got %d", len(cart.Items))
	}
}

func TestCartServiceUpdateQuantityBelowOneRemovesLine(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 10, Quantity: 3},
			{ProductID: "prod-2", Price: 20, Quantity: 1},
		},
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "prod-2" {
		t.Fatalf("expected prod-1 removed, got %+v", cart.Items)
	}
}

func TestCartServiceUpdateQuantityRejectsAboveCap(t *testing.T) {
	repo := newFakeCartRepository()
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	_, err := svc.UpdateQuantity(context.Background(), "user-1", "prod-1", 100)
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCartServiceClearCartEmptiesLines(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 10, Quantity: 3},
		},
		ShippingInfo: &domain.ShippingInfo{FirstName: "Amina", LastName: "Benali", Phone: "0600000000"},
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.ClearCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}
	if cart.ShippingInfo == nil {
		t.Fatalf("expected shipping info preserved")
	}
}

func TestCartServiceReplaceWithSingleItem(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 10, Quantity: 3},
			{ProductID: "prod-2", Price: 20, Quantity: 1},
		},
	}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.ReplaceWithSingleItem(context.Background(), ReplaceItemCommand{
		UserID:   "user-1",
		Line:     domain.CartLine{ProductID: "prod-3", Price: 55},
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("ReplaceWithSingleItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected single line, got %d", len(cart.Items))
	}
	if cart.Items[0].ProductID != "prod-3" || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected line: %+v", cart.Items[0])
	}
}

func TestCartServiceSetShippingInfoStripsMarkup(t *testing.T) {
	repo := newFakeCartRepository()
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	cart, err := svc.SetShippingInfo(context.Background(), "user-1", domain.ShippingInfo{
		FirstName: "Amina",
		LastName:  "<script>alert(1)</script>Benali",
		Phone:     " 0612345678 ",
		Address:   "12 rue <b>des Fleurs</b>",
		City:      "Rabat",
		Notes:     "Sonner <i>deux</i> fois",
	})
	if err != nil {
		t.Fatalf("SetShippingInfo: %v", err)
	}
	info := cart.ShippingInfo
	if info == nil {
		t.Fatalf("expected shipping info set")
	}
	if info.LastName != "Benali" {
		t.Fatalf("expected markup stripped from last name, got %q", info.LastName)
	}
	if info.Address != "12 rue des Fleurs" {
		t.Fatalf("expected markup stripped from address, got %q", info.Address)
	}
	if info.Notes != "Sonner deux fois" {
		t.Fatalf("expected markup stripped from notes, got %q", info.Notes)
	}
	if info.Phone != "0612345678" {
		t.Fatalf("expected trimmed phone, got %q", info.Phone)
	}
}

func TestCartServiceSetShippingInfoRequiresPhone(t *testing.T) {
	svc := newTestCartService(t, newFakeCartRepository(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	_, err := svc.SetShippingInfo(context.Background(), "user-1", domain.ShippingInfo{
		FirstName: "Amina",
		LastName:  "Benali",
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCartServiceTranslatesConflict(t *testing.T) {
	repo := newFakeCartRepository()
	repo.carts["user-1"] = domain.Cart{ID: "user-1", UserID: "user-1", Items: []domain.CartLine{}}
	repo.upsertErr = fakeRepoError{conflict: true}
	svc := newTestCartService(t, repo, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	_, err := svc.ClearCart(context.Background(), "user-1")
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestComputeCartTotals(t *testing.T) {
	cart := domain.Cart{
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 150, Quantity: 2},
			{ProductID: "prod-2", Price: 100, Quantity: 1},
		},
		ShippingInfo: &domain.ShippingInfo{
			FirstName: "Amina", LastName: "Benali", Phone: "0612345678",
			City: "Rabat", Region: "Rabat-Salé-Kénitra",
		},
	}

	totals := ComputeCartTotals(cart)
	if totals.Subtotal != 400 {
		t.Fatalf("Subtotal = %d, want 400", totals.Subtotal)
	}
	if totals.ShippingCost != 25 {
		t.Fatalf("shipping for Rabat = %d, want 25", totals.ShippingCost)
	}
	if totals.Total != 425 {
		t.Fatalf("Total = %d, want 425", totals.Total)
	}
	if totals.ItemsCount != 3 {
		t.Fatalf("ItemsCount = %d, want 3", totals.ItemsCount)
	}
}

func TestComputeCartTotalsWithoutDestination(t *testing.T) {
	cart := domain.Cart{
		Items: []domain.CartLine{
			{ProductID: "prod-1", Price: 150, Quantity: 2},
		},
	}

	totals := ComputeCartTotals(cart)
	if totals.ShippingCost != 0 {
		t.Fatalf("expected no shipping without destination, got %d", totals.ShippingCost)
	}
	if totals.Total != 300 {
		t.Fatalf("expected total 300, got %d", totals.Total)
	}
}
