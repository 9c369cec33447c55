package domain

import "testing"

func cartWith(lines ...CartLine) Cart {
	return Cart{Items: lines}
}

func TestShippingCostEmptyCart(t *testing.T) {
	info := &ShippingInfo{City: "Casablanca"}
	if fee := ShippingCost(info, 0, 0); fee != 0 {
		t.Fatalf("expected no fee for empty cart, got %d", fee)
	}
}

func TestShippingCostMissingDestination(t *testing.T) {
	cart := cartWith(
		CartLine{ProductID: "p1", Price: 300, Quantity: 1},
		CartLine{ProductID: "p2", Price: 200, Quantity: 1},
	)
	if fee := ShippingCost(&ShippingInfo{Phone: "0612345678"}, cart.ItemsCount(), cart.Subtotal()); fee != 0 {
		t.Fatalf("expected no fee before a destination is entered, got %d", fee)
	}
	if fee := ShippingCost(nil, cart.ItemsCount(), cart.Subtotal()); fee != 0 {
		t.Fatalf("expected no fee for nil shipping info, got %d", fee)
	}
}

func TestShippingCostCityLookup(t *testing.T) {
	cart := cartWith(CartLine{ProductID: "p1", Price: 100, Quantity: 1})
	cases := []struct {
		city string
		want int64
	}{
		{"Casablanca", 25},
		{"Rabat", 25},
		{"Ouarzazate", 55},
		{"Unknown City", 50},
		{"Autre ville", 50},
	}
	for _, tc := range cases {
		info := &ShippingInfo{City: tc.city}
		if fee := ShippingCost(info, cart.ItemsCount(), cart.Subtotal()); fee != tc.want {
			t.Errorf("city %q: expected fee %d, got %d", tc.city, tc.want, fee)
		}
	}
}

func TestShippingCostRegionFallback(t *testing.T) {
	cart := cartWith(CartLine{ProductID: "p1", Price: 100, Quantity: 1})
	info := &ShippingInfo{City: "Sidi Rahal", Region: "Casablanca-Settat"}
	if fee := ShippingCost(info, cart.ItemsCount(), cart.Subtotal()); fee != 25 {
		t.Fatalf("expected region fee 25, got %d", fee)
	}

	info = &ShippingInfo{City: "Nulle Part", Region: "Région Inconnue"}
	if fee := ShippingCost(info, cart.ItemsCount(), cart.Subtotal()); fee != StandardShippingFee {
		t.Fatalf("expected standard fee %d, got %d", StandardShippingFee, fee)
	}
}

func TestCartSubtotalAndItemsCount(t *testing.T) {
	cart := cartWith(
		CartLine{ProductID: "p1", Price: 200, Quantity: 2},
		CartLine{ProductID: "p2", Price: 55, Quantity: 3},
	)
	if subtotal := cart.Subtotal(); subtotal != 565 {
		t.Fatalf("expected subtotal 565, got %d", subtotal)
	}
	if count := cart.ItemsCount(); count != 5 {
		t.Fatalf("expected items count 5, got %d", count)
	}
}

func TestCartLineDiscounted(t *testing.T) {
	original := int64(300)
	line := CartLine{Price: 200, OriginalPrice: &original}
	if !line.Discounted() {
		t.Fatal("expected line to be discounted")
	}
	same := int64(200)
	line = CartLine{Price: 200, OriginalPrice: &same}
	if line.Discounted() {
		t.Fatal("expected line not to be discounted when prices match")
	}
}
