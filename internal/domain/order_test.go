package domain

import (
	"reflect"
	"testing"
)

func TestEnrich(t *testing.T) {
	products := map[string]Product{
		"p1": {ID: "p1", Name: "Blue Shirt", Price: 19.99},
		"p2": {ID: "p2", Name: "Socks", Price: 5.5},
	}

	t.Run("sums resolved lines in item order", func(t *testing.T) {
		orders := []Order{{
			ID:     "o1",
			UserID: "u1",
			Items: []OrderItem{
				{ProductID: "p1", Qty: 2},
				{ProductID: "p2", Qty: 3},
			},
		}}

		enriched, unresolved := Enrich(orders, products)

		if unresolved != 0 {
			t.Errorf("expected 0 unresolved lines, got %d", unresolved)
		}
		if len(enriched) != 1 {
			t.Fatalf("expected 1 order, got %d", len(enriched))
		}
		got := enriched[0]
		if got.Total != 56.48 {
			t.Errorf("expected total 56.48, got %v", got.Total)
		}
		want := []OrderLine{
			{ProductDetails: ProductDetails{ID: "p1", Name: "Blue Shirt"}, Qty: 2},
			{ProductDetails: ProductDetails{ID: "p2", Name: "Socks"}, Qty: 3},
		}
		if !reflect.DeepEqual(got.Items, want) {
			t.Errorf("unexpected lines: %+v", got.Items)
		}
	})

	t.Run("drops lines referencing missing products", func(t *testing.T) {
		orders := []Order{{ID: "o2", Items: []OrderItem{{ProductID: "gone", Qty: 1}}}}

		enriched, unresolved := Enrich(orders, products)

		if unresolved != 1 {
			t.Errorf("expected 1 unresolved line, got %d", unresolved)
		}
		if len(enriched[0].Items) != 0 {
			t.Errorf("expected no lines, got %d", len(enriched[0].Items))
		}
		if enriched[0].Items == nil {
			t.Error("expected empty, non-nil lines")
		}
		if enriched[0].Total != 0 {
			t.Errorf("expected total 0, got %v", enriched[0].Total)
		}
	})

	t.Run("keeps page order", func(t *testing.T) {
		orders := []Order{{ID: "b"}, {ID: "a"}, {ID: "c"}}

		enriched, _ := Enrich(orders, products)

		var ids []string
		for _, o := range enriched {
			ids = append(ids, o.ID)
		}
		if !reflect.DeepEqual(ids, []string{"b", "a", "c"}) {
			t.Errorf("unexpected order: %v", ids)
		}
	})
}

func TestProductIDs(t *testing.T) {
	orders := []Order{
		{Items: []OrderItem{{ProductID: "p2"}, {ProductID: "p1"}}},
		{Items: []OrderItem{{ProductID: "p1"}, {ProductID: "p3"}}},
	}

	got := ProductIDs(orders)

	if !reflect.DeepEqual(got, []string{"p2", "p1", "p3"}) {
		t.Errorf("unexpected ids: %v", got)
	}
	if ids := ProductIDs(nil); len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}
