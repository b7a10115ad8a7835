package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/memstore"
)

func newService() (*Service, *memstore.Store) {
	st := memstore.New()
	return NewService(st), st
}

func TestAddCombinesExistingLine(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Name: "widget", PriceCents: 250, Stock: 10})
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", "p1", 3); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.Add(ctx, "u1", "p1", 2)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Items) != 1 {
		t.Fatalf("expected one combined line, got %d", len(view.Items))
	}
	if view.Items[0].Item.Qty != 5 {
		t.Fatalf("qty = %d, want 5", view.Items[0].Item.Qty)
	}
	if view.TotalQty != 5 || view.Subtotal != 5*250 {
		t.Fatalf("totals = qty %d subtotal %d", view.TotalQty, view.Subtotal)
	}
}

func TestAddOverStockReportsRemaining(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 5})
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", "p1", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := svc.Add(ctx, "u1", "p1", 3)
	var ise *commerce.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Available != 2 {
		t.Fatalf("available = %d, want 2", ise.Available)
	}

	// the failed add must not change the line
	view, _ := svc.GetOrCreate(ctx, "u1")
	if view.Items[0].Item.Qty != 3 {
		t.Fatalf("line qty = %d, want 3", view.Items[0].Item.Qty)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Add(context.Background(), "u1", "ghost", 1)
	if !errors.Is(err, commerce.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetQuantityAbsolute(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 5})
	ctx := context.Background()

	view, err := svc.Add(ctx, "u1", "p1", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := view.Items[0].Item.ID

	view, err = svc.SetQuantity(ctx, "u1", itemID, 4)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if view.Items[0].Item.Qty != 4 {
		t.Fatalf("qty = %d, want 4", view.Items[0].Item.Qty)
	}

	_, err = svc.SetQuantity(ctx, "u1", itemID, 6)
	var ise *commerce.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Available != 5 {
		t.Fatalf("available = %d, want 5", ise.Available)
	}
}

func TestSetQuantityNotOwned(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 5})
	ctx := context.Background()

	view, _ := svc.Add(ctx, "u1", "p1", 2)
	_, err := svc.SetQuantity(ctx, "someone-else", view.Items[0].Item.ID, 1)
	if !errors.Is(err, commerce.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign cart item, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 5})
	ctx := context.Background()

	view, _ := svc.Add(ctx, "u1", "p1", 2)
	view, err := svc.Remove(ctx, "u1", view.Items[0].Item.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(view.Items))
	}
}

func TestValidateFlagsOverLimitLines(t *testing.T) {
	svc, st := newService()
	st.SeedProduct(commerce.Product{ID: "p1", Name: "widget", Stock: 5})
	st.SeedProduct(commerce.Product{ID: "p2", Name: "gadget", Stock: 5})
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", "p1", 3); err != nil {
		t.Fatalf("add p1: %v", err)
	}
	if _, err := svc.Add(ctx, "u1", "p2", 2); err != nil {
		t.Fatalf("add p2: %v", err)
	}

	// stock drops after the lines were added
	st.SeedProduct(commerce.Product{ID: "p1", Name: "widget", Stock: 1})

	rep, err := svc.Validate(ctx, "u1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rep.Valid {
		t.Fatal("expected invalid cart")
	}
	if len(rep.OverLimit) != 1 {
		t.Fatalf("over-limit lines = %d, want 1", len(rep.OverLimit))
	}
	line := rep.OverLimit[0]
	if line.ProductID != "p1" || line.Requested != 3 || line.Available != 1 {
		t.Fatalf("over-limit line = %+v", line)
	}

	// validation never mutates
	view, _ := svc.GetOrCreate(ctx, "u1")
	if len(view.Items) != 2 {
		t.Fatalf("cart mutated by validate")
	}
}
