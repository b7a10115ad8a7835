package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/memstore"
)

func newLedger() (*Ledger, *memstore.Store) {
	st := memstore.New()
	return &Ledger{Store: st}, st
}

func TestReserveAndRelease(t *testing.T) {
	l, st := newLedger()
	st.SeedProduct(commerce.Product{ID: "p1", Name: "widget", PriceCents: 500, Stock: 10})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx commerce.Tx) error {
		return l.Reserve(ctx, tx, "p1", 3)
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got, _ := l.PeekStock(ctx, "p1"); got != 7 {
		t.Fatalf("stock after reserve = %d, want 7", got)
	}

	err = st.WithTx(ctx, func(tx commerce.Tx) error {
		return l.Release(ctx, tx, "p1", 3)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got, _ := l.PeekStock(ctx, "p1"); got != 10 {
		t.Fatalf("stock after release = %d, want 10", got)
	}
}

func TestReserveInsufficientReportsAvailable(t *testing.T) {
	l, st := newLedger()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 2})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx commerce.Tx) error {
		return l.Reserve(ctx, tx, "p1", 5)
	})
	var ise *commerce.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Available != 2 || ise.Requested != 5 {
		t.Fatalf("error = %+v", ise)
	}
	if got, _ := l.PeekStock(ctx, "p1"); got != 2 {
		t.Fatalf("stock changed on failed reserve: %d", got)
	}
}

func TestReserveAllIsAllOrNothing(t *testing.T) {
	l, st := newLedger()
	st.SeedProduct(commerce.Product{ID: "a", Name: "a", Stock: 10})
	st.SeedProduct(commerce.Product{ID: "b", Name: "b", Stock: 1})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx commerce.Tx) error {
		_, short, err := l.ReserveAll(ctx, tx, []commerce.ItemQty{
			{ProductID: "a", Qty: 2},
			{ProductID: "b", Qty: 5},
		})
		if err != nil {
			return err
		}
		if len(short) != 1 || short[0].ProductID != "b" || short[0].Available != 1 {
			t.Fatalf("shortages = %+v", short)
		}
		return &commerce.OutOfStockError{Lines: short}
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if got, _ := l.PeekStock(ctx, "a"); got != 10 {
		t.Fatalf("product a stock = %d, want 10 (no partial deduction)", got)
	}
	if got, _ := l.PeekStock(ctx, "b"); got != 1 {
		t.Fatalf("product b stock = %d, want 1", got)
	}
}

func TestReserveAllMissingProduct(t *testing.T) {
	l, st := newLedger()
	st.SeedProduct(commerce.Product{ID: "a", Stock: 10})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx commerce.Tx) error {
		_, _, err := l.ReserveAll(ctx, tx, []commerce.ItemQty{
			{ProductID: "a", Qty: 1},
			{ProductID: "ghost", Qty: 1},
		})
		return err
	})
	if !errors.Is(err, commerce.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got, _ := l.PeekStock(ctx, "a"); got != 10 {
		t.Fatalf("stock changed: %d", got)
	}
}

func TestReleaseDoesNotCapAtMaximum(t *testing.T) {
	l, st := newLedger()
	st.SeedProduct(commerce.Product{ID: "p1", Stock: 4})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx commerce.Tx) error {
		return l.Release(ctx, tx, "p1", 100)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got, _ := l.PeekStock(ctx, "p1"); got != 104 {
		t.Fatalf("stock = %d, want 104", got)
	}
}
