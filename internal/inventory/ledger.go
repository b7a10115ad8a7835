package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
)

// Ledger is the stock read/adjust primitive. Every mutating call runs
// against a commerce.Tx whose product rows it locks itself, so concurrent
// reservations for the same product are serialized by the store and can
// never oversell.
type Ledger struct {
	Store commerce.Store
}

// Reserve deducts qty from one product inside tx. The row is locked first;
// the caller's transaction abort undoes the deduction.
func (l *Ledger) Reserve(ctx context.Context, tx commerce.Tx, productID string, qty int) error {
	products, err := tx.LockProducts(ctx, []string{productID})
	if err != nil {
		return err
	}
	p, ok := products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, commerce.ErrNotFound)
	}
	if p.Stock < qty {
		return &commerce.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	return tx.AdjustStock(ctx, productID, -qty)
}

// ReserveAll locks every referenced product (the store orders the locks by
// id), validates all lines, then deducts. When any line is short nothing is
// deducted and the full shortage list comes back so callers can either fail
// fast on the first line or report the aggregate. A missing product is an
// error, not a shortage.
func (l *Ledger) ReserveAll(ctx context.Context, tx commerce.Tx, items []commerce.ItemQty) (map[string]commerce.Product, []commerce.StockShortage, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, nil, fmt.Errorf("invalid qty %d for product %s", it.Qty, it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var short []commerce.StockShortage
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("product %s: %w", it.ProductID, commerce.ErrNotFound)
		}
		if p.Stock < it.Qty {
			short = append(short, commerce.StockShortage{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   it.Qty,
				Available:   p.Stock,
			})
		}
	}
	if len(short) > 0 {
		return products, short, nil
	}

	for _, it := range items {
		if err := tx.AdjustStock(ctx, it.ProductID, -it.Qty); err != nil {
			return nil, nil, err
		}
	}
	return products, nil, nil
}

// Release is the compensating action on cancellation. It adds qty back and
// never validates against a maximum.
func (l *Ledger) Release(ctx context.Context, tx commerce.Tx, productID string, qty int) error {
	if _, err := tx.LockProducts(ctx, []string{productID}); err != nil {
		return err
	}
	return tx.AdjustStock(ctx, productID, qty)
}

// PeekStock reads current stock without holding a lock.
func (l *Ledger) PeekStock(ctx context.Context, productID string) (int, error) {
	p, err := l.Store.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}
