package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine turns carts or explicit item lists into durable orders, deducting
// stock atomically, and drives the order status machine.
type Engine struct {
	Store  commerce.Store
	Ledger *inventory.Ledger
	Log    *zap.Logger

	// test seams
	Now   func() time.Time
	NewID func() string
}

func NewEngine(store commerce.Store, ledger *inventory.Ledger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Store:  store,
		Ledger: ledger,
		Log:    log,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

var ErrEmptyOrder = errors.New("order must contain at least one item")

// CreateFromItems is one atomic unit: lock all referenced products
// (ascending id, so overlapping checkouts cannot deadlock), validate every
// line, deduct stock, snapshot current prices into order items and create
// the order in pending status. Any single-line failure aborts the whole
// transaction with no partial stock mutation.
func (e *Engine) CreateFromItems(ctx context.Context, userID string, items []commerce.ItemQty) (commerce.Order, []commerce.OrderItem, error) {
	if len(items) == 0 {
		return commerce.Order{}, nil, ErrEmptyOrder
	}

	var (
		order      commerce.Order
		orderItems []commerce.OrderItem
	)
	err := e.Store.WithTx(ctx, func(tx commerce.Tx) error {
		products, short, err := e.Ledger.ReserveAll(ctx, tx, items)
		if err != nil {
			return err
		}
		if len(short) > 0 {
			// fail fast on the first over-limit line
			s := short[0]
			return &commerce.InsufficientStockError{ProductID: s.ProductID, Requested: s.Requested, Available: s.Available}
		}

		order = commerce.Order{
			ID:        e.NewID(),
			UserID:    userID,
			Status:    commerce.StatusPending,
			CreatedAt: e.Now(),
		}
		orderItems = orderItems[:0]
		for _, it := range items {
			p := products[it.ProductID]
			orderItems = append(orderItems, commerce.OrderItem{
				ID:         e.NewID(),
				OrderID:    order.ID,
				ProductID:  it.ProductID,
				Qty:        it.Qty,
				PriceCents: p.PriceCents,
			})
			order.TotalCents += p.PriceCents * it.Qty
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertOrderItems(ctx, orderItems)
	})
	if err != nil {
		return commerce.Order{}, nil, err
	}

	e.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("total_cents", order.TotalCents))
	return order, orderItems, nil
}

// CreateFromCart materializes the user's current cart lines and runs the
// same atomic creation path. The cart itself is left untouched.
func (e *Engine) CreateFromCart(ctx context.Context, userID string) (commerce.Order, []commerce.OrderItem, error) {
	var items []commerce.ItemQty
	err := e.Store.WithTx(ctx, func(tx commerce.Tx) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		lines, err := tx.CartItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			items = append(items, commerce.ItemQty{ProductID: l.ProductID, Qty: l.Qty})
		}
		return nil
	})
	if err != nil {
		return commerce.Order{}, nil, err
	}
	return e.CreateFromItems(ctx, userID, items)
}

// Cancel is user-initiated and only valid from pending. It locks the order
// row, flips it to cancelled and releases every line's stock; the release is
// the exact inverse of the reservation taken at creation.
func (e *Engine) Cancel(ctx context.Context, orderID, userID string) (commerce.Order, error) {
	var order commerce.Order
	err := e.Store.WithTx(ctx, func(tx commerce.Tx) error {
		o, err := tx.LockUserOrder(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if !commerce.CanTransition(o.Status, commerce.StatusCancelled) {
			return fmt.Errorf("cancel order %s in status %s: %w", o.ID, o.Status, commerce.ErrInvalidState)
		}

		commerce.StampStatus(&o, commerce.StatusCancelled, e.Now())
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}

		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := e.Ledger.Release(ctx, tx, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return commerce.Order{}, err
	}

	e.Log.Info("order cancelled", zap.String("order_id", order.ID), zap.String("user_id", userID))
	return order, nil
}

// AdminSetStatus sets any listed status under the order row lock and stamps
// the matching timestamp. It does not roll back stock, even for cancelled;
// only the user-cancel path compensates inventory.
func (e *Engine) AdminSetStatus(ctx context.Context, orderID string, status commerce.Status) (commerce.Order, error) {
	if !commerce.ValidStatus(status) {
		return commerce.Order{}, fmt.Errorf("unknown status %q: %w", status, commerce.ErrInvalidState)
	}

	var order commerce.Order
	err := e.Store.WithTx(ctx, func(tx commerce.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		commerce.StampStatus(&o, status, e.Now())
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return commerce.Order{}, err
	}

	e.Log.Info("order status updated", zap.String("order_id", order.ID), zap.String("status", string(status)))
	return order, nil
}

// Get returns an order with its items, scoped to the owning user.
func (e *Engine) Get(ctx context.Context, orderID, userID string) (commerce.Order, []commerce.OrderItem, error) {
	o, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return commerce.Order{}, nil, err
	}
	if o.UserID != userID {
		return commerce.Order{}, nil, fmt.Errorf("order %s: %w", orderID, commerce.ErrNotFound)
	}
	items, err := e.Store.GetOrderItems(ctx, orderID)
	if err != nil {
		return commerce.Order{}, nil, err
	}
	return o, items, nil
}

// ListForUser returns the user's orders, newest first.
func (e *Engine) ListForUser(ctx context.Context, userID string) ([]commerce.Order, error) {
	return e.Store.ListUserOrders(ctx, userID)
}
