package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements commerce.Store on Postgres. Row locks come from
// SELECT ... FOR UPDATE and live until the transaction commits or rolls
// back; the unique index on payments.reference is the storage-level half of
// the settlement idempotency guarantee.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx commerce.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetProduct(ctx context.Context, id string) (commerce.Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id=$1`, id), id)
}

func (s *Store) GetCartItems(ctx context.Context, cartID string) ([]commerce.CartItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, cart_id, product_id, qty, added_at
		FROM cart_items WHERE cart_id=$1 ORDER BY added_at`, cartID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

func (s *Store) GetOrder(ctx context.Context, id string) (commerce.Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, orderColumns+` FROM orders WHERE id=$1`, id), id)
}

func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]commerce.OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return collectOrderItems(rows)
}

func (s *Store) ListUserOrders(ctx context.Context, userID string) ([]commerce.Order, error) {
	rows, err := s.DB.Query(ctx, orderColumns+`
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (commerce.Payment, bool, error) {
	p, err := scanPayment(s.DB.QueryRow(ctx, paymentColumns+` FROM payments WHERE reference=$1`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.Payment{}, false, nil
	}
	if err != nil {
		return commerce.Payment{}, false, err
	}
	return p, true, nil
}

func (s *Store) HasVerifiedPayment(ctx context.Context, reference string) (bool, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments WHERE reference=$1 AND status='verified'`, reference).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type pgTx struct{ tx pgx.Tx }

// LockProducts sorts ids ascending before locking so every multi-product
// transaction acquires locks in the same order.
func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]commerce.Product, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	out := make(map[string]commerce.Product, len(sorted))
	for _, id := range sorted {
		if _, dup := out[id]; dup {
			continue
		}
		p, err := scanProduct(t.tx.QueryRow(ctx, `
			SELECT id, name, price_cents, stock, created_at, updated_at
			FROM products WHERE id=$1 FOR UPDATE`, id), id)
		if errors.Is(err, commerce.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (commerce.Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id=$1`, id), id)
}

func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("product %s: %w", productID, commerce.ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetOrCreateCart(ctx context.Context, userID string) (commerce.Cart, error) {
	var c commerce.Cart
	err := t.tx.QueryRow(ctx, `
		INSERT INTO carts (id, user_id) VALUES (gen_random_uuid(), $1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id, user_id, created_at, updated_at`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (t *pgTx) LockCartItem(ctx context.Context, itemID, userID string) (commerce.CartItem, error) {
	var it commerce.CartItem
	err := t.tx.QueryRow(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.qty, ci.added_at
		FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id=$1 AND c.user_id=$2
		FOR UPDATE OF ci`, itemID, userID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.CartItem{}, fmt.Errorf("cart item %s: %w", itemID, commerce.ErrNotFound)
	}
	return it, err
}

func (t *pgTx) LockCartItemByProduct(ctx context.Context, cartID, productID string) (commerce.CartItem, bool, error) {
	var it commerce.CartItem
	err := t.tx.QueryRow(ctx, `
		SELECT id, cart_id, product_id, qty, added_at
		FROM cart_items WHERE cart_id=$1 AND product_id=$2
		FOR UPDATE`, cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.CartItem{}, false, nil
	}
	if err != nil {
		return commerce.CartItem{}, false, err
	}
	return it, true, nil
}

func (t *pgTx) UpsertCartItem(ctx context.Context, item commerce.CartItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, qty, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET qty = EXCLUDED.qty`,
		item.ID, item.CartID, item.ProductID, item.Qty, item.AddedAt)
	return err
}

func (t *pgTx) DeleteCartItem(ctx context.Context, itemID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID)
	return err
}

func (t *pgTx) CartItems(ctx context.Context, cartID string) ([]commerce.CartItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, cart_id, product_id, qty, added_at
		FROM cart_items WHERE cart_id=$1 ORDER BY added_at`, cartID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

func (t *pgTx) InsertOrder(ctx context.Context, o commerce.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents, created_at,
			processing_at, shipped_at, delivered_at, cancelled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.UserID, o.Status, o.TotalCents, o.CreatedAt,
		o.ProcessingAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt)
	return err
}

func (t *pgTx) InsertOrderItems(ctx context.Context, items []commerce.OrderItem) error {
	for _, it := range items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			it.ID, it.OrderID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (commerce.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, orderColumns+`
		FROM orders WHERE id=$1 FOR UPDATE`, orderID), orderID)
}

func (t *pgTx) LockUserOrder(ctx context.Context, orderID, userID string) (commerce.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, orderColumns+`
		FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE`, orderID, userID), orderID)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o commerce.Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, total_cents=$3,
			processing_at=$4, shipped_at=$5, delivered_at=$6, cancelled_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.TotalCents, o.ProcessingAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %s: %w", o.ID, commerce.ErrNotFound)
	}
	return nil
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]commerce.OrderItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return collectOrderItems(rows)
}

func (t *pgTx) LockPaymentByReference(ctx context.Context, reference string) (commerce.Payment, bool, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, paymentColumns+`
		FROM payments WHERE reference=$1 FOR UPDATE`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.Payment{}, false, nil
	}
	if err != nil {
		return commerce.Payment{}, false, err
	}
	return p, true, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p commerce.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (id, user_id, order_id, reference, amount_cents,
			status, provider_response, verified_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, p.OrderID, p.Reference, p.AmountCents,
		p.Status, p.ProviderResponse, p.VerifiedAt, p.CreatedAt)
	return err
}

func (t *pgTx) UpdatePayment(ctx context.Context, p commerce.Payment) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE payments SET status=$2, amount_cents=$3, provider_response=$4, verified_at=$5
		WHERE id=$1`,
		p.ID, p.Status, p.AmountCents, p.ProviderResponse, p.VerifiedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("payment %s: %w", p.ID, commerce.ErrNotFound)
	}
	return nil
}

const orderColumns = `SELECT id, user_id, status, total_cents, created_at,
	processing_at, shipped_at, delivered_at, cancelled_at`

const paymentColumns = `SELECT id, user_id, order_id, reference, amount_cents,
	status, provider_response, verified_at, created_at`

func scanProduct(row pgx.Row, id string) (commerce.Product, error) {
	var p commerce.Product
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.Product{}, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return p, err
}

func scanOrder(row pgx.Row, id string) (commerce.Order, error) {
	var o commerce.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt,
		&o.ProcessingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return commerce.Order{}, fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	return o, err
}

func scanOrderRow(rows pgx.Rows) (commerce.Order, error) {
	var o commerce.Order
	err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt,
		&o.ProcessingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	return o, err
}

func scanPayment(row pgx.Row) (commerce.Payment, error) {
	var p commerce.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.Reference, &p.AmountCents,
		&p.Status, &p.ProviderResponse, &p.VerifiedAt, &p.CreatedAt)
	return p, err
}

func collectCartItems(rows pgx.Rows) ([]commerce.CartItem, error) {
	defer rows.Close()
	var out []commerce.CartItem
	for rows.Next() {
		var it commerce.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func collectOrderItems(rows pgx.Rows) ([]commerce.OrderItem, error) {
	defer rows.Close()
	var out []commerce.OrderItem
	for rows.Next() {
		var it commerce.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
