// Package memstore is an in-memory commerce.Store. Transactions are
// serialized by one mutex and roll back by restoring a snapshot, which gives
// the same observable guarantees as the Postgres store (exclusive row access
// for the duration of the transaction, all-or-nothing commits). Used by
// tests and local tooling.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/google/uuid"
)

type state struct {
	products   map[string]commerce.Product
	carts      map[string]commerce.Cart // keyed by cart id
	cartByUser map[string]string        // user id -> cart id
	cartItems  map[string]commerce.CartItem
	orders     map[string]commerce.Order
	orderItems map[string]commerce.OrderItem
	payments   map[string]commerce.Payment // keyed by payment id
	payByRef   map[string]string           // reference -> payment id
}

func newState() *state {
	return &state{
		products:   map[string]commerce.Product{},
		carts:      map[string]commerce.Cart{},
		cartByUser: map[string]string{},
		cartItems:  map[string]commerce.CartItem{},
		orders:     map[string]commerce.Order{},
		orderItems: map[string]commerce.OrderItem{},
		payments:   map[string]commerce.Payment{},
		payByRef:   map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.payByRef {
		c.payByRef[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// SeedProduct loads a catalog row, for tests and local setups.
func (s *Store) SeedProduct(p commerce.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// SeedPayment loads a payment row (e.g. an initialized one awaiting a
// webhook) together with its reference index.
func (s *Store) SeedPayment(p commerce.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments[p.ID] = p
	s.st.payByRef[p.Reference] = p.ID
}

// SeedOrder loads an order row directly.
func (s *Store) SeedOrder(o commerce.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[o.ID] = o
}

func (s *Store) WithTx(ctx context.Context, fn func(tx commerce.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&memTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (commerce.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return commerce.Product{}, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetCartItems(ctx context.Context, cartID string) ([]commerce.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.st}).CartItems(ctx, cartID)
}

func (s *Store) GetOrder(ctx context.Context, id string) (commerce.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return commerce.Order{}, fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	return o, nil
}

func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]commerce.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.st}).OrderItems(ctx, orderID)
}

func (s *Store) ListUserOrders(ctx context.Context, userID string) ([]commerce.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commerce.Order
	for _, o := range s.st.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (commerce.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.st.payByRef[reference]
	if !ok {
		return commerce.Payment{}, false, nil
	}
	return s.st.payments[id], true, nil
}

func (s *Store) HasVerifiedPayment(ctx context.Context, reference string) (bool, error) {
	p, ok, err := s.GetPaymentByReference(ctx, reference)
	if err != nil || !ok {
		return false, err
	}
	return p.Status == commerce.PaymentVerified, nil
}

type memTx struct {
	st *state
}

func (t *memTx) LockProducts(ctx context.Context, ids []string) (map[string]commerce.Product, error) {
	// Lock ordering is moot here (the whole store is already serialized),
	// but keep the contract shape.
	out := make(map[string]commerce.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) GetProduct(ctx context.Context, id string) (commerce.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return commerce.Product{}, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return p, nil
}

func (t *memTx) AdjustStock(ctx context.Context, productID string, delta int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, commerce.ErrNotFound)
	}
	p.Stock += delta
	if p.Stock < 0 {
		return fmt.Errorf("stock underflow for product %s", productID)
	}
	p.UpdatedAt = time.Now()
	t.st.products[productID] = p
	return nil
}

func (t *memTx) GetOrCreateCart(ctx context.Context, userID string) (commerce.Cart, error) {
	if id, ok := t.st.cartByUser[userID]; ok {
		return t.st.carts[id], nil
	}
	c := commerce.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	t.st.carts[c.ID] = c
	t.st.cartByUser[userID] = c.ID
	return c, nil
}

func (t *memTx) LockCartItem(ctx context.Context, itemID, userID string) (commerce.CartItem, error) {
	it, ok := t.st.cartItems[itemID]
	if !ok {
		return commerce.CartItem{}, fmt.Errorf("cart item %s: %w", itemID, commerce.ErrNotFound)
	}
	cart := t.st.carts[it.CartID]
	if cart.UserID != userID {
		return commerce.CartItem{}, fmt.Errorf("cart item %s: %w", itemID, commerce.ErrNotFound)
	}
	return it, nil
}

func (t *memTx) LockCartItemByProduct(ctx context.Context, cartID, productID string) (commerce.CartItem, bool, error) {
	for _, it := range t.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return it, true, nil
		}
	}
	return commerce.CartItem{}, false, nil
}

func (t *memTx) UpsertCartItem(ctx context.Context, item commerce.CartItem) error {
	t.st.cartItems[item.ID] = item
	return nil
}

func (t *memTx) DeleteCartItem(ctx context.Context, itemID string) error {
	delete(t.st.cartItems, itemID)
	return nil
}

func (t *memTx) CartItems(ctx context.Context, cartID string) ([]commerce.CartItem, error) {
	var out []commerce.CartItem
	for _, it := range t.st.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o commerce.Order) error {
	t.st.orders[o.ID] = o
	return nil
}

func (t *memTx) InsertOrderItems(ctx context.Context, items []commerce.OrderItem) error {
	for _, it := range items {
		t.st.orderItems[it.ID] = it
	}
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, orderID string) (commerce.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return commerce.Order{}, fmt.Errorf("order %s: %w", orderID, commerce.ErrNotFound)
	}
	return o, nil
}

func (t *memTx) LockUserOrder(ctx context.Context, orderID, userID string) (commerce.Order, error) {
	o, err := t.LockOrder(ctx, orderID)
	if err != nil {
		return commerce.Order{}, err
	}
	if o.UserID != userID {
		return commerce.Order{}, fmt.Errorf("order %s: %w", orderID, commerce.ErrNotFound)
	}
	return o, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o commerce.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return fmt.Errorf("order %s: %w", o.ID, commerce.ErrNotFound)
	}
	t.st.orders[o.ID] = o
	return nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID string) ([]commerce.OrderItem, error) {
	var out []commerce.OrderItem
	for _, it := range t.st.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) LockPaymentByReference(ctx context.Context, reference string) (commerce.Payment, bool, error) {
	id, ok := t.st.payByRef[reference]
	if !ok {
		return commerce.Payment{}, false, nil
	}
	return t.st.payments[id], true, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p commerce.Payment) error {
	if _, exists := t.st.payByRef[p.Reference]; exists {
		return fmt.Errorf("payment reference %s already exists", p.Reference)
	}
	t.st.payments[p.ID] = p
	t.st.payByRef[p.Reference] = p.ID
	return nil
}

func (t *memTx) UpdatePayment(ctx context.Context, p commerce.Payment) error {
	if _, ok := t.st.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s: %w", p.ID, commerce.ErrNotFound)
	}
	t.st.payments[p.ID] = p
	return nil
}
