package commerce

import "context"

// Store is the persistence boundary of the settlement core. Reads outside a
// transaction are plain snapshots; every read-modify-write goes through
// WithTx so row locks are held until commit or rollback.
type Store interface {
	// WithTx runs fn inside one transaction. A non-nil error from fn aborts
	// the whole transaction; nothing partial is ever visible.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetProduct(ctx context.Context, id string) (Product, error)
	GetCartItems(ctx context.Context, cartID string) ([]CartItem, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	ListUserOrders(ctx context.Context, userID string) ([]Order, error)
	GetPaymentByReference(ctx context.Context, reference string) (Payment, bool, error)
	HasVerifiedPayment(ctx context.Context, reference string) (bool, error)
}

// Tx exposes the row-level operations available inside a transaction. Lock*
// methods take an exclusive lock on the row (SELECT ... FOR UPDATE or the
// store's equivalent) for the rest of the transaction.
type Tx interface {
	// LockProducts locks the given product rows in ascending id order
	// regardless of input order, so concurrent multi-product transactions
	// cannot deadlock on each other. Missing ids are simply absent from the
	// returned map.
	LockProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// GetProduct is a plain read inside the transaction, no lock taken.
	GetProduct(ctx context.Context, id string) (Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error

	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	LockCartItem(ctx context.Context, itemID, userID string) (CartItem, error)
	LockCartItemByProduct(ctx context.Context, cartID, productID string) (CartItem, bool, error)
	UpsertCartItem(ctx context.Context, item CartItem) error
	DeleteCartItem(ctx context.Context, itemID string) error
	CartItems(ctx context.Context, cartID string) ([]CartItem, error)

	InsertOrder(ctx context.Context, o Order) error
	InsertOrderItems(ctx context.Context, items []OrderItem) error
	LockOrder(ctx context.Context, orderID string) (Order, error)
	LockUserOrder(ctx context.Context, orderID, userID string) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)

	LockPaymentByReference(ctx context.Context, reference string) (Payment, bool, error)
	InsertPayment(ctx context.Context, p Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
}
