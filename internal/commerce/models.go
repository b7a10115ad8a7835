package commerce

import (
	"encoding/json"
	"time"
)

// Product belongs to the catalog; the core only reads price and mutates
// stock under a row lock.
type Product struct {
	ID         string
	Name       string
	PriceCents int
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Cart is owned one-to-one by a user.
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem: at most one line per (cart, product), enforced by a unique index.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	Qty       int
	AddedAt   time.Time
}

type Order struct {
	ID           string
	UserID       string
	Status       Status
	TotalCents   int
	CreatedAt    time.Time
	ProcessingAt *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
}

// OrderItem snapshots the product price at order time; it is never
// recomputed from the live catalog.
type OrderItem struct {
	ID         string
	OrderID    string
	ProductID  string
	Qty        int
	PriceCents int
}

type PaymentStatus string

const (
	PaymentInitialized PaymentStatus = "initialized"
	PaymentVerified    PaymentStatus = "verified"
	PaymentFailed      PaymentStatus = "failed"
)

// Payment is one-to-one with an Order. Reference is globally unique and is
// the idempotency key across the verify and webhook paths.
type Payment struct {
	ID               string
	UserID           string
	OrderID          string
	Reference        string
	AmountCents      int
	Status           PaymentStatus
	ProviderResponse json.RawMessage
	VerifiedAt       *time.Time
	CreatedAt        time.Time
}

// ItemQty is the (product, quantity) input shape shared by cart checkout,
// order creation and payment settlement.
type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
