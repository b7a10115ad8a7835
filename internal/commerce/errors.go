package commerce

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid order state")
	ErrAlreadyVerified    = errors.New("payment already verified")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrGateway            = errors.New("payment gateway error")
)

// InsufficientStockError reports how much of the product is actually left so
// the client can retry with an adjusted quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// StockShortage is one over-limit line in an aggregated stock report.
type StockShortage struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested_quantity"`
	Available   int    `json:"available_stock"`
}

// OutOfStockError aggregates every short line instead of failing on the
// first, used by the settlement path.
type OutOfStockError struct {
	Lines []StockShortage
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("some products are out of stock (%d lines)", len(e.Lines))
}

// AmountMismatchError is the reconciliation failure surfaced alongside the
// order that was already committed. Non-fatal: the order and stock deduction
// stand, the payment is flagged failed.
type AmountMismatchError struct {
	OrderID         string
	OrderTotalCents int
	AmountPaidCents int
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %d does not match order total %d for order %s",
		e.AmountPaidCents, e.OrderTotalCents, e.OrderID)
}
