package cart

import (
	"context"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/google/uuid"
)

// Service mutates the per-user cart. Stock is only checked optimistically —
// nothing is reserved for cart contents — but every mutation locks the
// affected cart line so concurrent add/update/remove cannot lose updates.
type Service struct {
	Store commerce.Store

	Now   func() time.Time
	NewID func() string
}

func NewService(store commerce.Store) *Service {
	return &Service{Store: store, Now: time.Now, NewID: uuid.NewString}
}

// View is a cart with its lines priced against the live catalog.
type View struct {
	Cart     commerce.Cart
	Items    []Line
	TotalQty int
	Subtotal int
}

type Line struct {
	Item          commerce.CartItem
	ProductName   string
	PriceCents    int
	SubtotalCents int
}

// GetOrCreate returns the user's cart, creating an empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (View, error) {
	var (
		cart  commerce.Cart
		items []commerce.CartItem
	)
	err := s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		c, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		cart = c
		items, err = tx.CartItems(ctx, c.ID)
		return err
	})
	if err != nil {
		return View{}, err
	}
	return s.buildView(ctx, cart, items)
}

func (s *Service) buildView(ctx context.Context, cart commerce.Cart, items []commerce.CartItem) (View, error) {
	v := View{Cart: cart}
	for _, it := range items {
		p, err := s.Store.GetProduct(ctx, it.ProductID)
		if err != nil {
			return View{}, err
		}
		line := Line{
			Item:          it,
			ProductName:   p.Name,
			PriceCents:    p.PriceCents,
			SubtotalCents: p.PriceCents * it.Qty,
		}
		v.Items = append(v.Items, line)
		v.TotalQty += it.Qty
		v.Subtotal += line.SubtotalCents
	}
	return v, nil
}

// Add combines qty with any existing line for the product. The check is
// against the combined quantity: if it exceeds current stock the error
// reports how many can still be added.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (View, error) {
	product, err := s.Store.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}

	err = s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		item, found, err := tx.LockCartItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		if !found {
			item = commerce.CartItem{
				ID:        s.NewID(),
				CartID:    cart.ID,
				ProductID: productID,
				AddedAt:   s.Now(),
			}
		}

		newQty := item.Qty + qty
		if newQty > product.Stock {
			available := product.Stock - item.Qty
			if available < 0 {
				available = 0
			}
			return &commerce.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
		}
		item.Qty = newQty
		return tx.UpsertCartItem(ctx, item)
	})
	if err != nil {
		return View{}, err
	}
	return s.GetOrCreate(ctx, userID)
}

// SetQuantity replaces the line's quantity with an absolute value, checked
// against current stock.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID string, qty int) (View, error) {
	err := s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		item, err := tx.LockCartItem(ctx, itemID, userID)
		if err != nil {
			return err
		}
		product, err := tx.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return &commerce.InsufficientStockError{ProductID: item.ProductID, Requested: qty, Available: product.Stock}
		}
		item.Qty = qty
		return tx.UpsertCartItem(ctx, item)
	})
	if err != nil {
		return View{}, err
	}
	return s.GetOrCreate(ctx, userID)
}

// Remove deletes the line.
func (s *Service) Remove(ctx context.Context, userID, itemID string) (View, error) {
	err := s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		item, err := tx.LockCartItem(ctx, itemID, userID)
		if err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
	if err != nil {
		return View{}, err
	}
	return s.GetOrCreate(ctx, userID)
}

// Report is the pre-checkout consistency check result.
type Report struct {
	Valid     bool                     `json:"valid"`
	OverLimit []commerce.StockShortage `json:"over_limit,omitempty"`
}

// Validate compares every cart line against live stock without mutating
// anything. Lines over the limit come back with the available quantity.
func (s *Service) Validate(ctx context.Context, userID string) (Report, error) {
	view, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Valid: true}
	for _, line := range view.Items {
		p, err := s.Store.GetProduct(ctx, line.Item.ProductID)
		if err != nil {
			return Report{}, err
		}
		if line.Item.Qty > p.Stock {
			rep.Valid = false
			rep.OverLimit = append(rep.OverLimit, commerce.StockShortage{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   line.Item.Qty,
				Available:   p.Stock,
			})
		}
	}
	return rep, nil
}
