package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider is the external payment gateway contract.
type Provider interface {
	VerifyTransaction(ctx context.Context, reference string) (VerifyResult, error)
}

// Settlement converges the synchronous verify call and the webhook onto one
// invariant: a reference settles at most once. The uniqueness constraint on
// payment references plus the already-verified check inside the same lock
// scope as the status write is the idempotency mechanism; under a
// verify/webhook race exactly one caller wins the verified transition and
// the loser observes a no-op.
type Settlement struct {
	Store    commerce.Store
	Provider Provider
	Ledger   *inventory.Ledger
	Secret   string
	Log      *zap.Logger

	Now   func() time.Time
	NewID func() string
}

func NewSettlement(store commerce.Store, provider Provider, ledger *inventory.Ledger, secret string, log *zap.Logger) *Settlement {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settlement{
		Store:    store,
		Provider: provider,
		Ledger:   ledger,
		Secret:   secret,
		Log:      log,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// SettleResult reports what the settlement produced. Idempotent is true when
// the reference was already verified and the call was a no-op.
type SettleResult struct {
	Order      commerce.Order
	Payment    commerce.Payment
	Idempotent bool
}

// VerifyAndSettle is the synchronous entry point: confirm the transaction
// with the provider (before any local transaction opens), then within one
// transaction lock the referenced products, validate stock aggregating every
// short line, create the order in processing, deduct stock, snapshot prices
// and record the verified payment.
//
// If the order total disagrees with the provider-reported amount the payment
// is flagged failed but the order and stock deduction stand; the mismatch
// comes back as an AmountMismatchError next to the committed result.
func (s *Settlement) VerifyAndSettle(ctx context.Context, userID, reference string, items []commerce.ItemQty) (SettleResult, error) {
	if len(items) == 0 {
		return SettleResult{}, fmt.Errorf("settlement for %s: no items", reference)
	}

	verified, err := s.Store.HasVerifiedPayment(ctx, reference)
	if err != nil {
		return SettleResult{}, err
	}
	if verified {
		return SettleResult{}, commerce.ErrAlreadyVerified
	}

	// External call stays outside the transaction so a slow gateway never
	// holds local locks.
	res, err := s.Provider.VerifyTransaction(ctx, reference)
	if err != nil {
		return SettleResult{}, err
	}
	if res.Status != "success" {
		return SettleResult{}, fmt.Errorf("provider status %q: %w", res.Status, commerce.ErrVerificationFailed)
	}

	var (
		out      SettleResult
		mismatch *commerce.AmountMismatchError
	)
	err = s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		existing, found, err := tx.LockPaymentByReference(ctx, reference)
		if err != nil {
			return err
		}
		if found {
			// Lost the race or the payment was initialized elsewhere: settle
			// in place instead of creating a second order.
			return s.settleExisting(ctx, tx, existing, res, &out)
		}

		products, short, err := s.Ledger.ReserveAll(ctx, tx, items)
		if err != nil {
			return err
		}
		if len(short) > 0 {
			return &commerce.OutOfStockError{Lines: short}
		}

		now := s.Now()
		order := commerce.Order{
			ID:        s.NewID(),
			UserID:    userID,
			CreatedAt: now,
		}
		commerce.StampStatus(&order, commerce.StatusProcessing, now)

		var orderItems []commerce.OrderItem
		for _, it := range items {
			p := products[it.ProductID]
			orderItems = append(orderItems, commerce.OrderItem{
				ID:         s.NewID(),
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
		if err := tx.InsertOrderItems(ctx, orderItems); err != nil {
			return err
		}

		payment := commerce.Payment{
			ID:               s.NewID(),
			UserID:           userID,
			OrderID:          order.ID,
			Reference:        reference,
			AmountCents:      res.AmountCents,
			Status:           commerce.PaymentVerified,
			ProviderResponse: res.Raw,
			VerifiedAt:       &now,
			CreatedAt:        now,
		}

		// Reconcile. A mismatch flags the payment failed but does not abort:
		// the order and the stock deduction are kept.
		if order.TotalCents != res.AmountCents {
			payment.Status = commerce.PaymentFailed
			mismatch = &commerce.AmountMismatchError{
				OrderID:         order.ID,
				OrderTotalCents: order.TotalCents,
				AmountPaidCents: res.AmountCents,
			}
		}

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		out = SettleResult{Order: order, Payment: payment}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}
	if mismatch != nil {
		s.Log.Warn("payment amount mismatch",
			zap.String("order_id", mismatch.OrderID),
			zap.Int("order_total_cents", mismatch.OrderTotalCents),
			zap.Int("amount_paid_cents", mismatch.AmountPaidCents))
		return out, mismatch
	}

	s.Log.Info("payment settled",
		zap.String("order_id", out.Order.ID),
		zap.String("reference", reference),
		zap.Bool("idempotent", out.Idempotent))
	return out, nil
}

// settleExisting flips an already-present payment row to verified and
// advances its order, inside the caller's lock scope. An already-verified
// row makes the whole call an idempotent no-op.
func (s *Settlement) settleExisting(ctx context.Context, tx commerce.Tx, p commerce.Payment, res VerifyResult, out *SettleResult) error {
	order, err := tx.LockOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if p.Status == commerce.PaymentVerified {
		*out = SettleResult{Order: order, Payment: p, Idempotent: true}
		return nil
	}

	now := s.Now()
	p.Status = commerce.PaymentVerified
	p.AmountCents = res.AmountCents
	p.VerifiedAt = &now
	if len(res.Raw) > 0 {
		p.ProviderResponse = res.Raw
	}
	if err := tx.UpdatePayment(ctx, p); err != nil {
		return err
	}

	commerce.StampStatus(&order, commerce.StatusProcessing, now)
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return err
	}
	*out = SettleResult{Order: order, Payment: p}
	return nil
}

// WebhookOutcome distinguishes the no-op answers a webhook must return 200
// for from an actual settlement.
type WebhookOutcome struct {
	Settled    bool
	Ignored    bool // non-success event type
	Idempotent bool // reference already verified
	Order      commerce.Order
	Payment    commerce.Payment
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int    `json:"amount"`
	} `json:"data"`
}

// HandleWebhookEvent verifies the signature over the exact raw body (failing
// closed), ignores everything but the success event, and settles the
// already-initialized Payment+Order pair under the reference lock. The
// webhook never creates a payment: an unknown reference is NotFound.
func (s *Settlement) HandleWebhookEvent(ctx context.Context, rawBody []byte, signature string) (WebhookOutcome, error) {
	if !VerifySignature(s.Secret, rawBody, signature) {
		return WebhookOutcome{}, commerce.ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return WebhookOutcome{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.Event != EventChargeSuccess {
		return WebhookOutcome{Ignored: true}, nil
	}

	var out WebhookOutcome
	err := s.Store.WithTx(ctx, func(tx commerce.Tx) error {
		p, found, err := tx.LockPaymentByReference(ctx, ev.Data.Reference)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("payment for reference %s: %w", ev.Data.Reference, commerce.ErrNotFound)
		}
		if p.Status == commerce.PaymentVerified {
			out = WebhookOutcome{Idempotent: true, Payment: p}
			return nil
		}

		order, err := tx.LockOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}

		now := s.Now()
		p.Status = commerce.PaymentVerified
		p.AmountCents = ev.Data.Amount
		p.VerifiedAt = &now
		p.ProviderResponse = rawBody
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}

		commerce.StampStatus(&order, commerce.StatusProcessing, now)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		out = WebhookOutcome{Settled: true, Order: order, Payment: p}
		return nil
	})
	if err != nil {
		return WebhookOutcome{}, err
	}

	if out.Settled {
		s.Log.Info("webhook settled payment",
			zap.String("reference", ev.Data.Reference),
			zap.String("order_id", out.Order.ID))
	}
	return out, nil
}
