package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/payments"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type PaymentsHandler struct {
	Settlement       *payments.Settlement
	ProducerVerified *kafkax.Producer
	Redis            *redis.Client
	Metrics          *metrics.Metrics
	Validate         *validatorv10.Validate
	Service          string
}

type verifyReq struct {
	Reference string           `json:"reference" validate:"required"`
	Items     []orderItemInput `json:"items" validate:"required,min=1,dive"`
}

// Register mounts the authenticated verify endpoint; the webhook is mounted
// separately because the provider calls it unauthenticated.
func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments/paystack/verify", h.verify)
}

func (h *PaymentsHandler) RegisterPublic(r chi.Router) {
	r.Post("/payments/paystack/webhook", h.webhook)
}

func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	if err := decodeAndValidate(w, r, &req, h.Validate); err != nil {
		return
	}
	id, _ := identity(r)

	// Provider timeout dominates here, keep the request budget above it.
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	items := make([]commerce.ItemQty, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, commerce.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}

	res, err := h.Settlement.VerifyAndSettle(ctx, id.UserID, req.Reference, items)

	var mismatch *commerce.AmountMismatchError
	if errors.As(err, &mismatch) {
		// The order and stock deduction committed; only the payment is
		// flagged. Surface both facts.
		h.Metrics.Settlements.WithLabelValues("mismatch").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "amount_mismatch",
			"detail":            "Payment amount does not match order total.",
			"order_id":          mismatch.OrderID,
			"order_total_cents": mismatch.OrderTotalCents,
			"amount_paid_cents": mismatch.AmountPaidCents,
		})
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, commerce.ErrAlreadyVerified):
			h.Metrics.Settlements.WithLabelValues("idempotent").Inc()
		case errors.Is(err, commerce.ErrGateway), errors.Is(err, commerce.ErrVerificationFailed):
			h.Metrics.Settlements.WithLabelValues("rejected").Inc()
		default:
			h.Metrics.Settlements.WithLabelValues("error").Inc()
		}
		writeError(w, err)
		return
	}

	if res.Idempotent {
		h.Metrics.Settlements.WithLabelValues("idempotent").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"detail":   "Payment already verified.",
			"order_id": res.Order.ID,
		})
		return
	}

	h.Metrics.Settlements.WithLabelValues("settled").Inc()
	idemKey := fmt.Sprintf(redisx.KeyIdemPaymentVerify, req.Reference)
	_ = h.Redis.Set(ctx, idemKey, res.Order.ID, redisx.TTLIdempotency).Err()
	h.cacheStatus(ctx, res.Order.ID, res.Order.Status)
	h.publishVerified(r, res, "verify")

	writeJSON(w, http.StatusCreated, map[string]any{
		"detail":      "Payment verified and order created successfully.",
		"order_id":    res.Order.ID,
		"total_cents": res.Order.TotalCents,
	})
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request_body"})
		return
	}
	signature := r.Header.Get(payments.SignatureHeader)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Settlement.HandleWebhookEvent(ctx, body, signature)
	if err != nil {
		switch {
		case errors.Is(err, commerce.ErrInvalidSignature):
			h.Metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		case errors.Is(err, commerce.ErrNotFound):
			h.Metrics.WebhookEvents.WithLabelValues("error").Inc()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "detail": "Payment record not found."})
			return
		default:
			h.Metrics.WebhookEvents.WithLabelValues("error").Inc()
		}
		writeError(w, err)
		return
	}

	switch {
	case out.Ignored:
		h.Metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Event ignored."})
	case out.Idempotent:
		h.Metrics.WebhookEvents.WithLabelValues("idempotent").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Payment already verified."})
	default:
		h.Metrics.WebhookEvents.WithLabelValues("settled").Inc()
		h.cacheStatus(ctx, out.Order.ID, out.Order.Status)
		h.publishVerified(r, payments.SettleResult{Order: out.Order, Payment: out.Payment}, "webhook")
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Webhook processed successfully."})
	}
}

func (h *PaymentsHandler) cacheStatus(ctx context.Context, orderID string, status commerce.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, status), redisx.TTLStatusCache).Err()
}

func (h *PaymentsHandler) publishVerified(r *http.Request, res payments.SettleResult, source string) {
	ev := commerce.Envelope{
		EventID:       uuid.NewString(),
		EventType:     commerce.EventPaymentVerified,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: res.Order.ID,
		Payload: kafkax.MustMarshal(commerce.PaymentVerifiedPayload{
			OrderID:     res.Order.ID,
			Reference:   res.Payment.Reference,
			AmountCents: res.Payment.AmountCents,
			Source:      source,
		}),
	}
	h.ProducerVerified.Publish(commerce.PartitionKey(res.Order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(commerce.EventPaymentVerified)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
