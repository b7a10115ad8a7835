package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/auth"
	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/memstore"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/payments"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

const testWebhookSecret = "whsec_handler_test"

type fixedProvider struct {
	res payments.VerifyResult
	err error
}

func (p fixedProvider) VerifyTransaction(ctx context.Context, reference string) (payments.VerifyResult, error) {
	return p.res, p.err
}

// The handler only fire-and-forgets into redis and kafka; point both at
// nothing and keep the dial timeout tight so the discard path stays fast.
func newPaymentsHandler(t *testing.T, st *memstore.Store, provider payments.Provider) *PaymentsHandler {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	ledger := &inventory.Ledger{Store: st}
	return &PaymentsHandler{
		Settlement:       payments.NewSettlement(st, provider, ledger, testWebhookSecret, nil),
		ProducerVerified: kafkax.NewProducer([]string{"127.0.0.1:9092"}, commerce.TopicPaymentVerified, 16),
		Redis:            rdb,
		Metrics:          metrics.New(),
		Validate:         validatorv10.New(),
		Service:          "api-test",
	}
}

func seedHookPayment(st *memstore.Store, reference string) {
	now := time.Now()
	st.SeedOrder(commerce.Order{ID: "o1", UserID: "u1", Status: commerce.StatusPending, TotalCents: 900, CreatedAt: now})
	st.SeedPayment(commerce.Payment{
		ID: "pay1", UserID: "u1", OrderID: "o1", Reference: reference,
		AmountCents: 900, Status: commerce.PaymentInitialized, CreatedAt: now,
	})
}

func postWebhook(h *PaymentsHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/paystack/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(payments.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.webhook(rec, req)
	return rec
}

func webhookBody(t *testing.T, event, reference string, amount int) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data":  map[string]any{"reference": reference, "amount": amount},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestWebhookEndpointSettles(t *testing.T) {
	st := memstore.New()
	seedHookPayment(st, "ref_h1")
	h := newPaymentsHandler(t, st, fixedProvider{})

	body := webhookBody(t, payments.EventChargeSuccess, "ref_h1", 900)
	rec := postWebhook(h, body, payments.Sign(testWebhookSecret, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "processed") {
		t.Fatalf("body = %s", rec.Body)
	}

	p, found, err := st.GetPaymentByReference(context.Background(), "ref_h1")
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if p.Status != commerce.PaymentVerified {
		t.Fatalf("payment = %+v", p)
	}

	// redelivery answers 200 without touching anything
	rec = postWebhook(h, body, payments.Sign(testWebhookSecret, body))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "already verified") {
		t.Fatalf("redelivery: status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	st := memstore.New()
	seedHookPayment(st, "ref_h1")
	h := newPaymentsHandler(t, st, fixedProvider{})

	body := webhookBody(t, payments.EventChargeSuccess, "ref_h1", 900)
	for _, sig := range []string{"", payments.Sign("other-secret", body)} {
		rec := postWebhook(h, body, sig)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("sig %q: status = %d", sig, rec.Code)
		}
	}

	p, _, _ := st.GetPaymentByReference(context.Background(), "ref_h1")
	if p.Status != commerce.PaymentInitialized {
		t.Fatalf("rejected webhook mutated payment: %+v", p)
	}
}

func TestWebhookEndpointUnknownReference(t *testing.T) {
	h := newPaymentsHandler(t, memstore.New(), fixedProvider{})
	body := webhookBody(t, payments.EventChargeSuccess, "ref_ghost", 900)
	rec := postWebhook(h, body, payments.Sign(testWebhookSecret, body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestWebhookEndpointIgnoresOtherEvents(t *testing.T) {
	st := memstore.New()
	seedHookPayment(st, "ref_h1")
	h := newPaymentsHandler(t, st, fixedProvider{})

	body := webhookBody(t, "charge.failed", "ref_h1", 900)
	rec := postWebhook(h, body, payments.Sign(testWebhookSecret, body))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ignored") {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestVerifyEndpointCreatesOrder(t *testing.T) {
	st := memstore.New()
	st.SeedProduct(commerce.Product{ID: "p1", PriceCents: 300, Stock: 10})
	h := newPaymentsHandler(t, st, fixedProvider{res: payments.VerifyResult{
		Status: "success", AmountCents: 600, Raw: json.RawMessage(`{"status":"success"}`),
	}})

	payload := `{"reference":"ref_v1","items":[{"product_id":"p1","qty":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/payments/paystack/verify", strings.NewReader(payload))
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.verify(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		OrderID    string `json:"order_id"`
		TotalCents int    `json:"total_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCents != 600 || resp.OrderID == "" {
		t.Fatalf("resp = %+v", resp)
	}

	order, err := st.GetOrder(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != commerce.StatusProcessing {
		t.Fatalf("order = %+v", order)
	}
}

func TestVerifyEndpointAmountMismatch(t *testing.T) {
	st := memstore.New()
	st.SeedProduct(commerce.Product{ID: "p1", PriceCents: 300, Stock: 10})
	h := newPaymentsHandler(t, st, fixedProvider{res: payments.VerifyResult{
		Status: "success", AmountCents: 50, Raw: json.RawMessage(`{"status":"success"}`),
	}})

	payload := `{"reference":"ref_v2","items":[{"product_id":"p1","qty":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/payments/paystack/verify", strings.NewReader(payload))
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.verify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Error   string `json:"error"`
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "amount_mismatch" || resp.OrderID == "" {
		t.Fatalf("resp = %+v", resp)
	}

	// the order committed even though the payment was flagged
	order, err := st.GetOrder(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != commerce.StatusProcessing {
		t.Fatalf("order = %+v", order)
	}
}
