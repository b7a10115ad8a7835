package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{BaseURL: srv.URL, Secret: "sk_test_secret", HTTP: srv.Client()}
}

func TestVerifyTransactionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref_123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"status":true,"data":{"status":"success","amount":5000,"reference":"ref_123"}}`))
	}))
	defer srv.Close()

	res, err := testClient(srv).VerifyTransaction(context.Background(), "ref_123")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Status != "success" || res.AmountCents != 5000 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Raw) == 0 {
		t.Fatal("raw payload not captured")
	}
}

func TestVerifyTransactionProviderDeclines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).VerifyTransaction(context.Background(), "ref_missing")
	if !errors.Is(err, commerce.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyTransactionGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv).VerifyTransaction(context.Background(), "ref_123")
	if !errors.Is(err, commerce.ErrGateway) {
		t.Fatalf("expected ErrGateway on 500, got %v", err)
	}

	// transport failure, nothing listening
	down := &Client{BaseURL: "http://127.0.0.1:1", Secret: "s", HTTP: srv.Client()}
	_, err = down.VerifyTransaction(context.Background(), "ref_123")
	if !errors.Is(err, commerce.ErrGateway) {
		t.Fatalf("expected ErrGateway on transport error, got %v", err)
	}
}

func TestVerifyTransactionGarbledResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv).VerifyTransaction(context.Background(), "ref_123")
	if !errors.Is(err, commerce.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	if !VerifySignature(secret, body, Sign(secret, body)) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature(secret, body, "") {
		t.Fatal("missing signature accepted")
	}
	if VerifySignature(secret, body, Sign("wrong-secret", body)) {
		t.Fatal("signature under wrong secret accepted")
	}

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = '2'
	if VerifySignature(secret, tampered, Sign(secret, body)) {
		t.Fatal("tampered body accepted")
	}
}
