package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
)

const (
	DefaultBaseURL = "https://api.paystack.co"

	// SignatureHeader carries the HMAC-SHA512 of the raw webhook body.
	SignatureHeader = "x-paystack-signature"

	// EventChargeSuccess is the only webhook event type that settles.
	EventChargeSuccess = "charge.success"
)

// VerifyResult is the provider's view of a transaction. Amount is in
// subunits (kobo), which is also how prices are stored, so reconciliation
// compares directly.
type VerifyResult struct {
	Status      string
	AmountCents int
	Raw         json.RawMessage
}

// Client talks to the Paystack API with bearer-token auth. The provider call
// always happens before the local transaction opens, so the bounded timeout
// here is the only thing a slow gateway can hold up.
type Client struct {
	BaseURL string
	Secret  string
	HTTP    *http.Client
}

func NewClient(secret string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Secret:  secret,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type verifyEnvelope struct {
	Status bool            `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type verifyData struct {
	Status string `json:"status"`
	Amount int    `json:"amount"`
}

// VerifyTransaction fetches the transaction state for reference. Transport
// and non-2xx failures are gateway errors; a provider-side "not successful"
// answer is a verification failure. Neither mutates anything locally.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (VerifyResult, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", c.BaseURL, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", commerce.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: read response: %v", commerce.ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return VerifyResult{}, fmt.Errorf("%w: status %d", commerce.ErrGateway, resp.StatusCode)
	}

	var env verifyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: decode response: %v", commerce.ErrGateway, err)
	}
	if !env.Status {
		return VerifyResult{}, commerce.ErrVerificationFailed
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: decode data: %v", commerce.ErrGateway, err)
	}
	return VerifyResult{Status: data.Status, AmountCents: data.Amount, Raw: env.Data}, nil
}

// VerifySignature checks the webhook signature: hex-encoded HMAC-SHA512 of
// the exact raw body under the shared secret, compared in constant time.
// Fails closed on a missing header.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(signature))
}

// Sign produces the signature a webhook sender would attach; used by tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
