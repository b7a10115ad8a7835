package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP. Stock errors always
// carry the available quantity so the client can adjust and retry.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *commerce.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "insufficient_stock",
			"detail":     insufficient.Error(),
			"product_id": insufficient.ProductID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
		return
	}
	var oos *commerce.OutOfStockError
	if errors.As(err, &oos) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":        "out_of_stock",
			"detail":       "Some products are out of stock.",
			"out_of_stock": oos.Lines,
		})
		return
	}

	switch {
	case errors.Is(err, commerce.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "detail": err.Error()})
	case errors.Is(err, commerce.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_state", "detail": err.Error()})
	case errors.Is(err, commerce.ErrAlreadyVerified):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "already_verified", "detail": "Payment already verified."})
	case errors.Is(err, commerce.ErrVerificationFailed):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "verification_failed", "detail": "Payment verification failed."})
	case errors.Is(err, commerce.ErrGateway):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "gateway_error", "detail": err.Error()})
	case errors.Is(err, commerce.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_signature", "detail": "Invalid webhook signature."})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "detail": err.Error()})
	}
}
