package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/payments"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decode reads a JSON body into v and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json")
	}
	return validate.Struct(v)
}

// statusFor maps domain errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, payments.ErrAmountMismatch):
		return http.StatusUnprocessableEntity, "amount does not match order"
	case errors.Is(err, orders.ErrConflict):
		return http.StatusConflict, "payment already in progress or completed"
	case errors.Is(err, payments.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "payment provider unavailable, try again"
	case errors.Is(err, orders.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid order"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
