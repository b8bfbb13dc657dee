package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-order-payments/internal/webhook"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBody caps provider deliveries; Stripe events are far smaller.
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	Receiver *webhook.Receiver
	Log      *zap.Logger
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/stripe", h.stripe)
}

func (h *WebhookHandler) stripe(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	outcome, err := h.Receiver.Receive(r.Context(), raw, r.Header.Get("Stripe-Signature"))
	switch outcome {
	case webhook.Ack:
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	case webhook.Reject:
		msg := "rejected"
		if errors.Is(err, webhook.ErrInvalidSignature) {
			msg = "invalid signature"
		}
		writeError(w, http.StatusBadRequest, msg)
	default:
		h.Log.Error("webhook processing failed, provider will retry", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "retry later")
	}
}
