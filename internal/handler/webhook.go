package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/terakoya-app/terakoya/internal/payment"
	"github.com/terakoya-app/terakoya/internal/reconcile"
)

// maxWebhookBody bounds provider payloads; real events are a few KB.
const maxWebhookBody = 65536

type WebhookHandler struct {
	payments   *payment.Client
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(payments *payment.Client, reconciler *reconcile.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments:   payments,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleStripeWebhook verifies the event signature and applies the
// event to the ledger. Signature failures return 400 so the provider
// retries; fulfillment failures are logged but acknowledged with 200,
// since replaying a poisoned event forever helps nobody.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.payments.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	out := h.reconciler.HandleEvent(event)
	if out.Err != nil {
		h.logger.Error("webhook fulfillment failed", "event", event.ID, "type", event.Type, "error", out.Err)
	}
	if out.NotifyErr != nil {
		h.logger.Warn("webhook notification failed", "event", event.ID, "error", out.NotifyErr)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
