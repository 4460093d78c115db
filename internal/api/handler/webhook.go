package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
)

const maxWebhookBytes = 64 << 10

// WebhookHandler receives signed gateway callbacks. It is mounted without auth.
type WebhookHandler struct {
	payments service.PaymentService
}

func NewWebhookHandler(payments service.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// Stripe handles events of the platform account.
// POST /webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, 0)
}

// StripeTenant handles events of a tenant's own Stripe account.
// POST /webhooks/stripe/{configID}
func (h *WebhookHandler) StripeTenant(w http.ResponseWriter, r *http.Request) {
	configID, err := parseID(chi.URLParam(r, "configID"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	h.handle(w, r, configID)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, configID int64) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		types.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", nil)
		return
	}
	signature := r.Header.Get("Stripe-Signature")

	if err := h.payments.HandleStripeWebhook(r.Context(), payload, signature, configID); err != nil {
		if util.IsError(err, util.ErrInvalidInput) {
			util.Log(r.Context()).Warn().Err(err).Int64("config_id", configID).Msg("rejected stripe webhook")
			types.Error(w, http.StatusBadRequest, "INVALID_WEBHOOK", "webhook could not be verified", nil)
			return
		}
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"received": true})
}
