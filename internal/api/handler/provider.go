package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
)

// ProviderHandler manages tenant payment gateways and charges through them.
type ProviderHandler struct {
	providers service.ProviderConfigService
	payments  service.PaymentService
}

func NewProviderHandler(providers service.ProviderConfigService, payments service.PaymentService) *ProviderHandler {
	return &ProviderHandler{providers: providers, payments: payments}
}

// ProviderListing is a catalog entry with the caller's configuration, if any.
type ProviderListing struct {
	service.ProviderSpec
	Config *domain.ProviderConfigView `json:"config,omitempty"`
}

type EnableProviderRequest struct {
	APIKey        string `json:"api_key" validate:"required,max=512"`
	APISecret     string `json:"api_secret" validate:"max=512"`
	WebhookSecret string `json:"webhook_secret" validate:"max=512"`
	TestMode      bool   `json:"test_mode"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	IsDefault     bool   `json:"is_default"`
}

type ChargeRequest struct {
	Amount          decimal.Decimal   `json:"amount" validate:"required,gt=0"`
	Currency        string            `json:"currency" validate:"omitempty,len=3"`
	Description     string            `json:"description" validate:"max=500"`
	Source          string            `json:"source" validate:"max=512"`
	ReturnURL       string            `json:"return_url" validate:"omitempty,url"`
	CancelURL       string            `json:"cancel_url" validate:"omitempty,url"`
	IdempotencyKey  string            `json:"idempotency_key" validate:"max=255"`
	TransactionType string            `json:"transaction_type" validate:"omitempty,oneof=payment subscription app_purchase"`
	Metadata        map[string]string `json:"metadata"`
}

type CompleteRequest struct {
	Reference       string `json:"reference" validate:"required,max=255"`
	TransactionType string `json:"transaction_type" validate:"omitempty,oneof=payment subscription app_purchase"`
}

// RefundRequest refunds a charge in full. Amount may be omitted or must equal the charged amount.
type RefundRequest struct {
	TransactionID string          `json:"transaction_id" validate:"required,max=255"`
	Amount        decimal.Decimal `json:"amount" validate:"gte=0"`
}

// providerParam reads {provider}; "default" selects the caller's default gateway.
func providerParam(r *http.Request) string {
	name := chi.URLParam(r, "provider")
	if name == "default" {
		return ""
	}
	return name
}

// List returns the catalog merged with the caller's configurations.
// GET /api/payment-providers
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	configs, err := h.providers.List(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	byName := make(map[string]domain.ProviderConfigView, len(configs))
	for i := range configs {
		byName[configs[i].ProviderName] = configs[i].Masked()
	}

	catalog := h.providers.Catalog()
	listings := make([]ProviderListing, 0, len(catalog))
	for _, spec := range catalog {
		listing := ProviderListing{ProviderSpec: spec}
		if view, found := byName[spec.Name]; found {
			listing.Config = &view
		}
		listings = append(listings, listing)
	}
	types.JSON(w, http.StatusOK, map[string]any{"providers": listings})
}

// POST /api/payment-providers/{provider}/enable
func (h *ProviderHandler) Enable(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req EnableProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.providers.Enable(r.Context(), o, chi.URLParam(r, "provider"), service.EnableRequest{
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		WebhookSecret: req.WebhookSecret,
		TestMode:      req.TestMode,
		Currency:      req.Currency,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, result)
}

// POST /api/payment-providers/{provider}/disable
func (h *ProviderHandler) Disable(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	provider := chi.URLParam(r, "provider")
	if err := h.providers.Disable(r.Context(), o, provider); err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"provider": provider, "disabled": true})
}

// POST /api/payment-providers/{provider}/default
func (h *ProviderHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	cfg, err := h.providers.SetDefault(r.Context(), o, chi.URLParam(r, "provider"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, cfg.Masked())
}

// Charge takes a payment through the tenant's gateway. When the gateway charged
// but the commission could not be booked the outcome is returned with 202.
// POST /api/payment-providers/{provider}/charge
func (h *ProviderHandler) Charge(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req ChargeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	outcome, err := h.payments.Charge(r.Context(), o, service.ChargeInput{
		Provider:        providerParam(r),
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		Source:          req.Source,
		ReturnURL:       req.ReturnURL,
		CancelURL:       req.CancelURL,
		IdempotencyKey:  req.IdempotencyKey,
		TransactionType: domain.CommissionType(req.TransactionType),
		Metadata:        req.Metadata,
	})
	h.respondCharge(w, r, outcome, err)
}

// POST /api/payment-providers/{provider}/complete
func (h *ProviderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	outcome, err := h.payments.Complete(r.Context(), o, providerParam(r), req.Reference, domain.CommissionType(req.TransactionType))
	h.respondCharge(w, r, outcome, err)
}

func (h *ProviderHandler) respondCharge(w http.ResponseWriter, r *http.Request, outcome *service.ChargeOutcome, err error) {
	switch {
	case err != nil && outcome != nil:
		event := util.Log(r.Context()).Error().Err(err).Str("provider", outcome.Provider)
		if outcome.Charge != nil {
			event = event.Str("transaction_id", outcome.Charge.Reference)
		}
		event.Msg("charge captured but commission booking failed")
		types.JSON(w, http.StatusAccepted, map[string]any{"outcome": outcome, "commission_pending": true})
	case err != nil:
		respondWithError(w, r, err)
	default:
		types.JSON(w, http.StatusOK, outcome)
	}
}

// POST /api/payment-providers/{provider}/refund
func (h *ProviderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	refund, err := h.payments.Refund(r.Context(), o, providerParam(r), req.TransactionID, req.Amount)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			types.Error(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
			return
		}
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, refund)
}
