package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/service"
)

// AiTokenHandler exposes the AI token economy.
type AiTokenHandler struct {
	tokens service.AiTokenService
}

func NewAiTokenHandler(tokens service.AiTokenService) *AiTokenHandler {
	return &AiTokenHandler{tokens: tokens}
}

type PurchaseRequest struct {
	PackageID int64 `json:"package_id" validate:"required,gt=0"`
}

type ConsumeRequest struct {
	Tokens   int64          `json:"tokens" validate:"required,gt=0"`
	Metadata map[string]any `json:"metadata"`
}

type SettingsRequest struct {
	AutoTopUpEnabled bool            `json:"auto_topup_enabled"`
	TopUpThreshold   int64           `json:"topup_threshold" validate:"gte=0"`
	TopUpAmount      decimal.Decimal `json:"topup_amount" validate:"gte=0,lte=10000"`
}

// GET /api/ai-tokens/balance
func (h *AiTokenHandler) Balance(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	balance, err := h.tokens.Balance(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"tokens": balance})
}

// GET /api/ai-tokens/packages
func (h *AiTokenHandler) Packages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.tokens.Packages(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"packages": packages})
}

// GET /api/ai-tokens/packages/{id}
func (h *AiTokenHandler) Package(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	pkg, err := h.tokens.Package(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, pkg)
}

// POST /api/ai-tokens/purchase
func (h *AiTokenHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req PurchaseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.tokens.PurchasePackage(r.Context(), o, req.PackageID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, result)
}

// Consume deducts tokens. A short balance is reported, not treated as an error.
// POST /api/ai-tokens/consume
func (h *AiTokenHandler) Consume(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req ConsumeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	consumed, err := h.tokens.Consume(r.Context(), o, req.Tokens, req.Metadata)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	balance, err := h.tokens.Balance(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"consumed": consumed, "tokens": balance})
}

// POST /api/ai-tokens/free-monthly
func (h *AiTokenHandler) FreeMonthly(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	granted, err := h.tokens.GrantFreeMonthly(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"granted": granted})
}

// POST /api/ai-tokens/auto-topup/check
func (h *AiTokenHandler) CheckAutoTopUp(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	result, err := h.tokens.CheckAutoTopUp(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, result)
}

// GET /api/ai-tokens/settings
func (h *AiTokenHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	settings, err := h.tokens.Settings(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, settings)
}

// PUT /api/ai-tokens/settings
func (h *AiTokenHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req SettingsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	settings, err := h.tokens.UpdateSettings(r.Context(), o, service.SettingsInput{
		AutoTopUpEnabled: req.AutoTopUpEnabled,
		TopUpThreshold:   req.TopUpThreshold,
		TopUpAmount:      req.TopUpAmount,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, settings)
}

// GET /api/ai-tokens/usage
func (h *AiTokenHandler) Usage(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	entries, total, err := h.tokens.Usage(r.Context(), o, limit, offset)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, types.NewPage(entries, limit, offset, total))
}
