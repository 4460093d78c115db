// internal/api/handler/wallet.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
)

// WalletHandler handles HTTP requests related to wallet operations.
type WalletHandler struct {
	wallets  service.WalletService
	payments service.PaymentService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallets service.WalletService, payments service.PaymentService) *WalletHandler {
	return &WalletHandler{wallets: wallets, payments: payments}
}

// TopUpRequest represents the request body for a wallet top-up.
type TopUpRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required,gt=0,lte=100000"`
	Currency   string          `json:"currency" validate:"omitempty,len=3"`
	Email      string          `json:"email" validate:"omitempty,email"`
	Name       string          `json:"name" validate:"omitempty,max=200"`
	SuccessURL string          `json:"success_url" validate:"omitempty,url"`
	CancelURL  string          `json:"cancel_url" validate:"omitempty,url"`
}

func (req TopUpRequest) toService() service.TopUpRequest {
	return service.TopUpRequest{
		Amount:     req.Amount,
		Currency:   req.Currency,
		Email:      req.Email,
		Name:       req.Name,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
}

// Balances returns all wallets of the caller.
// GET /api/wallet/balances
func (h *WalletHandler) Balances(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	wallets, err := h.wallets.Wallets(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, map[string]any{"wallets": wallets})
}

// Transactions returns the history of one wallet kind.
// GET /api/wallet/{kind}/transactions
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	kind := domain.WalletKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		respondWithError(w, r, util.ErrInvalidInput)
		return
	}
	limit, offset := pagination(r)

	transactions, total, err := h.wallets.History(r.Context(), o, kind, limit, offset)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, types.NewPage(transactions, limit, offset, total))
}

// TopUpIntent creates a payment intent on the platform account.
// POST /api/wallet/topup/intent
func (h *WalletHandler) TopUpIntent(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req TopUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	intent, err := h.payments.TopUpIntent(r.Context(), o, req.toService())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusCreated, intent)
}

// TopUpCheckout creates a hosted checkout session on the platform account.
// POST /api/wallet/topup/checkout
func (h *WalletHandler) TopUpCheckout(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	var req TopUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	session, err := h.payments.TopUpCheckout(r.Context(), o, req.toService())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusCreated, session)
}
