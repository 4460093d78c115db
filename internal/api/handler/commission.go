package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
)

// CommissionHandler reports the platform's commissions on the caller's transactions.
type CommissionHandler struct {
	commissions service.CommissionService
}

func NewCommissionHandler(commissions service.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissions: commissions}
}

// GET /api/commissions
func (h *CommissionHandler) List(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	commissions, total, err := h.commissions.List(r.Context(), o, limit, offset)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	types.JSON(w, http.StatusOK, types.NewPage(commissions, limit, offset, total))
}

// GET /api/commissions/summary
func (h *CommissionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	summary, err := h.commissions.Summary(r.Context(), o)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if summary == nil {
		summary = []domain.CommissionSummary{}
	}
	types.JSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// Quote previews the fee breakdown of an amount without recording anything.
// GET /api/commissions/quote?type=payment&amount=500&provider=stripe
func (h *CommissionHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil || !amount.IsPositive() {
		respondWithError(w, r, util.ErrInvalidInput)
		return
	}
	txType := domain.CommissionType(q.Get("type"))
	if txType == "" {
		txType = domain.CommissionTypePayment
	}
	types.JSON(w, http.StatusOK, h.commissions.Calculate(txType, amount, q.Get("provider")))
}
