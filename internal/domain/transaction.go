// internal/domain/transaction.go
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Direction is the sign of a wallet movement.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Wallet transaction types written by the ledger itself. Callers may use any other
// free-text type.
const (
	TxTypeWalletTopUp          = "wallet_topup"
	TxTypeAITokenPurchase      = "ai_token_purchase"
	TxTypeAITokenUsage         = "ai_token_usage"
	TxTypeAutoTopUp            = "auto_top_up"
	TxTypeFreeMonthlyTokens    = "free_monthly_tokens"
	TxTypeProviderSubscription = "payment_provider_subscription"
	TxTypeProviderRenewal      = "payment_provider_renewal"
	TxTypeRevenueCredit        = "revenue_credit"
	TxTypeRevenueReversal      = "revenue_reversal"
)

// Entry describes why a wallet moved.
type Entry struct {
	Type      string
	Reference string         // Optional idempotency key, unique per (wallet, type)
	Metadata  map[string]any // Stored as JSONB
}

// WalletTransaction is an append-only record of one balance movement.
type WalletTransaction struct {
	ID           int64           `db:"id" json:"id"`
	WalletID     int64           `db:"wallet_id" json:"wallet_id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	TeamID       *int64          `db:"team_id" json:"team_id"`
	Direction    Direction       `db:"direction" json:"direction"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`               // Always positive, NUMERIC(20, 4) in DB
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"` // Wallet balance once applied
	Type         string          `db:"type" json:"type"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	Metadata     types.JSONText  `db:"metadata" json:"metadata"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// NewWalletTransaction builds the record for a movement on wallet.
func NewWalletTransaction(wallet *WalletAccount, dir Direction, amount, balanceAfter decimal.Decimal, entry Entry) (*WalletTransaction, error) {
	meta := types.JSONText("{}")
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal transaction metadata: %w", err)
		}
		meta = types.JSONText(raw)
	}
	var ref *string
	if entry.Reference != "" {
		r := entry.Reference
		ref = &r
	}
	return &WalletTransaction{
		WalletID:     wallet.ID,
		UserID:       wallet.UserID,
		TeamID:       wallet.TeamID,
		Direction:    dir,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Type:         entry.Type,
		Reference:    ref,
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SignedAmount is positive for credits and negative for debits.
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
