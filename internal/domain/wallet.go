// internal/domain/wallet.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// WalletKind distinguishes the balances a tenant holds.
type WalletKind string

const (
	WalletKindMain    WalletKind = "main"     // Spendable money balance
	WalletKindAIToken WalletKind = "ai_token" // Whole AI tokens
	WalletKindRevenue WalletKind = "revenue"  // Tenant earnings after platform fees
)

// TokenCurrency is the pseudo-currency of AI token wallets.
const TokenCurrency = "TOKEN"

// Valid reports whether k is a known wallet kind.
func (k WalletKind) Valid() bool {
	switch k {
	case WalletKindMain, WalletKindAIToken, WalletKindRevenue:
		return true
	}
	return false
}

// Owner identifies who a wallet, config or commission belongs to.
// A nil TeamID means the user's personal (non-team) context.
type Owner struct {
	UserID int64  `json:"user_id"`
	TeamID *int64 `json:"team_id,omitempty"`
}

// NewOwner builds an Owner, treating a non-positive team id as "no team".
func NewOwner(userID int64, teamID *int64) Owner {
	if teamID != nil && *teamID <= 0 {
		teamID = nil
	}
	return Owner{UserID: userID, TeamID: teamID}
}

// HasTeam reports whether the owner acts within a team.
func (o Owner) HasTeam() bool {
	return o.TeamID != nil
}

// TeamKey returns the team id, or 0 for personal context. Matches COALESCE(team_id, 0) in SQL.
func (o Owner) TeamKey() int64 {
	if o.TeamID == nil {
		return 0
	}
	return *o.TeamID
}

func (o Owner) String() string {
	if o.TeamID == nil {
		return fmt.Sprintf("user:%d", o.UserID)
	}
	return fmt.Sprintf("user:%d/team:%d", o.UserID, *o.TeamID)
}

// WalletAccount is one balance of one kind for one owner.
type WalletAccount struct {
	ID        int64           `db:"id" json:"id"`                 // Primary key, BIGSERIAL in DB
	UserID    int64           `db:"user_id" json:"user_id"`       // Owning user
	TeamID    *int64          `db:"team_id" json:"team_id"`       // Owning team, NULL for personal wallets
	Kind      WalletKind      `db:"kind" json:"kind"`             // main, ai_token or revenue
	Currency  string          `db:"currency" json:"currency"`     // e.g. "USD", or TOKEN for ai_token wallets
	Balance   decimal.Decimal `db:"balance" json:"balance"`       // NUMERIC(20, 4) in DB, never negative
	CreatedAt time.Time       `db:"created_at" json:"created_at"` // Timestamp of creation
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"` // Timestamp of last update
}

// NewWalletAccount creates a zero-balance wallet.
func NewWalletAccount(owner Owner, kind WalletKind, currency string) *WalletAccount {
	if kind == WalletKindAIToken {
		currency = TokenCurrency
	}
	now := time.Now().UTC()
	return &WalletAccount{
		UserID:    owner.UserID,
		TeamID:    owner.TeamID,
		Kind:      kind,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Owner returns the wallet's owner.
func (w *WalletAccount) Owner() Owner {
	return Owner{UserID: w.UserID, TeamID: w.TeamID}
}

// CanCover reports whether the balance is at least amount.
func (w *WalletAccount) CanCover(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
