package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// CommissionType classifies the transaction a commission was taken on.
type CommissionType string

const (
	CommissionTypePayment              CommissionType = "payment"
	CommissionTypeSubscription         CommissionType = "subscription"
	CommissionTypeAITokens             CommissionType = "ai_tokens"
	CommissionTypeAppPurchase          CommissionType = "app_purchase"
	CommissionTypeWithdrawal           CommissionType = "withdrawal"
	CommissionTypeWalletTopUp          CommissionType = "wallet_topup"
	CommissionTypeProviderSubscription CommissionType = "payment_provider_subscription"
	CommissionTypeProviderRenewal      CommissionType = "payment_provider_renewal"
)

// SharesRevenue reports whether the tenant's share of this type is credited to
// its revenue wallet.
func (t CommissionType) SharesRevenue() bool {
	return t == CommissionTypePayment || t == CommissionTypeSubscription
}

// CommissionStatus is the lifecycle of a commission record.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusProcessed CommissionStatus = "processed"
	CommissionStatusRefunded  CommissionStatus = "refunded"
	CommissionStatusFailed    CommissionStatus = "failed"
)

// Refundable reports whether a commission in this status can move to refunded.
func (s CommissionStatus) Refundable() bool {
	return s == CommissionStatusPending || s == CommissionStatusProcessed
}

// Providers that are not external gateways.
const (
	ProviderInternal = "internal"
	ProviderPlatform = "platform"
)

// Breakdown is the pure result of a commission calculation.
type Breakdown struct {
	OriginalAmount     decimal.Decimal `json:"original_amount"`
	Rate               decimal.Decimal `json:"commission_rate"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	ProviderFee        decimal.Decimal `json:"provider_fee"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	TenantAmount       decimal.Decimal `json:"tenant_amount"`
}

// Balanced reports whether tenant + fees add back up to the original amount.
func (b Breakdown) Balanced() bool {
	return b.TenantAmount.Add(b.TotalFees).Equal(b.OriginalAmount)
}

// Commission is the persisted fee split of one monetary transaction.
type Commission struct {
	ID                 int64            `db:"id" json:"id"`
	UserID             int64            `db:"user_id" json:"user_id"`
	TeamID             *int64           `db:"team_id" json:"team_id"`
	TransactionType    CommissionType   `db:"transaction_type" json:"transaction_type"`
	TransactionID      string           `db:"transaction_id" json:"transaction_id"` // Globally unique idempotency key
	OriginalAmount     decimal.Decimal  `db:"original_amount" json:"original_amount"`
	PlatformCommission decimal.Decimal  `db:"platform_commission" json:"platform_commission"`
	ProviderFee        decimal.Decimal  `db:"provider_fee" json:"provider_fee"`
	TotalFees          decimal.Decimal  `db:"total_fees" json:"total_fees"`
	TenantAmount       decimal.Decimal  `db:"tenant_amount" json:"tenant_amount"`
	CommissionRate     decimal.Decimal  `db:"commission_rate" json:"commission_rate"`
	PaymentProvider    string           `db:"payment_provider" json:"payment_provider"`
	Currency           string           `db:"currency" json:"currency"`
	Status             CommissionStatus `db:"status" json:"status"`
	ProcessedAt        *time.Time       `db:"processed_at" json:"processed_at"`
	Metadata           types.JSONText   `db:"metadata" json:"metadata"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// NewCommission builds a processed commission from a calculated breakdown.
func NewCommission(owner Owner, txType CommissionType, transactionID string, b Breakdown, provider, currency string, metadata map[string]any) (*Commission, error) {
	meta := types.JSONText("{}")
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal commission metadata: %w", err)
		}
		meta = types.JSONText(raw)
	}
	now := time.Now().UTC()
	return &Commission{
		UserID:             owner.UserID,
		TeamID:             owner.TeamID,
		TransactionType:    txType,
		TransactionID:      transactionID,
		OriginalAmount:     b.OriginalAmount,
		PlatformCommission: b.PlatformCommission,
		ProviderFee:        b.ProviderFee,
		TotalFees:          b.TotalFees,
		TenantAmount:       b.TenantAmount,
		CommissionRate:     b.Rate,
		PaymentProvider:    provider,
		Currency:           currency,
		Status:             CommissionStatusProcessed,
		ProcessedAt:        &now,
		Metadata:           meta,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Owner returns the commission's owner.
func (c *Commission) Owner() Owner {
	return Owner{UserID: c.UserID, TeamID: c.TeamID}
}

// CreditsRevenue reports whether recording this commission credits the team's
// revenue wallet.
func (c *Commission) CreditsRevenue() bool {
	return c.TeamID != nil && c.TenantAmount.IsPositive() && c.TransactionType.SharesRevenue()
}

// ReversalStatus tracks a deferred revenue reversal.
type ReversalStatus string

const (
	ReversalStatusPending ReversalStatus = "pending"
	ReversalStatusSettled ReversalStatus = "settled"
)

// CommissionReversal is a revenue debit that could not be applied when the
// commission was refunded because the revenue wallet was short.
type CommissionReversal struct {
	ID            int64           `db:"id" json:"id"`
	CommissionID  int64           `db:"commission_id" json:"commission_id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	TeamID        *int64          `db:"team_id" json:"team_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        ReversalStatus  `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastError     *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	SettledAt     *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
}

// Owner returns the owner whose revenue wallet the reversal debits.
func (r *CommissionReversal) Owner() Owner {
	return Owner{UserID: r.UserID, TeamID: r.TeamID}
}

// CommissionSummary aggregates commissions of one status.
type CommissionSummary struct {
	Status         CommissionStatus `db:"status" json:"status"`
	Count          int64            `db:"count" json:"count"`
	OriginalAmount decimal.Decimal  `db:"original_amount" json:"original_amount"`
	PlatformFees   decimal.Decimal  `db:"platform_commission" json:"platform_commission"`
	ProviderFees   decimal.Decimal  `db:"provider_fee" json:"provider_fee"`
	TenantAmount   decimal.Decimal  `db:"tenant_amount" json:"tenant_amount"`
}
