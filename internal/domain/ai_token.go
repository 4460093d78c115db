package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PackageType classifies AI token packages.
type PackageType string

const (
	PackageOneTime      PackageType = "one_time"
	PackageSubscription PackageType = "subscription"
	PackageBulk         PackageType = "bulk"
)

var hundred = decimal.NewFromInt(100)

// AiTokenPackage is a purchasable bundle of AI tokens.
type AiTokenPackage struct {
	ID                 int64           `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	TokenAmount        int64           `db:"token_amount" json:"token_amount"`
	Price              decimal.Decimal `db:"price" json:"price"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discount_percentage"`
	ValidityDays       *int            `db:"validity_days" json:"validity_days"`
	PackageType        PackageType     `db:"package_type" json:"package_type"`
	IsActive           bool            `db:"is_active" json:"is_active"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// EffectivePrice is the price after discount, rounded to cents.
func (p *AiTokenPackage) EffectivePrice() decimal.Decimal {
	if !p.DiscountPercentage.IsPositive() {
		return p.Price
	}
	factor := hundred.Sub(p.DiscountPercentage).Div(hundred)
	if factor.IsNegative() {
		return decimal.Zero
	}
	return p.Price.Mul(factor).Round(2)
}

// AiTokenSettings holds a tenant's auto top-up preferences.
type AiTokenSettings struct {
	UserID           int64           `db:"user_id" json:"user_id"`
	TeamID           *int64          `db:"team_id" json:"team_id"`
	AutoTopUpEnabled bool            `db:"auto_topup_enabled" json:"auto_topup_enabled"`
	TopUpThreshold   int64           `db:"topup_threshold" json:"topup_threshold"` // Token balance that triggers a top-up
	TopUpAmount      decimal.Decimal `db:"topup_amount" json:"topup_amount"`       // Money spent per top-up
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
