package service

import (
	"maps"
	"slices"

	"tenant-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// VolumeTier discounts the rate of transactions strictly larger than Threshold.
type VolumeTier struct {
	Threshold  decimal.Decimal
	Multiplier decimal.Decimal
}

// RateConfig is the commission rate table.
type RateConfig struct {
	BaseRate              decimal.Decimal
	AITokenMultiplier     decimal.Decimal
	AppPurchaseMultiplier decimal.Decimal
	WithdrawalRate        decimal.Decimal
	VolumeTiers           []VolumeTier
	ProviderFeeRates      map[string]decimal.Decimal
	// ChargeProviderFee lists providers whose processing fee is passed on to the tenant.
	ChargeProviderFee map[string]bool
}

// DefaultRateConfig returns the platform's standard rates.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		BaseRate:              decimal.RequireFromString("0.05"),
		AITokenMultiplier:     decimal.RequireFromString("0.5"),
		AppPurchaseMultiplier: decimal.RequireFromString("1.5"),
		WithdrawalRate:        decimal.RequireFromString("0.02"),
		VolumeTiers: []VolumeTier{
			{Threshold: decimal.NewFromInt(1000), Multiplier: decimal.RequireFromString("0.9")},
			{Threshold: decimal.NewFromInt(10000), Multiplier: decimal.RequireFromString("0.85")},
		},
		ProviderFeeRates: map[string]decimal.Decimal{
			domain.ProviderStripe:       decimal.RequireFromString("0.029"),
			domain.ProviderPayPal:       decimal.RequireFromString("0.029"),
			domain.ProviderSquare:       decimal.RequireFromString("0.026"),
			domain.ProviderAuthorizeNet: decimal.RequireFromString("0.025"),
			domain.ProviderInternal:     decimal.Zero,
		},
		ChargeProviderFee: map[string]bool{domain.ProviderStripe: true},
	}
}

// RateTable computes commissions. It is immutable once built and safe for concurrent use.
type RateTable struct {
	cfg RateConfig
}

// NewRateTable copies cfg so later changes to the caller's maps have no effect.
func NewRateTable(cfg RateConfig) *RateTable {
	cfg.VolumeTiers = slices.Clone(cfg.VolumeTiers)
	slices.SortFunc(cfg.VolumeTiers, func(a, b VolumeTier) int {
		return a.Threshold.Cmp(b.Threshold)
	})
	cfg.ProviderFeeRates = maps.Clone(cfg.ProviderFeeRates)
	cfg.ChargeProviderFee = maps.Clone(cfg.ChargeProviderFee)
	return &RateTable{cfg: cfg}
}

// RateFor returns the commission rate for a transaction of txType and amount.
func (t *RateTable) RateFor(txType domain.CommissionType, amount decimal.Decimal) decimal.Decimal {
	var rate decimal.Decimal
	switch txType {
	case domain.CommissionTypeAITokens:
		rate = t.cfg.BaseRate.Mul(t.cfg.AITokenMultiplier)
	case domain.CommissionTypeAppPurchase:
		rate = t.cfg.BaseRate.Mul(t.cfg.AppPurchaseMultiplier)
	case domain.CommissionTypeWithdrawal:
		rate = t.cfg.WithdrawalRate
	default:
		rate = t.cfg.BaseRate
	}

	for _, tier := range t.cfg.VolumeTiers {
		if amount.GreaterThan(tier.Threshold) {
			rate = rate.Mul(tier.Multiplier)
		}
	}
	return rate
}

// ProviderFeeRate returns the processing fee rate of provider, zero if unknown.
func (t *RateTable) ProviderFeeRate(provider string) decimal.Decimal {
	if rate, ok := t.cfg.ProviderFeeRates[provider]; ok {
		return rate
	}
	return decimal.Zero
}

// ChargesProviderFee reports whether provider's fee is deducted from the tenant share.
func (t *RateTable) ChargesProviderFee(provider string) bool {
	return t.cfg.ChargeProviderFee[provider]
}

// Calculate splits amount into platform commission, provider fee and tenant share.
// Fees are rounded to cents and the tenant share absorbs the remainder, so
// TenantAmount + TotalFees == OriginalAmount exactly.
func (t *RateTable) Calculate(txType domain.CommissionType, amount decimal.Decimal, provider string) domain.Breakdown {
	rate := t.RateFor(txType, amount)
	commission := amount.Mul(rate).Round(2)

	providerFee := decimal.Zero
	if t.ChargesProviderFee(provider) {
		providerFee = amount.Mul(t.ProviderFeeRate(provider)).Round(2)
	}

	total := commission.Add(providerFee)
	return domain.Breakdown{
		OriginalAmount:     amount,
		Rate:               rate,
		PlatformCommission: commission,
		ProviderFee:        providerFee,
		TotalFees:          total,
		TenantAmount:       amount.Sub(total),
	}
}
