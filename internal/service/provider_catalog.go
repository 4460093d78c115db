package service

import (
	"maps"
	"slices"

	"tenant-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// ProviderSpec describes a gateway tenants can subscribe to.
type ProviderSpec struct {
	Name        string                   `json:"name"`
	DisplayName string                   `json:"display_name"`
	MonthlyFee  decimal.Decimal          `json:"monthly_fee"`
	Features    []domain.ProviderFeature `json:"features"`
}

// ProviderCatalog is keyed by provider name.
type ProviderCatalog map[string]ProviderSpec

// DefaultProviderCatalog lists the supported gateways and their monthly fees.
func DefaultProviderCatalog() ProviderCatalog {
	return ProviderCatalog{
		domain.ProviderStripe: {
			Name:        domain.ProviderStripe,
			DisplayName: "Stripe",
			MonthlyFee:  decimal.RequireFromString("29.99"),
			Features: []domain.ProviderFeature{
				domain.FeaturePayments, domain.FeatureRefunds, domain.FeatureRecurring,
				domain.FeatureWebhooks, domain.FeatureConnect,
			},
		},
		domain.ProviderPayPal: {
			Name:        domain.ProviderPayPal,
			DisplayName: "PayPal",
			MonthlyFee:  decimal.RequireFromString("24.99"),
			Features: []domain.ProviderFeature{
				domain.FeaturePayments, domain.FeatureRefunds, domain.FeatureRecurring, domain.FeatureWebhooks,
			},
		},
		domain.ProviderSquare: {
			Name:        domain.ProviderSquare,
			DisplayName: "Square",
			MonthlyFee:  decimal.RequireFromString("19.99"),
			Features: []domain.ProviderFeature{
				domain.FeaturePayments, domain.FeatureRefunds, domain.FeatureWebhooks,
			},
		},
		domain.ProviderAuthorizeNet: {
			Name:        domain.ProviderAuthorizeNet,
			DisplayName: "Authorize.Net",
			MonthlyFee:  decimal.RequireFromString("19.99"),
			Features: []domain.ProviderFeature{
				domain.FeaturePayments, domain.FeatureRefunds, domain.FeatureRecurring,
			},
		},
	}
}

// Lookup returns the spec for name.
func (c ProviderCatalog) Lookup(name string) (ProviderSpec, bool) {
	spec, ok := c[name]
	return spec, ok
}

// Specs returns every spec ordered by name.
func (c ProviderCatalog) Specs() []ProviderSpec {
	names := slices.Sorted(maps.Keys(c))
	specs := make([]ProviderSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, c[name])
	}
	return specs
}

// WithMonthlyFees returns a copy with fees overridden per provider.
func (c ProviderCatalog) WithMonthlyFees(fees map[string]decimal.Decimal) ProviderCatalog {
	out := maps.Clone(c)
	for name, fee := range fees {
		if spec, ok := out[name]; ok {
			spec.MonthlyFee = fee
			out[name] = spec
		}
	}
	return out
}

func (s ProviderSpec) featureStrings() []string {
	out := make([]string, len(s.Features))
	for i, f := range s.Features {
		out[i] = string(f)
	}
	return out
}
