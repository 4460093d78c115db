package domain

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the billing state of a provider configuration.
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// CanTransition reports whether moving from s to next is allowed.
// Expired and cancelled configs only come back through a fresh enable, which is
// the only caller that moves them to active.
func (s SubscriptionStatus) CanTransition(next SubscriptionStatus) bool {
	switch next {
	case SubscriptionActive:
		return true
	case SubscriptionExpired:
		return s == SubscriptionActive
	case SubscriptionCancelled:
		return s != SubscriptionCancelled
	}
	return false
}

// ProviderFeature is a capability advertised by a gateway.
type ProviderFeature string

const (
	FeaturePayments  ProviderFeature = "payments"
	FeatureRefunds   ProviderFeature = "refunds"
	FeatureRecurring ProviderFeature = "recurring"
	FeatureWebhooks  ProviderFeature = "webhooks"
	FeatureConnect   ProviderFeature = "connect"
)

// Supported provider names.
const (
	ProviderStripe       = "stripe"
	ProviderPayPal       = "paypal"
	ProviderSquare       = "square"
	ProviderAuthorizeNet = "authorize_net"
)

// ProviderConfig is a tenant's subscription to an external payment gateway.
// Credential columns hold ciphertext only.
type ProviderConfig struct {
	ID                    int64              `db:"id" json:"id"`
	UserID                int64              `db:"user_id" json:"user_id"`
	TeamID                *int64             `db:"team_id" json:"team_id"`
	ProviderName          string             `db:"provider_name" json:"provider_name"`
	IsEnabled             bool               `db:"is_enabled" json:"is_enabled"`
	IsDefault             bool               `db:"is_default" json:"is_default"`
	APIKeyEnc             string             `db:"api_key_enc" json:"-"`
	APISecretEnc          string             `db:"api_secret_enc" json:"-"`
	WebhookSecretEnc      string             `db:"webhook_secret_enc" json:"-"`
	TestMode              bool               `db:"test_mode" json:"test_mode"`
	Currency              string             `db:"currency" json:"currency"`
	MonthlyFee            decimal.Decimal    `db:"monthly_fee" json:"monthly_fee"`
	SubscriptionStartedAt *time.Time         `db:"subscription_started_at" json:"subscription_started_at"`
	SubscriptionExpiresAt *time.Time         `db:"subscription_expires_at" json:"subscription_expires_at"`
	SubscriptionStatus    SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	SupportedFeatures     pq.StringArray     `db:"supported_features" json:"supported_features"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// Owner returns the config's owner.
func (p *ProviderConfig) Owner() Owner {
	return Owner{UserID: p.UserID, TeamID: p.TeamID}
}

// Usable reports whether payments may be routed through this config at now.
func (p *ProviderConfig) Usable(now time.Time) bool {
	if !p.IsEnabled || p.SubscriptionStatus != SubscriptionActive {
		return false
	}
	return p.SubscriptionExpiresAt == nil || p.SubscriptionExpiresAt.After(now)
}

// Supports reports whether the provider advertises feature f.
func (p *ProviderConfig) Supports(f ProviderFeature) bool {
	return slices.Contains(p.SupportedFeatures, string(f))
}

// HasCredentials reports whether an API key or secret is stored.
func (p *ProviderConfig) HasCredentials() bool {
	return p.APIKeyEnc != "" || p.APISecretEnc != ""
}

// ProviderConfigView is the API-safe projection of a ProviderConfig.
type ProviderConfigView struct {
	*ProviderConfig
	HasAPIKey        bool `json:"has_api_key"`
	HasAPISecret     bool `json:"has_api_secret"`
	HasWebhookSecret bool `json:"has_webhook_secret"`
}

// Masked returns a view that reports which secrets exist without exposing them.
func (p *ProviderConfig) Masked() ProviderConfigView {
	return ProviderConfigView{
		ProviderConfig:   p,
		HasAPIKey:        p.APIKeyEnc != "",
		HasAPISecret:     p.APISecretEnc != "",
		HasWebhookSecret: p.WebhookSecretEnc != "",
	}
}
