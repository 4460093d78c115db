package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "USD", cfg.Currency)
	assert.True(t, cfg.Rates.BaseRate.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, cfg.AiTokens.PricePer1000.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, time.Hour, cfg.RenewInterval)
	assert.Empty(t, cfg.ProviderFees)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/ledger?sslmode=disable")
	t.Setenv("COMMISSION_BASE_RATE", "0.04")
	t.Setenv("PROVIDER_FEE_RATES", "square:0.03")
	t.Setenv("PROVIDER_MONTHLY_FEES", "stripe:10, paypal:12.50")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("SETTLE_INTERVAL", "30s")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/ledger?sslmode=disable", cfg.DB.DSN())
	assert.True(t, cfg.Rates.BaseRate.Equal(decimal.RequireFromString("0.04")))
	assert.True(t, cfg.Rates.ProviderFeeRates["square"].Equal(decimal.RequireFromString("0.03")))
	assert.True(t, cfg.Rates.ProviderFeeRates["stripe"].Equal(decimal.RequireFromString("0.029")))
	assert.True(t, cfg.ProviderFees["paypal"].Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.SettleInterval)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_PORT", "abc")
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	t.Setenv("PROVIDER_MONTHLY_FEES", "stripe")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "GATEWAY_TIMEOUT")
	assert.Contains(t, err.Error(), "PROVIDER_MONTHLY_FEES")
}

func TestLoadConfigProductionSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}
