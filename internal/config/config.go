// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/service"
	"tenant-ledger/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort     string
	Env            string
	LogLevel       string
	RequestTimeout time.Duration

	DB       db.Config
	RedisURL string // Empty disables the distributed job lock

	JWTSecret      string
	JWTTTL         time.Duration
	AllowedOrigins []string

	EncryptionKey  string // Master key for provider credentials at rest
	Currency       string
	GatewayTimeout time.Duration
	Platform       gateway.PlatformConfig // Empty SecretKey disables platform top-ups

	Rates        service.RateConfig
	ProviderFees map[string]decimal.Decimal // Monthly fee overrides by provider
	AiTokens     service.AiTokenConfig

	RenewalWindow      time.Duration
	RenewalConcurrency int
	RenewalLockTTL     time.Duration
	RenewInterval      time.Duration
	SettleInterval     time.Duration
}

// IsProduction reports whether the service runs with production safeguards.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// LoadConfig loads configuration from an optional .env file and the environment.
// It returns an error if any variable is invalid or a production secret is missing.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := &AppConfig{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: p.durationVar("REQUEST_TIMEOUT", 30*time.Second),

		DB: db.Config{
			URL:          os.Getenv("DATABASE_URL"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         p.intVar("DB_PORT", 5432),
			User:         getEnv("DB_USER", "ledger"),
			Password:     getEnv("DB_PASSWORD", "ledger"),
			DBName:       getEnv("DB_NAME", "ledger"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: p.intVar("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: p.intVar("DB_MAX_IDLE_CONNS", 5),
		},
		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret:      getEnv("JWT_SECRET", "dev-jwt-secret-change-me"),
		JWTTTL:         p.durationVar("JWT_TTL", time.Hour),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		EncryptionKey:  getEnv("ENCRYPTION_KEY", "dev-encryption-key-change-me"),
		Currency:       strings.ToUpper(getEnv("CURRENCY", "USD")),
		GatewayTimeout: p.durationVar("GATEWAY_TIMEOUT", 15*time.Second),
		Platform: gateway.PlatformConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(getEnv("CURRENCY", "USD")),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/wallet?topup=success"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/wallet?topup=cancelled"),
			BaseURL:       os.Getenv("STRIPE_API_BASE"),
		},

		ProviderFees: p.decimalMapVar("PROVIDER_MONTHLY_FEES"),
		AiTokens: service.AiTokenConfig{
			FreeMonthlyTokens: int64(p.intVar("AI_FREE_MONTHLY_TOKENS", 1000)),
			PricePer1000:      p.decimalVar("AI_PRICE_PER_1000", decimal.RequireFromString("2.00")),
			CatalogTTL:        p.durationVar("AI_CATALOG_TTL", 5*time.Minute),
		},

		RenewalWindow:      p.durationVar("RENEWAL_WINDOW", 24*time.Hour),
		RenewalConcurrency: p.intVar("RENEWAL_CONCURRENCY", 4),
		RenewalLockTTL:     p.durationVar("RENEWAL_LOCK_TTL", 10*time.Minute),
		RenewInterval:      p.durationVar("RENEW_INTERVAL", time.Hour),
		SettleInterval:     p.durationVar("SETTLE_INTERVAL", 10*time.Minute),
	}

	rates := service.DefaultRateConfig()
	rates.BaseRate = p.decimalVar("COMMISSION_BASE_RATE", rates.BaseRate)
	rates.AITokenMultiplier = p.decimalVar("COMMISSION_AI_TOKEN_MULTIPLIER", rates.AITokenMultiplier)
	rates.AppPurchaseMultiplier = p.decimalVar("COMMISSION_APP_PURCHASE_MULTIPLIER", rates.AppPurchaseMultiplier)
	rates.WithdrawalRate = p.decimalVar("COMMISSION_WITHDRAWAL_RATE", rates.WithdrawalRate)
	for name, rate := range p.decimalMapVar("PROVIDER_FEE_RATES") {
		rates.ProviderFeeRates[name] = rate
	}
	cfg.Rates = rates

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error
	if c.Rates.BaseRate.IsNegative() || c.Rates.BaseRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("COMMISSION_BASE_RATE must be in [0, 1), got %s", c.Rates.BaseRate))
	}
	if len(c.EncryptionKey) < 16 {
		errs = append(errs, errors.New("ENCRYPTION_KEY must be at least 16 characters"))
	}
	if c.IsProduction() {
		if os.Getenv("JWT_SECRET") == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if os.Getenv("ENCRYPTION_KEY") == "" {
			errs = append(errs, errors.New("ENCRYPTION_KEY is required in production"))
		}
		if c.Platform.SecretKey != "" && c.Platform.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every invalid variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) intVar(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) durationVar(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) decimalVar(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

// decimalMapVar parses "stripe:29.99,paypal:24.99".
func (p *parser) decimalMapVar(key string) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, pair := range splitList(os.Getenv(key)) {
		name, raw, ok := strings.Cut(pair, ":")
		if !ok {
			p.errs = append(p.errs, fmt.Errorf("invalid %s entry %q: want name:value", key, pair))
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || v.IsNegative() {
			p.errs = append(p.errs, fmt.Errorf("invalid %s entry %q", key, pair))
			continue
		}
		out[strings.TrimSpace(name)] = v
	}
	return out
}
