package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"
	"tenant-ledger/pkg/lock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SecretBox encrypts credentials at rest. *secret.Box implements it.
type SecretBox interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// GatewayResolver builds gateways from credentials. *gateway.Registry implements it.
type GatewayResolver interface {
	Resolve(name string, creds gateway.Credentials) (gateway.Gateway, error)
}

// EnableRequest carries the plaintext settings of a provider being enabled.
type EnableRequest struct {
	APIKey        string
	APISecret     string
	WebhookSecret string
	TestMode      bool
	Currency      string
	IsDefault     bool
}

// ConnectionStatus is the outcome of the post-enable connectivity check.
type ConnectionStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// EnableResult is returned by Enable.
type EnableResult struct {
	Config     domain.ProviderConfigView `json:"config"`
	FeeCharged decimal.Decimal           `json:"fee_charged"`
	Commission *domain.Commission        `json:"commission,omitempty"`
	Connection ConnectionStatus          `json:"connection"`
}

// RenewSummary counts the outcome of a renewal batch.
type RenewSummary struct {
	Renewed int `json:"renewed"`
	Failed  int `json:"failed"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// ProviderConfigOptions tunes the provider store.
type ProviderConfigOptions struct {
	Currency           string
	RenewalWindow      time.Duration // Configs expiring within this window are renewed
	RenewalConcurrency int
	ConnectionTimeout  time.Duration
	RenewalLockTTL     time.Duration // Also bounds how long one RenewAll batch may run
	Now                func() time.Time
}

const renewalLockName = "provider-renewals"

// The batch stops taking new items once this share of the lock TTL is spent,
// leaving the rest for the next run.
const renewalBudgetShare = 0.8

// ProviderConfigService manages tenants' payment gateway subscriptions.
type ProviderConfigService interface {
	Catalog() []ProviderSpec
	Enable(ctx context.Context, owner domain.Owner, providerName string, req EnableRequest) (*EnableResult, error)
	Disable(ctx context.Context, owner domain.Owner, providerName string) error
	SetDefault(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error)
	List(ctx context.Context, owner domain.Owner) ([]domain.ProviderConfig, error)
	Get(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error)
	// DefaultProvider returns the name of the owner's usable default provider.
	DefaultProvider(ctx context.Context, owner domain.Owner) (string, error)
	Credentials(ctx context.Context, owner domain.Owner, providerName string) (gateway.Credentials, error)
	// WebhookSecret returns the decrypted webhook secret of config id and the config's owner.
	WebhookSecret(ctx context.Context, configID int64) (string, domain.Owner, error)
	RenewAll(ctx context.Context) (*RenewSummary, error)
}

type providerConfigService struct {
	tx          db.Transactor
	dbExecutor  repository.DBExecutor
	configs     repository.ProviderConfigRepository
	wallets     WalletService
	commissions CommissionService
	catalog     ProviderCatalog
	box         SecretBox
	gateways    GatewayResolver
	locker      lock.Locker
	opts        ProviderConfigOptions
}

// NewProviderConfigService creates a ProviderConfigService.
func NewProviderConfigService(
	tx db.Transactor,
	dbExecutor repository.DBExecutor,
	configs repository.ProviderConfigRepository,
	wallets WalletService,
	commissions CommissionService,
	catalog ProviderCatalog,
	box SecretBox,
	gateways GatewayResolver,
	locker lock.Locker,
	opts ProviderConfigOptions,
) ProviderConfigService {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.RenewalWindow <= 0 {
		opts.RenewalWindow = 24 * time.Hour
	}
	if opts.RenewalConcurrency <= 0 {
		opts.RenewalConcurrency = 4
	}
	if opts.ConnectionTimeout <= 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}
	if opts.RenewalLockTTL <= 0 {
		opts.RenewalLockTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &providerConfigService{
		tx:          tx,
		dbExecutor:  dbExecutor,
		configs:     configs,
		wallets:     wallets,
		commissions: commissions,
		catalog:     catalog,
		box:         box,
		gateways:    gateways,
		locker:      locker,
		opts:        opts,
	}
}

func (s *providerConfigService) Catalog() []ProviderSpec {
	return s.catalog.Specs()
}

// Enable charges the monthly fee and activates the provider for owner. The fee
// is checked before anything is written; the charge, the config and the fee
// commission then commit together.
func (s *providerConfigService) Enable(ctx context.Context, owner domain.Owner, providerName string, req EnableRequest) (*EnableResult, error) {
	spec, ok := s.catalog.Lookup(providerName)
	if !ok {
		return nil, fmt.Errorf("enable provider %q: %w", providerName, util.ErrProviderNotSupported)
	}
	logger := util.Log(ctx).With().
		Int64("user_id", owner.UserID).
		Int64("team_id", owner.TeamKey()).
		Str("provider", providerName).
		Logger()

	fee := spec.MonthlyFee
	if fee.IsPositive() {
		balance, err := s.wallets.Balance(ctx, owner, domain.WalletKindMain)
		if err != nil {
			return nil, err
		}
		if balance.LessThan(fee) {
			logger.Warn().Str("fee", fee.String()).Str("balance", balance.String()).Msg("cannot enable provider, insufficient funds")
			return nil, &util.InsufficientFundsError{Required: fee, Available: balance}
		}
	}

	apiKey, err := s.box.Encrypt(req.APIKey)
	if err != nil {
		return nil, fmt.Errorf("enable provider: encrypt api key: %w", err)
	}
	apiSecret, err := s.box.Encrypt(req.APISecret)
	if err != nil {
		return nil, fmt.Errorf("enable provider: encrypt api secret: %w", err)
	}
	webhookSecret, err := s.box.Encrypt(req.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("enable provider: encrypt webhook secret: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.opts.Currency
	}
	now := s.opts.Now()
	expires := now.AddDate(0, 1, 0)
	result := &EnableResult{FeeCharged: decimal.Zero}
	var cfg *domain.ProviderConfig

	err = runInTx(ctx, s.tx, "enable provider", func(q repository.DBExecutor) error {
		existing, err := s.configs.GetConfigForUpdate(ctx, q, owner, providerName)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			return persistenceErr("enable provider", err)
		}

		subscriptionRef := fmt.Sprintf("provider_subscription:%s:%s", providerName, uuid.NewString())
		if fee.IsPositive() {
			_, err := s.wallets.WithdrawTx(ctx, q, owner, domain.WalletKindMain, fee, domain.Entry{
				Type:      domain.TxTypeProviderSubscription,
				Reference: subscriptionRef,
				Metadata:  map[string]any{"provider": providerName, "expires_at": expires},
			})
			if err != nil {
				return err
			}
		}

		if req.IsDefault {
			if err := s.configs.ClearDefault(ctx, q, owner, providerName); err != nil {
				return persistenceErr("enable provider", err)
			}
		}

		cfg = existing
		if cfg == nil {
			cfg = &domain.ProviderConfig{
				UserID:             owner.UserID,
				TeamID:             owner.TeamID,
				ProviderName:       providerName,
				SubscriptionStatus: domain.SubscriptionInactive,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
		}
		if !cfg.SubscriptionStatus.CanTransition(domain.SubscriptionActive) {
			return fmt.Errorf("enable provider: cannot activate from %s: %w", cfg.SubscriptionStatus, util.ErrInvalidInput)
		}
		cfg.IsEnabled = true
		cfg.IsDefault = req.IsDefault || (existing != nil && existing.IsDefault)
		cfg.APIKeyEnc = apiKey
		cfg.APISecretEnc = apiSecret
		cfg.WebhookSecretEnc = webhookSecret
		cfg.TestMode = req.TestMode
		cfg.Currency = currency
		cfg.MonthlyFee = fee
		cfg.SubscriptionStartedAt = &now
		cfg.SubscriptionExpiresAt = &expires
		cfg.SubscriptionStatus = domain.SubscriptionActive
		cfg.SupportedFeatures = spec.featureStrings()

		if existing == nil {
			err = s.configs.CreateConfig(ctx, q, cfg)
		} else {
			err = s.configs.UpdateConfig(ctx, q, cfg)
		}
		if err != nil {
			return persistenceErr("enable provider: save config", err)
		}

		if fee.IsPositive() {
			commission, err := s.commissions.RecordTx(ctx, q, RecordRequest{
				Owner:           owner,
				TransactionType: domain.CommissionTypeProviderSubscription,
				TransactionID:   subscriptionRef,
				Amount:          fee,
				Provider:        domain.ProviderPlatform,
				Currency:        s.opts.Currency,
				Metadata:        map[string]any{"provider": providerName, "config_id": cfg.ID},
			})
			if err != nil {
				return err
			}
			result.Commission = commission
			result.FeeCharged = fee
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to enable provider")
		return nil, err
	}

	result.Config = cfg.Masked()
	result.Connection = s.testConnection(ctx, cfg, req)
	logger.Info().
		Str("fee", fee.String()).
		Bool("connection_ok", result.Connection.OK).
		Msg("provider enabled")
	return result, nil
}

// testConnection is best effort and never changes the stored config.
func (s *providerConfigService) testConnection(ctx context.Context, cfg *domain.ProviderConfig, req EnableRequest) ConnectionStatus {
	if s.gateways == nil {
		return ConnectionStatus{Message: "connection test unavailable"}
	}
	gw, err := s.gateways.Resolve(cfg.ProviderName, gateway.Credentials{
		Provider:      cfg.ProviderName,
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		WebhookSecret: req.WebhookSecret,
		TestMode:      cfg.TestMode,
		Currency:      cfg.Currency,
	})
	if err != nil {
		return ConnectionStatus{Message: err.Error()}
	}
	testCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectionTimeout)
	defer cancel()
	if err := gw.TestConnection(testCtx); err != nil {
		var pe *util.PaymentError
		if errors.As(err, &pe) && pe.Message != "" {
			return ConnectionStatus{Message: pe.Message}
		}
		return ConnectionStatus{Message: "connection test failed"}
	}
	return ConnectionStatus{OK: true}
}

// Disable turns the provider off. Disabling an unknown or already-cancelled config succeeds.
func (s *providerConfigService) Disable(ctx context.Context, owner domain.Owner, providerName string) error {
	return runInTx(ctx, s.tx, "disable provider", func(q repository.DBExecutor) error {
		cfg, err := s.configs.GetConfigForUpdate(ctx, q, owner, providerName)
		if errors.Is(err, util.ErrNotFound) {
			return nil
		}
		if err != nil {
			return persistenceErr("disable provider", err)
		}
		if !cfg.IsEnabled && !cfg.SubscriptionStatus.CanTransition(domain.SubscriptionCancelled) {
			return nil
		}
		cfg.IsEnabled = false
		cfg.IsDefault = false
		if cfg.SubscriptionStatus.CanTransition(domain.SubscriptionCancelled) {
			cfg.SubscriptionStatus = domain.SubscriptionCancelled
		}
		if err := s.configs.UpdateConfig(ctx, q, cfg); err != nil {
			return persistenceErr("disable provider", err)
		}
		util.Log(ctx).Info().
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Str("provider", providerName).
			Msg("provider disabled")
		return nil
	})
}

// SetDefault makes providerName the owner's default, clearing any other default.
func (s *providerConfigService) SetDefault(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	var cfg *domain.ProviderConfig
	err := runInTx(ctx, s.tx, "set default provider", func(q repository.DBExecutor) error {
		var err error
		cfg, err = s.configs.GetConfigForUpdate(ctx, q, owner, providerName)
		if errors.Is(err, util.ErrNotFound) {
			return fmt.Errorf("set default provider %q: %w", providerName, util.ErrProviderUnavailable)
		}
		if err != nil {
			return persistenceErr("set default provider", err)
		}
		if !cfg.Usable(s.opts.Now()) {
			return fmt.Errorf("set default provider %q: %w", providerName, util.ErrProviderUnavailable)
		}
		if err := s.configs.ClearDefault(ctx, q, owner, providerName); err != nil {
			return persistenceErr("set default provider", err)
		}
		cfg.IsDefault = true
		if err := s.configs.UpdateConfig(ctx, q, cfg); err != nil {
			return persistenceErr("set default provider", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *providerConfigService) List(ctx context.Context, owner domain.Owner) ([]domain.ProviderConfig, error) {
	configs, err := s.configs.ListConfigs(ctx, s.dbExecutor, owner)
	if err != nil {
		return nil, persistenceErr("list providers", err)
	}
	return configs, nil
}

func (s *providerConfigService) Get(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	cfg, err := s.configs.GetConfig(ctx, s.dbExecutor, owner, providerName)
	if err != nil {
		return nil, persistenceErr("get provider", err)
	}
	return cfg, nil
}

func (s *providerConfigService) DefaultProvider(ctx context.Context, owner domain.Owner) (string, error) {
	cfg, err := s.configs.GetDefaultConfig(ctx, s.dbExecutor, owner)
	if errors.Is(err, util.ErrNotFound) {
		return "", fmt.Errorf("no default payment provider: %w", util.ErrProviderUnavailable)
	}
	if err != nil {
		return "", persistenceErr("default provider", err)
	}
	if !cfg.Usable(s.opts.Now()) {
		return "", fmt.Errorf("default provider %q: %w", cfg.ProviderName, util.ErrProviderUnavailable)
	}
	return cfg.ProviderName, nil
}

// Credentials decrypts the secrets of a usable config for gateway construction.
func (s *providerConfigService) Credentials(ctx context.Context, owner domain.Owner, providerName string) (gateway.Credentials, error) {
	cfg, err := s.configs.GetConfig(ctx, s.dbExecutor, owner, providerName)
	if errors.Is(err, util.ErrNotFound) {
		return gateway.Credentials{}, fmt.Errorf("provider %q: %w", providerName, util.ErrProviderUnavailable)
	}
	if err != nil {
		return gateway.Credentials{}, persistenceErr("provider credentials", err)
	}
	if !cfg.Usable(s.opts.Now()) {
		return gateway.Credentials{}, fmt.Errorf("provider %q: %w", providerName, util.ErrProviderUnavailable)
	}
	return s.decrypt(cfg)
}

func (s *providerConfigService) WebhookSecret(ctx context.Context, configID int64) (string, domain.Owner, error) {
	cfg, err := s.configs.GetConfigByID(ctx, s.dbExecutor, configID)
	if err != nil {
		return "", domain.Owner{}, persistenceErr("webhook secret", err)
	}
	if cfg.ProviderName != domain.ProviderStripe || !cfg.IsEnabled {
		return "", domain.Owner{}, fmt.Errorf("webhook for config %d: %w", configID, util.ErrProviderUnavailable)
	}
	secret, err := s.box.Decrypt(cfg.WebhookSecretEnc)
	if err != nil {
		return "", domain.Owner{}, fmt.Errorf("decrypt webhook secret of config %d: %w", configID, err)
	}
	return secret, cfg.Owner(), nil
}

func (s *providerConfigService) decrypt(cfg *domain.ProviderConfig) (gateway.Credentials, error) {
	creds := gateway.Credentials{Provider: cfg.ProviderName, TestMode: cfg.TestMode, Currency: cfg.Currency}
	var err error
	if creds.APIKey, err = s.box.Decrypt(cfg.APIKeyEnc); err != nil {
		return gateway.Credentials{}, fmt.Errorf("decrypt credentials of config %d: %w", cfg.ID, err)
	}
	if creds.APISecret, err = s.box.Decrypt(cfg.APISecretEnc); err != nil {
		return gateway.Credentials{}, fmt.Errorf("decrypt credentials of config %d: %w", cfg.ID, err)
	}
	if creds.WebhookSecret, err = s.box.Decrypt(cfg.WebhookSecretEnc); err != nil {
		return gateway.Credentials{}, fmt.Errorf("decrypt credentials of config %d: %w", cfg.ID, err)
	}
	return creds, nil
}

type renewOutcome int

const (
	renewSkipped renewOutcome = iota
	renewRenewed
	renewExpired
)

// RenewAll charges the monthly fee of every subscription about to expire.
// Each config is renewed in its own transaction; a failure never stops the batch.
func (s *providerConfigService) RenewAll(ctx context.Context) (*RenewSummary, error) {
	release, ok, err := s.locker.Acquire(ctx, renewalLockName, s.opts.RenewalLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.Log(ctx).Info().Msg("provider renewal already running elsewhere")
		return &RenewSummary{}, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			util.Log(ctx).Warn().Err(err).Msg("failed to release renewal lock")
		}
	}()

	now := s.opts.Now()
	due, err := s.configs.ListDueForRenewal(ctx, s.dbExecutor, now.Add(s.opts.RenewalWindow))
	if err != nil {
		return nil, persistenceErr("renew providers", err)
	}

	budget := time.Duration(float64(s.opts.RenewalLockTTL) * renewalBudgetShare)
	batchCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	summary := &RenewSummary{Total: len(due)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(s.opts.RenewalConcurrency)
	for _, cfg := range due {
		g.Go(func() error {
			if gctx.Err() != nil {
				// Out of lock time; the config is still due and the next run picks it up.
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}
			outcome, err := s.renewOne(gctx, cfg.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				util.Log(ctx).Error().Err(err).
					Int64("config_id", cfg.ID).
					Int64("user_id", cfg.UserID).
					Str("provider", cfg.ProviderName).
					Msg("provider renewal failed")
			case outcome == renewRenewed:
				summary.Renewed++
			case outcome == renewExpired:
				summary.Failed++
				summary.Expired++
			default:
				summary.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	util.Log(ctx).Info().
		Int("renewed", summary.Renewed).
		Int("failed", summary.Failed).
		Int("expired", summary.Expired).
		Int("total", summary.Total).
		Msg("provider renewal finished")
	return summary, nil
}

func (s *providerConfigService) renewOne(ctx context.Context, configID int64) (renewOutcome, error) {
	now := s.opts.Now()
	outcome := renewSkipped
	err := runInTx(ctx, s.tx, "renew provider", func(q repository.DBExecutor) error {
		cfg, err := s.configs.GetConfigByIDForUpdate(ctx, q, configID)
		if err != nil {
			return persistenceErr("renew provider", err)
		}
		// Re-check under the row lock; another worker or a disable may have won.
		if cfg.SubscriptionStatus != domain.SubscriptionActive || !cfg.IsEnabled ||
			cfg.SubscriptionExpiresAt == nil || cfg.SubscriptionExpiresAt.After(now.Add(s.opts.RenewalWindow)) {
			return nil
		}

		period := cfg.SubscriptionExpiresAt.UTC().Format(time.RFC3339)
		renewalID := renewalReference(cfg.ID, *cfg.SubscriptionExpiresAt)
		owner := cfg.Owner()

		if cfg.MonthlyFee.IsPositive() {
			_, err := s.wallets.WithdrawTx(ctx, q, owner, domain.WalletKindMain, cfg.MonthlyFee, domain.Entry{
				Type:      domain.TxTypeProviderRenewal,
				Reference: renewalID,
				Metadata:  map[string]any{"provider": cfg.ProviderName, "config_id": cfg.ID},
			})
			if errors.Is(err, util.ErrInsufficientFunds) {
				outcome = renewExpired
				return s.expire(ctx, q, cfg)
			}
			if err != nil {
				return err
			}
		}

		next := cfg.SubscriptionExpiresAt.AddDate(0, 1, 0)
		cfg.SubscriptionExpiresAt = &next
		if err := s.configs.UpdateConfig(ctx, q, cfg); err != nil {
			return persistenceErr("renew provider", err)
		}

		if cfg.MonthlyFee.IsPositive() {
			_, err := s.commissions.RecordTx(ctx, q, RecordRequest{
				Owner:           owner,
				TransactionType: domain.CommissionTypeProviderRenewal,
				TransactionID:   renewalID,
				Amount:          cfg.MonthlyFee,
				Provider:        domain.ProviderPlatform,
				Currency:        s.opts.Currency,
				Metadata:        map[string]any{"provider": cfg.ProviderName, "config_id": cfg.ID, "period": period},
			})
			if err != nil {
				return err
			}
		}
		outcome = renewRenewed
		return nil
	})
	if err != nil {
		return renewSkipped, err
	}
	return outcome, nil
}

// renewalReference identifies one billing period of a config. The full expiry instant is
// used because a re-enabled config can expire again within the same calendar month.
func renewalReference(configID int64, expiresAt time.Time) string {
	return fmt.Sprintf("provider_renewal:%d:%s", configID, expiresAt.UTC().Format(time.RFC3339))
}

func (s *providerConfigService) expire(ctx context.Context, q repository.DBExecutor, cfg *domain.ProviderConfig) error {
	if !cfg.SubscriptionStatus.CanTransition(domain.SubscriptionExpired) {
		return nil
	}
	cfg.SubscriptionStatus = domain.SubscriptionExpired
	if err := s.configs.UpdateConfig(ctx, q, cfg); err != nil {
		return persistenceErr("expire provider", err)
	}
	util.Log(ctx).Warn().
		Int64("config_id", cfg.ID).
		Int64("user_id", cfg.UserID).
		Str("provider", cfg.ProviderName).
		Str("fee", cfg.MonthlyFee.String()).
		Msg("provider subscription expired, insufficient funds")
	return nil
}
