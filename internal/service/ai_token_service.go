package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// AiTokenConfig holds the token economy settings.
type AiTokenConfig struct {
	FreeMonthlyTokens int64
	PricePer1000      decimal.Decimal // Money per 1000 tokens for auto top-ups
	CatalogTTL        time.Duration
}

// PurchaseResult is returned by PurchasePackage.
type PurchaseResult struct {
	Package      *domain.AiTokenPackage `json:"package"`
	TokensAdded  int64                  `json:"tokens_added"`
	PricePaid    decimal.Decimal        `json:"price_paid"`
	TokenBalance int64                  `json:"token_balance"`
	MainBalance  decimal.Decimal        `json:"main_balance"`
	Commission   *domain.Commission     `json:"commission,omitempty"`
}

// AutoTopUpResult reports whether an auto top-up ran.
type AutoTopUpResult struct {
	Triggered     bool               `json:"triggered"`
	Reason        string             `json:"reason,omitempty"`
	TokensAdded   int64              `json:"tokens_added"`
	AmountCharged decimal.Decimal    `json:"amount_charged"`
	TokenBalance  int64              `json:"token_balance"`
	Commission    *domain.Commission `json:"commission,omitempty"`
}

// SettingsInput updates auto top-up preferences.
type SettingsInput struct {
	AutoTopUpEnabled bool
	TopUpThreshold   int64
	TopUpAmount      decimal.Decimal
}

const packagesCacheKey = "active-packages"

var thousand = decimal.NewFromInt(1000)

// AiTokenService meters AI usage against the owner's token wallet.
type AiTokenService interface {
	Balance(ctx context.Context, owner domain.Owner) (int64, error)
	HasEnough(ctx context.Context, owner domain.Owner, tokens int64) (bool, error)
	// Consume deducts tokens, reporting false without any deduction when the balance is short.
	Consume(ctx context.Context, owner domain.Owner, tokens int64, metadata map[string]any) (bool, error)
	PurchasePackage(ctx context.Context, owner domain.Owner, packageID int64) (*PurchaseResult, error)
	// GrantFreeMonthly grants the monthly allowance once per calendar month (UTC)
	// and returns the number of tokens granted.
	GrantFreeMonthly(ctx context.Context, owner domain.Owner) (int64, error)
	CheckAutoTopUp(ctx context.Context, owner domain.Owner) (*AutoTopUpResult, error)
	Packages(ctx context.Context) ([]domain.AiTokenPackage, error)
	Package(ctx context.Context, id int64) (*domain.AiTokenPackage, error)
	Settings(ctx context.Context, owner domain.Owner) (*domain.AiTokenSettings, error)
	UpdateSettings(ctx context.Context, owner domain.Owner, in SettingsInput) (*domain.AiTokenSettings, error)
	Usage(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.WalletTransaction, int64, error)
}

type aiTokenService struct {
	tx          db.Transactor
	dbExecutor  repository.DBExecutor
	repo        repository.AiTokenRepository
	wallets     WalletService
	commissions CommissionService
	cfg         AiTokenConfig
	catalog     *cache.Cache
	now         func() time.Time
}

// NewAiTokenService creates an AiTokenService.
func NewAiTokenService(
	tx db.Transactor,
	dbExecutor repository.DBExecutor,
	repo repository.AiTokenRepository,
	wallets WalletService,
	commissions CommissionService,
	cfg AiTokenConfig,
) AiTokenService {
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 5 * time.Minute
	}
	return &aiTokenService{
		tx:          tx,
		dbExecutor:  dbExecutor,
		repo:        repo,
		wallets:     wallets,
		commissions: commissions,
		cfg:         cfg,
		catalog:     cache.New(cfg.CatalogTTL, 2*cfg.CatalogTTL),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *aiTokenService) Balance(ctx context.Context, owner domain.Owner) (int64, error) {
	balance, err := s.wallets.Balance(ctx, owner, domain.WalletKindAIToken)
	if err != nil {
		return 0, err
	}
	return balance.IntPart(), nil
}

func (s *aiTokenService) HasEnough(ctx context.Context, owner domain.Owner, tokens int64) (bool, error) {
	balance, err := s.Balance(ctx, owner)
	if err != nil {
		return false, err
	}
	return balance >= tokens, nil
}

func (s *aiTokenService) Consume(ctx context.Context, owner domain.Owner, tokens int64, metadata map[string]any) (bool, error) {
	if tokens <= 0 {
		return false, fmt.Errorf("consume tokens: count must be positive: %w", util.ErrInvalidInput)
	}
	_, err := s.wallets.Withdraw(ctx, owner, domain.WalletKindAIToken, decimal.NewFromInt(tokens), domain.Entry{
		Type:     domain.TxTypeAITokenUsage,
		Metadata: metadata,
	})
	if errors.Is(err, util.ErrInsufficientFunds) {
		util.Log(ctx).Info().
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Int64("tokens", tokens).
			Msg("not enough ai tokens")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurchasePackage pays for a package from the main wallet. The debit, the token
// credit and the commission commit together or not at all.
func (s *aiTokenService) PurchasePackage(ctx context.Context, owner domain.Owner, packageID int64) (*PurchaseResult, error) {
	reference := "ai_token_purchase:" + uuid.NewString()
	result := &PurchaseResult{}

	err := runInTx(ctx, s.tx, "purchase ai tokens", func(q repository.DBExecutor) error {
		pkg, err := s.repo.GetPackage(ctx, q, packageID)
		if err != nil {
			return persistenceErr("purchase ai tokens", err)
		}
		if !pkg.IsActive {
			return fmt.Errorf("purchase ai tokens: package %d: %w", packageID, util.ErrPackageInactive)
		}
		if pkg.TokenAmount <= 0 {
			return fmt.Errorf("purchase ai tokens: package %d has no tokens: %w", packageID, util.ErrInvalidInput)
		}
		result.Package = pkg
		result.PricePaid = pkg.EffectivePrice()

		meta := map[string]any{
			"package_id":   pkg.ID,
			"package_name": pkg.Name,
			"tokens":       pkg.TokenAmount,
			"price":        result.PricePaid,
		}
		main, commission, err := s.chargeMain(ctx, q, owner, result.PricePaid, domain.TxTypeAITokenPurchase, reference, meta)
		if err != nil {
			return err
		}
		result.MainBalance = main
		result.Commission = commission

		credit, err := s.wallets.DepositTx(ctx, q, owner, domain.WalletKindAIToken, decimal.NewFromInt(pkg.TokenAmount), domain.Entry{
			Type:      domain.TxTypeAITokenPurchase,
			Reference: reference,
			Metadata:  meta,
		})
		if err != nil {
			return err
		}
		result.TokensAdded = pkg.TokenAmount
		result.TokenBalance = credit.BalanceAfter.IntPart()
		return nil
	})
	if err != nil {
		util.Log(ctx).Warn().Err(err).
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Int64("package_id", packageID).
			Msg("ai token purchase failed")
		return nil, err
	}

	util.Log(ctx).Info().
		Int64("user_id", owner.UserID).
		Int64("team_id", owner.TeamKey()).
		Int64("package_id", packageID).
		Int64("tokens", result.TokensAdded).
		Str("price", result.PricePaid.String()).
		Msg("ai tokens purchased")
	return result, nil
}

// chargeMain debits price from the main wallet and books the ai_tokens commission
// under reference. A zero price charges nothing. It returns the main balance after.
func (s *aiTokenService) chargeMain(ctx context.Context, q repository.DBExecutor, owner domain.Owner, price decimal.Decimal, txType, reference string, meta map[string]any) (decimal.Decimal, *domain.Commission, error) {
	if !price.IsPositive() {
		balance, err := s.wallets.BalanceTx(ctx, q, owner, domain.WalletKindMain)
		return balance, nil, err
	}
	debit, err := s.wallets.WithdrawTx(ctx, q, owner, domain.WalletKindMain, price, domain.Entry{
		Type:      txType,
		Reference: reference,
		Metadata:  meta,
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	commission, err := s.commissions.RecordTx(ctx, q, RecordRequest{
		Owner:           owner,
		TransactionType: domain.CommissionTypeAITokens,
		TransactionID:   reference,
		Amount:          price,
		Provider:        domain.ProviderInternal,
		Metadata:        meta,
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return debit.BalanceAfter, commission, nil
}

func (s *aiTokenService) GrantFreeMonthly(ctx context.Context, owner domain.Owner) (int64, error) {
	if s.cfg.FreeMonthlyTokens <= 0 {
		return 0, nil
	}
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var granted int64

	err := runInTx(ctx, s.tx, "grant free tokens", func(q repository.DBExecutor) error {
		found, err := s.wallets.HasEntrySinceTx(ctx, q, owner, domain.WalletKindAIToken, domain.TxTypeFreeMonthlyTokens, monthStart)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		_, err = s.wallets.DepositTx(ctx, q, owner, domain.WalletKindAIToken, decimal.NewFromInt(s.cfg.FreeMonthlyTokens), domain.Entry{
			Type:      domain.TxTypeFreeMonthlyTokens,
			Reference: "free_monthly:" + monthStart.Format("2006-01"),
			Metadata:  map[string]any{"month": monthStart.Format("2006-01")},
		})
		if err != nil {
			return err
		}
		granted = s.cfg.FreeMonthlyTokens
		return nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// CheckAutoTopUp buys tokens from the main wallet when the token balance falls
// below the owner's threshold.
func (s *aiTokenService) CheckAutoTopUp(ctx context.Context, owner domain.Owner) (*AutoTopUpResult, error) {
	result := &AutoTopUpResult{AmountCharged: decimal.Zero}
	settings, err := s.Settings(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !settings.AutoTopUpEnabled {
		result.Reason = "auto top-up disabled"
		return result, nil
	}
	if !settings.TopUpAmount.IsPositive() {
		result.Reason = "top-up amount not set"
		return result, nil
	}
	if !s.cfg.PricePer1000.IsPositive() {
		result.Reason = "token price not configured"
		return result, nil
	}
	tokens := settings.TopUpAmount.Div(s.cfg.PricePer1000).Mul(thousand).Floor().IntPart()
	if tokens <= 0 {
		result.Reason = "top-up amount too small"
		return result, nil
	}

	reference := "auto_top_up:" + uuid.NewString()
	err = runInTx(ctx, s.tx, "auto top-up", func(q repository.DBExecutor) error {
		// Main is locked before the token wallet, the same order purchases use.
		if _, err := s.wallets.BalanceTx(ctx, q, owner, domain.WalletKindMain); err != nil {
			return err
		}
		balance, err := s.wallets.BalanceTx(ctx, q, owner, domain.WalletKindAIToken)
		if err != nil {
			return err
		}
		result.TokenBalance = balance.IntPart()
		if balance.IntPart() >= settings.TopUpThreshold {
			result.Reason = "balance above threshold"
			return nil
		}

		meta := map[string]any{
			"tokens":         tokens,
			"threshold":      settings.TopUpThreshold,
			"price_per_1000": s.cfg.PricePer1000,
		}
		_, commission, err := s.chargeMain(ctx, q, owner, settings.TopUpAmount, domain.TxTypeAutoTopUp, reference, meta)
		if err != nil {
			return err
		}
		credit, err := s.wallets.DepositTx(ctx, q, owner, domain.WalletKindAIToken, decimal.NewFromInt(tokens), domain.Entry{
			Type:      domain.TxTypeAutoTopUp,
			Reference: reference,
			Metadata:  meta,
		})
		if err != nil {
			return err
		}
		result.Triggered = true
		result.Reason = ""
		result.TokensAdded = tokens
		result.AmountCharged = settings.TopUpAmount
		result.TokenBalance = credit.BalanceAfter.IntPart()
		result.Commission = commission
		return nil
	})
	if err != nil {
		util.Log(ctx).Warn().Err(err).
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Str("amount", settings.TopUpAmount.String()).
			Msg("auto top-up failed")
		return nil, err
	}
	if result.Triggered {
		util.Log(ctx).Info().
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Int64("tokens", tokens).
			Msg("auto top-up applied")
	}
	return result, nil
}

// Packages returns the active catalog, cached for CatalogTTL.
func (s *aiTokenService) Packages(ctx context.Context) ([]domain.AiTokenPackage, error) {
	if cached, found := s.catalog.Get(packagesCacheKey); found {
		return cached.([]domain.AiTokenPackage), nil
	}
	packages, err := s.repo.ListActivePackages(ctx, s.dbExecutor)
	if err != nil {
		return nil, persistenceErr("list packages", err)
	}
	s.catalog.Set(packagesCacheKey, packages, cache.DefaultExpiration)
	return packages, nil
}

func (s *aiTokenService) Package(ctx context.Context, id int64) (*domain.AiTokenPackage, error) {
	key := "package:" + strconv.FormatInt(id, 10)
	if cached, found := s.catalog.Get(key); found {
		return cached.(*domain.AiTokenPackage), nil
	}
	pkg, err := s.repo.GetPackage(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, persistenceErr("get package", err)
	}
	s.catalog.Set(key, pkg, cache.DefaultExpiration)
	return pkg, nil
}

// Settings returns the owner's settings, or disabled defaults if none were saved.
func (s *aiTokenService) Settings(ctx context.Context, owner domain.Owner) (*domain.AiTokenSettings, error) {
	settings, err := s.repo.GetSettings(ctx, s.dbExecutor, owner)
	if errors.Is(err, util.ErrNotFound) {
		return &domain.AiTokenSettings{UserID: owner.UserID, TeamID: owner.TeamID, TopUpAmount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, persistenceErr("get ai token settings", err)
	}
	return settings, nil
}

func (s *aiTokenService) UpdateSettings(ctx context.Context, owner domain.Owner, in SettingsInput) (*domain.AiTokenSettings, error) {
	if in.TopUpThreshold < 0 || in.TopUpAmount.IsNegative() {
		return nil, fmt.Errorf("update ai token settings: negative values: %w", util.ErrInvalidInput)
	}
	if in.AutoTopUpEnabled && !in.TopUpAmount.IsPositive() {
		return nil, fmt.Errorf("update ai token settings: top-up amount is required: %w", util.ErrInvalidInput)
	}
	settings := &domain.AiTokenSettings{
		UserID:           owner.UserID,
		TeamID:           owner.TeamID,
		AutoTopUpEnabled: in.AutoTopUpEnabled,
		TopUpThreshold:   in.TopUpThreshold,
		TopUpAmount:      in.TopUpAmount,
		UpdatedAt:        s.now(),
	}
	if err := s.repo.UpsertSettings(ctx, s.dbExecutor, settings); err != nil {
		return nil, persistenceErr("update ai token settings", err)
	}
	return settings, nil
}

func (s *aiTokenService) Usage(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	return s.wallets.History(ctx, owner, domain.WalletKindAIToken, limit, offset)
}
