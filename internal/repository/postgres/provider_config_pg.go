package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"
)

const providerConfigColumns = `id, user_id, team_id, provider_name, is_enabled, is_default,
	api_key_enc, api_secret_enc, webhook_secret_enc, test_mode, currency, monthly_fee,
	subscription_started_at, subscription_expires_at, subscription_status, supported_features,
	created_at, updated_at`

// ProviderConfigRepository implements repository.ProviderConfigRepository for PostgreSQL.
type ProviderConfigRepository struct{}

// NewProviderConfigRepository creates a new ProviderConfigRepository.
func NewProviderConfigRepository() repository.ProviderConfigRepository {
	return &ProviderConfigRepository{}
}

func (r *ProviderConfigRepository) CreateConfig(ctx context.Context, q repository.DBExecutor, cfg *domain.ProviderConfig) error {
	query := `INSERT INTO provider_configs (user_id, team_id, provider_name, is_enabled, is_default,
                api_key_enc, api_secret_enc, webhook_secret_enc, test_mode, currency, monthly_fee,
                subscription_started_at, subscription_expires_at, subscription_status, supported_features,
                created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		cfg.UserID, cfg.TeamID, cfg.ProviderName, cfg.IsEnabled, cfg.IsDefault,
		cfg.APIKeyEnc, cfg.APISecretEnc, cfg.WebhookSecretEnc, cfg.TestMode, cfg.Currency, cfg.MonthlyFee,
		cfg.SubscriptionStartedAt, cfg.SubscriptionExpiresAt, cfg.SubscriptionStatus, cfg.SupportedFeatures,
		cfg.CreatedAt, cfg.UpdatedAt,
	).Scan(&cfg.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create %s config for %s: %w", cfg.ProviderName, cfg.Owner(), err)
	}
	return nil
}

func (r *ProviderConfigRepository) UpdateConfig(ctx context.Context, q repository.DBExecutor, cfg *domain.ProviderConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	query := `UPDATE provider_configs SET
                is_enabled = $1, is_default = $2, api_key_enc = $3, api_secret_enc = $4,
                webhook_secret_enc = $5, test_mode = $6, currency = $7, monthly_fee = $8,
                subscription_started_at = $9, subscription_expires_at = $10, subscription_status = $11,
                supported_features = $12, updated_at = $13
              WHERE id = $14`
	result, err := q.ExecContext(ctx, query,
		cfg.IsEnabled, cfg.IsDefault, cfg.APIKeyEnc, cfg.APISecretEnc,
		cfg.WebhookSecretEnc, cfg.TestMode, cfg.Currency, cfg.MonthlyFee,
		cfg.SubscriptionStartedAt, cfg.SubscriptionExpiresAt, cfg.SubscriptionStatus,
		cfg.SupportedFeatures, cfg.UpdatedAt, cfg.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to update provider config %d: %w", cfg.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for provider config %d: %w", cfg.ID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

func (r *ProviderConfigRepository) GetConfig(ctx context.Context, q repository.DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2 AND provider_name = $3`
	return r.getOne(ctx, q, query, owner.UserID, owner.TeamKey(), providerName)
}

func (r *ProviderConfigRepository) GetConfigForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2 AND provider_name = $3
              FOR UPDATE`
	return r.getOne(ctx, q, query, owner.UserID, owner.TeamKey(), providerName)
}

func (r *ProviderConfigRepository) GetConfigByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs WHERE id = $1`
	return r.getOne(ctx, q, query, id)
}

func (r *ProviderConfigRepository) GetConfigByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, q, query, id)
}

func (r *ProviderConfigRepository) GetDefaultConfig(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.ProviderConfig, error) {
	if owner.TeamID != nil {
		query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
                  WHERE team_id = $1 AND is_default AND is_enabled`
		return r.getOne(ctx, q, query, *owner.TeamID)
	}
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
              WHERE user_id = $1 AND team_id IS NULL AND is_default AND is_enabled`
	return r.getOne(ctx, q, query, owner.UserID)
}

func (r *ProviderConfigRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, args ...any) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	if err := q.GetContext(ctx, &cfg, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider config: %w", err)
	}
	return &cfg, nil
}

func (r *ProviderConfigRepository) ListConfigs(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.ProviderConfig, error) {
	configs := []domain.ProviderConfig{}
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2
              ORDER BY provider_name`
	if err := q.SelectContext(ctx, &configs, query, owner.UserID, owner.TeamKey()); err != nil {
		return nil, fmt.Errorf("failed to list provider configs for %s: %w", owner, err)
	}
	return configs, nil
}

func (r *ProviderConfigRepository) ListDueForRenewal(ctx context.Context, q repository.DBExecutor, before time.Time) ([]domain.ProviderConfig, error) {
	configs := []domain.ProviderConfig{}
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs
              WHERE subscription_status = 'active' AND is_enabled
                AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= $1
              ORDER BY subscription_expires_at`
	if err := q.SelectContext(ctx, &configs, query, before); err != nil {
		return nil, fmt.Errorf("failed to list provider configs due for renewal: %w", err)
	}
	return configs, nil
}

func (r *ProviderConfigRepository) ClearDefault(ctx context.Context, q repository.DBExecutor, owner domain.Owner, keepProvider string) error {
	var err error
	if owner.TeamID != nil {
		query := `UPDATE provider_configs SET is_default = FALSE, updated_at = $1
                  WHERE team_id = $2 AND NOT (user_id = $3 AND provider_name = $4) AND is_default`
		_, err = q.ExecContext(ctx, query, time.Now().UTC(), *owner.TeamID, owner.UserID, keepProvider)
	} else {
		query := `UPDATE provider_configs SET is_default = FALSE, updated_at = $1
                  WHERE user_id = $2 AND team_id IS NULL AND provider_name <> $3 AND is_default`
		_, err = q.ExecContext(ctx, query, time.Now().UTC(), owner.UserID, keepProvider)
	}
	if err != nil {
		return fmt.Errorf("failed to clear default provider for %s: %w", owner, err)
	}
	return nil
}
