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

const packageColumns = `id, name, token_amount, price, discount_percentage, validity_days, package_type, is_active, created_at`

// AiTokenRepository implements repository.AiTokenRepository for PostgreSQL.
type AiTokenRepository struct{}

// NewAiTokenRepository creates a new AiTokenRepository.
func NewAiTokenRepository() repository.AiTokenRepository {
	return &AiTokenRepository{}
}

func (r *AiTokenRepository) ListActivePackages(ctx context.Context, q repository.DBExecutor) ([]domain.AiTokenPackage, error) {
	packages := []domain.AiTokenPackage{}
	query := `SELECT ` + packageColumns + ` FROM ai_token_packages WHERE is_active ORDER BY price, id`
	if err := q.SelectContext(ctx, &packages, query); err != nil {
		return nil, fmt.Errorf("failed to list token packages: %w", err)
	}
	return packages, nil
}

func (r *AiTokenRepository) GetPackage(ctx context.Context, q repository.DBExecutor, id int64) (*domain.AiTokenPackage, error) {
	var pkg domain.AiTokenPackage
	query := `SELECT ` + packageColumns + ` FROM ai_token_packages WHERE id = $1`
	if err := q.GetContext(ctx, &pkg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token package %d: %w", id, err)
	}
	return &pkg, nil
}

func (r *AiTokenRepository) GetSettings(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.AiTokenSettings, error) {
	var s domain.AiTokenSettings
	query := `SELECT user_id, team_id, auto_topup_enabled, topup_threshold, topup_amount, updated_at
              FROM ai_token_settings WHERE user_id = $1 AND COALESCE(team_id, 0) = $2`
	if err := q.GetContext(ctx, &s, query, owner.UserID, owner.TeamKey()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token settings for %s: %w", owner, err)
	}
	return &s, nil
}

// UpsertSettings writes the settings row, inserting it on first use.
func (r *AiTokenRepository) UpsertSettings(ctx context.Context, q repository.DBExecutor, s *domain.AiTokenSettings) error {
	s.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO ai_token_settings (user_id, team_id, auto_topup_enabled, topup_threshold, topup_amount, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (user_id, (COALESCE(team_id, 0))) DO UPDATE SET
                auto_topup_enabled = EXCLUDED.auto_topup_enabled,
                topup_threshold = EXCLUDED.topup_threshold,
                topup_amount = EXCLUDED.topup_amount,
                updated_at = EXCLUDED.updated_at`
	if _, err := q.ExecContext(ctx, query, s.UserID, s.TeamID, s.AutoTopUpEnabled, s.TopUpThreshold, s.TopUpAmount, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save token settings for user %d: %w", s.UserID, err)
	}
	return nil
}

// CustomerRepository implements repository.CustomerRepository for PostgreSQL.
type CustomerRepository struct{}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository() repository.CustomerRepository {
	return &CustomerRepository{}
}

func (r *CustomerRepository) GetCustomer(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.BillingCustomer, error) {
	var c domain.BillingCustomer
	query := `SELECT user_id, team_id, stripe_customer_id, created_at
              FROM billing_customers WHERE user_id = $1 AND COALESCE(team_id, 0) = $2`
	if err := q.GetContext(ctx, &c, query, owner.UserID, owner.TeamKey()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get billing customer for %s: %w", owner, err)
	}
	return &c, nil
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, q repository.DBExecutor, c *domain.BillingCustomer) error {
	query := `INSERT INTO billing_customers (user_id, team_id, stripe_customer_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := q.ExecContext(ctx, query, c.UserID, c.TeamID, c.StripeCustomerID, c.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create billing customer for user %d: %w", c.UserID, err)
	}
	return nil
}
