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

const commissionColumns = `id, user_id, team_id, transaction_type, transaction_id, original_amount,
	platform_commission, provider_fee, total_fees, tenant_amount, commission_rate, payment_provider,
	currency, status, processed_at, metadata, created_at, updated_at`

// CommissionRepository implements repository.CommissionRepository for PostgreSQL.
type CommissionRepository struct{}

// NewCommissionRepository creates a new CommissionRepository.
func NewCommissionRepository() repository.CommissionRepository {
	return &CommissionRepository{}
}

// CreateCommission inserts the commission; a repeated transaction id inserts nothing.
func (r *CommissionRepository) CreateCommission(ctx context.Context, q repository.DBExecutor, c *domain.Commission) (bool, error) {
	query := `INSERT INTO platform_commissions (user_id, team_id, transaction_type, transaction_id,
                original_amount, platform_commission, provider_fee, total_fees, tenant_amount,
                commission_rate, payment_provider, currency, status, processed_at, metadata, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
              ON CONFLICT (transaction_id) DO NOTHING
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		c.UserID, c.TeamID, c.TransactionType, c.TransactionID,
		c.OriginalAmount, c.PlatformCommission, c.ProviderFee, c.TotalFees, c.TenantAmount,
		c.CommissionRate, c.PaymentProvider, c.Currency, c.Status, c.ProcessedAt, c.Metadata, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create commission for transaction %s: %w", c.TransactionID, err)
	}
	return true, nil
}

func (r *CommissionRepository) GetByTransactionID(ctx context.Context, q repository.DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM platform_commissions
              WHERE transaction_id = $1 AND user_id = $2 AND COALESCE(team_id, 0) = $3`
	return r.getOne(ctx, q, query, transactionID, owner.UserID, owner.TeamKey())
}

func (r *CommissionRepository) GetByTransactionIDForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM platform_commissions
              WHERE transaction_id = $1 AND user_id = $2 AND COALESCE(team_id, 0) = $3
              FOR UPDATE`
	return r.getOne(ctx, q, query, transactionID, owner.UserID, owner.TeamKey())
}

func (r *CommissionRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, args ...any) (*domain.Commission, error) {
	var c domain.Commission
	if err := q.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}
	return &c, nil
}

func (r *CommissionRepository) UpdateStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.CommissionStatus) error {
	query := `UPDATE platform_commissions SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update commission %d status: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for commission %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// ListCommissions returns the owner's commissions, newest first, with the total count.
func (r *CommissionRepository) ListCommissions(ctx context.Context, q repository.DBExecutor, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error) {
	commissions := []domain.Commission{}
	query := `SELECT ` + commissionColumns + ` FROM platform_commissions
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2
              ORDER BY created_at DESC, id DESC
              LIMIT $3 OFFSET $4`
	if err := q.SelectContext(ctx, &commissions, query, owner.UserID, owner.TeamKey(), limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list commissions for %s: %w", owner, err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM platform_commissions WHERE user_id = $1 AND COALESCE(team_id, 0) = $2`
	if err := q.GetContext(ctx, &total, countQuery, owner.UserID, owner.TeamKey()); err != nil {
		return nil, 0, fmt.Errorf("failed to count commissions for %s: %w", owner, err)
	}
	return commissions, total, nil
}

func (r *CommissionRepository) SummarizeCommissions(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.CommissionSummary, error) {
	summaries := []domain.CommissionSummary{}
	query := `SELECT status, COUNT(*) AS count,
                COALESCE(SUM(original_amount), 0) AS original_amount,
                COALESCE(SUM(platform_commission), 0) AS platform_commission,
                COALESCE(SUM(provider_fee), 0) AS provider_fee,
                COALESCE(SUM(tenant_amount), 0) AS tenant_amount
              FROM platform_commissions
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2
              GROUP BY status
              ORDER BY status`
	if err := q.SelectContext(ctx, &summaries, query, owner.UserID, owner.TeamKey()); err != nil {
		return nil, fmt.Errorf("failed to summarize commissions for %s: %w", owner, err)
	}
	return summaries, nil
}

const reversalColumns = `id, commission_id, transaction_id, user_id, team_id, amount, status, attempts, last_error, created_at, settled_at`

// ReversalRepository implements repository.ReversalRepository for PostgreSQL.
type ReversalRepository struct{}

// NewReversalRepository creates a new ReversalRepository.
func NewReversalRepository() repository.ReversalRepository {
	return &ReversalRepository{}
}

func (r *ReversalRepository) CreateReversal(ctx context.Context, q repository.DBExecutor, rev *domain.CommissionReversal) error {
	query := `INSERT INTO commission_reversals (commission_id, transaction_id, user_id, team_id, amount, status, attempts, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		rev.CommissionID, rev.TransactionID, rev.UserID, rev.TeamID, rev.Amount, rev.Status, rev.Attempts, rev.CreatedAt,
	).Scan(&rev.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create reversal for commission %d: %w", rev.CommissionID, err)
	}
	return nil
}

func (r *ReversalRepository) ListPendingReversals(ctx context.Context, q repository.DBExecutor, limit int) ([]domain.CommissionReversal, error) {
	reversals := []domain.CommissionReversal{}
	query := `SELECT ` + reversalColumns + ` FROM commission_reversals
              WHERE status = 'pending' ORDER BY created_at LIMIT $1`
	if err := q.SelectContext(ctx, &reversals, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending reversals: %w", err)
	}
	return reversals, nil
}

func (r *ReversalRepository) GetReversalForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.CommissionReversal, error) {
	var rev domain.CommissionReversal
	query := `SELECT ` + reversalColumns + ` FROM commission_reversals WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &rev, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reversal %d: %w", id, err)
	}
	return &rev, nil
}

func (r *ReversalRepository) UpdateReversal(ctx context.Context, q repository.DBExecutor, rev *domain.CommissionReversal) error {
	query := `UPDATE commission_reversals SET status = $1, attempts = $2, last_error = $3, settled_at = $4 WHERE id = $5`
	if _, err := q.ExecContext(ctx, query, rev.Status, rev.Attempts, rev.LastError, rev.SettledAt, rev.ID); err != nil {
		return fmt.Errorf("failed to update reversal %d: %w", rev.ID, err)
	}
	return nil
}
