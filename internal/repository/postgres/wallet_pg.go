// internal/repository/postgres/wallet_pg.go
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

	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, team_id, kind, currency, balance, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// EnsureWallet inserts the wallet if the owner has none of that kind yet.
// Concurrent callers race on the unique index and the loser's insert is a no-op.
func (r *WalletRepository) EnsureWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.WalletAccount) error {
	query := `INSERT INTO wallet_accounts (user_id, team_id, kind, currency, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              ON CONFLICT (user_id, (COALESCE(team_id, 0)), kind) DO NOTHING`
	_, err := q.ExecContext(ctx, query,
		wallet.UserID, wallet.TeamID, wallet.Kind, wallet.Currency, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to ensure %s wallet for %s: %w", wallet.Kind, wallet.Owner(), err)
	}
	return nil
}

// GetWallet retrieves the owner's wallet of the given kind.
func (r *WalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2 AND kind = $3`
	return r.getWallet(ctx, q, query, owner, kind)
}

// GetWalletForUpdate retrieves the wallet and locks its row for the rest of the transaction.
func (r *WalletRepository) GetWalletForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2 AND kind = $3
              FOR UPDATE`
	return r.getWallet(ctx, q, query, owner, kind)
}

func (r *WalletRepository) getWallet(ctx context.Context, q repository.DBExecutor, query string, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	var wallet domain.WalletAccount
	err := q.GetContext(ctx, &wallet, query, owner.UserID, owner.TeamKey(), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s wallet for %s: %w", kind, owner, err)
	}
	return &wallet, nil
}

// ListWallets returns every wallet the owner holds, ordered by kind.
func (r *WalletRepository) ListWallets(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.WalletAccount, error) {
	wallets := []domain.WalletAccount{}
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts
              WHERE user_id = $1 AND COALESCE(team_id, 0) = $2
              ORDER BY kind`
	if err := q.SelectContext(ctx, &wallets, query, owner.UserID, owner.TeamKey()); err != nil {
		return nil, fmt.Errorf("failed to list wallets for %s: %w", owner, err)
	}
	return wallets, nil
}

// UpdateWalletBalance applies delta to the balance. The guard in the WHERE clause
// keeps the balance non-negative even without a prior row lock.
func (r *WalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta decimal.Decimal) error {
	query := `UPDATE wallet_accounts SET balance = balance + $1, updated_at = $2
              WHERE id = $3 AND balance + $1 >= 0`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), walletID)
	if err != nil {
		if db.IsCheckViolation(err) {
			return util.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to update wallet balance for ID %d: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet balance for ID %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		if delta.IsNegative() {
			return util.ErrInsufficientFunds
		}
		return fmt.Errorf("wallet %d: %w", walletID, util.ErrNotFound)
	}
	return nil
}
