// internal/repository/postgres/transaction_pg.go
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

const transactionColumns = `id, wallet_id, user_id, team_id, direction, amount, balance_after, type, reference, metadata, created_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new transaction record into the database using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (wallet_id, user_id, team_id, direction, amount, balance_after, type, reference, metadata, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.WalletID,
		transaction.UserID,
		transaction.TeamID,
		transaction.Direction,
		transaction.Amount,
		transaction.BalanceAfter,
		transaction.Type,
		transaction.Reference,
		transaction.Metadata,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByReference finds an earlier movement by idempotency key.
func (r *TransactionRepository) GetTransactionByReference(ctx context.Context, q repository.DBExecutor, walletID int64, txType, reference string) (*domain.WalletTransaction, error) {
	var transaction domain.WalletTransaction
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
              WHERE wallet_id = $1 AND type = $2 AND reference = $3`
	err := q.GetContext(ctx, &transaction, query, walletID, txType, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s/%s for wallet %d: %w", txType, reference, walletID, err)
	}
	return &transaction, nil
}

// GetTransactionsByWalletID retrieves a paginated list of transactions for a specific wallet.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	transactions := []domain.WalletTransaction{}

	query := `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &transactions, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for wallet %d: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for wallet %d: %w", walletID, err)
	}

	return transactions, totalCount, nil
}

// HasTransactionSince reports whether the wallet has a txType movement at or after since.
func (r *TransactionRepository) HasTransactionSince(ctx context.Context, q repository.DBExecutor, walletID int64, txType string, since time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
                SELECT 1 FROM wallet_transactions
                WHERE wallet_id = $1 AND type = $2 AND created_at >= $3)`
	if err := q.GetContext(ctx, &exists, query, walletID, txType, since); err != nil {
		return false, fmt.Errorf("failed to check %s transactions for wallet %d: %w", txType, walletID, err)
	}
	return exists, nil
}
