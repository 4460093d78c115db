// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"tenant-ledger/internal/domain"
)

// TransactionRepository defines the interface for wallet transaction data operations.
type TransactionRepository interface {
	// CreateTransaction appends a transaction record. A repeated (wallet, type, reference)
	// returns util.ErrDuplicateEntry.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.WalletTransaction) error
	// GetTransactionByReference looks up an earlier movement by its idempotency key.
	GetTransactionByReference(ctx context.Context, q DBExecutor, walletID int64, txType, reference string) (*domain.WalletTransaction, error)
	// GetTransactionsByWalletID retrieves paginated history, newest first, with the total count.
	GetTransactionsByWalletID(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error)
	// HasTransactionSince reports whether a transaction of txType exists at or after since.
	HasTransactionSince(ctx context.Context, q DBExecutor, walletID int64, txType string, since time.Time) (bool, error)
}
