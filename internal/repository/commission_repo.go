package repository

import (
	"context"

	"tenant-ledger/internal/domain"
)

// CommissionRepository persists platform commissions.
type CommissionRepository interface {
	// CreateCommission inserts c unless its transaction id is already recorded.
	// It reports whether a row was inserted.
	CreateCommission(ctx context.Context, q DBExecutor, c *domain.Commission) (bool, error)
	// GetByTransactionID looks up the owner's commission for transactionID. A commission
	// held by another tenant is reported as ErrNotFound.
	GetByTransactionID(ctx context.Context, q DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error)
	// GetByTransactionIDForUpdate is the owner-scoped, row-locking variant used by refunds.
	GetByTransactionIDForUpdate(ctx context.Context, q DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error)
	UpdateStatus(ctx context.Context, q DBExecutor, id int64, status domain.CommissionStatus) error
	ListCommissions(ctx context.Context, q DBExecutor, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error)
	SummarizeCommissions(ctx context.Context, q DBExecutor, owner domain.Owner) ([]domain.CommissionSummary, error)
}

// ReversalRepository persists deferred revenue reversals.
type ReversalRepository interface {
	CreateReversal(ctx context.Context, q DBExecutor, r *domain.CommissionReversal) error
	ListPendingReversals(ctx context.Context, q DBExecutor, limit int) ([]domain.CommissionReversal, error)
	GetReversalForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.CommissionReversal, error)
	UpdateReversal(ctx context.Context, q DBExecutor, r *domain.CommissionReversal) error
}
