// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"tenant-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the interface for wallet account data operations.
type WalletRepository interface {
	// EnsureWallet inserts the wallet unless one already exists for its owner and kind.
	EnsureWallet(ctx context.Context, q DBExecutor, wallet *domain.WalletAccount) error
	// GetWallet retrieves the owner's wallet of the given kind.
	GetWallet(ctx context.Context, q DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error)
	// GetWalletForUpdate is GetWallet with a row lock held until q's transaction ends.
	GetWalletForUpdate(ctx context.Context, q DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error)
	// ListWallets returns every wallet the owner holds.
	ListWallets(ctx context.Context, q DBExecutor, owner domain.Owner) ([]domain.WalletAccount, error)
	// UpdateWalletBalance adds delta (negative for debits) and fails with
	// util.ErrInsufficientFunds if the balance would go below zero.
	UpdateWalletBalance(ctx context.Context, q DBExecutor, walletID int64, delta decimal.Decimal) error
}
