// internal/service/wallet_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"

	"github.com/shopspring/decimal"
)

// WalletService defines the interface for wallet-related business logic.
// Deposit and Withdraw are the only operations that change balances; the *Tx
// variants run inside a transaction owned by the caller.
type WalletService interface {
	GetOrCreate(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error)
	Deposit(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error)
	Withdraw(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error)
	Balance(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error)
	Wallets(ctx context.Context, owner domain.Owner) ([]domain.WalletAccount, error)
	History(ctx context.Context, owner domain.Owner, kind domain.WalletKind, limit, offset int) ([]domain.WalletTransaction, int64, error)

	DepositTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error)
	WithdrawTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error)
	// BalanceTx locks the wallet on q and returns its balance.
	BalanceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error)
	// HasEntrySinceTx locks the wallet and reports whether it has an entry of txType at or after since.
	HasEntrySinceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, txType string, since time.Time) (bool, error)
}

// walletService implements the WalletService interface.
type walletService struct {
	tx              db.Transactor
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	currency        string // Currency of main and revenue wallets
}

// NewWalletService creates a new instance of WalletService.
func NewWalletService(
	tx db.Transactor,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	currency string,
) WalletService {
	if currency == "" {
		currency = "USD"
	}
	return &walletService{
		tx:              tx,
		dbExecutor:      dbExecutor,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		currency:        currency,
	}
}

// GetOrCreate returns the owner's wallet of kind, creating an empty one on first use.
func (s *walletService) GetOrCreate(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("get wallet: unknown kind %q: %w", kind, util.ErrInvalidInput)
	}
	if err := s.walletRepo.EnsureWallet(ctx, s.dbExecutor, domain.NewWalletAccount(owner, kind, s.currency)); err != nil {
		return nil, persistenceErr("get wallet", err)
	}
	wallet, err := s.walletRepo.GetWallet(ctx, s.dbExecutor, owner, kind)
	if err != nil {
		return nil, persistenceErr("get wallet", err)
	}
	return wallet, nil
}

// Balance returns the current balance, zero for a wallet that was never used.
func (s *walletService) Balance(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error) {
	wallet, err := s.GetOrCreate(ctx, owner, kind)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// Wallets returns every wallet kind for the owner, creating missing ones.
func (s *walletService) Wallets(ctx context.Context, owner domain.Owner) ([]domain.WalletAccount, error) {
	for _, kind := range []domain.WalletKind{domain.WalletKindMain, domain.WalletKindAIToken, domain.WalletKindRevenue} {
		if err := s.walletRepo.EnsureWallet(ctx, s.dbExecutor, domain.NewWalletAccount(owner, kind, s.currency)); err != nil {
			return nil, persistenceErr("list wallets", err)
		}
	}
	wallets, err := s.walletRepo.ListWallets(ctx, s.dbExecutor, owner)
	if err != nil {
		return nil, persistenceErr("list wallets", err)
	}
	return wallets, nil
}

// History returns the wallet's transactions, newest first.
func (s *walletService) History(ctx context.Context, owner domain.Owner, kind domain.WalletKind, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	wallet, err := s.GetOrCreate(ctx, owner, kind)
	if err != nil {
		return nil, 0, err
	}
	transactions, total, err := s.transactionRepo.GetTransactionsByWalletID(ctx, s.dbExecutor, wallet.ID, limit, offset)
	if err != nil {
		return nil, 0, persistenceErr("wallet history", err)
	}
	return transactions, total, nil
}

// Deposit adds amount to the owner's wallet in its own transaction.
func (s *walletService) Deposit(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	var transaction *domain.WalletTransaction
	err := runInTx(ctx, s.tx, "deposit", func(q repository.DBExecutor) error {
		var err error
		transaction, err = s.DepositTx(ctx, q, owner, kind, amount, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// Withdraw removes amount from the owner's wallet in its own transaction.
func (s *walletService) Withdraw(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	var transaction *domain.WalletTransaction
	err := runInTx(ctx, s.tx, "withdraw", func(q repository.DBExecutor) error {
		var err error
		transaction, err = s.WithdrawTx(ctx, q, owner, kind, amount, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// DepositTx credits the wallet on q. A repeated (type, reference) returns the
// earlier transaction and leaves the balance alone.
func (s *walletService) DepositTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	return s.apply(ctx, q, owner, kind, domain.DirectionCredit, amount, entry)
}

// WithdrawTx debits the wallet on q, failing with *util.InsufficientFundsError
// when the locked balance cannot cover amount.
func (s *walletService) WithdrawTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	return s.apply(ctx, q, owner, kind, domain.DirectionDebit, amount, entry)
}

func (s *walletService) apply(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, dir domain.Direction, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	op := "deposit"
	if dir == domain.DirectionDebit {
		op = "withdraw"
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: amount must be positive: %w", op, util.ErrInvalidInput)
	}
	if entry.Type == "" {
		return nil, fmt.Errorf("%s: entry type is required: %w", op, util.ErrInvalidInput)
	}

	wallet, err := s.lockWallet(ctx, q, owner, kind)
	if err != nil {
		return nil, persistenceErr(op, err)
	}

	if entry.Reference != "" {
		existing, err := s.transactionRepo.GetTransactionByReference(ctx, q, wallet.ID, entry.Type, entry.Reference)
		switch {
		case err == nil:
			util.Log(ctx).Debug().
				Int64("wallet_id", wallet.ID).
				Str("reference", entry.Reference).
				Msg("wallet entry already applied")
			return existing, nil
		case !errors.Is(err, util.ErrNotFound):
			return nil, persistenceErr(op, err)
		}
	}

	delta := amount
	if dir == domain.DirectionDebit {
		if !wallet.CanCover(amount) {
			return nil, &util.InsufficientFundsError{Required: amount, Available: wallet.Balance}
		}
		delta = amount.Neg()
	}

	if err := s.walletRepo.UpdateWalletBalance(ctx, q, wallet.ID, delta); err != nil {
		if errors.Is(err, util.ErrInsufficientFunds) {
			return nil, &util.InsufficientFundsError{Required: amount, Available: wallet.Balance}
		}
		return nil, persistenceErr(op+": failed to update wallet balance", err)
	}

	transaction, err := domain.NewWalletTransaction(wallet, dir, amount, wallet.Balance.Add(delta), entry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
		return nil, persistenceErr(op+": failed to create transaction", err)
	}

	util.Log(ctx).Info().
		Int64("user_id", owner.UserID).
		Int64("team_id", owner.TeamKey()).
		Str("wallet_kind", string(kind)).
		Str("direction", string(dir)).
		Str("amount", amount.String()).
		Str("type", entry.Type).
		Msg("wallet balance changed")
	return transaction, nil
}

func (s *walletService) BalanceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error) {
	wallet, err := s.lockWallet(ctx, q, owner, kind)
	if err != nil {
		return decimal.Zero, persistenceErr("wallet balance", err)
	}
	return wallet.Balance, nil
}

// HasEntrySinceTx serialises on the wallet row before checking, so two callers
// cannot both observe "no entry yet".
func (s *walletService) HasEntrySinceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, txType string, since time.Time) (bool, error) {
	wallet, err := s.lockWallet(ctx, q, owner, kind)
	if err != nil {
		return false, persistenceErr("check wallet entries", err)
	}
	found, err := s.transactionRepo.HasTransactionSince(ctx, q, wallet.ID, txType, since)
	if err != nil {
		return false, persistenceErr("check wallet entries", err)
	}
	return found, nil
}

func (s *walletService) lockWallet(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown wallet kind %q: %w", kind, util.ErrInvalidInput)
	}
	if err := s.walletRepo.EnsureWallet(ctx, q, domain.NewWalletAccount(owner, kind, s.currency)); err != nil {
		return nil, err
	}
	return s.walletRepo.GetWalletForUpdate(ctx, q, owner, kind)
}
