package service

import (
	"context"
	"errors"
	"fmt"

	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"
)

// runInTx begins a transaction, hands its executor to fn and commits if fn succeeds.
// Any error from fn rolls everything back and is returned unchanged.
func runInTx(ctx context.Context, t db.Transactor, op string, fn func(q repository.DBExecutor) error) error {
	txController, err := t.Begin(ctx, t.Beginner)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w: %w", op, util.ErrPersistence, err)
	}
	defer t.Rollback(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	if err := fn(txExecutor); err != nil {
		return err
	}

	if err := t.Commit(txController); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w: %w", op, util.ErrPersistence, err)
	}
	return nil
}

// persistenceErr wraps an unexpected repository failure so callers can match ErrPersistence.
// Domain sentinels pass through untouched.
func persistenceErr(op string, err error) error {
	switch {
	case errors.Is(err, util.ErrNotFound),
		errors.Is(err, util.ErrInsufficientFunds),
		errors.Is(err, util.ErrInvalidInput),
		errors.Is(err, util.ErrDuplicateEntry),
		errors.Is(err, util.ErrPersistence):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, util.ErrPersistence, err)
}
