package repository

import (
	"context"

	"tenant-ledger/internal/domain"
)

// AiTokenRepository persists the token package catalog and per-tenant settings.
type AiTokenRepository interface {
	ListActivePackages(ctx context.Context, q DBExecutor) ([]domain.AiTokenPackage, error)
	GetPackage(ctx context.Context, q DBExecutor, id int64) (*domain.AiTokenPackage, error)
	GetSettings(ctx context.Context, q DBExecutor, owner domain.Owner) (*domain.AiTokenSettings, error)
	UpsertSettings(ctx context.Context, q DBExecutor, s *domain.AiTokenSettings) error
}

// CustomerRepository maps owners to platform billing customers.
type CustomerRepository interface {
	GetCustomer(ctx context.Context, q DBExecutor, owner domain.Owner) (*domain.BillingCustomer, error)
	// CreateCustomer returns util.ErrDuplicateEntry if the owner already has one.
	CreateCustomer(ctx context.Context, q DBExecutor, c *domain.BillingCustomer) error
}
