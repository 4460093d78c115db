package repository

import (
	"context"
	"time"

	"tenant-ledger/internal/domain"
)

// ProviderConfigRepository persists tenant payment provider configurations.
type ProviderConfigRepository interface {
	CreateConfig(ctx context.Context, q DBExecutor, cfg *domain.ProviderConfig) error
	UpdateConfig(ctx context.Context, q DBExecutor, cfg *domain.ProviderConfig) error
	GetConfig(ctx context.Context, q DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error)
	GetConfigForUpdate(ctx context.Context, q DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error)
	GetConfigByID(ctx context.Context, q DBExecutor, id int64) (*domain.ProviderConfig, error)
	GetConfigByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.ProviderConfig, error)
	// GetDefaultConfig returns the enabled default config of the owner's team, or of
	// the user when there is no team.
	GetDefaultConfig(ctx context.Context, q DBExecutor, owner domain.Owner) (*domain.ProviderConfig, error)
	ListConfigs(ctx context.Context, q DBExecutor, owner domain.Owner) ([]domain.ProviderConfig, error)
	// ListDueForRenewal returns active configs whose subscription expires before the cutoff.
	ListDueForRenewal(ctx context.Context, q DBExecutor, before time.Time) ([]domain.ProviderConfig, error)
	// ClearDefault unsets every other default in the owner's team (or the user's personal
	// configs), keeping the owner's keepProvider config.
	ClearDefault(ctx context.Context, q DBExecutor, owner domain.Owner, keepProvider string) error
}
