package worker

import (
	"context"
	"time"

	"tenant-ledger/internal/service"
	"tenant-ledger/internal/util"
)

const (
	JobRenewProviders  = "renew-provider-subscriptions"
	JobSettleReversals = "settle-commission-reversals"
)

// LedgerJobs returns the periodic batches of the ledger: provider subscription
// renewals and deferred revenue reversals.
func LedgerJobs(providers service.ProviderConfigService, commissions service.CommissionService, renewEvery, settleEvery time.Duration) []Job {
	return []Job{
		{
			Name:     JobRenewProviders,
			Interval: renewEvery,
			Run: func(ctx context.Context) error {
				summary, err := providers.RenewAll(ctx)
				if err != nil {
					return err
				}
				util.Log(ctx).Info().
					Int("renewed", summary.Renewed).
					Int("failed", summary.Failed).
					Int("expired", summary.Expired).
					Int("skipped", summary.Skipped).
					Int("total", summary.Total).
					Msg("provider renewals processed")
				return nil
			},
		},
		{
			Name:     JobSettleReversals,
			Interval: settleEvery,
			Run: func(ctx context.Context) error {
				summary, err := commissions.SettleReversals(ctx)
				if err != nil {
					return err
				}
				if summary.Total > 0 {
					util.Log(ctx).Info().
						Int("settled", summary.Settled).
						Int("pending", summary.Pending).
						Int("failed", summary.Failed).
						Msg("commission reversals processed")
				}
				return nil
			},
		},
	}
}
