package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-ledger/internal/service"
)

// renewStub and settleStub embed the interfaces so only the batch methods need bodies.
type renewStub struct {
	service.ProviderConfigService
	summary *service.RenewSummary
	err     error
	calls   int
}

func (s *renewStub) RenewAll(ctx context.Context) (*service.RenewSummary, error) {
	s.calls++
	return s.summary, s.err
}

type settleStub struct {
	service.CommissionService
	summary *service.SettleSummary
	err     error
	calls   int
}

func (s *settleStub) SettleReversals(ctx context.Context) (*service.SettleSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestLedgerJobs(t *testing.T) {
	renew := &renewStub{summary: &service.RenewSummary{Renewed: 2, Total: 2}}
	settle := &settleStub{err: errors.New("db down")}

	jobs := LedgerJobs(renew, settle, time.Hour, time.Minute)

	require.Len(t, jobs, 2)
	assert.Equal(t, JobRenewProviders, jobs[0].Name)
	assert.Equal(t, time.Hour, jobs[0].Interval)
	assert.Equal(t, JobSettleReversals, jobs[1].Name)
	assert.Equal(t, time.Minute, jobs[1].Interval)

	assert.NoError(t, jobs[0].Run(context.Background()))
	assert.EqualError(t, jobs[1].Run(context.Background()), "db down")
	assert.Equal(t, 1, renew.calls)
	assert.Equal(t, 1, settle.calls)
}
