package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"
	"tenant-ledger/pkg/db"

	"github.com/shopspring/decimal"
)

// RecordRequest describes a monetary transaction to take a commission on.
type RecordRequest struct {
	Owner           domain.Owner
	TransactionType domain.CommissionType
	TransactionID   string
	Amount          decimal.Decimal
	Provider        string
	Currency        string
	Metadata        map[string]any
}

// RefundResult reports what a commission refund did.
type RefundResult struct {
	TransactionID    string             `json:"transaction_id"`
	Refunded         bool               `json:"refunded"`
	AlreadyRefunded  bool               `json:"already_refunded,omitempty"`
	Commission       *domain.Commission `json:"commission,omitempty"`
	ReversedAmount   decimal.Decimal    `json:"reversed_amount"`
	ReversalDeferred bool               `json:"reversal_deferred,omitempty"`
	Message          string             `json:"message,omitempty"`
}

// SettleSummary counts the outcome of a reversal settlement batch.
type SettleSummary struct {
	Settled int `json:"settled"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// Webhook event types that represent completed payments.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventChargeSucceeded        = "charge.succeeded"
)

const reversalBatchSize = 100

// CommissionService takes the platform's cut of monetary transactions.
type CommissionService interface {
	Calculate(txType domain.CommissionType, amount decimal.Decimal, provider string) domain.Breakdown
	Record(ctx context.Context, req RecordRequest) (*domain.Commission, error)
	RecordTx(ctx context.Context, q repository.DBExecutor, req RecordRequest) (*domain.Commission, error)
	Refund(ctx context.Context, owner domain.Owner, transactionID string) (*RefundResult, error)
	Get(ctx context.Context, owner domain.Owner, transactionID string) (*domain.Commission, error)
	SettleReversals(ctx context.Context) (*SettleSummary, error)
	HandleWebhookEvent(ctx context.Context, event domain.PaymentEvent) error
	List(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error)
	Summary(ctx context.Context, owner domain.Owner) ([]domain.CommissionSummary, error)
}

type commissionService struct {
	tx          db.Transactor
	dbExecutor  repository.DBExecutor
	rates       *RateTable
	wallets     WalletService
	commissions repository.CommissionRepository
	reversals   repository.ReversalRepository
	currency    string
}

// NewCommissionService creates a CommissionService.
func NewCommissionService(
	tx db.Transactor,
	dbExecutor repository.DBExecutor,
	rates *RateTable,
	wallets WalletService,
	commissions repository.CommissionRepository,
	reversals repository.ReversalRepository,
	currency string,
) CommissionService {
	return &commissionService{
		tx:          tx,
		dbExecutor:  dbExecutor,
		rates:       rates,
		wallets:     wallets,
		commissions: commissions,
		reversals:   reversals,
		currency:    currency,
	}
}

func (s *commissionService) Calculate(txType domain.CommissionType, amount decimal.Decimal, provider string) domain.Breakdown {
	return s.rates.Calculate(txType, amount, provider)
}

// Record persists a commission and credits revenue in one transaction.
func (s *commissionService) Record(ctx context.Context, req RecordRequest) (*domain.Commission, error) {
	var commission *domain.Commission
	err := runInTx(ctx, s.tx, "record commission", func(q repository.DBExecutor) error {
		var err error
		commission, err = s.RecordTx(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commission, nil
}

// RecordTx persists a commission on q. Recording the same transaction id twice
// returns the first record and credits revenue only once.
func (s *commissionService) RecordTx(ctx context.Context, q repository.DBExecutor, req RecordRequest) (*domain.Commission, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("record commission: transaction id is required: %w", util.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("record commission: amount must be positive: %w", util.ErrInvalidInput)
	}
	if req.TransactionType == "" {
		req.TransactionType = domain.CommissionTypePayment
	}
	if req.Currency == "" {
		req.Currency = s.currency
	}

	existing, err := s.commissions.GetByTransactionID(ctx, q, req.Owner, req.TransactionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, persistenceErr("record commission", err)
	}

	breakdown := s.rates.Calculate(req.TransactionType, req.Amount, req.Provider)
	commission, err := domain.NewCommission(req.Owner, req.TransactionType, req.TransactionID, breakdown, req.Provider, req.Currency, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("record commission: %w", err)
	}

	inserted, err := s.commissions.CreateCommission(ctx, q, commission)
	if err != nil {
		return nil, persistenceErr("record commission", err)
	}
	if !inserted {
		// Either a concurrent recorder of the same transaction won, or the id is
		// already booked by another tenant.
		winner, err := s.commissions.GetByTransactionID(ctx, q, req.Owner, req.TransactionID)
		if errors.Is(err, util.ErrNotFound) {
			util.Log(ctx).Warn().
				Int64("user_id", req.Owner.UserID).
				Int64("team_id", req.Owner.TeamKey()).
				Str("transaction_id", req.TransactionID).
				Msg("transaction id already recorded for another tenant")
			return nil, fmt.Errorf("record commission: transaction %s: %w", req.TransactionID, util.ErrDuplicateEntry)
		}
		if err != nil {
			return nil, persistenceErr("record commission", err)
		}
		return winner, nil
	}

	if commission.CreditsRevenue() {
		_, err := s.wallets.DepositTx(ctx, q, req.Owner, domain.WalletKindRevenue, commission.TenantAmount, domain.Entry{
			Type:      domain.TxTypeRevenueCredit,
			Reference: commission.TransactionID,
			Metadata: map[string]any{
				"commission_id":    commission.ID,
				"transaction_type": commission.TransactionType,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("record commission: credit revenue: %w", err)
		}
	}

	util.Log(ctx).Info().
		Int64("user_id", req.Owner.UserID).
		Int64("team_id", req.Owner.TeamKey()).
		Str("transaction_id", req.TransactionID).
		Str("transaction_type", string(req.TransactionType)).
		Str("provider", req.Provider).
		Str("amount", req.Amount.String()).
		Str("platform_commission", commission.PlatformCommission.String()).
		Str("tenant_amount", commission.TenantAmount.String()).
		Msg("commission recorded")
	return commission, nil
}

// Refund marks the commission refunded and takes the tenant share back out of
// the revenue wallet. A missing commission is reported, not raised.
func (s *commissionService) Refund(ctx context.Context, owner domain.Owner, transactionID string) (*RefundResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("refund commission: transaction id is required: %w", util.ErrInvalidInput)
	}
	result := &RefundResult{TransactionID: transactionID, ReversedAmount: decimal.Zero}

	err := runInTx(ctx, s.tx, "refund commission", func(q repository.DBExecutor) error {
		commission, err := s.commissions.GetByTransactionIDForUpdate(ctx, q, owner, transactionID)
		if err != nil {
			return persistenceErr("refund commission", err)
		}
		result.Commission = commission

		if commission.Status == domain.CommissionStatusRefunded {
			result.Refunded = true
			result.AlreadyRefunded = true
			return nil
		}
		if !commission.Status.Refundable() {
			return fmt.Errorf("refund commission: status %s cannot be refunded: %w", commission.Status, util.ErrInvalidInput)
		}

		if err := s.commissions.UpdateStatus(ctx, q, commission.ID, domain.CommissionStatusRefunded); err != nil {
			return persistenceErr("refund commission", err)
		}
		commission.Status = domain.CommissionStatusRefunded
		result.Refunded = true

		if !commission.CreditsRevenue() {
			return nil
		}

		_, err = s.wallets.WithdrawTx(ctx, q, owner, domain.WalletKindRevenue, commission.TenantAmount, domain.Entry{
			Type:      domain.TxTypeRevenueReversal,
			Reference: commission.TransactionID,
			Metadata:  map[string]any{"commission_id": commission.ID},
		})
		switch {
		case err == nil:
			result.ReversedAmount = commission.TenantAmount
			return nil
		case errors.Is(err, util.ErrInsufficientFunds):
			reversal := &domain.CommissionReversal{
				CommissionID:  commission.ID,
				TransactionID: commission.TransactionID,
				UserID:        commission.UserID,
				TeamID:        commission.TeamID,
				Amount:        commission.TenantAmount,
				Status:        domain.ReversalStatusPending,
				CreatedAt:     time.Now().UTC(),
			}
			if err := s.reversals.CreateReversal(ctx, q, reversal); err != nil {
				return persistenceErr("refund commission: defer reversal", err)
			}
			result.ReversalDeferred = true
			util.Log(ctx).Warn().
				Int64("user_id", owner.UserID).
				Int64("team_id", owner.TeamKey()).
				Str("transaction_id", transactionID).
				Str("amount", commission.TenantAmount.String()).
				Msg("revenue wallet cannot cover reversal, deferring")
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			result.Message = "commission not found"
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// SettleReversals retries deferred revenue reversals, each in its own transaction.
func (s *commissionService) SettleReversals(ctx context.Context) (*SettleSummary, error) {
	pending, err := s.reversals.ListPendingReversals(ctx, s.dbExecutor, reversalBatchSize)
	if err != nil {
		return nil, persistenceErr("settle reversals", err)
	}

	summary := &SettleSummary{Total: len(pending)}
	for _, item := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		settled, err := s.settleOne(ctx, item.ID)
		switch {
		case err != nil:
			summary.Failed++
			util.Log(ctx).Error().Err(err).Int64("reversal_id", item.ID).Msg("failed to settle reversal")
		case settled:
			summary.Settled++
		default:
			summary.Pending++
		}
	}
	return summary, nil
}

func (s *commissionService) settleOne(ctx context.Context, id int64) (bool, error) {
	settled := false
	err := runInTx(ctx, s.tx, "settle reversal", func(q repository.DBExecutor) error {
		reversal, err := s.reversals.GetReversalForUpdate(ctx, q, id)
		if err != nil {
			return persistenceErr("settle reversal", err)
		}
		if reversal.Status != domain.ReversalStatusPending {
			settled = true
			return nil
		}

		reversal.Attempts++
		_, err = s.wallets.WithdrawTx(ctx, q, reversal.Owner(), domain.WalletKindRevenue, reversal.Amount, domain.Entry{
			Type:      domain.TxTypeRevenueReversal,
			Reference: reversal.TransactionID,
			Metadata:  map[string]any{"commission_id": reversal.CommissionID, "deferred": true},
		})
		switch {
		case err == nil:
			now := time.Now().UTC()
			reversal.Status = domain.ReversalStatusSettled
			reversal.SettledAt = &now
			reversal.LastError = nil
			settled = true
		case errors.Is(err, util.ErrInsufficientFunds):
			msg := err.Error()
			reversal.LastError = &msg
		default:
			return err
		}
		if err := s.reversals.UpdateReversal(ctx, q, reversal); err != nil {
			return persistenceErr("settle reversal", err)
		}
		return nil
	})
	return settled, err
}

// HandleWebhookEvent records the commission of a completed platform payment.
// Events other than successful payments are ignored.
func (s *commissionService) HandleWebhookEvent(ctx context.Context, event domain.PaymentEvent) error {
	if event.Type != EventPaymentIntentSucceeded && event.Type != EventChargeSucceeded {
		util.Log(ctx).Debug().Str("event_type", event.Type).Msg("ignoring webhook event")
		return nil
	}

	owner, err := ownerFromMetadata(event.Metadata)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.ID, err)
	}
	if event.AmountMinor <= 0 {
		return fmt.Errorf("webhook %s: non-positive amount: %w", event.ID, util.ErrInvalidInput)
	}
	amount := decimal.New(event.AmountMinor, -2)
	txType := domain.CommissionType(event.Metadata["transaction_type"])
	if txType == "" {
		txType = domain.CommissionTypePayment
	}
	currency := strings.ToUpper(event.Currency)
	transactionID := event.TransactionID()

	return runInTx(ctx, s.tx, "handle webhook", func(q repository.DBExecutor) error {
		// Top-ups credit the full amount and take no fees, so they book no commission.
		if txType == domain.CommissionTypeWalletTopUp {
			_, err := s.wallets.DepositTx(ctx, q, owner, domain.WalletKindMain, amount, domain.Entry{
				Type:      domain.TxTypeWalletTopUp,
				Reference: transactionID,
				Metadata:  map[string]any{"event_id": event.ID, "currency": currency},
			})
			return err
		}
		_, err := s.RecordTx(ctx, q, RecordRequest{
			Owner:           owner,
			TransactionType: txType,
			TransactionID:   transactionID,
			Amount:          amount,
			Provider:        domain.ProviderStripe,
			Currency:        currency,
			Metadata:        map[string]any{"event_id": event.ID, "event_type": event.Type},
		})
		return err
	})
}

func ownerFromMetadata(meta map[string]string) (domain.Owner, error) {
	userID, err := strconv.ParseInt(meta["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		return domain.Owner{}, fmt.Errorf("metadata user_id missing or invalid: %w", util.ErrInvalidInput)
	}
	var teamID *int64
	if raw := meta["team_id"]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Owner{}, fmt.Errorf("metadata team_id invalid: %w", util.ErrInvalidInput)
		}
		teamID = &id
	}
	return domain.NewOwner(userID, teamID), nil
}

func (s *commissionService) Get(ctx context.Context, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	commission, err := s.commissions.GetByTransactionID(ctx, s.dbExecutor, owner, transactionID)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("get commission %s", transactionID), err)
	}
	return commission, nil
}

func (s *commissionService) List(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	commissions, total, err := s.commissions.ListCommissions(ctx, s.dbExecutor, owner, limit, offset)
	if err != nil {
		return nil, 0, persistenceErr("list commissions", err)
	}
	return commissions, total, nil
}

func (s *commissionService) Summary(ctx context.Context, owner domain.Owner) ([]domain.CommissionSummary, error) {
	summary, err := s.commissions.SummarizeCommissions(ctx, s.dbExecutor, owner)
	if err != nil {
		return nil, persistenceErr("summarize commissions", err)
	}
	return summary, nil
}
