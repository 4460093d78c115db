package handler

import (
	"context"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetOrCreate(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	args := m.Called(ctx, owner, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletAccount), args.Error(1)
}

func (m *MockWalletService) Deposit(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, owner, kind, amount, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) Withdraw(ctx context.Context, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, owner, kind, amount, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) Balance(ctx context.Context, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error) {
	args := m.Called(ctx, owner, kind)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockWalletService) Wallets(ctx context.Context, owner domain.Owner) ([]domain.WalletAccount, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]domain.WalletAccount), args.Error(1)
}

func (m *MockWalletService) History(ctx context.Context, owner domain.Owner, kind domain.WalletKind, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, owner, kind, limit, offset)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) DepositTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, q, owner, kind, amount, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) WithdrawTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, amount decimal.Decimal, entry domain.Entry) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, q, owner, kind, amount, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) BalanceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (decimal.Decimal, error) {
	args := m.Called(ctx, q, owner, kind)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockWalletService) HasEntrySinceTx(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind, txType string, since time.Time) (bool, error) {
	args := m.Called(ctx, q, owner, kind, txType, since)
	return args.Bool(0), args.Error(1)
}

// MockCommissionService is a mock implementation of service.CommissionService.
type MockCommissionService struct {
	mock.Mock
}

func (m *MockCommissionService) Calculate(txType domain.CommissionType, amount decimal.Decimal, provider string) domain.Breakdown {
	args := m.Called(txType, amount, provider)
	return args.Get(0).(domain.Breakdown)
}

func (m *MockCommissionService) Record(ctx context.Context, req service.RecordRequest) (*domain.Commission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionService) RecordTx(ctx context.Context, q repository.DBExecutor, req service.RecordRequest) (*domain.Commission, error) {
	args := m.Called(ctx, q, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionService) Refund(ctx context.Context, owner domain.Owner, transactionID string) (*service.RefundResult, error) {
	args := m.Called(ctx, owner, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefundResult), args.Error(1)
}

func (m *MockCommissionService) SettleReversals(ctx context.Context) (*service.SettleSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SettleSummary), args.Error(1)
}

func (m *MockCommissionService) HandleWebhookEvent(ctx context.Context, event domain.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockCommissionService) Get(ctx context.Context, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	args := m.Called(ctx, owner, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionService) List(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error) {
	args := m.Called(ctx, owner, limit, offset)
	return args.Get(0).([]domain.Commission), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommissionService) Summary(ctx context.Context, owner domain.Owner) ([]domain.CommissionSummary, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]domain.CommissionSummary), args.Error(1)
}

// MockProviderConfigService is a mock implementation of service.ProviderConfigService.
type MockProviderConfigService struct {
	mock.Mock
}

func (m *MockProviderConfigService) Catalog() []service.ProviderSpec {
	return m.Called().Get(0).([]service.ProviderSpec)
}

func (m *MockProviderConfigService) Enable(ctx context.Context, owner domain.Owner, providerName string, req service.EnableRequest) (*service.EnableResult, error) {
	args := m.Called(ctx, owner, providerName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EnableResult), args.Error(1)
}

func (m *MockProviderConfigService) Disable(ctx context.Context, owner domain.Owner, providerName string) error {
	return m.Called(ctx, owner, providerName).Error(0)
}

func (m *MockProviderConfigService) SetDefault(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, owner, providerName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigService) List(ctx context.Context, owner domain.Owner) ([]domain.ProviderConfig, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigService) Get(ctx context.Context, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, owner, providerName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigService) DefaultProvider(ctx context.Context, owner domain.Owner) (string, error) {
	args := m.Called(ctx, owner)
	return args.String(0), args.Error(1)
}

func (m *MockProviderConfigService) Credentials(ctx context.Context, owner domain.Owner, providerName string) (gateway.Credentials, error) {
	args := m.Called(ctx, owner, providerName)
	return args.Get(0).(gateway.Credentials), args.Error(1)
}

func (m *MockProviderConfigService) WebhookSecret(ctx context.Context, configID int64) (string, domain.Owner, error) {
	args := m.Called(ctx, configID)
	return args.String(0), args.Get(1).(domain.Owner), args.Error(2)
}

func (m *MockProviderConfigService) RenewAll(ctx context.Context) (*service.RenewSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RenewSummary), args.Error(1)
}

// MockAiTokenService is a mock implementation of service.AiTokenService.
type MockAiTokenService struct {
	mock.Mock
}

func (m *MockAiTokenService) Balance(ctx context.Context, owner domain.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAiTokenService) HasEnough(ctx context.Context, owner domain.Owner, tokens int64) (bool, error) {
	args := m.Called(ctx, owner, tokens)
	return args.Bool(0), args.Error(1)
}

func (m *MockAiTokenService) Consume(ctx context.Context, owner domain.Owner, tokens int64, metadata map[string]any) (bool, error) {
	args := m.Called(ctx, owner, tokens, metadata)
	return args.Bool(0), args.Error(1)
}

func (m *MockAiTokenService) PurchasePackage(ctx context.Context, owner domain.Owner, packageID int64) (*service.PurchaseResult, error) {
	args := m.Called(ctx, owner, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PurchaseResult), args.Error(1)
}

func (m *MockAiTokenService) GrantFreeMonthly(ctx context.Context, owner domain.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAiTokenService) CheckAutoTopUp(ctx context.Context, owner domain.Owner) (*service.AutoTopUpResult, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AutoTopUpResult), args.Error(1)
}

func (m *MockAiTokenService) Packages(ctx context.Context) ([]domain.AiTokenPackage, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.AiTokenPackage), args.Error(1)
}

func (m *MockAiTokenService) Package(ctx context.Context, id int64) (*domain.AiTokenPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AiTokenPackage), args.Error(1)
}

func (m *MockAiTokenService) Settings(ctx context.Context, owner domain.Owner) (*domain.AiTokenSettings, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AiTokenSettings), args.Error(1)
}

func (m *MockAiTokenService) UpdateSettings(ctx context.Context, owner domain.Owner, in service.SettingsInput) (*domain.AiTokenSettings, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AiTokenSettings), args.Error(1)
}

func (m *MockAiTokenService) Usage(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, owner, limit, offset)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

// MockPaymentService is a mock implementation of service.PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) TopUpIntent(ctx context.Context, owner domain.Owner, req service.TopUpRequest) (*gateway.IntentResult, error) {
	args := m.Called(ctx, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.IntentResult), args.Error(1)
}

func (m *MockPaymentService) TopUpCheckout(ctx context.Context, owner domain.Owner, req service.TopUpRequest) (*gateway.CheckoutResult, error) {
	args := m.Called(ctx, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutResult), args.Error(1)
}

func (m *MockPaymentService) Charge(ctx context.Context, owner domain.Owner, in service.ChargeInput) (*service.ChargeOutcome, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChargeOutcome), args.Error(1)
}

func (m *MockPaymentService) Complete(ctx context.Context, owner domain.Owner, provider, reference string, txType domain.CommissionType) (*service.ChargeOutcome, error) {
	args := m.Called(ctx, owner, provider, reference, txType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChargeOutcome), args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, owner domain.Owner, provider, transactionID string, amount decimal.Decimal) (*service.PaymentRefund, error) {
	args := m.Called(ctx, owner, provider, transactionID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentRefund), args.Error(1)
}

func (m *MockPaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string, configID int64) error {
	return m.Called(ctx, payload, signature, configID).Error(0)
}
