package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/repository"
	"tenant-ledger/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// fakeTx stands in for *sqlx.Tx. Repositories are mocked, so its query methods are never reached.
type fakeTx struct {
	begun      int
	committed  int
	rolledBack int
	commitErr  error
}

func (f *fakeTx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (f *fakeTx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return &sql.Row{}
}

func (f *fakeTx) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed++
	return nil
}

// Rollback mirrors *sql.Tx: after a commit it reports ErrTxDone.
func (f *fakeTx) Rollback() error {
	if f.committed > 0 {
		return sql.ErrTxDone
	}
	f.rolledBack++
	return nil
}

// newTestTransactor hands out tx for every transaction the service begins.
func newTestTransactor(tx *fakeTx) db.Transactor {
	return db.Transactor{
		Begin: func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			tx.begun++
			return tx, nil
		},
		Commit:   db.CommitTx,
		Rollback: db.RollbackTx,
	}
}

// perItemTransactor gives each transaction its own fakeTx, for batch jobs.
type perItemTransactor struct {
	mu  sync.Mutex
	txs []*fakeTx
}

func (p *perItemTransactor) transactor() db.Transactor {
	return db.Transactor{
		Begin: func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			tx := &fakeTx{begun: 1}
			p.mu.Lock()
			p.txs = append(p.txs, tx)
			p.mu.Unlock()
			return tx, nil
		},
		Commit:   db.CommitTx,
		Rollback: db.RollbackTx,
	}
}

func teamOwner() domain.Owner {
	team := int64(7)
	return domain.NewOwner(1, &team)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) EnsureWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.WalletAccount) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	args := m.Called(ctx, q, owner, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletAccount), args.Error(1)
}

func (m *MockWalletRepository) GetWalletForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, kind domain.WalletKind) (*domain.WalletAccount, error) {
	args := m.Called(ctx, q, owner, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletAccount), args.Error(1)
}

func (m *MockWalletRepository) ListWallets(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.WalletAccount, error) {
	args := m.Called(ctx, q, owner)
	return args.Get(0).([]domain.WalletAccount), args.Error(1)
}

func (m *MockWalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta decimal.Decimal) error {
	args := m.Called(ctx, q, walletID, delta)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.WalletTransaction) error {
	args := m.Called(ctx, q, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactionByReference(ctx context.Context, q repository.DBExecutor, walletID int64, txType, reference string) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, q, walletID, txType, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockTransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) HasTransactionSince(ctx context.Context, q repository.DBExecutor, walletID int64, txType string, since time.Time) (bool, error) {
	args := m.Called(ctx, q, walletID, txType, since)
	return args.Bool(0), args.Error(1)
}

// MockCommissionRepository is a mock implementation of repository.CommissionRepository.
type MockCommissionRepository struct {
	mock.Mock
}

func (m *MockCommissionRepository) CreateCommission(ctx context.Context, q repository.DBExecutor, c *domain.Commission) (bool, error) {
	args := m.Called(ctx, q, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommissionRepository) GetByTransactionID(ctx context.Context, q repository.DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	args := m.Called(ctx, q, owner, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionRepository) GetByTransactionIDForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, transactionID string) (*domain.Commission, error) {
	args := m.Called(ctx, q, owner, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionRepository) UpdateStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.CommissionStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

func (m *MockCommissionRepository) ListCommissions(ctx context.Context, q repository.DBExecutor, owner domain.Owner, limit, offset int) ([]domain.Commission, int64, error) {
	args := m.Called(ctx, q, owner, limit, offset)
	return args.Get(0).([]domain.Commission), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommissionRepository) SummarizeCommissions(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.CommissionSummary, error) {
	args := m.Called(ctx, q, owner)
	return args.Get(0).([]domain.CommissionSummary), args.Error(1)
}

// MockReversalRepository is a mock implementation of repository.ReversalRepository.
type MockReversalRepository struct {
	mock.Mock
}

func (m *MockReversalRepository) CreateReversal(ctx context.Context, q repository.DBExecutor, r *domain.CommissionReversal) error {
	args := m.Called(ctx, q, r)
	return args.Error(0)
}

func (m *MockReversalRepository) ListPendingReversals(ctx context.Context, q repository.DBExecutor, limit int) ([]domain.CommissionReversal, error) {
	args := m.Called(ctx, q, limit)
	return args.Get(0).([]domain.CommissionReversal), args.Error(1)
}

func (m *MockReversalRepository) GetReversalForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.CommissionReversal, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommissionReversal), args.Error(1)
}

func (m *MockReversalRepository) UpdateReversal(ctx context.Context, q repository.DBExecutor, r *domain.CommissionReversal) error {
	args := m.Called(ctx, q, r)
	return args.Error(0)
}

// MockProviderConfigRepository is a mock implementation of repository.ProviderConfigRepository.
type MockProviderConfigRepository struct {
	mock.Mock
}

func (m *MockProviderConfigRepository) CreateConfig(ctx context.Context, q repository.DBExecutor, cfg *domain.ProviderConfig) error {
	args := m.Called(ctx, q, cfg)
	return args.Error(0)
}

func (m *MockProviderConfigRepository) UpdateConfig(ctx context.Context, q repository.DBExecutor, cfg *domain.ProviderConfig) error {
	args := m.Called(ctx, q, cfg)
	return args.Error(0)
}

func (m *MockProviderConfigRepository) GetConfig(ctx context.Context, q repository.DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, q, owner, providerName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) GetConfigForUpdate(ctx context.Context, q repository.DBExecutor, owner domain.Owner, providerName string) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, q, owner, providerName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) GetConfigByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) GetConfigByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) GetDefaultConfig(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.ProviderConfig, error) {
	args := m.Called(ctx, q, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) ListConfigs(ctx context.Context, q repository.DBExecutor, owner domain.Owner) ([]domain.ProviderConfig, error) {
	args := m.Called(ctx, q, owner)
	return args.Get(0).([]domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) ListDueForRenewal(ctx context.Context, q repository.DBExecutor, before time.Time) ([]domain.ProviderConfig, error) {
	args := m.Called(ctx, q, before)
	return args.Get(0).([]domain.ProviderConfig), args.Error(1)
}

func (m *MockProviderConfigRepository) ClearDefault(ctx context.Context, q repository.DBExecutor, owner domain.Owner, keepProvider string) error {
	args := m.Called(ctx, q, owner, keepProvider)
	return args.Error(0)
}

// MockAiTokenRepository is a mock implementation of repository.AiTokenRepository.
type MockAiTokenRepository struct {
	mock.Mock
}

func (m *MockAiTokenRepository) ListActivePackages(ctx context.Context, q repository.DBExecutor) ([]domain.AiTokenPackage, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.AiTokenPackage), args.Error(1)
}

func (m *MockAiTokenRepository) GetPackage(ctx context.Context, q repository.DBExecutor, id int64) (*domain.AiTokenPackage, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AiTokenPackage), args.Error(1)
}

func (m *MockAiTokenRepository) GetSettings(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.AiTokenSettings, error) {
	args := m.Called(ctx, q, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AiTokenSettings), args.Error(1)
}

func (m *MockAiTokenRepository) UpsertSettings(ctx context.Context, q repository.DBExecutor, s *domain.AiTokenSettings) error {
	args := m.Called(ctx, q, s)
	return args.Error(0)
}

// MockCustomerRepository is a mock implementation of repository.CustomerRepository.
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetCustomer(ctx context.Context, q repository.DBExecutor, owner domain.Owner) (*domain.BillingCustomer, error) {
	args := m.Called(ctx, q, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingCustomer), args.Error(1)
}

func (m *MockCustomerRepository) CreateCustomer(ctx context.Context, q repository.DBExecutor, c *domain.BillingCustomer) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}

// MockWalletService is a mock implementation of WalletService.
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

// MockCommissionService is a mock implementation of CommissionService.
type MockCommissionService struct {
	mock.Mock
}

func (m *MockCommissionService) Calculate(txType domain.CommissionType, amount decimal.Decimal, provider string) domain.Breakdown {
	args := m.Called(txType, amount, provider)
	return args.Get(0).(domain.Breakdown)
}

func (m *MockCommissionService) Record(ctx context.Context, req RecordRequest) (*domain.Commission, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionService) RecordTx(ctx context.Context, q repository.DBExecutor, req RecordRequest) (*domain.Commission, error) {
	args := m.Called(ctx, q, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commission), args.Error(1)
}

func (m *MockCommissionService) Refund(ctx context.Context, owner domain.Owner, transactionID string) (*RefundResult, error) {
	args := m.Called(ctx, owner, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefundResult), args.Error(1)
}

func (m *MockCommissionService) SettleReversals(ctx context.Context) (*SettleSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SettleSummary), args.Error(1)
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

// MockProviderConfigService is a mock implementation of ProviderConfigService.
type MockProviderConfigService struct {
	mock.Mock
}

func (m *MockProviderConfigService) Catalog() []ProviderSpec {
	return m.Called().Get(0).([]ProviderSpec)
}

func (m *MockProviderConfigService) Enable(ctx context.Context, owner domain.Owner, providerName string, req EnableRequest) (*EnableResult, error) {
	args := m.Called(ctx, owner, providerName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EnableResult), args.Error(1)
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

func (m *MockProviderConfigService) RenewAll(ctx context.Context) (*RenewSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RenewSummary), args.Error(1)
}

// MockGatewayResolver is a mock implementation of GatewayResolver.
type MockGatewayResolver struct {
	mock.Mock
}

func (m *MockGatewayResolver) Resolve(name string, creds gateway.Credentials) (gateway.Gateway, error) {
	args := m.Called(name, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.Gateway), args.Error(1)
}

// MockGateway is a mock implementation of gateway.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Name() string {
	return m.Called().String(0)
}

func (m *MockGateway) CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *MockGateway) CompleteCharge(ctx context.Context, reference string) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *MockGateway) RefundCharge(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func (m *MockGateway) TestConnection(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPlatformGateway is a mock implementation of PlatformGateway.
type MockPlatformGateway struct {
	mock.Mock
}

func (m *MockPlatformGateway) WebhookSecret() string {
	return m.Called().String(0)
}

func (m *MockPlatformGateway) CreateCustomer(ctx context.Context, req gateway.CustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformGateway) CreatePaymentIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.IntentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.IntentResult), args.Error(1)
}

func (m *MockPlatformGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutResult), args.Error(1)
}

// plainBox "encrypts" by prefixing, so tests can see what was stored.
type plainBox struct{}

func (plainBox) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return "enc:" + plaintext, nil
}

func (plainBox) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < 4 {
		return "", nil
	}
	return ciphertext[4:], nil
}
