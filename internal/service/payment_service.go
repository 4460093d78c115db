package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/gateway"
	"tenant-ledger/internal/repository"
	"tenant-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// PlatformGateway is the platform's own Stripe account. *gateway.PlatformStripe implements it.
type PlatformGateway interface {
	WebhookSecret() string
	CreateCustomer(ctx context.Context, req gateway.CustomerRequest) (string, error)
	CreatePaymentIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.IntentResult, error)
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error)
}

// WebhookParser verifies a signed webhook payload and decodes its event.
type WebhookParser func(payload []byte, signature, secret string) (*domain.PaymentEvent, error)

// TopUpRequest starts a wallet top-up on the platform account.
type TopUpRequest struct {
	Amount     decimal.Decimal
	Currency   string
	Email      string
	Name       string
	SuccessURL string
	CancelURL  string
}

// ChargeInput is a tenant-direct charge. An empty Provider uses the owner's default.
type ChargeInput struct {
	Provider        string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	Source          string
	ReturnURL       string
	CancelURL       string
	IdempotencyKey  string
	TransactionType domain.CommissionType
	Metadata        map[string]string
}

// ChargeOutcome is the gateway result plus the commission recorded for it, if any.
type ChargeOutcome struct {
	Provider   string                `json:"provider"`
	Charge     *gateway.ChargeResult `json:"charge"`
	Commission *domain.Commission    `json:"commission,omitempty"`
}

// PaymentRefund combines the gateway refund with the commission reversal.
type PaymentRefund struct {
	Provider   string                `json:"provider"`
	Gateway    *gateway.RefundResult `json:"gateway"`
	Commission *RefundResult         `json:"commission"`
}

// PaymentService routes payments through the platform account or a tenant's gateway
// and books the resulting commissions.
type PaymentService interface {
	TopUpIntent(ctx context.Context, owner domain.Owner, req TopUpRequest) (*gateway.IntentResult, error)
	TopUpCheckout(ctx context.Context, owner domain.Owner, req TopUpRequest) (*gateway.CheckoutResult, error)
	// Charge may return a non-nil outcome together with an error when the gateway
	// charged but the commission could not be booked; Complete retries the booking.
	Charge(ctx context.Context, owner domain.Owner, in ChargeInput) (*ChargeOutcome, error)
	Complete(ctx context.Context, owner domain.Owner, provider, reference string, txType domain.CommissionType) (*ChargeOutcome, error)
	Refund(ctx context.Context, owner domain.Owner, provider, transactionID string, amount decimal.Decimal) (*PaymentRefund, error)
	// HandleStripeWebhook verifies and applies a Stripe event. configID 0 is the
	// platform endpoint; any other id is a tenant's own Stripe account.
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string, configID int64) error
}

type paymentService struct {
	dbExecutor  repository.DBExecutor
	customers   repository.CustomerRepository
	platform    PlatformGateway
	providers   ProviderConfigService
	gateways    GatewayResolver
	commissions CommissionService
	parse       WebhookParser
	timeout     time.Duration
	currency    string
}

// NewPaymentService creates a PaymentService. platform may be nil when no platform
// Stripe account is configured; parse defaults to gateway.ParseStripeEvent.
func NewPaymentService(
	dbExecutor repository.DBExecutor,
	customers repository.CustomerRepository,
	platform PlatformGateway,
	providers ProviderConfigService,
	gateways GatewayResolver,
	commissions CommissionService,
	parse WebhookParser,
	timeout time.Duration,
	currency string,
) PaymentService {
	if parse == nil {
		parse = gateway.ParseStripeEvent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &paymentService{
		dbExecutor:  dbExecutor,
		customers:   customers,
		platform:    platform,
		providers:   providers,
		gateways:    gateways,
		commissions: commissions,
		parse:       parse,
		timeout:     timeout,
		currency:    currency,
	}
}

func ownerMetadata(owner domain.Owner, txType domain.CommissionType) map[string]string {
	meta := map[string]string{
		"user_id":          strconv.FormatInt(owner.UserID, 10),
		"transaction_type": string(txType),
	}
	if owner.TeamID != nil {
		meta["team_id"] = strconv.FormatInt(*owner.TeamID, 10)
	}
	return meta
}

func (s *paymentService) requirePlatform() error {
	if s.platform == nil {
		return fmt.Errorf("platform payments are not configured: %w", util.ErrProviderUnavailable)
	}
	return nil
}

// ensureCustomer returns the owner's platform customer id, creating it on first use.
func (s *paymentService) ensureCustomer(ctx context.Context, owner domain.Owner, email, name string) (string, error) {
	customer, err := s.customers.GetCustomer(ctx, s.dbExecutor, owner)
	if err == nil {
		return customer.StripeCustomerID, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return "", persistenceErr("ensure customer", err)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.platform.CreateCustomer(gctx, gateway.CustomerRequest{
		Email:    email,
		Name:     name,
		Metadata: ownerMetadata(owner, domain.CommissionTypeWalletTopUp),
	})
	if err != nil {
		return "", s.gatewayErr(ctx, domain.ProviderPlatform, err)
	}

	err = s.customers.CreateCustomer(ctx, s.dbExecutor, &domain.BillingCustomer{
		UserID:           owner.UserID,
		TeamID:           owner.TeamID,
		StripeCustomerID: id,
		CreatedAt:        time.Now().UTC(),
	})
	if errors.Is(err, util.ErrDuplicateEntry) {
		// A concurrent request created one first; use the stored customer.
		customer, err := s.customers.GetCustomer(ctx, s.dbExecutor, owner)
		if err != nil {
			return "", persistenceErr("ensure customer", err)
		}
		return customer.StripeCustomerID, nil
	}
	if err != nil {
		return "", persistenceErr("ensure customer", err)
	}
	return id, nil
}

// TopUpIntent creates a platform payment intent. The wallet is credited when the
// payment_intent.succeeded webhook arrives.
func (s *paymentService) TopUpIntent(ctx context.Context, owner domain.Owner, req TopUpRequest) (*gateway.IntentResult, error) {
	if err := s.requirePlatform(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("top-up amount must be positive: %w", util.ErrInvalidInput)
	}
	customerID, err := s.ensureCustomer(ctx, owner, req.Email, req.Name)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.platform.CreatePaymentIntent(gctx, gateway.IntentRequest{
		CustomerID:  customerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: "Wallet top-up",
		Metadata:    ownerMetadata(owner, domain.CommissionTypeWalletTopUp),
	})
	if err != nil {
		return nil, s.gatewayErr(ctx, domain.ProviderPlatform, err)
	}
	util.Log(ctx).Info().
		Int64("user_id", owner.UserID).
		Int64("team_id", owner.TeamKey()).
		Str("amount", req.Amount.String()).
		Str("payment_intent", intent.ID).
		Msg("top-up intent created")
	return intent, nil
}

// TopUpCheckout creates a hosted checkout page for a wallet top-up.
func (s *paymentService) TopUpCheckout(ctx context.Context, owner domain.Owner, req TopUpRequest) (*gateway.CheckoutResult, error) {
	if err := s.requirePlatform(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("top-up amount must be positive: %w", util.ErrInvalidInput)
	}
	customerID, err := s.ensureCustomer(ctx, owner, req.Email, req.Name)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	session, err := s.platform.CreateCheckoutSession(gctx, gateway.CheckoutRequest{
		CustomerID:  customerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ProductName: "Wallet top-up",
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata:    ownerMetadata(owner, domain.CommissionTypeWalletTopUp),
	})
	if err != nil {
		return nil, s.gatewayErr(ctx, domain.ProviderPlatform, err)
	}
	return session, nil
}

func (s *paymentService) resolve(ctx context.Context, owner domain.Owner, provider string) (gateway.Gateway, string, error) {
	if provider == "" {
		var err error
		provider, err = s.providers.DefaultProvider(ctx, owner)
		if err != nil {
			return nil, "", err
		}
	}
	creds, err := s.providers.Credentials(ctx, owner, provider)
	if err != nil {
		return nil, provider, err
	}
	gw, err := s.gateways.Resolve(provider, creds)
	if err != nil {
		util.Log(ctx).Error().Err(err).
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Str("provider", provider).
			Msg("failed to build gateway")
		return nil, provider, err
	}
	return gw, provider, nil
}

// Charge takes a payment through the tenant's own gateway. Synchronous successes
// book the commission at once; redirects and pending charges are booked by
// Complete or the webhook.
func (s *paymentService) Charge(ctx context.Context, owner domain.Owner, in ChargeInput) (*ChargeOutcome, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be positive: %w", util.ErrInvalidInput)
	}
	txType := revenueType(in.TransactionType)
	gw, provider, err := s.resolve(ctx, owner, in.Provider)
	if err != nil {
		return nil, err
	}

	meta := ownerMetadata(owner, txType)
	maps.Copy(meta, in.Metadata)
	// Ownership keys are not caller-controlled.
	maps.Copy(meta, ownerMetadata(owner, txType))

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := gw.CreateCharge(gctx, gateway.ChargeRequest{
		Amount:         in.Amount,
		Currency:       firstOf(in.Currency, s.currency),
		Description:    in.Description,
		Source:         in.Source,
		ReturnURL:      in.ReturnURL,
		CancelURL:      in.CancelURL,
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       meta,
	})
	if err != nil {
		return nil, s.gatewayErr(ctx, provider, err)
	}
	if res.Amount.IsZero() {
		res.Amount = in.Amount
	}
	return s.settle(ctx, owner, provider, res.Reference, txType, res)
}

// Complete confirms a redirect or pending charge and books its commission.
// Completing an already booked charge returns the existing commission.
func (s *paymentService) Complete(ctx context.Context, owner domain.Owner, provider, reference string, txType domain.CommissionType) (*ChargeOutcome, error) {
	if reference == "" {
		return nil, fmt.Errorf("complete charge: reference is required: %w", util.ErrInvalidInput)
	}
	gw, provider, err := s.resolve(ctx, owner, provider)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := gw.CompleteCharge(gctx, reference)
	if err != nil {
		return nil, s.gatewayErr(ctx, provider, err)
	}
	return s.settle(ctx, owner, provider, reference, revenueType(txType), res)
}

func (s *paymentService) settle(ctx context.Context, owner domain.Owner, provider, transactionID string, txType domain.CommissionType, res *gateway.ChargeResult) (*ChargeOutcome, error) {
	outcome := &ChargeOutcome{Provider: provider, Charge: res}
	logger := util.Log(ctx).With().
		Int64("user_id", owner.UserID).
		Int64("team_id", owner.TeamKey()).
		Str("provider", provider).
		Str("reference", transactionID).
		Str("amount", res.Amount.String()).
		Logger()

	switch res.Status {
	case gateway.ChargeSucceeded:
		commission, err := s.commissions.Record(ctx, RecordRequest{
			Owner:           owner,
			TransactionType: txType,
			TransactionID:   commissionReference(provider, transactionID),
			Amount:          res.Amount,
			Provider:        provider,
			Currency:        res.Currency,
			Metadata:        map[string]any{"gateway_reference": res.Reference},
		})
		if err != nil {
			logger.Error().Err(err).Msg("charge succeeded but commission was not recorded")
			return outcome, err
		}
		outcome.Commission = commission
		logger.Info().Msg("charge succeeded")
		return outcome, nil
	case gateway.ChargeRedirectRequired, gateway.ChargePending:
		logger.Info().Str("status", string(res.Status)).Msg("charge awaiting confirmation")
		return outcome, nil
	default:
		logger.Warn().Str("message", res.Message).Msg("charge failed")
		return nil, &util.PaymentError{Provider: provider, Message: firstOf(res.Message, "payment failed"), Err: util.ErrPaymentFailed}
	}
}

// Refund refunds the charge at the gateway, then reverses its commission.
func (s *paymentService) Refund(ctx context.Context, owner domain.Owner, provider, transactionID string, amount decimal.Decimal) (*PaymentRefund, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("refund: transaction id is required: %w", util.ErrInvalidInput)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("refund: amount must not be negative: %w", util.ErrInvalidInput)
	}
	gw, provider, err := s.resolve(ctx, owner, provider)
	if err != nil {
		return nil, err
	}
	key := commissionReference(provider, transactionID)

	// A commission is reversed as a whole, so only full refunds are accepted.
	if amount.IsPositive() {
		booked, err := s.commissions.Get(ctx, owner, key)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		if booked == nil || !amount.Equal(booked.OriginalAmount) {
			return nil, fmt.Errorf("refund: partial refunds are not supported, omit amount to refund in full: %w", util.ErrInvalidInput)
		}
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	refund, err := gw.RefundCharge(gctx, gateway.RefundRequest{Reference: transactionID, Amount: amount, Currency: s.currency})
	if err != nil {
		return nil, s.gatewayErr(ctx, provider, err)
	}

	commission, err := s.commissions.Refund(ctx, owner, key)
	if err != nil {
		util.Log(ctx).Error().Err(err).
			Int64("user_id", owner.UserID).
			Int64("team_id", owner.TeamKey()).
			Str("provider", provider).
			Str("transaction_id", key).
			Msg("gateway refunded but commission reversal failed")
		return nil, err
	}
	return &PaymentRefund{Provider: provider, Gateway: refund, Commission: commission}, nil
}

// commissionReference is the commission key for a tenant-direct gateway reference.
// Stripe ids are globally unique and arrive unprefixed on webhooks; other providers'
// references are only unique per account, so they carry the provider name.
func commissionReference(provider, reference string) string {
	if provider == domain.ProviderStripe {
		return reference
	}
	return provider + ":" + reference
}

func (s *paymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string, configID int64) error {
	var (
		secret string
		tenant *domain.Owner
	)
	if configID == 0 {
		if err := s.requirePlatform(); err != nil {
			return err
		}
		secret = s.platform.WebhookSecret()
	} else {
		var (
			owner domain.Owner
			err   error
		)
		secret, owner, err = s.providers.WebhookSecret(ctx, configID)
		if err != nil {
			return err
		}
		tenant = &owner
	}

	event, err := s.parse(payload, signature, secret)
	if err != nil {
		util.Log(ctx).Warn().Err(err).Int64("config_id", configID).Msg("rejected stripe webhook")
		return err
	}

	if tenant != nil {
		// Payments on a tenant's own account belong to that tenant and only ever
		// produce revenue-sharing commissions.
		meta := ownerMetadata(*tenant, revenueType(domain.CommissionType(event.Metadata["transaction_type"])))
		event.Metadata = meta
	}

	util.Log(ctx).Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int64("config_id", configID).
		Msg("stripe webhook verified")
	return s.commissions.HandleWebhookEvent(ctx, *event)
}

// gatewayErr makes sure callers only ever see a sanitised PaymentError.
func (s *paymentService) gatewayErr(ctx context.Context, provider string, err error) error {
	util.Log(ctx).Error().Err(err).Str("provider", provider).Msg("gateway call failed")

	var pe *util.PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &util.PaymentError{Provider: provider, Message: "request timed out", Err: util.ErrGatewayTimeout}
	}
	return &util.PaymentError{Provider: provider, Message: gateway.Sanitize(err.Error()), Err: util.ErrPaymentFailed}
}

// revenueType narrows a caller-supplied type to the kinds tenant-direct payments may book.
func revenueType(t domain.CommissionType) domain.CommissionType {
	if t == domain.CommissionTypeSubscription {
		return t
	}
	return domain.CommissionTypePayment
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
