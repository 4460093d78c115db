package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// newStripeAPI builds a client bound to one secret key, so tenants and the platform
// never share global Stripe state.
func newStripeAPI(secretKey string, httpClient *http.Client, baseURL string) *client.API {
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return client.New(secretKey, backends)
}

// stripeGateway charges on the tenant's own Stripe account.
type stripeGateway struct {
	api   *client.API
	creds Credentials
}

// NewStripe builds a Stripe gateway. APISecret is the secret key; APIKey (publishable)
// is accepted as a fallback only when it is itself a secret key.
func NewStripe(creds Credentials, opts Options) (Gateway, error) {
	key := creds.APISecret
	if key == "" && strings.HasPrefix(creds.APIKey, "sk_") {
		key = creds.APIKey
	}
	if key == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	return &stripeGateway{api: newStripeAPI(key, opts.HTTPClient, opts.BaseURL), creds: creds}, nil
}

func (g *stripeGateway) Name() string { return domain.ProviderStripe }

func (g *stripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	currency := strings.ToLower(firstNonEmpty(req.Currency, g.creds.Currency, "usd"))
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Source != "" {
		params.PaymentMethod = stripe.String(req.Source)
		params.Confirm = stripe.Bool(true)
		if req.ReturnURL != "" {
			params.ReturnURL = stripe.String(req.ReturnURL)
		}
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.wrap(err)
	}
	return intentResult(pi), nil
}

func (g *stripeGateway) CompleteCharge(ctx context.Context, reference string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, g.wrap(err)
	}
	return intentResult(pi), nil
}

func (g *stripeGateway) RefundCharge(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.Reference)}
	params.Context = ctx
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(MinorUnits(req.Amount))
	}
	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, g.wrap(err)
	}
	return &RefundResult{RefundID: refund.ID, Status: string(refund.Status)}, nil
}

// TestConnection reads the account balance, the cheapest authenticated call.
func (g *stripeGateway) TestConnection(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := g.api.Balance.Get(params); err != nil {
		return g.wrap(err)
	}
	return nil
}

func (g *stripeGateway) wrap(err error) error {
	return stripeError(domain.ProviderStripe, err, g.creds.secrets()...)
}

func stripeError(provider string, err error, secrets ...string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &util.PaymentError{Provider: provider, Message: "request timed out", Err: util.ErrGatewayTimeout}
	}
	msg := err.Error()
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		msg = se.Msg
	}
	return &util.PaymentError{Provider: provider, Message: Sanitize(msg, secrets...), Err: util.ErrPaymentFailed}
}

func intentResult(pi *stripe.PaymentIntent) *ChargeResult {
	res := &ChargeResult{
		Reference:    pi.ID,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
		ClientSecret: pi.ClientSecret,
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Status = ChargeSucceeded
		res.ClientSecret = ""
	case stripe.PaymentIntentStatusRequiresAction:
		res.Status = ChargePending
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
			res.Status = ChargeRedirectRequired
			res.RedirectURL = pi.NextAction.RedirectToURL.URL
		}
	case stripe.PaymentIntentStatusCanceled:
		res.Status = ChargeFailed
		res.Message = "payment was cancelled"
	default:
		res.Status = ChargePending
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		res.Message = pi.LastPaymentError.Msg
	}
	return res
}

// ParseStripeEvent verifies a webhook signature and extracts the payment fields
// the ledger cares about.
func ParseStripeEvent(payload []byte, signature, secret string) (*domain.PaymentEvent, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is not configured: %w", util.ErrInvalidInput)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", util.ErrInvalidInput)
	}

	out := &domain.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	var object struct {
		ID             string            `json:"id"`
		Amount         int64             `json:"amount"`
		AmountReceived int64             `json:"amount_received"`
		Currency       string            `json:"currency"`
		PaymentIntent  json.RawMessage   `json:"payment_intent"`
		Metadata       map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("decode webhook object: %w", util.ErrInvalidInput)
	}
	out.ObjectID = object.ID
	out.AmountMinor = object.Amount
	if object.AmountReceived > 0 {
		out.AmountMinor = object.AmountReceived
	}
	out.Currency = object.Currency
	out.Metadata = object.Metadata
	if len(object.PaymentIntent) > 0 {
		var id string
		if json.Unmarshal(object.PaymentIntent, &id) == nil {
			out.PaymentIntentID = id
		}
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
