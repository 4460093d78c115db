package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tenant-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// PlatformConfig holds the platform's own Stripe account settings.
type PlatformConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
	BaseURL       string
}

// CustomerRequest creates a billing customer on the platform account.
type CustomerRequest struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// IntentRequest creates a platform payment intent.
type IntentRequest struct {
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}

// IntentResult is returned to the client to confirm the payment.
type IntentResult struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// CheckoutRequest creates a hosted checkout session.
type CheckoutRequest struct {
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutResult carries the hosted page URL.
type CheckoutResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PlatformStripe charges tenants on the platform's Stripe account.
type PlatformStripe struct {
	api *client.API
	cfg PlatformConfig
}

// NewPlatformStripe creates the platform gateway.
func NewPlatformStripe(cfg PlatformConfig, httpClient *http.Client) (*PlatformStripe, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("platform stripe secret key is not configured")
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &PlatformStripe{api: newStripeAPI(cfg.SecretKey, httpClient, cfg.BaseURL), cfg: cfg}, nil
}

// WebhookSecret returns the signing secret of the platform endpoint.
func (p *PlatformStripe) WebhookSecret() string {
	return p.cfg.WebhookSecret
}

func (p *PlatformStripe) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	if req.Name != "" {
		params.Name = stripe.String(req.Name)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", p.wrap(err)
	}
	return cust.ID, nil
}

// CreatePaymentIntent creates an intent that saves the card for off-session reuse.
func (p *PlatformStripe) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	currency := strings.ToLower(firstNonEmpty(req.Currency, p.cfg.Currency))
	params := &stripe.PaymentIntentParams{
		Amount:           stripe.Int64(MinorUnits(req.Amount)),
		Currency:         stripe.String(currency),
		SetupFutureUsage: stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, p.wrap(err)
	}
	return &IntentResult{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
	}, nil
}

// CreateCheckoutSession creates a hosted payment page for a one-off amount.
func (p *PlatformStripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	currency := strings.ToLower(firstNonEmpty(req.Currency, p.cfg.Currency))
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(firstNonEmpty(req.SuccessURL, p.cfg.SuccessURL)),
		CancelURL:  stripe.String(firstNonEmpty(req.CancelURL, p.cfg.CancelURL)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(firstNonEmpty(req.ProductName, "Wallet top-up")),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			SetupFutureUsage: stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
			Metadata:         req.Metadata,
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, p.wrap(err)
	}
	return &CheckoutResult{ID: sess.ID, URL: sess.URL}, nil
}

func (p *PlatformStripe) wrap(err error) error {
	return stripeError(domain.ProviderPlatform, err, p.cfg.SecretKey, p.cfg.WebhookSecret)
}
