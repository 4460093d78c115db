// Package gateway adapts external payment processors to one charge/refund contract.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// Credentials are the decrypted secrets of one provider configuration.
// They must never be logged.
type Credentials struct {
	Provider      string
	APIKey        string
	APISecret     string
	WebhookSecret string
	TestMode      bool
	Currency      string
}

func (c Credentials) secrets() []string {
	return []string{c.APIKey, c.APISecret, c.WebhookSecret}
}

// ChargeStatus is the outcome of a charge attempt.
type ChargeStatus string

const (
	ChargeSucceeded        ChargeStatus = "succeeded"
	ChargeRedirectRequired ChargeStatus = "redirect_required"
	ChargePending          ChargeStatus = "pending"
	ChargeFailed           ChargeStatus = "failed"
)

// ChargeRequest asks a gateway to take a payment.
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Source         string // Card token / payment method / nonce, gateway specific
	ReturnURL      string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is what the gateway reported.
type ChargeResult struct {
	Status       ChargeStatus    `json:"status"`
	Reference    string          `json:"reference"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// RefundRequest refunds a charge. A zero Amount refunds it in full.
type RefundRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// RefundResult is the gateway's refund record.
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Gateway is a payment processor bound to one tenant's credentials.
type Gateway interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	CompleteCharge(ctx context.Context, reference string) (*ChargeResult, error)
	RefundCharge(ctx context.Context, req RefundRequest) (*RefundResult, error)
	TestConnection(ctx context.Context) error
}

// Options are shared by all gateway constructors.
type Options struct {
	HTTPClient *http.Client
	// BaseURL overrides the provider endpoint; tests point it at httptest servers.
	BaseURL string
}

// Factory builds a Gateway from credentials.
type Factory func(creds Credentials, opts Options) (Gateway, error)

// Registry maps provider names to gateway factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      map[string]Options
	client    *http.Client
}

// NewRegistry returns a registry with every supported provider registered.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Registry{
		factories: make(map[string]Factory),
		opts:      make(map[string]Options),
		client:    &http.Client{Timeout: timeout},
	}
	r.Register(domain.ProviderStripe, NewStripe)
	r.Register(domain.ProviderPayPal, NewPayPal)
	r.Register(domain.ProviderSquare, NewSquare)
	r.Register(domain.ProviderAuthorizeNet, NewAuthorizeNet)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// SetBaseURL points a provider at another endpoint.
func (r *Registry) SetBaseURL(name, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts[name] = Options{BaseURL: baseURL}
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve builds the gateway for name. Unknown providers and constructor failures
// are reported as util.ErrGatewayInit.
func (r *Registry) Resolve(name string, creds Credentials) (Gateway, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	opts := r.opts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no gateway registered for %q", util.ErrGatewayInit, name)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = r.client
	}
	gw, err := factory(creds, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", util.ErrGatewayInit, name, Sanitize(err.Error(), creds.secrets()...))
	}
	return gw, nil
}

// MinorUnits converts an amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts smallest currency units back to an amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Sanitize removes credentials from a gateway message before it leaves the service.
func Sanitize(msg string, secrets ...string) string {
	for _, s := range secrets {
		if len(s) >= 4 {
			msg = strings.ReplaceAll(msg, s, "[redacted]")
		}
	}
	return secretPattern.ReplaceAllString(msg, "[redacted]")
}
