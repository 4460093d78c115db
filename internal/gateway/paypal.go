package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/util"

	"github.com/shopspring/decimal"
)

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

// paypalGateway uses the Orders v2 API: create returns an approval link, the
// buyer approves, and CompleteCharge captures.
type paypalGateway struct {
	client  *http.Client
	baseURL string
	creds   Credentials
}

// NewPayPal builds a PayPal gateway. APIKey is the client id, APISecret the client secret.
func NewPayPal(creds Credentials, opts Options) (Gateway, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, errors.New("paypal client id and secret are required")
	}
	base := opts.BaseURL
	if base == "" {
		base = paypalLiveURL
		if creds.TestMode {
			base = paypalSandboxURL
		}
	}
	return &paypalGateway{client: opts.HTTPClient, baseURL: strings.TrimRight(base, "/"), creds: creds}, nil
}

func (g *paypalGateway) Name() string { return domain.ProviderPayPal }

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalCapture struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Amount paypalMoney `json:"amount"`
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount   *paypalMoney `json:"amount,omitempty"`
		Payments *struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments,omitempty"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (g *paypalGateway) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(g.creds.APIKey, g.creds.APISecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := send(g.client, req, &token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", errors.New("paypal returned an empty access token")
	}
	return token.AccessToken, nil
}

func (g *paypalGateway) call(ctx context.Context, method, path string, body, out any) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}
	return doJSON(ctx, g.client, method, g.baseURL+path, map[string]string{"Authorization": "Bearer " + token}, body, out)
}

func (g *paypalGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	currency := strings.ToUpper(firstNonEmpty(req.Currency, g.creds.Currency, "USD"))
	unit := map[string]any{
		"amount": paypalMoney{CurrencyCode: currency, Value: req.Amount.StringFixed(2)},
	}
	if req.Description != "" {
		unit["description"] = req.Description
	}
	if id := req.Metadata["user_id"]; id != "" {
		unit["custom_id"] = id
	}
	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []any{unit},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
	}

	var order paypalOrder
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, g.wrap(err)
	}

	res := &ChargeResult{Reference: order.ID, Amount: req.Amount, Currency: currency}
	switch order.Status {
	case "COMPLETED":
		res.Status = ChargeSucceeded
	case "CREATED", "PAYER_ACTION_REQUIRED":
		res.Status = ChargeRedirectRequired
		for _, link := range order.Links {
			if link.Rel == "approve" || link.Rel == "payer-action" {
				res.RedirectURL = link.Href
			}
		}
		if res.RedirectURL == "" {
			res.Status = ChargeFailed
			res.Message = "paypal did not return an approval link"
		}
	default:
		res.Status = ChargeFailed
		res.Message = "order status " + order.Status
	}
	return res, nil
}

// CompleteCharge captures an approved order. The order id stays the reference so
// commissions and refunds key on the same value.
func (g *paypalGateway) CompleteCharge(ctx context.Context, reference string) (*ChargeResult, error) {
	var order paypalOrder
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(reference)+"/capture", map[string]any{}, &order); err != nil {
		return nil, g.wrap(err)
	}
	res := &ChargeResult{Reference: order.ID, Status: ChargeFailed, Message: "order status " + order.Status}
	if capture, ok := firstCapture(&order); ok {
		res.Amount, _ = decimal.NewFromString(capture.Amount.Value)
		res.Currency = capture.Amount.CurrencyCode
	}
	if order.Status == "COMPLETED" {
		res.Status = ChargeSucceeded
		res.Message = ""
	}
	return res, nil
}

func (g *paypalGateway) RefundCharge(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	var order paypalOrder
	if err := g.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(req.Reference), nil, &order); err != nil {
		return nil, g.wrap(err)
	}
	capture, ok := firstCapture(&order)
	if !ok {
		return nil, &util.PaymentError{Provider: g.Name(), Message: "order has no capture to refund", Err: util.ErrPaymentFailed}
	}

	body := map[string]any{}
	if req.Amount.IsPositive() {
		body["amount"] = paypalMoney{CurrencyCode: firstNonEmpty(req.Currency, capture.Amount.CurrencyCode), Value: req.Amount.StringFixed(2)}
	}
	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.call(ctx, http.MethodPost, "/v2/payments/captures/"+url.PathEscape(capture.ID)+"/refund", body, &refund); err != nil {
		return nil, g.wrap(err)
	}
	return &RefundResult{RefundID: refund.ID, Status: strings.ToLower(refund.Status)}, nil
}

func (g *paypalGateway) TestConnection(ctx context.Context) error {
	if _, err := g.accessToken(ctx); err != nil {
		return g.wrap(err)
	}
	return nil
}

func (g *paypalGateway) wrap(err error) error {
	return restError(g.Name(), err, g.creds.secrets()...)
}

func firstCapture(order *paypalOrder) (paypalCapture, bool) {
	for _, unit := range order.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0], true
		}
	}
	return paypalCapture{}, false
}
