package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"tenant-ledger/internal/domain"

	"github.com/google/uuid"
)

const (
	squareSandboxURL = "https://connect.squareupsandbox.com"
	squareLiveURL    = "https://connect.squareup.com"
	squareVersion    = "2024-01-18"
)

// squareGateway charges card nonces synchronously through the Payments API.
type squareGateway struct {
	client     *http.Client
	baseURL    string
	creds      Credentials
	locationID string
}

// NewSquare builds a Square gateway. APIKey is the access token; APISecret, when
// set, is the location id payments are attributed to.
func NewSquare(creds Credentials, opts Options) (Gateway, error) {
	if creds.APIKey == "" {
		return nil, errors.New("square access token is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = squareLiveURL
		if creds.TestMode {
			base = squareSandboxURL
		}
	}
	return &squareGateway{
		client:     opts.HTTPClient,
		baseURL:    strings.TrimRight(base, "/"),
		creds:      creds,
		locationID: creds.APISecret,
	}, nil
}

func (g *squareGateway) Name() string { return domain.ProviderSquare }

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePayment struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	AmountMoney squareMoney `json:"amount_money"`
}

type squareErrors struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e squareErrors) message() string {
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, firstNonEmpty(item.Detail, item.Code))
	}
	return strings.Join(parts, "; ")
}

func parseSquareErrors(body string) string {
	var e squareErrors
	if json.Unmarshal([]byte(body), &e) == nil && len(e.Errors) > 0 {
		return e.message()
	}
	return "card declined"
}

func (g *squareGateway) headers() map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + g.creds.APIKey,
		"Square-Version": squareVersion,
	}
}

func (g *squareGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Source == "" {
		return &ChargeResult{Status: ChargeFailed, Message: "a card nonce (source) is required"}, nil
	}
	currency := strings.ToUpper(firstNonEmpty(req.Currency, g.creds.Currency, "USD"))
	body := map[string]any{
		"source_id":       req.Source,
		"idempotency_key": firstNonEmpty(req.IdempotencyKey, uuid.NewString()),
		"amount_money":    squareMoney{Amount: MinorUnits(req.Amount), Currency: currency},
	}
	if req.Description != "" {
		body["note"] = req.Description
	}
	if g.locationID != "" {
		body["location_id"] = g.locationID
	}

	var resp struct {
		squareErrors
		Payment squarePayment `json:"payment"`
	}
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v2/payments", g.headers(), body, &resp); err != nil {
		return g.declined(err)
	}
	return squareResult(resp.Payment, resp.message()), nil
}

func (g *squareGateway) CompleteCharge(ctx context.Context, reference string) (*ChargeResult, error) {
	var resp struct {
		squareErrors
		Payment squarePayment `json:"payment"`
	}
	if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v2/payments/"+url.PathEscape(reference), g.headers(), nil, &resp); err != nil {
		return nil, g.wrap(err)
	}
	return squareResult(resp.Payment, resp.message()), nil
}

func (g *squareGateway) RefundCharge(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	amount := req.Amount
	currency := req.Currency
	if !amount.IsPositive() {
		current, err := g.CompleteCharge(ctx, req.Reference)
		if err != nil {
			return nil, err
		}
		amount, currency = current.Amount, current.Currency
	}
	body := map[string]any{
		"idempotency_key": uuid.NewString(),
		"payment_id":      req.Reference,
		"amount_money":    squareMoney{Amount: MinorUnits(amount), Currency: strings.ToUpper(firstNonEmpty(currency, g.creds.Currency, "USD"))},
	}
	var resp struct {
		Refund struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"refund"`
	}
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v2/refunds", g.headers(), body, &resp); err != nil {
		return nil, g.wrap(err)
	}
	return &RefundResult{RefundID: resp.Refund.ID, Status: strings.ToLower(resp.Refund.Status)}, nil
}

func (g *squareGateway) TestConnection(ctx context.Context) error {
	if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v2/locations", g.headers(), nil, nil); err != nil {
		return g.wrap(err)
	}
	return nil
}

// declined turns a card decline (HTTP 402 with an errors body) into a failed result;
// anything else is a gateway error.
func (g *squareGateway) declined(err error) (*ChargeResult, error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusPaymentRequired {
		return &ChargeResult{Status: ChargeFailed, Message: Sanitize(parseSquareErrors(apiErr.Body), g.creds.secrets()...)}, nil
	}
	return nil, g.wrap(err)
}

func (g *squareGateway) wrap(err error) error {
	return restError(g.Name(), err, g.creds.secrets()...)
}

func squareResult(p squarePayment, message string) *ChargeResult {
	res := &ChargeResult{
		Reference: p.ID,
		Amount:    FromMinorUnits(p.AmountMoney.Amount),
		Currency:  p.AmountMoney.Currency,
		Message:   message,
	}
	switch p.Status {
	case "COMPLETED":
		res.Status = ChargeSucceeded
	case "APPROVED", "PENDING":
		res.Status = ChargePending
	default:
		res.Status = ChargeFailed
		if res.Message == "" {
			res.Message = "payment status " + p.Status
		}
	}
	return res
}
