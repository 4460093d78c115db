package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tenant-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	authorizeNetSandboxURL = "https://apitest.authorize.net"
	authorizeNetLiveURL    = "https://api.authorize.net"
	authorizeNetPath       = "/xml/v1/request.api"
)

// Authorize.Net transaction response codes.
const (
	anetApproved = "1"
	anetDeclined = "2"
	anetError    = "3"
	anetHeld     = "4"
)

// authorizeNetGateway uses the JSON flavour of the Authorize.Net API with
// Accept.js opaque payment data.
type authorizeNetGateway struct {
	client  *http.Client
	baseURL string
	creds   Credentials
}

// NewAuthorizeNet builds an Authorize.Net gateway. APIKey is the API login id,
// APISecret the transaction key.
func NewAuthorizeNet(creds Credentials, opts Options) (Gateway, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, errors.New("authorize.net login id and transaction key are required")
	}
	base := opts.BaseURL
	if base == "" {
		base = authorizeNetLiveURL
		if creds.TestMode {
			base = authorizeNetSandboxURL
		}
	}
	return &authorizeNetGateway{client: opts.HTTPClient, baseURL: strings.TrimRight(base, "/"), creds: creds}, nil
}

func (g *authorizeNetGateway) Name() string { return domain.ProviderAuthorizeNet }

type anetAuth struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type anetMessages struct {
	ResultCode string `json:"resultCode"`
	Message    []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"message"`
}

func (m anetMessages) ok() bool { return m.ResultCode == "Ok" }

func (m anetMessages) text() string {
	parts := make([]string, 0, len(m.Message))
	for _, msg := range m.Message {
		parts = append(parts, msg.Text)
	}
	return strings.Join(parts, "; ")
}

type anetTransactionResponse struct {
	ResponseCode string `json:"responseCode"`
	TransID      string `json:"transId"`
	Messages     []struct {
		Description string `json:"description"`
	} `json:"messages"`
	Errors []struct {
		ErrorText string `json:"errorText"`
	} `json:"errors"`
}

func (t anetTransactionResponse) text() string {
	for _, e := range t.Errors {
		if e.ErrorText != "" {
			return e.ErrorText
		}
	}
	for _, m := range t.Messages {
		if m.Description != "" {
			return m.Description
		}
	}
	return ""
}

type anetTransactionReply struct {
	TransactionResponse anetTransactionResponse `json:"transactionResponse"`
	Messages            anetMessages            `json:"messages"`
}

func (g *authorizeNetGateway) auth() anetAuth {
	return anetAuth{Name: g.creds.APIKey, TransactionKey: g.creds.APISecret}
}

func (g *authorizeNetGateway) post(ctx context.Context, body, out any) error {
	return doJSON(ctx, g.client, http.MethodPost, g.baseURL+authorizeNetPath, nil, body, out)
}

func (g *authorizeNetGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Source == "" {
		return &ChargeResult{Status: ChargeFailed, Message: "opaque payment data (source) is required"}, nil
	}
	txReq := map[string]any{
		"transactionType": "authCaptureTransaction",
		"amount":          req.Amount.StringFixed(2),
		"payment": map[string]any{
			"opaqueData": map[string]string{
				"dataDescriptor": "COMMON.ACCEPT.INAPP.PAYMENT",
				"dataValue":      req.Source,
			},
		},
	}
	if req.Description != "" {
		txReq["order"] = map[string]string{"description": req.Description}
	}
	body := map[string]any{
		"createTransactionRequest": map[string]any{
			"merchantAuthentication": g.auth(),
			"refId":                  truncate(req.IdempotencyKey, 20),
			"transactionRequest":     txReq,
		},
	}

	var reply anetTransactionReply
	if err := g.post(ctx, body, &reply); err != nil {
		return nil, g.wrap(err)
	}

	tr := reply.TransactionResponse
	res := &ChargeResult{
		Reference: tr.TransID,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(firstNonEmpty(req.Currency, g.creds.Currency, "USD")),
		Message:   Sanitize(tr.text(), g.creds.secrets()...),
	}
	switch tr.ResponseCode {
	case anetApproved:
		res.Status = ChargeSucceeded
	case anetHeld:
		res.Status = ChargePending
	case anetDeclined, anetError:
		res.Status = ChargeFailed
	default:
		res.Status = ChargeFailed
		if res.Message == "" {
			res.Message = Sanitize(reply.Messages.text(), g.creds.secrets()...)
		}
	}
	return res, nil
}

type anetDetails struct {
	Transaction struct {
		TransID           string          `json:"transId"`
		TransactionStatus string          `json:"transactionStatus"`
		SettleAmount      decimal.Decimal `json:"settleAmount"`
		AuthAmount        decimal.Decimal `json:"authAmount"`
		Payment           struct {
			CreditCard struct {
				CardNumber     string `json:"cardNumber"`
				ExpirationDate string `json:"expirationDate"`
			} `json:"creditCard"`
		} `json:"payment"`
	} `json:"transaction"`
	Messages anetMessages `json:"messages"`
}

func (g *authorizeNetGateway) details(ctx context.Context, transID string) (*anetDetails, error) {
	body := map[string]any{
		"getTransactionDetailsRequest": map[string]any{
			"merchantAuthentication": g.auth(),
			"transId":                transID,
		},
	}
	var reply anetDetails
	if err := g.post(ctx, body, &reply); err != nil {
		return nil, err
	}
	if !reply.Messages.ok() {
		return nil, errors.New(reply.Messages.text())
	}
	return &reply, nil
}

func (g *authorizeNetGateway) CompleteCharge(ctx context.Context, reference string) (*ChargeResult, error) {
	d, err := g.details(ctx, reference)
	if err != nil {
		return nil, g.wrap(err)
	}
	res := &ChargeResult{
		Reference: d.Transaction.TransID,
		Amount:    d.Transaction.AuthAmount,
		Currency:  strings.ToUpper(firstNonEmpty(g.creds.Currency, "USD")),
	}
	switch d.Transaction.TransactionStatus {
	case "capturedPendingSettlement", "settledSuccessfully":
		res.Status = ChargeSucceeded
	case "authorizedPendingCapture", "FDSPendingReview", "underReview":
		res.Status = ChargePending
	default:
		res.Status = ChargeFailed
		res.Message = "transaction status " + d.Transaction.TransactionStatus
	}
	return res, nil
}

// RefundCharge issues a refundTransaction, which needs the masked card number of
// the original transaction.
func (g *authorizeNetGateway) RefundCharge(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	d, err := g.details(ctx, req.Reference)
	if err != nil {
		return nil, g.wrap(err)
	}
	amount := req.Amount
	if !amount.IsPositive() {
		amount = d.Transaction.SettleAmount
	}
	body := map[string]any{
		"createTransactionRequest": map[string]any{
			"merchantAuthentication": g.auth(),
			"transactionRequest": map[string]any{
				"transactionType": "refundTransaction",
				"amount":          amount.StringFixed(2),
				"payment": map[string]any{
					"creditCard": map[string]string{
						"cardNumber":     lastFour(d.Transaction.Payment.CreditCard.CardNumber),
						"expirationDate": "XXXX",
					},
				},
				"refTransId": req.Reference,
			},
		},
	}
	var reply anetTransactionReply
	if err := g.post(ctx, body, &reply); err != nil {
		return nil, g.wrap(err)
	}
	if reply.TransactionResponse.ResponseCode != anetApproved {
		return nil, g.wrap(errors.New(firstNonEmpty(reply.TransactionResponse.text(), reply.Messages.text(), "refund declined")))
	}
	return &RefundResult{RefundID: reply.TransactionResponse.TransID, Status: "succeeded"}, nil
}

func (g *authorizeNetGateway) TestConnection(ctx context.Context) error {
	body := map[string]any{
		"authenticateTestRequest": map[string]any{"merchantAuthentication": g.auth()},
	}
	var reply struct {
		Messages anetMessages `json:"messages"`
	}
	if err := g.post(ctx, body, &reply); err != nil {
		return g.wrap(err)
	}
	if !reply.Messages.ok() {
		return g.wrap(errors.New(reply.Messages.text()))
	}
	return nil
}

func (g *authorizeNetGateway) wrap(err error) error {
	return restError(g.Name(), err, g.creds.secrets()...)
}

func lastFour(masked string) string {
	if len(masked) <= 4 {
		return masked
	}
	return masked[len(masked)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
