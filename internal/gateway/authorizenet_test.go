package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tenant-ledger/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bom = "\xef\xbb\xbf"

func newTestAuthorizeNet(t *testing.T, handler func(body map[string]any) string) Gateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, authorizeNetPath, req.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		w.Write([]byte(bom + handler(body)))
	}))
	t.Cleanup(srv.Close)
	gw, err := NewAuthorizeNet(Credentials{APIKey: "login", APISecret: "txnkey"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	require.NoError(t, err)
	return gw
}

func TestAuthorizeNetCreateCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("Approved", func(t *testing.T) {
		gw := newTestAuthorizeNet(t, func(body map[string]any) string {
			req := body["createTransactionRequest"].(map[string]any)
			auth := req["merchantAuthentication"].(map[string]any)
			assert.Equal(t, "login", auth["name"])
			assert.Equal(t, "txnkey", auth["transactionKey"])
			tx := req["transactionRequest"].(map[string]any)
			assert.Equal(t, "authCaptureTransaction", tx["transactionType"])
			assert.Equal(t, "12.30", tx["amount"])
			return `{"transactionResponse":{"responseCode":"1","transId":"60001","messages":[{"description":"This transaction has been approved."}]},"messages":{"resultCode":"Ok"}}`
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.RequireFromString("12.3"), Source: "opaque"})

		require.NoError(t, err)
		assert.Equal(t, ChargeSucceeded, res.Status)
		assert.Equal(t, "60001", res.Reference)
		assert.Equal(t, "USD", res.Currency)
	})

	t.Run("Declined", func(t *testing.T) {
		gw := newTestAuthorizeNet(t, func(map[string]any) string {
			return `{"transactionResponse":{"responseCode":"2","transId":"0","errors":[{"errorText":"This transaction has been declined."}]},"messages":{"resultCode":"Error"}}`
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.NewFromInt(1), Source: "opaque"})

		require.NoError(t, err)
		assert.Equal(t, ChargeFailed, res.Status)
		assert.Equal(t, "This transaction has been declined.", res.Message)
	})

	t.Run("HeldForReview", func(t *testing.T) {
		gw := newTestAuthorizeNet(t, func(map[string]any) string {
			return `{"transactionResponse":{"responseCode":"4","transId":"60002"},"messages":{"resultCode":"Ok"}}`
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.NewFromInt(1), Source: "opaque"})

		require.NoError(t, err)
		assert.Equal(t, ChargePending, res.Status)
	})
}

func TestAuthorizeNetRefund(t *testing.T) {
	calls := 0
	gw := newTestAuthorizeNet(t, func(body map[string]any) string {
		calls++
		if _, ok := body["getTransactionDetailsRequest"]; ok {
			return `{"transaction":{"transId":"60001","transactionStatus":"settledSuccessfully","settleAmount":12.30,"authAmount":12.30,
				"payment":{"creditCard":{"cardNumber":"XXXX1111","expirationDate":"XXXX"}}},"messages":{"resultCode":"Ok"}}`
		}
		tx := body["createTransactionRequest"].(map[string]any)["transactionRequest"].(map[string]any)
		assert.Equal(t, "refundTransaction", tx["transactionType"])
		assert.Equal(t, "12.30", tx["amount"])
		assert.Equal(t, "60001", tx["refTransId"])
		card := tx["payment"].(map[string]any)["creditCard"].(map[string]any)
		assert.Equal(t, "1111", card["cardNumber"])
		return `{"transactionResponse":{"responseCode":"1","transId":"60010"},"messages":{"resultCode":"Ok"}}`
	})

	res, err := gw.RefundCharge(context.Background(), RefundRequest{Reference: "60001"})

	require.NoError(t, err)
	assert.Equal(t, "60010", res.RefundID)
	assert.Equal(t, 2, calls)
}

func TestAuthorizeNetTestConnection(t *testing.T) {
	gw := newTestAuthorizeNet(t, func(map[string]any) string {
		return `{"messages":{"resultCode":"Error","message":[{"code":"E00007","text":"User authentication failed due to invalid authentication values."}]}}`
	})

	err := gw.TestConnection(context.Background())

	var pe *util.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "User authentication failed")
}
