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

func newTestSquare(t *testing.T, handler http.HandlerFunc) Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := NewSquare(Credentials{APIKey: "EAAAtoken", APISecret: "LOC1", Currency: "usd"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	require.NoError(t, err)
	return gw
}

func TestSquareCreateCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed", func(t *testing.T) {
		gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "/v2/payments", req.URL.Path)
			assert.Equal(t, "Bearer EAAAtoken", req.Header.Get("Authorization"))
			assert.Equal(t, squareVersion, req.Header.Get("Square-Version"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "cnon:card-nonce-ok", body["source_id"])
			assert.Equal(t, "LOC1", body["location_id"])
			assert.Equal(t, "order-1", body["idempotency_key"])
			money := body["amount_money"].(map[string]any)
			assert.Equal(t, float64(2050), money["amount"])
			assert.Equal(t, "USD", money["currency"])

			w.Write([]byte(`{"payment":{"id":"sq_pay_1","status":"COMPLETED","amount_money":{"amount":2050,"currency":"USD"}}}`))
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{
			Amount:         decimal.RequireFromString("20.50"),
			Source:         "cnon:card-nonce-ok",
			IdempotencyKey: "order-1",
		})

		require.NoError(t, err)
		assert.Equal(t, ChargeSucceeded, res.Status)
		assert.Equal(t, "sq_pay_1", res.Reference)
		assert.True(t, res.Amount.Equal(decimal.RequireFromString("20.50")))
	})

	t.Run("Declined", func(t *testing.T) {
		gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"errors":[{"code":"CARD_DECLINED","detail":"Card declined."}]}`))
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.NewFromInt(5), Source: "cnon:card-nonce-declined"})

		require.NoError(t, err)
		assert.Equal(t, ChargeFailed, res.Status)
		assert.Equal(t, "Card declined.", res.Message)
	})

	t.Run("MissingSource", func(t *testing.T) {
		gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
			t.Error("no request expected")
		})

		res, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.NewFromInt(5)})

		require.NoError(t, err)
		assert.Equal(t, ChargeFailed, res.Status)
	})

	t.Run("ServerError", func(t *testing.T) {
		gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`upstream failure for EAAAtoken`))
		})

		_, err := gw.CreateCharge(ctx, ChargeRequest{Amount: decimal.NewFromInt(5), Source: "cnon:x"})

		var pe *util.PaymentError
		require.ErrorAs(t, err, &pe)
		assert.NotContains(t, pe.Message, "EAAAtoken")
	})
}

func TestSquareRefundFullAmount(t *testing.T) {
	var refunded map[string]any
	gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.Method == http.MethodGet && req.URL.Path == "/v2/payments/sq_pay_1":
			w.Write([]byte(`{"payment":{"id":"sq_pay_1","status":"COMPLETED","amount_money":{"amount":1999,"currency":"USD"}}}`))
		case req.Method == http.MethodPost && req.URL.Path == "/v2/refunds":
			require.NoError(t, json.NewDecoder(req.Body).Decode(&refunded))
			w.Write([]byte(`{"refund":{"id":"rf_1","status":"PENDING"}}`))
		default:
			t.Errorf("unexpected %s %s", req.Method, req.URL.Path)
		}
	})

	res, err := gw.RefundCharge(context.Background(), RefundRequest{Reference: "sq_pay_1"})

	require.NoError(t, err)
	assert.Equal(t, "rf_1", res.RefundID)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, "sq_pay_1", refunded["payment_id"])
	assert.Equal(t, float64(1999), refunded["amount_money"].(map[string]any)["amount"])
}

func TestSquareTestConnectionUnauthorized(t *testing.T) {
	gw := newTestSquare(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"code":"UNAUTHORIZED"}]}`))
	})

	err := gw.TestConnection(context.Background())

	assert.ErrorIs(t, err, util.ErrPaymentFailed)
}
