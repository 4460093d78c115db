package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paypalServer answers the token endpoint and delegates everything else.
func paypalServer(t *testing.T, next http.HandlerFunc) Gateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := req.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			w.Write([]byte(`{"access_token":"A21AAtoken","token_type":"Bearer"}`))
			return
		}
		assert.Equal(t, "Bearer A21AAtoken", req.Header.Get("Authorization"))
		next(w, req)
	}))
	t.Cleanup(srv.Close)
	gw, err := NewPayPal(Credentials{APIKey: "client-id", APISecret: "client-secret"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	require.NoError(t, err)
	return gw
}

func TestPayPalCreateChargeRedirects(t *testing.T) {
	gw := paypalServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v2/checkout/orders", req.URL.Path)
		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount   paypalMoney `json:"amount"`
				CustomID string      `json:"custom_id"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "20.00", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "1", body.PurchaseUnits[0].CustomID)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ORDER-1","status":"CREATED","links":[
			{"href":"https://api.paypal.test/v2/checkout/orders/ORDER-1","rel":"self"},
			{"href":"https://www.paypal.test/checkoutnow?token=ORDER-1","rel":"approve"}]}`))
	})

	res, err := gw.CreateCharge(context.Background(), ChargeRequest{
		Amount:    decimal.NewFromInt(20),
		ReturnURL: "https://app.test/return",
		Metadata:  map[string]string{"user_id": "1"},
	})

	require.NoError(t, err)
	assert.Equal(t, ChargeRedirectRequired, res.Status)
	assert.Equal(t, "ORDER-1", res.Reference)
	assert.Equal(t, "https://www.paypal.test/checkoutnow?token=ORDER-1", res.RedirectURL)
}

func TestPayPalCompleteCharge(t *testing.T) {
	gw := paypalServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/v2/checkout/orders/ORDER-1/capture", req.URL.Path)
		w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[
			{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"20.00"}}]}}]}`))
	})

	res, err := gw.CompleteCharge(context.Background(), "ORDER-1")

	require.NoError(t, err)
	assert.Equal(t, ChargeSucceeded, res.Status)
	assert.Equal(t, "ORDER-1", res.Reference)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "USD", res.Currency)
}

func TestPayPalRefundUsesCapture(t *testing.T) {
	gw := paypalServer(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/v2/checkout/orders/ORDER-1":
			w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[
				{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"20.00"}}]}}]}`))
		case "/v2/payments/captures/CAP-1/refund":
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "5.00", body["amount"].(map[string]any)["value"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"REF-1","status":"COMPLETED"}`))
		default:
			t.Errorf("unexpected path %s", req.URL.Path)
		}
	})

	res, err := gw.RefundCharge(context.Background(), RefundRequest{Reference: "ORDER-1", Amount: decimal.NewFromInt(5)})

	require.NoError(t, err)
	assert.Equal(t, "REF-1", res.RefundID)
	assert.Equal(t, "completed", res.Status)
}

func TestPayPalTestConnectionBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()
	gw, err := NewPayPal(Credentials{APIKey: "client-id", APISecret: "wrong"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	require.NoError(t, err)

	assert.Error(t, gw.TestConnection(context.Background()))
}
