package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenant-ledger/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signStripe(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseStripeEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"charge.succeeded","data":{"object":{
		"id":"ch_1","object":"charge","amount":2500,"currency":"usd","payment_intent":"pi_1",
		"metadata":{"user_id":"1","team_id":"7","transaction_type":"wallet_topup"}}}}`)

	t.Run("Valid", func(t *testing.T) {
		event, err := ParseStripeEvent(payload, signStripe(payload, "whsec_test", time.Now()), "whsec_test")

		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "charge.succeeded", event.Type)
		assert.Equal(t, "ch_1", event.ObjectID)
		assert.Equal(t, "pi_1", event.PaymentIntentID)
		assert.Equal(t, "pi_1", event.TransactionID())
		assert.Equal(t, int64(2500), event.AmountMinor)
		assert.Equal(t, "7", event.Metadata["team_id"])
	})

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := ParseStripeEvent(payload, signStripe(payload, "whsec_other", time.Now()), "whsec_test")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("Stale", func(t *testing.T) {
		_, err := ParseStripeEvent(payload, signStripe(payload, "whsec_test", time.Now().Add(-time.Hour)), "whsec_test")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("NoSecretConfigured", func(t *testing.T) {
		_, err := ParseStripeEvent(payload, signStripe(payload, "", time.Now()), "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})
}

func TestStripeCreateCharge(t *testing.T) {
	t.Run("Succeeded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/v1/payment_intents", req.URL.Path)
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "2000", req.PostForm.Get("amount"))
			assert.Equal(t, "usd", req.PostForm.Get("currency"))
			assert.Equal(t, "pm_card_visa", req.PostForm.Get("payment_method"))
			assert.Equal(t, "1", req.PostForm.Get("metadata[user_id]"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"pi_1","object":"payment_intent","amount":2000,"currency":"usd","status":"succeeded","client_secret":"pi_1_secret"}`))
		}))
		defer srv.Close()
		gw, err := NewStripe(Credentials{APISecret: "sk_test_123"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
		require.NoError(t, err)

		res, err := gw.CreateCharge(context.Background(), ChargeRequest{
			Amount:   decimal.NewFromInt(20),
			Source:   "pm_card_visa",
			Metadata: map[string]string{"user_id": "1"},
		})

		require.NoError(t, err)
		assert.Equal(t, ChargeSucceeded, res.Status)
		assert.Equal(t, "pi_1", res.Reference)
		assert.Empty(t, res.ClientSecret)
		assert.Equal(t, "USD", res.Currency)
	})

	t.Run("CardError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
		}))
		defer srv.Close()
		gw, err := NewStripe(Credentials{APISecret: "sk_test_123"}, Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = gw.CreateCharge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(20), Source: "pm_card_chargeDeclined"})

		var pe *util.PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Your card was declined.", pe.Message)
		assert.ErrorIs(t, err, util.ErrPaymentFailed)
	})

	t.Run("MissingSecretKey", func(t *testing.T) {
		_, err := NewStripe(Credentials{APIKey: "pk_test_123"}, Options{})
		assert.Error(t, err)
	})
}
