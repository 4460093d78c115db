package domain

import "time"

// BillingCustomer links an owner to its customer record on the platform Stripe account.
type BillingCustomer struct {
	UserID           int64     `db:"user_id" json:"user_id"`
	TeamID           *int64    `db:"team_id" json:"team_id"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// PaymentEvent is a verified, gateway-neutral view of a payment webhook.
type PaymentEvent struct {
	ID              string // Event id
	Type            string // e.g. payment_intent.succeeded
	ObjectID        string // Id of data.object
	PaymentIntentID string // Set for charge events
	AmountMinor     int64  // Amount in minor units
	Currency        string
	Metadata        map[string]string
}

// TransactionID is the id commissions are keyed on. Charge events resolve to their
// payment intent so both events of one payment record a single commission.
func (e *PaymentEvent) TransactionID() string {
	if e.PaymentIntentID != "" {
		return e.PaymentIntentID
	}
	return e.ObjectID
}
