package stripe

import (
	"encoding/json"
	"strings"

	webhookdomain "github.com/raylanfranco/whitelabel-admin/internal/webhook/domain"
)

// Event is a parsed Stripe webhook envelope. Object holds the raw
// data.object document for type-specific decoding.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes the webhook envelope.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, webhookdomain.ErrMalformedEvent
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return Event{}, webhookdomain.ErrMalformedEvent
	}
	return Event{ID: env.ID, Type: env.Type, Object: env.Data.Object}, nil
}

// SubscriptionObject is the subset of a subscription document the router
// cares about.
type SubscriptionObject struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	TrialEnd int64             `json:"trial_end"`
	Metadata map[string]string `json:"metadata"`
}

// InvoiceObject is the subset of an invoice document the router cares
// about.
type InvoiceObject struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	AmountPaid   int64             `json:"amount_paid"`
	AmountDue    int64             `json:"amount_due"`
	Metadata     map[string]string `json:"metadata"`
}

// PaymentIntentObject is the subset of a payment intent document the
// router cares about.
type PaymentIntentObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// AccountObject is the subset of a Connect account document the router
// cares about.
type AccountObject struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}
