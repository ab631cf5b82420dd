package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
)

// Service wraps the payment processor for subscriptions, charges, refunds,
// and Connect account management.
type Service interface {
	// CreateSubscription provisions a processor customer plus a trialing
	// subscription, and queues the one-time setup fee invoice.
	CreateSubscription(ctx context.Context, tenantID snowflake.ID, tier string) (*SubscriptionResult, error)
	// ChangeTier swaps the subscription price with proration at the
	// processor first, then updates local tier state.
	ChangeTier(ctx context.Context, tenantID snowflake.ID, newTier string) error
	// Charge creates a destination-charge payment intent on behalf of the
	// tenant's Connect account and records a pending Transaction.
	Charge(ctx context.Context, tenantID snowflake.ID, req ChargeRequest) (*ChargeResult, error)
	// ChargeDeposit charges an appointment deposit.
	ChargeDeposit(ctx context.Context, tenantID, appointmentID snowflake.ID, amountCents int64) (*ChargeResult, error)
	// Refund refunds part or all of a completed charge. The amount plus
	// prior refunds can never exceed the original charge.
	Refund(ctx context.Context, tenantID, transactionID snowflake.ID, amountCents int64, reason string) (*Transaction, error)
	CreateConnectAccount(ctx context.Context, tenantID snowflake.ID) (*ConnectAccountResult, error)
	ConnectStatus(ctx context.Context, tenantID snowflake.ID) (*ConnectStatusResult, error)
	SubscriptionStatus(ctx context.Context, tenantID snowflake.ID) (*SubscriptionStatusResult, error)
	ListTransactions(ctx context.Context, tenantID snowflake.ID, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

// SubscriptionResult is returned by CreateSubscription.
type SubscriptionResult struct {
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Status         string `json:"status"`
	TrialEnd       int64  `json:"trial_end,omitempty"`
}

// ChargeRequest describes a client payment.
type ChargeRequest struct {
	AmountCents   int64         `json:"amount_cents"`
	Description   string        `json:"description"`
	ClientID      *snowflake.ID `json:"client_id,omitempty"`
	AppointmentID *snowflake.ID `json:"appointment_id,omitempty"`
	Deposit       bool          `json:"-"`
}

// ChargeResult is returned by Charge and ChargeDeposit.
type ChargeResult struct {
	TransactionID    snowflake.ID `json:"transaction_id"`
	PaymentIntentID  string       `json:"payment_intent_id"`
	ClientSecret     string       `json:"client_secret"`
	AmountCents      int64        `json:"amount_cents"`
	PlatformFeeCents int64        `json:"platform_fee_cents"`
	Status           string       `json:"status"`
}

// ConnectAccountResult is returned by CreateConnectAccount.
type ConnectAccountResult struct {
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
	Status        string `json:"status"`
}

// ConnectStatusResult summarizes the Connect account.
type ConnectStatusResult struct {
	AccountID        string `json:"account_id,omitempty"`
	Status           string `json:"status"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// SubscriptionStatusResult combines subscription state with current usage.
type SubscriptionStatusResult struct {
	Tier           string                   `json:"tier"`
	Status         string                   `json:"status"`
	TrialEndsAt    string                   `json:"trial_ends_at,omitempty"`
	SetupCompleted bool                     `json:"setup_completed"`
	Usage          *usagedomain.UsageReport `json:"usage,omitempty"`
}

// ListTransactionsRequest pages through a tenant's transaction history.
type ListTransactionsRequest struct {
	Type      string
	Status    string
	PageToken string
	PageSize  int
}

// ListTransactionsResponse is one page of transaction history.
type ListTransactionsResponse struct {
	Transactions  []Transaction `json:"transactions"`
	HasMore       bool          `json:"has_more"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

var (
	ErrAmountTooSmall       = errors.New("amount_below_minimum")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrNotRefundable        = errors.New("transaction_not_refundable")
	ErrRefundExceedsCharge  = errors.New("refund_exceeds_charge")
	ErrConnectNotConfigured = errors.New("connect_account_missing")
	ErrSubscriptionMissing  = errors.New("subscription_missing")
	ErrProcessor            = errors.New("processor_error")
)
