package domain

import "context"

// Customer is the processor's customer record.
type Customer struct {
	ID string
}

// Subscription is the processor's subscription record.
type Subscription struct {
	ID           string
	Status       string
	ClientSecret string
	TrialEnd     int64
	PriceID      string
	ItemID       string
}

// PaymentIntent is the processor's payment intent record.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Account is the processor's Connect account record.
type Account struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// CreatePaymentIntentParams describes a destination charge.
type CreatePaymentIntentParams struct {
	AmountCents        int64
	Currency           string
	ApplicationFee     int64
	DestinationAccount string
	Description        string
	Metadata           map[string]string
}

// ProcessorClient is the narrow payment-processor surface the billing
// service depends on.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, name, email, phone string, metadata map[string]string) (Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, trialDays int64, metadata map[string]string) (Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, newPriceID string, metadata map[string]string) error
	CreateInvoiceItem(ctx context.Context, customerID string, amountCents int64, description string, metadata map[string]string) (string, error)
	CreateInvoice(ctx context.Context, customerID string, autoAdvance bool, metadata map[string]string) (string, error)
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (PaymentIntent, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64, reason string, metadata map[string]string) (string, error)
	CreateAccount(ctx context.Context, country, email string, metadata map[string]string) (Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
}
