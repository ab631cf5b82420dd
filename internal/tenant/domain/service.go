package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service manages tenant accounts and their subscription state.
type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	Get(ctx context.Context, id snowflake.ID) (*Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*Tenant, error)
	GetByStripeSubscription(ctx context.Context, subscriptionID string) (*Tenant, error)
	GetByStripeAccount(ctx context.Context, accountID string) (*Tenant, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTenantRequest) (*Tenant, error)
	SetTier(ctx context.Context, id snowflake.ID, tier string) (*Tenant, error)
	SetStatus(ctx context.Context, id snowflake.ID, status string) (*Tenant, error)
	MarkSetupCompleted(ctx context.Context, id snowflake.ID) error
	UpdateConnectStatus(ctx context.Context, id snowflake.ID, status ConnectStatus) (*Tenant, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
	List(ctx context.Context, req ListTenantsRequest) ([]Tenant, error)
}

// CreateTenantRequest provisions a new tenant account.
type CreateTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Tier      string `json:"tier"`
}

// UpdateTenantRequest applies a partial profile update.
type UpdateTenantRequest struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	OnboardingStep *string `json:"onboarding_step,omitempty"`

	StripeCustomerID     *string `json:"-"`
	StripeSubscriptionID *string `json:"-"`
	StripeAccountID      *string `json:"-"`

	SMSLimitOverride   *int64 `json:"sms_limit_override,omitempty"`
	EmailLimitOverride *int64 `json:"email_limit_override,omitempty"`
}

// ConnectStatus mirrors the capability flags of a Connect account.
type ConnectStatus struct {
	ChargesEnabled   bool `json:"charges_enabled"`
	PayoutsEnabled   bool `json:"payouts_enabled"`
	DetailsSubmitted bool `json:"details_submitted"`
}

// ListTenantsRequest filters the admin tenant listing.
type ListTenantsRequest struct {
	Status string
	Tier   string
}

var (
	ErrTenantNotFound     = errors.New("tenant_not_found")
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidSubdomain   = errors.New("invalid_subdomain")
	ErrSubdomainTaken     = errors.New("subdomain_taken")
	ErrInvalidTier        = errors.New("invalid_tier")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrTenantDeactivated  = errors.New("tenant_deactivated")
	ErrMessagingSuspended = errors.New("messaging_suspended")
)
