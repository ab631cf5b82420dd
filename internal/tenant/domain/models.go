// Package domain contains persistence models for tenant accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	TierBasic   = "basic"
	TierPremium = "premium"
)

const (
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusUnpaid     = "unpaid"
	StatusIncomplete = "incomplete"
)

const (
	OnboardingCreated   = "created"
	OnboardingPayment   = "payment"
	OnboardingConnect   = "connect"
	OnboardingCompleted = "completed"
)

// Limits caps monthly outbound messages for a tier.
type Limits struct {
	SMS   int64
	Email int64
}

var tierLimits = map[string]Limits{
	TierBasic:   {SMS: 100, Email: 1000},
	TierPremium: {SMS: 500, Email: 10000},
}

// LimitsForTier returns the monthly caps for a tier, defaulting to basic.
func LimitsForTier(tier string) Limits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[TierBasic]
}

// ValidTier reports whether the tier name is recognized.
func ValidTier(tier string) bool {
	_, ok := tierLimits[tier]
	return ok
}

// Tenant stores one white-label business account. Rows are deactivated via
// is_active, never hard-deleted.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Subdomain string       `gorm:"type:text;not null;uniqueIndex" json:"subdomain"`
	Email     string       `gorm:"type:text;not null;default:''" json:"email"`
	Phone     string       `gorm:"type:text;not null;default:''" json:"phone"`

	Tier           string `gorm:"type:text;not null;default:basic" json:"tier"`
	Status         string `gorm:"type:text;not null;default:trialing" json:"status"`
	OnboardingStep string `gorm:"type:text;not null;default:created" json:"onboarding_step"`
	IsActive       bool   `gorm:"not null;default:true" json:"is_active"`

	SetupCompleted bool       `gorm:"not null;default:false" json:"setup_completed"`
	TrialEndsAt    *time.Time `gorm:"" json:"trial_ends_at,omitempty"`

	StripeCustomerID     string `gorm:"type:text;not null;default:''" json:"-"`
	StripeSubscriptionID string `gorm:"type:text;not null;default:''" json:"-"`
	StripeAccountID      string `gorm:"type:text;not null;default:''" json:"-"`

	ChargesEnabled   bool `gorm:"not null;default:false" json:"charges_enabled"`
	PayoutsEnabled   bool `gorm:"not null;default:false" json:"payouts_enabled"`
	DetailsSubmitted bool `gorm:"not null;default:false" json:"details_submitted"`

	SMSLimitOverride   *int64 `gorm:"" json:"sms_limit_override,omitempty"`
	EmailLimitOverride *int64 `gorm:"" json:"email_limit_override,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// EffectiveLimits resolves the tenant's monthly caps, honoring overrides.
func (t Tenant) EffectiveLimits() Limits {
	limits := LimitsForTier(t.Tier)
	if t.SMSLimitOverride != nil && *t.SMSLimitOverride >= 0 {
		limits.SMS = *t.SMSLimitOverride
	}
	if t.EmailLimitOverride != nil && *t.EmailLimitOverride >= 0 {
		limits.Email = *t.EmailLimitOverride
	}
	return limits
}

// PaymentProcessingStatus summarizes the Connect account for the dashboard.
func (t Tenant) PaymentProcessingStatus() string {
	switch {
	case t.StripeAccountID == "":
		return "not_started"
	case t.ChargesEnabled && t.PayoutsEnabled:
		return "enabled"
	case t.DetailsSubmitted:
		return "pending_verification"
	default:
		return "onboarding"
	}
}

// CanSendMessages reports whether outbound messaging is allowed for the
// tenant's subscription status.
func (t Tenant) CanSendMessages() bool {
	if !t.IsActive {
		return false
	}
	switch t.Status {
	case StatusTrialing, StatusActive, StatusPastDue:
		return true
	default:
		return false
	}
}
