// Package domain contains persistence models for payments and refunds.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	TypePayment      = "payment"
	TypeRefund       = "refund"
	TypeSetupFee     = "setup_fee"
	TypeSubscription = "subscription"
)

const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
	TxRefunded  = "refunded"
)

// MinChargeCents is the processor's charge floor.
const MinChargeCents = 50

// SetupFeeCents is the one-time onboarding fee.
const SetupFeeCents = 250000

var (
	platformFeeRate = decimal.NewFromFloat(0.03)
	platformFeeFlat = decimal.NewFromInt(30)
)

// PlatformFeeCents computes the platform cut: 3% of the amount plus 30
// cents, rounded half up.
func PlatformFeeCents(amountCents int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(platformFeeRate).
		Add(platformFeeFlat).
		Round(0).
		IntPart()
}

// FiscalQuarter renders the bookkeeping quarter for an instant.
func FiscalQuarter(at time.Time) string {
	switch {
	case at.Month() <= 3:
		return "Q1"
	case at.Month() <= 6:
		return "Q2"
	case at.Month() <= 9:
		return "Q3"
	default:
		return "Q4"
	}
}

// Transaction records one money movement. Status only moves forward:
// pending to completed or failed, completed to refunded.
type Transaction struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	ClientID      *snowflake.ID `gorm:"" json:"client_id,omitempty"`
	AppointmentID *snowflake.ID `gorm:"" json:"appointment_id,omitempty"`

	ProcessorID string `gorm:"type:text;not null;uniqueIndex" json:"processor_id"`
	Type        string `gorm:"type:text;not null" json:"type"`
	Status      string `gorm:"type:text;not null;default:pending" json:"status"`

	AmountCents      int64  `gorm:"not null" json:"amount_cents"`
	Currency         string `gorm:"type:text;not null;default:usd" json:"currency"`
	PlatformFeeCents int64  `gorm:"not null;default:0" json:"platform_fee_cents"`
	NetAmountCents   int64  `gorm:"not null;default:0" json:"net_amount_cents"`
	RefundedCents    int64  `gorm:"not null;default:0" json:"refunded_cents"`

	Description    string `gorm:"type:text;not null;default:''" json:"description,omitempty"`
	FailureMessage string `gorm:"type:text;not null;default:''" json:"failure_message,omitempty"`

	Taxable       bool   `gorm:"not null;default:true" json:"taxable"`
	TaxCategory   string `gorm:"type:text;not null;default:service" json:"tax_category"`
	FiscalQuarter string `gorm:"type:text;not null;default:''" json:"fiscal_quarter"`
	FiscalYear    int    `gorm:"not null;default:0" json:"fiscal_year"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
