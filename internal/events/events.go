package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Notification job kinds.
const (
	KindDunningReminder      = "dunning_reminder"
	KindPaymentReceipt       = "payment_receipt"
	KindPaymentFailed        = "payment_failed"
	KindWaitlistOffer        = "waitlist_offer"
	KindTrialEnding          = "trial_ending"
	KindWelcomeEmail         = "welcome_email"
	KindSubscriptionNotice   = "subscription_notice"
	KindSubscriptionCanceled = "subscription_canceled"
	KindConnectEnabled       = "connect_enabled"
)

// Notification job statuses.
const (
	JobStatusPending = "pending"
	JobStatusSent    = "sent"
	JobStatusDead    = "dead"
)

// MaxAttempts before a job is parked as dead.
const MaxAttempts = 5

// NotificationJob is one durable outbound notification. Jobs survive process
// restarts, unlike an in-process timer.
type NotificationJob struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	Kind        string            `gorm:"type:text;not null" json:"kind"`
	Channel     string            `gorm:"type:text;not null" json:"channel"`
	Recipient   string            `gorm:"type:text;not null" json:"recipient"`
	TemplateKey string            `gorm:"type:text;not null" json:"template_key"`
	Variables   datatypes.JSONMap `gorm:"type:jsonb" json:"variables,omitempty"`

	DedupeKey string    `gorm:"type:text;not null;uniqueIndex" json:"dedupe_key"`
	RunAt     time.Time `gorm:"not null" json:"run_at"`

	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	Status    string     `gorm:"type:text;not null;default:pending" json:"status"`
	LastError string     `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`
	LockedAt  *time.Time `gorm:"" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (NotificationJob) TableName() string { return "notification_jobs" }
