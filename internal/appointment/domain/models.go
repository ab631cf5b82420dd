// Package domain contains persistence models for appointments and the
// waitlist.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

const (
	CancelledByClient = "client"
	CancelledByTenant = "tenant"
)

const (
	WaitlistActive   = "active"
	WaitlistNotified = "notified"
	WaitlistBooked   = "booked"
	WaitlistDeclined = "declined"
)

// ResponseWindow is how long a notified waitlist client has to reply before
// the offer expires back to active.
const ResponseWindow = 2 * time.Hour

// Appointment is one booked service slot.
type Appointment struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	ClientID snowflake.ID `gorm:"not null;index" json:"client_id"`

	Service  string    `gorm:"type:text;not null" json:"service"`
	StartsAt time.Time `gorm:"not null" json:"starts_at"`
	Status   string    `gorm:"type:text;not null;default:scheduled" json:"status"`

	ClientConfirmedAt *time.Time `gorm:"" json:"client_confirmed_at,omitempty"`
	CancelledAt       *time.Time `gorm:"" json:"cancelled_at,omitempty"`
	CancelledBy       string     `gorm:"type:text;not null;default:''" json:"cancelled_by,omitempty"`
	CancelReason      string     `gorm:"type:text;not null;default:''" json:"cancel_reason,omitempty"`

	DepositRequired bool `gorm:"not null;default:false" json:"deposit_required"`
	DepositPaid     bool `gorm:"not null;default:false" json:"deposit_paid"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Appointment) TableName() string { return "appointments" }

// WaitlistEntry is one client waiting for a slot to open.
type WaitlistEntry struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	ClientID snowflake.ID `gorm:"not null;index" json:"client_id"`

	Service string `gorm:"type:text;not null" json:"service"`
	Status  string `gorm:"type:text;not null;default:active" json:"status"`

	NotifiedAt       *time.Time `gorm:"" json:"notified_at,omitempty"`
	ResponseDeadline *time.Time `gorm:"" json:"response_deadline,omitempty"`
	BookedAt         *time.Time `gorm:"" json:"booked_at,omitempty"`
	DeclinedAt       *time.Time `gorm:"" json:"declined_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WaitlistEntry) TableName() string { return "waitlist_entries" }
