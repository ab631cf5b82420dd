// Package domain contains persistence models for tenant clients.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	SourceChatbot  = "chatbot"
	SourceInbound  = "inbound_sms"
	SourceManual   = "manual"
	SourceWaitlist = "waitlist"
)

// Client is one end customer of a tenant. The normalized phone number is
// the dedupe key for lead capture.
type Client struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	Name  string `gorm:"type:text;not null;default:''" json:"name"`
	Phone string `gorm:"type:text;not null" json:"phone"`
	Email string `gorm:"type:text;not null;default:''" json:"email"`

	Source string `gorm:"type:text;not null;default:''" json:"source"`
	Notes  string `gorm:"type:text;not null;default:''" json:"notes"`

	LastContactAt *time.Time `gorm:"" json:"last_contact_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }
