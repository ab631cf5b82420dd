// Package domain contains persistence models for message dispatch.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

const (
	MessageStatusQueued    = "queued"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
	MessageStatusReceived  = "received"
)

// MessageLog records every message in or out, including failed sends.
type MessageLog struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	ClientID        *snowflake.ID `gorm:"" json:"client_id,omitempty"`
	AppointmentID   *snowflake.ID `gorm:"" json:"appointment_id,omitempty"`
	WaitlistEntryID *snowflake.ID `gorm:"" json:"waitlist_entry_id,omitempty"`

	Channel   string `gorm:"type:text;not null" json:"channel"`
	Direction string `gorm:"type:text;not null" json:"direction"`

	ProviderMessageID string `gorm:"type:text;not null;default:'';index" json:"provider_message_id,omitempty"`
	ToAddress         string `gorm:"type:text;not null" json:"to_address"`
	FromAddress       string `gorm:"type:text;not null;default:''" json:"from_address"`
	Subject           string `gorm:"type:text;not null;default:''" json:"subject,omitempty"`
	Body              string `gorm:"type:text;not null;default:''" json:"body"`
	TemplateKey       string `gorm:"type:text;not null;default:''" json:"template_key,omitempty"`

	Status       string `gorm:"type:text;not null;default:queued" json:"status"`
	ErrorMessage string `gorm:"type:text;not null;default:''" json:"error_message,omitempty"`

	Segments  int   `gorm:"not null;default:0" json:"segments"`
	CostCents int64 `gorm:"not null;default:0" json:"cost_cents"`

	AutomationTriggered bool   `gorm:"not null;default:false" json:"automation_triggered"`
	AutomationRule      string `gorm:"type:text;not null;default:''" json:"automation_rule,omitempty"`

	DeliveredAt *time.Time `gorm:"" json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `gorm:"" json:"opened_at,omitempty"`
	ClickedAt   *time.Time `gorm:"" json:"clicked_at,omitempty"`
	BouncedAt   *time.Time `gorm:"" json:"bounced_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MessageLog) TableName() string { return "message_logs" }
