// Package domain contains the webhook event ledger.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ProviderStripe   = "stripe"
	ProviderTwilio   = "twilio"
	ProviderSendGrid = "sendgrid"
)

// EventRecord is one received webhook delivery. The unique index on
// (provider, provider_event_id) makes redeliveries idempotent.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:idx_webhook_events_provider_event" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:idx_webhook_events_provider_event" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
	ProcessedAt     *time.Time     `gorm:"" json:"processed_at,omitempty"`
	ProcessError    string         `gorm:"type:text;not null;default:''" json:"process_error,omitempty"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "webhook_events" }

var (
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrMalformedEvent   = errors.New("malformed_webhook_event")
)
