package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service dispatches outbound messages and automates inbound replies.
type Service interface {
	SendSMS(ctx context.Context, tenantID snowflake.ID, req SendSMSRequest) (*MessageLog, error)
	SendEmail(ctx context.Context, tenantID snowflake.ID, req SendEmailRequest) (*MessageLog, error)
	// HandleInboundSMS logs the inbound message, classifies it, and runs
	// the matching automation. The returned log is the automated reply,
	// or nil when the message produced none.
	HandleInboundSMS(ctx context.Context, tenantID snowflake.ID, req InboundSMSRequest) (*MessageLog, error)
	// UpdateDeliveryStatus applies a provider status callback.
	UpdateDeliveryStatus(ctx context.Context, tenantID snowflake.ID, update DeliveryStatusUpdate) error
	// ApplyEmailEvents folds a SendGrid event batch into message logs.
	ApplyEmailEvents(ctx context.Context, tenantID snowflake.ID, events []EmailEvent) error
	List(ctx context.Context, tenantID snowflake.ID, req ListMessagesRequest) (ListMessagesResponse, error)
}

// SendSMSRequest sends one text, either a raw body or a template.
type SendSMSRequest struct {
	To          string            `json:"to"`
	Body        string            `json:"body"`
	TemplateKey string            `json:"template_key"`
	Variables   map[string]string `json:"variables"`

	ClientID        *snowflake.ID `json:"client_id,omitempty"`
	AppointmentID   *snowflake.ID `json:"appointment_id,omitempty"`
	WaitlistEntryID *snowflake.ID `json:"waitlist_entry_id,omitempty"`

	AutomationRule string `json:"-"`
}

// SendEmailRequest sends one email.
type SendEmailRequest struct {
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	TemplateKey string            `json:"template_key"`
	Variables   map[string]string `json:"variables"`

	ClientID *snowflake.ID `json:"client_id,omitempty"`
}

// InboundSMSRequest carries a provider-delivered inbound text.
type InboundSMSRequest struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
}

// DeliveryStatusUpdate carries a provider delivery callback.
type DeliveryStatusUpdate struct {
	ProviderMessageID string
	Status            string
	ErrorMessage      string
}

// EmailEvent is one entry of a SendGrid event webhook batch.
type EmailEvent struct {
	Event     string `json:"event"`
	MessageID string `json:"sg_message_id"`
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"`
}

// ListMessagesRequest pages through a tenant's message history.
type ListMessagesRequest struct {
	Channel   string
	Direction string
	PageToken string
	PageSize  int
}

// ListMessagesResponse is one page of message history.
type ListMessagesResponse struct {
	Messages      []MessageLog `json:"messages"`
	HasMore       bool         `json:"has_more"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// OccurredAt converts the event's unix timestamp.
func (e EmailEvent) OccurredAt() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(e.Timestamp, 0).UTC()
}

var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrEmptyMessage     = errors.New("empty_message")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrMessageNotFound  = errors.New("message_not_found")
	ErrProvider         = errors.New("provider_error")
)
