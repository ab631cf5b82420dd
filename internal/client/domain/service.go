package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service manages a tenant's client roster.
type Service interface {
	CaptureLead(ctx context.Context, tenantID snowflake.ID, req CaptureLeadRequest) (*Client, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Client, error)
	GetByPhone(ctx context.Context, tenantID snowflake.ID, phone string) (*Client, error)
	Update(ctx context.Context, tenantID, id snowflake.ID, req UpdateClientRequest) (*Client, error)
	List(ctx context.Context, tenantID snowflake.ID) ([]Client, error)
}

// CaptureLeadRequest records contact details collected by the chatbot or an
// inbound message. Capture is an upsert keyed by normalized phone.
type CaptureLeadRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Source string `json:"source"`
	Note   string `json:"note"`
}

// UpdateClientRequest applies a partial profile update.
type UpdateClientRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Note  *string `json:"note,omitempty"`
}

var (
	ErrClientNotFound = errors.New("client_not_found")
	ErrInvalidPhone   = errors.New("invalid_phone")
)
