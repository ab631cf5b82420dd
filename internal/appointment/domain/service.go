package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service manages appointments and the waitlist for a tenant.
type Service interface {
	Create(ctx context.Context, tenantID snowflake.ID, req CreateAppointmentRequest) (*Appointment, error)
	Get(ctx context.Context, tenantID, id snowflake.ID) (*Appointment, error)
	// FindPendingForClient returns the client's next unconfirmed upcoming
	// appointment, or nil when there is none.
	FindPendingForClient(ctx context.Context, tenantID, clientID snowflake.ID) (*Appointment, error)
	Confirm(ctx context.Context, tenantID, id snowflake.ID) (*Appointment, error)
	Cancel(ctx context.Context, tenantID, id snowflake.ID, cancelledBy, reason string) (*Appointment, error)
	MarkDepositPaid(ctx context.Context, tenantID, id snowflake.ID) error
	List(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]Appointment, error)

	JoinWaitlist(ctx context.Context, tenantID snowflake.ID, req JoinWaitlistRequest) (*WaitlistEntry, error)
	// FindNotifiedEntry returns the client's open waitlist offer, or nil.
	FindNotifiedEntry(ctx context.Context, tenantID, clientID snowflake.ID) (*WaitlistEntry, error)
	BookFromWaitlist(ctx context.Context, tenantID, entryID snowflake.ID, startsAt time.Time) (*Appointment, error)
	DeclineWaitlist(ctx context.Context, tenantID, entryID snowflake.ID) (*WaitlistEntry, error)
	// ExpireStaleOffers flips notified entries past their deadline back to
	// active so the slot can be offered to someone else.
	ExpireStaleOffers(ctx context.Context, limit int) (int, error)
}

// CreateAppointmentRequest books a slot for a client.
type CreateAppointmentRequest struct {
	ClientID        snowflake.ID `json:"client_id"`
	Service         string       `json:"service"`
	StartsAt        time.Time    `json:"starts_at"`
	DepositRequired bool         `json:"deposit_required"`
}

// JoinWaitlistRequest adds a client to the waitlist.
type JoinWaitlistRequest struct {
	ClientID snowflake.ID `json:"client_id"`
	Service  string       `json:"service"`
}

var (
	ErrAppointmentNotFound   = errors.New("appointment_not_found")
	ErrInvalidAppointment    = errors.New("invalid_appointment")
	ErrAppointmentNotPending = errors.New("appointment_not_pending")
	ErrWaitlistEntryNotFound = errors.New("waitlist_entry_not_found")
	ErrWaitlistEntryClosed   = errors.New("waitlist_entry_closed")
)
