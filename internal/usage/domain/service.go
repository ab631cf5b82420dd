package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service meters outbound messaging against per-tenant monthly ceilings.
type Service interface {
	// CheckLimit reports remaining quota without consuming any.
	CheckLimit(ctx context.Context, tenantID snowflake.ID, channel string) (Quota, error)
	// Reserve consumes one unit ahead of a provider call. It fails with
	// ErrLimitExceeded once the ceiling is reached.
	Reserve(ctx context.Context, tenantID snowflake.ID, channel string) error
	// Release returns a reserved unit after a failed provider call.
	Release(ctx context.Context, tenantID snowflake.ID, channel string) error
	// Track records provider cost for an already-reserved unit.
	Track(ctx context.Context, tenantID snowflake.ID, channel string, costCents int64) error
	// Report summarizes the current period for the tenant dashboard.
	Report(ctx context.Context, tenantID snowflake.ID) (*UsageReport, error)
}

// Quota describes the state of one channel ceiling.
type Quota struct {
	Channel   string `json:"channel"`
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}

// UsageReport is the per-period usage summary.
type UsageReport struct {
	TenantID  snowflake.ID `json:"tenant_id"`
	Period    string       `json:"period"`
	SMS       Quota        `json:"sms"`
	Email     Quota        `json:"email"`
	CostCents int64        `json:"cost_cents"`
}

var (
	ErrInvalidChannel = errors.New("invalid_channel")
	ErrLimitExceeded  = errors.New("usage_limit_exceeded")
)
