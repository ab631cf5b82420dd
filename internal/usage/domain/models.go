// Package domain contains persistence models for usage metering.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// PeriodFormat renders a billing period key, e.g. "2026-08".
const PeriodFormat = "2006-01"

// UsageCounter holds one tenant's consumption for a channel in a billing
// period. The count is only ever moved with conditional updates so two
// concurrent sends cannot both pass the ceiling.
type UsageCounter struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex:idx_usage_counters_tenant_period_channel" json:"tenant_id"`
	Period   string       `gorm:"type:text;not null;uniqueIndex:idx_usage_counters_tenant_period_channel" json:"period"`
	Channel  string       `gorm:"type:text;not null;uniqueIndex:idx_usage_counters_tenant_period_channel" json:"channel"`

	Count     int64 `gorm:"not null;default:0" json:"count"`
	CostCents int64 `gorm:"not null;default:0" json:"cost_cents"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageCounter) TableName() string { return "usage_counters" }

// Period returns the billing period key for an instant.
func Period(at time.Time) string {
	return at.UTC().Format(PeriodFormat)
}
