// Package domain contains the immutable audit trail.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// AuditLog records one billing or account mutation. Rows are append-only.
type AuditLog struct {
	ID       snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID *snowflake.ID `gorm:"index" json:"tenant_id,omitempty"`

	ActorType string `gorm:"type:text;not null;default:''" json:"actor_type"`
	ActorID   string `gorm:"type:text;not null;default:''" json:"actor_id"`

	Action       string `gorm:"type:text;not null" json:"action"`
	ResourceType string `gorm:"type:text;not null" json:"resource_type"`
	ResourceID   string `gorm:"type:text;not null;default:''" json:"resource_id"`

	RequestID string            `gorm:"type:text;not null;default:''" json:"request_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Service writes and lists audit entries. Actor and request id are read
// from the context when present.
type Service interface {
	Record(ctx context.Context, tenantID *snowflake.ID, action, resourceType, resourceID string, metadata map[string]any) error
	List(ctx context.Context, tenantID snowflake.ID, limit int) ([]AuditLog, error)
}
