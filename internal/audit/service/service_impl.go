package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/raylanfranco/whitelabel-admin/internal/audit/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	obscontext "github.com/raylanfranco/whitelabel-admin/internal/observability/context"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[auditdomain.AuditLog]
}

func NewService(p ServiceParam) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.ProvideStore[auditdomain.AuditLog](p.DB),
	}
}

func (s *Service) Record(ctx context.Context, tenantID *snowflake.ID, action, resourceType, resourceID string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	resourceType = strings.TrimSpace(resourceType)
	if action == "" || resourceType == "" {
		return nil
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = auditdomain.ActorTypeSystem
	}

	fields := datatypes.JSONMap{}
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		fields[key] = value
	}

	entry := &auditdomain.AuditLog{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		ActorType:    actorType,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    obscontext.RequestIDFromContext(ctx),
		Metadata:     fields,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		// Audit writes never veto the mutation they describe.
		s.log.Error("audit entry not written",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, limit int) ([]auditdomain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := s.repo.Find(ctx, map[string]any{"tenant_id": tenantID}, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC, id DESC").Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return entries, nil
}
