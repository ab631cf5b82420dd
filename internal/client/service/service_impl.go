package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/logger"
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
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo repository.Repository[clientdomain.Client]
}

func NewService(p ServiceParam) clientdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo: repository.ProvideStore[clientdomain.Client](p.DB),
	}
}

// CaptureLead upserts by normalized phone so repeat chatbot sessions and
// inbound texts enrich the existing record instead of duplicating it.
func (s *Service) CaptureLead(ctx context.Context, tenantID snowflake.ID, req clientdomain.CaptureLeadRequest) (*clientdomain.Client, error) {
	phone, err := clientdomain.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	existing, err := s.repo.FindOne(ctx, "tenant_id = ? AND phone = ?", tenantID, phone)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		record := &clientdomain.Client{
			ID:            s.genID.Generate(),
			TenantID:      tenantID,
			Name:          strings.TrimSpace(req.Name),
			Phone:         phone,
			Email:         strings.TrimSpace(req.Email),
			Source:        strings.TrimSpace(req.Source),
			Notes:         strings.TrimSpace(req.Note),
			LastContactAt: &now,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, err
		}
		s.log.Info("lead captured",
			zap.String("tenant_id", tenantID.String()),
			zap.String("client_id", record.ID.String()),
			zap.String("source", record.Source),
			zap.String("phone", logger.MaskPhone(phone)),
		)
		return record, nil
	}

	if name := strings.TrimSpace(req.Name); name != "" && existing.Name == "" {
		existing.Name = name
	}
	if email := strings.TrimSpace(req.Email); email != "" && existing.Email == "" {
		existing.Email = email
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		existing.Notes = appendNote(existing.Notes, note)
	}
	existing.LastContactAt = &now
	existing.UpdatedAt = now
	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id snowflake.ID) (*clientdomain.Client, error) {
	record, err := s.repo.FindOne(ctx, "tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, clientdomain.ErrClientNotFound
	}
	return record, nil
}

func (s *Service) GetByPhone(ctx context.Context, tenantID snowflake.ID, phone string) (*clientdomain.Client, error) {
	normalized, err := clientdomain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindOne(ctx, "tenant_id = ? AND phone = ?", tenantID, normalized)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, clientdomain.ErrClientNotFound
	}
	return record, nil
}

func (s *Service) Update(ctx context.Context, tenantID, id snowflake.ID, req clientdomain.UpdateClientRequest) (*clientdomain.Client, error) {
	record, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		record.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		record.Email = strings.TrimSpace(*req.Email)
	}
	if req.Note != nil {
		if note := strings.TrimSpace(*req.Note); note != "" {
			record.Notes = appendNote(record.Notes, note)
		}
	}

	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID) ([]clientdomain.Client, error) {
	items, err := s.repo.Find(ctx, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	records := make([]clientdomain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}
	return records, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
