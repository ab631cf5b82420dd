package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	TenantSvc tenantdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	tenantsvc tenantdomain.Service
	repo      repository.Repository[usagedomain.UsageCounter]
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		clock: p.Clock,

		tenantsvc: p.TenantSvc,
		repo:      repository.ProvideStore[usagedomain.UsageCounter](p.DB),
	}
}

func (s *Service) CheckLimit(ctx context.Context, tenantID snowflake.ID, channel string) (usagedomain.Quota, error) {
	limit, err := s.channelLimit(ctx, tenantID, channel)
	if err != nil {
		return usagedomain.Quota{}, err
	}

	period := usagedomain.Period(s.clock.Now())
	counter, err := s.repo.FindOne(ctx, "tenant_id = ? AND period = ? AND channel = ?", tenantID, period, channel)
	if err != nil {
		return usagedomain.Quota{}, err
	}

	var used int64
	if counter != nil {
		used = counter.Count
	}
	return buildQuota(channel, limit, used), nil
}

func (s *Service) Reserve(ctx context.Context, tenantID snowflake.ID, channel string) error {
	limit, err := s.channelLimit(ctx, tenantID, channel)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	period := usagedomain.Period(now)
	if err := s.ensureCounter(ctx, tenantID, period, channel); err != nil {
		return err
	}

	// The ceiling check and the increment are one statement. Two racing
	// sends at count = limit-1 serialize on the row and only one passes.
	result := s.db.WithContext(ctx).Model(&usagedomain.UsageCounter{}).
		Where("tenant_id = ? AND period = ? AND channel = ? AND count < ?", tenantID, period, channel, limit).
		Updates(map[string]any{
			"count":      gorm.Expr("count + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Warn("usage limit reached",
			zap.String("tenant_id", tenantID.String()),
			zap.String("channel", channel),
			zap.Int64("limit", limit),
		)
		return usagedomain.ErrLimitExceeded
	}
	return nil
}

func (s *Service) Release(ctx context.Context, tenantID snowflake.ID, channel string) error {
	if !validChannel(channel) {
		return usagedomain.ErrInvalidChannel
	}
	period := usagedomain.Period(s.clock.Now())
	return s.db.WithContext(ctx).Model(&usagedomain.UsageCounter{}).
		Where("tenant_id = ? AND period = ? AND channel = ? AND count > 0", tenantID, period, channel).
		Updates(map[string]any{
			"count":      gorm.Expr("count - 1"),
			"updated_at": s.clock.Now(),
		}).Error
}

func (s *Service) Track(ctx context.Context, tenantID snowflake.ID, channel string, costCents int64) error {
	if !validChannel(channel) {
		return usagedomain.ErrInvalidChannel
	}
	if costCents <= 0 {
		return nil
	}
	period := usagedomain.Period(s.clock.Now())
	return s.db.WithContext(ctx).Model(&usagedomain.UsageCounter{}).
		Where("tenant_id = ? AND period = ? AND channel = ?", tenantID, period, channel).
		Updates(map[string]any{
			"cost_cents": gorm.Expr("cost_cents + ?", costCents),
			"updated_at": s.clock.Now(),
		}).Error
}

func (s *Service) Report(ctx context.Context, tenantID snowflake.ID) (*usagedomain.UsageReport, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	limits := record.EffectiveLimits()

	period := usagedomain.Period(s.clock.Now())
	counters, err := s.repo.Find(ctx, map[string]any{
		"tenant_id": tenantID,
		"period":    period,
	})
	if err != nil {
		return nil, err
	}

	report := &usagedomain.UsageReport{
		TenantID: tenantID,
		Period:   period,
		SMS:      buildQuota(usagedomain.ChannelSMS, limits.SMS, 0),
		Email:    buildQuota(usagedomain.ChannelEmail, limits.Email, 0),
	}
	for _, counter := range counters {
		if counter == nil {
			continue
		}
		report.CostCents += counter.CostCents
		switch counter.Channel {
		case usagedomain.ChannelSMS:
			report.SMS = buildQuota(usagedomain.ChannelSMS, limits.SMS, counter.Count)
		case usagedomain.ChannelEmail:
			report.Email = buildQuota(usagedomain.ChannelEmail, limits.Email, counter.Count)
		}
	}
	return report, nil
}

func (s *Service) channelLimit(ctx context.Context, tenantID snowflake.ID, channel string) (int64, error) {
	if !validChannel(channel) {
		return 0, usagedomain.ErrInvalidChannel
	}
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	limits := record.EffectiveLimits()
	if channel == usagedomain.ChannelSMS {
		return limits.SMS, nil
	}
	return limits.Email, nil
}

func (s *Service) ensureCounter(ctx context.Context, tenantID snowflake.ID, period, channel string) error {
	counter := &usagedomain.UsageCounter{
		ID:       s.genID.Generate(),
		TenantID: tenantID,
		Period:   period,
		Channel:  channel,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(counter).Error
}

func buildQuota(channel string, limit, used int64) usagedomain.Quota {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return usagedomain.Quota{
		Channel:   channel,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
	}
}

func validChannel(channel string) bool {
	return channel == usagedomain.ChannelSMS || channel == usagedomain.ChannelEmail
}
