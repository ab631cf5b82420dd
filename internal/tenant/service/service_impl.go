package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/internal/cache"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

const resolveCacheTTL = 30 * time.Second

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	repo       repository.Repository[tenantdomain.Tenant]
	bySubCache *cache.TTLCache[string, snowflake.ID]
}

func NewService(p ServiceParam) tenantdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,

		repo:       repository.ProvideStore[tenantdomain.Tenant](p.DB),
		bySubCache: cache.NewTTLCache[string, snowflake.ID](),
	}
}

func (s *Service) Create(ctx context.Context, req tenantdomain.CreateTenantRequest) (*tenantdomain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tenantdomain.ErrInvalidTenant
	}

	subdomain := normalizeSubdomain(req.Subdomain)
	if !subdomainPattern.MatchString(subdomain) {
		return nil, tenantdomain.ErrInvalidSubdomain
	}

	tier := strings.TrimSpace(req.Tier)
	if tier == "" {
		tier = tenantdomain.TierBasic
	}
	if !tenantdomain.ValidTier(tier) {
		return nil, tenantdomain.ErrInvalidTier
	}

	existing, err := s.repo.FindOne(ctx, &tenantdomain.Tenant{Subdomain: subdomain})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, tenantdomain.ErrSubdomainTaken
	}

	trialEndsAt := s.clock.Now().Add(s.cfg.TrialPeriod())
	record := &tenantdomain.Tenant{
		ID:             s.genID.Generate(),
		Name:           name,
		Subdomain:      subdomain,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Tier:           tier,
		Status:         tenantdomain.StatusTrialing,
		OnboardingStep: tenantdomain.OnboardingCreated,
		IsActive:       true,
		TrialEndsAt:    &trialEndsAt,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", record.ID.String()),
		zap.String("subdomain", record.Subdomain),
		zap.String("tier", record.Tier),
	)
	return record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*tenantdomain.Tenant, error) {
	record, err := s.repo.FindOne(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return record, nil
}

func (s *Service) GetBySubdomain(ctx context.Context, subdomain string) (*tenantdomain.Tenant, error) {
	subdomain = normalizeSubdomain(subdomain)
	if id, ok := s.bySubCache.Get(subdomain); ok {
		if record, err := s.Get(ctx, id); err == nil {
			return record, nil
		}
	}
	record, err := s.repo.FindOne(ctx, &tenantdomain.Tenant{Subdomain: subdomain})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	s.bySubCache.Set(subdomain, record.ID, resolveCacheTTL)
	return record, nil
}

func (s *Service) GetByStripeCustomer(ctx context.Context, customerID string) (*tenantdomain.Tenant, error) {
	return s.getByStripeRef(ctx, "stripe_customer_id = ?", customerID)
}

func (s *Service) GetByStripeSubscription(ctx context.Context, subscriptionID string) (*tenantdomain.Tenant, error) {
	return s.getByStripeRef(ctx, "stripe_subscription_id = ?", subscriptionID)
}

func (s *Service) GetByStripeAccount(ctx context.Context, accountID string) (*tenantdomain.Tenant, error) {
	return s.getByStripeRef(ctx, "stripe_account_id = ?", accountID)
}

func (s *Service) getByStripeRef(ctx context.Context, query, value string) (*tenantdomain.Tenant, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, tenantdomain.ErrTenantNotFound
	}
	record, err := s.repo.FindOne(ctx, query, value)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return record, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req tenantdomain.UpdateTenantRequest) (*tenantdomain.Tenant, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, tenantdomain.ErrInvalidTenant
		}
		record.Name = name
	}
	if req.Email != nil {
		record.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		record.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.OnboardingStep != nil {
		record.OnboardingStep = strings.TrimSpace(*req.OnboardingStep)
	}
	if req.StripeCustomerID != nil {
		record.StripeCustomerID = strings.TrimSpace(*req.StripeCustomerID)
	}
	if req.StripeSubscriptionID != nil {
		record.StripeSubscriptionID = strings.TrimSpace(*req.StripeSubscriptionID)
	}
	if req.StripeAccountID != nil {
		record.StripeAccountID = strings.TrimSpace(*req.StripeAccountID)
	}
	if req.SMSLimitOverride != nil {
		record.SMSLimitOverride = req.SMSLimitOverride
	}
	if req.EmailLimitOverride != nil {
		record.EmailLimitOverride = req.EmailLimitOverride
	}

	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) SetTier(ctx context.Context, id snowflake.ID, tier string) (*tenantdomain.Tenant, error) {
	if !tenantdomain.ValidTier(tier) {
		return nil, tenantdomain.ErrInvalidTier
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Tier == tier {
		return record, nil
	}

	previous := record.Tier
	record.Tier = tier
	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("tenant tier changed",
		zap.String("tenant_id", record.ID.String()),
		zap.String("from", previous),
		zap.String("to", tier),
	)
	return record, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status string) (*tenantdomain.Tenant, error) {
	switch status {
	case tenantdomain.StatusTrialing, tenantdomain.StatusActive, tenantdomain.StatusPastDue,
		tenantdomain.StatusCanceled, tenantdomain.StatusUnpaid, tenantdomain.StatusIncomplete:
	default:
		return nil, tenantdomain.ErrInvalidStatus
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == status {
		return record, nil
	}

	previous := record.Status
	record.Status = status
	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("tenant status changed",
		zap.String("tenant_id", record.ID.String()),
		zap.String("from", previous),
		zap.String("to", status),
	)
	return record, nil
}

func (s *Service) MarkSetupCompleted(ctx context.Context, id snowflake.ID) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.SetupCompleted {
		return nil
	}
	record.SetupCompleted = true
	record.OnboardingStep = tenantdomain.OnboardingCompleted
	record.UpdatedAt = s.clock.Now()
	return s.repo.Save(ctx, record)
}

func (s *Service) UpdateConnectStatus(ctx context.Context, id snowflake.ID, status tenantdomain.ConnectStatus) (*tenantdomain.Tenant, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	record.ChargesEnabled = status.ChargesEnabled
	record.PayoutsEnabled = status.PayoutsEnabled
	record.DetailsSubmitted = status.DetailsSubmitted
	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !record.IsActive {
		return nil
	}
	record.IsActive = false
	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, record); err != nil {
		return err
	}
	s.bySubCache.Delete(record.Subdomain)
	s.log.Info("tenant deactivated", zap.String("tenant_id", record.ID.String()))
	return nil
}

func (s *Service) List(ctx context.Context, req tenantdomain.ListTenantsRequest) ([]tenantdomain.Tenant, error) {
	filter := map[string]any{}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter["status"] = status
	}
	if tier := strings.TrimSpace(req.Tier); tier != "" {
		filter["tier"] = tier
	}

	items, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	records := make([]tenantdomain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}
	return records, nil
}

func normalizeSubdomain(subdomain string) string {
	return strings.ToLower(strings.TrimSpace(subdomain))
}
