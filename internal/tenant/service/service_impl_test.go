package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
)

func setupTenantTest(t *testing.T) tenantdomain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tenantdomain.Tenant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.FixedClock{At: time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)},
		Cfg:   config.Config{},
	})
}

func TestCreateTenantStartsTrial(t *testing.T) {
	svc := setupTenantTest(t)

	record, err := svc.Create(context.Background(), tenantdomain.CreateTenantRequest{
		Name:      "Riverside Plumbing",
		Subdomain: "Riverside-Plumbing",
		Email:     "owner@riverside.example",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Subdomain != "riverside-plumbing" {
		t.Fatalf("subdomain = %q", record.Subdomain)
	}
	if record.Tier != tenantdomain.TierBasic {
		t.Fatalf("tier = %q", record.Tier)
	}
	if record.Status != tenantdomain.StatusTrialing {
		t.Fatalf("status = %q", record.Status)
	}
	if record.TrialEndsAt == nil {
		t.Fatal("trial end not set")
	}
}

func TestCreateTenantRejectsTakenSubdomain(t *testing.T) {
	svc := setupTenantTest(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "First", Subdomain: "acme"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "Second", Subdomain: "ACME"})
	if !errors.Is(err, tenantdomain.ErrSubdomainTaken) {
		t.Fatalf("expected ErrSubdomainTaken, got %v", err)
	}
}

func TestCreateTenantValidatesInput(t *testing.T) {
	svc := setupTenantTest(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "  ", Subdomain: "valid-sub"}); !errors.Is(err, tenantdomain.ErrInvalidTenant) {
		t.Fatalf("blank name: %v", err)
	}
	if _, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "A", Subdomain: "-bad-"}); !errors.Is(err, tenantdomain.ErrInvalidSubdomain) {
		t.Fatalf("bad subdomain: %v", err)
	}
	if _, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "A", Subdomain: "fine", Tier: "platinum"}); !errors.Is(err, tenantdomain.ErrInvalidTier) {
		t.Fatalf("bad tier: %v", err)
	}
}

func TestSetTierAndStatus(t *testing.T) {
	svc := setupTenantTest(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "A", Subdomain: "tiers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetTier(ctx, record.ID, tenantdomain.TierPremium)
	if err != nil {
		t.Fatalf("set tier: %v", err)
	}
	if updated.Tier != tenantdomain.TierPremium {
		t.Fatalf("tier = %q", updated.Tier)
	}
	if updated.EffectiveLimits().SMS != 500 {
		t.Fatalf("premium sms limit = %d", updated.EffectiveLimits().SMS)
	}

	if _, err := svc.SetStatus(ctx, record.ID, "suspended"); !errors.Is(err, tenantdomain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	updated, err = svc.SetStatus(ctx, record.ID, tenantdomain.StatusPastDue)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if !updated.CanSendMessages() {
		t.Fatal("past_due tenants should still send messages")
	}
}

func TestGetBySubdomainCachesResolution(t *testing.T) {
	svc := setupTenantTest(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, tenantdomain.CreateTenantRequest{Name: "A", Subdomain: "lookup"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		found, err := svc.GetBySubdomain(ctx, "LOOKUP")
		if err != nil {
			t.Fatalf("lookup %d: %v", i+1, err)
		}
		if found.ID != record.ID {
			t.Fatalf("lookup %d returned %s", i+1, found.ID)
		}
	}

	if _, err := svc.GetBySubdomain(ctx, "missing"); !errors.Is(err, tenantdomain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}
