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
	tenantservice "github.com/raylanfranco/whitelabel-admin/internal/tenant/service"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
)

func setupUsageTest(t *testing.T) (*gorm.DB, usagedomain.Service, *tenantdomain.Tenant) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&tenantdomain.Tenant{}, &usagedomain.UsageCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	fixed := clock.FixedClock{At: time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)}

	smsLimit := int64(3)
	record := &tenantdomain.Tenant{
		ID:               node.Generate(),
		Name:             "Test Plumbing",
		Subdomain:        "test-plumbing",
		Tier:             tenantdomain.TierBasic,
		Status:           tenantdomain.StatusActive,
		IsActive:         true,
		SMSLimitOverride: &smsLimit,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	tenantSvc := tenantservice.NewService(tenantservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fixed,
		Cfg:   config.Config{},
	})
	usageSvc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fixed,
		TenantSvc: tenantSvc,
	})
	return db, usageSvc, record
}

func TestReserveEnforcesCeiling(t *testing.T) {
	_, svc, record := setupUsageTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Reserve(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
			t.Fatalf("reserve %d: %v", i+1, err)
		}
	}

	err := svc.Reserve(ctx, record.ID, usagedomain.ChannelSMS)
	if !errors.Is(err, usagedomain.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	quota, err := svc.CheckLimit(ctx, record.ID, usagedomain.ChannelSMS)
	if err != nil {
		t.Fatalf("check limit: %v", err)
	}
	if quota.Used != 3 || quota.Remaining != 0 {
		t.Fatalf("quota = %+v", quota)
	}
}

func TestReleaseReturnsReservedUnit(t *testing.T) {
	_, svc, record := setupUsageTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Reserve(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	if err := svc.Release(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
		t.Fatalf("release: %v", err)
	}

	if err := svc.Reserve(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	db, svc, record := setupUsageTest(t)
	ctx := context.Background()

	if err := svc.Release(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
		t.Fatalf("release on empty counter: %v", err)
	}

	var counters []usagedomain.UsageCounter
	if err := db.Where("tenant_id = ?", record.ID).Find(&counters).Error; err != nil {
		t.Fatalf("find counters: %v", err)
	}
	for _, counter := range counters {
		if counter.Count < 0 {
			t.Fatalf("counter went negative: %+v", counter)
		}
	}
}

func TestTrackAccumulatesCost(t *testing.T) {
	_, svc, record := setupUsageTest(t)
	ctx := context.Background()

	if err := svc.Reserve(ctx, record.ID, usagedomain.ChannelSMS); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Track(ctx, record.ID, usagedomain.ChannelSMS, 2); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := svc.Track(ctx, record.ID, usagedomain.ChannelSMS, 3); err != nil {
		t.Fatalf("track: %v", err)
	}

	report, err := svc.Report(ctx, record.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CostCents != 5 {
		t.Fatalf("cost = %d, want 5", report.CostCents)
	}
	if report.Period != "2026-08" {
		t.Fatalf("period = %q", report.Period)
	}
	if report.SMS.Used != 1 {
		t.Fatalf("sms used = %d", report.SMS.Used)
	}
}

func TestReserveRejectsUnknownChannel(t *testing.T) {
	_, svc, record := setupUsageTest(t)

	err := svc.Reserve(context.Background(), record.ID, "fax")
	if !errors.Is(err, usagedomain.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}
