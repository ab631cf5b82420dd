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

	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
)

func setupClientTest(t *testing.T) (clientdomain.Service, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&clientdomain.Client{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.FixedClock{At: time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)},
	})
	return svc, node.Generate()
}

func TestCaptureLeadCreatesClient(t *testing.T) {
	svc, tenantID := setupClientTest(t)

	record, err := svc.CaptureLead(context.Background(), tenantID, clientdomain.CaptureLeadRequest{
		Name:   "Dana Smith",
		Phone:  "(555) 123-4567",
		Email:  "dana@example.com",
		Source: clientdomain.SourceChatbot,
		Note:   "Needs a quote for water heater",
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if record.Phone != "+15551234567" {
		t.Fatalf("phone = %q", record.Phone)
	}
	if record.Source != clientdomain.SourceChatbot {
		t.Fatalf("source = %q", record.Source)
	}
	if record.LastContactAt == nil {
		t.Fatal("last contact not set")
	}
}

func TestCaptureLeadUpsertsByPhone(t *testing.T) {
	svc, tenantID := setupClientTest(t)
	ctx := context.Background()

	first, err := svc.CaptureLead(ctx, tenantID, clientdomain.CaptureLeadRequest{
		Phone:  "555-123-4567",
		Source: clientdomain.SourceInbound,
		Note:   "texted in",
	})
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}

	second, err := svc.CaptureLead(ctx, tenantID, clientdomain.CaptureLeadRequest{
		Name:   "Dana",
		Phone:  "+1 (555) 123-4567",
		Email:  "dana@example.com",
		Source: clientdomain.SourceChatbot,
		Note:   "asked about pricing",
	})
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert onto %s, got new record %s", first.ID, second.ID)
	}
	if second.Name != "Dana" || second.Email != "dana@example.com" {
		t.Fatalf("enrichment missing: %+v", second)
	}
	if second.Notes != "texted in\nasked about pricing" {
		t.Fatalf("notes = %q", second.Notes)
	}
	// The original acquisition source is kept.
	if second.Source != clientdomain.SourceInbound {
		t.Fatalf("source = %q", second.Source)
	}

	records, err := svc.List(ctx, tenantID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 client, got %d", len(records))
	}
}

func TestCaptureLeadRejectsBadPhone(t *testing.T) {
	svc, tenantID := setupClientTest(t)

	_, err := svc.CaptureLead(context.Background(), tenantID, clientdomain.CaptureLeadRequest{Phone: "call me"})
	if !errors.Is(err, clientdomain.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestGetByPhoneScopedToTenant(t *testing.T) {
	svc, tenantID := setupClientTest(t)
	ctx := context.Background()

	if _, err := svc.CaptureLead(ctx, tenantID, clientdomain.CaptureLeadRequest{Phone: "5551234567"}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	found, err := svc.GetByPhone(ctx, tenantID, "(555) 123 4567")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if found.Phone != "+15551234567" {
		t.Fatalf("phone = %q", found.Phone)
	}

	otherTenant := tenantID + 1
	if _, err := svc.GetByPhone(ctx, otherTenant, "5551234567"); !errors.Is(err, clientdomain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound for other tenant, got %v", err)
	}
}
