package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	appointmentservice "github.com/raylanfranco/whitelabel-admin/internal/appointment/service"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	clientservice "github.com/raylanfranco/whitelabel-admin/internal/client/service"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	tenantservice "github.com/raylanfranco/whitelabel-admin/internal/tenant/service"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	usageservice "github.com/raylanfranco/whitelabel-admin/internal/usage/service"
)

type fakeSMSClient struct {
	calls []string
	err   error
}

func (f *fakeSMSClient) Send(_ context.Context, to, _, body string) (messagingdomain.SMSResult, error) {
	f.calls = append(f.calls, to+"|"+body)
	if f.err != nil {
		return messagingdomain.SMSResult{}, f.err
	}
	return messagingdomain.SMSResult{MessageID: fmt.Sprintf("SM%04d", len(f.calls)), Segments: 1}, nil
}

type fakeEmailClient struct {
	calls int
	err   error
}

func (f *fakeEmailClient) Send(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("em%04d", f.calls), nil
}

type messagingFixture struct {
	db       *gorm.DB
	svc      messagingdomain.Service
	appts    appointmentdomain.Service
	clients  clientdomain.Service
	tenants  tenantdomain.Service
	sms      *fakeSMSClient
	email    *fakeEmailClient
	tenantID snowflake.ID
}

func setupMessagingTest(t *testing.T) *messagingFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&tenantdomain.Tenant{},
		&clientdomain.Client{},
		&appointmentdomain.Appointment{},
		&appointmentdomain.WaitlistEntry{},
		&messagingdomain.MessageLog{},
		&events.NotificationJob{},
		&usagedomain.UsageCounter{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	fixed := clock.FixedClock{At: time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)}
	cfg := config.Config{
		Twilio: config.TwilioConfig{FromNumber: "+15550001111"},
		Email:  config.EmailConfig{FromAddress: "no-reply@demo.example"},
	}

	tenantSvc := tenantservice.NewService(tenantservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed, Cfg: cfg,
	})
	clientSvc := clientservice.NewService(clientservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed,
	})
	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed, TenantSvc: tenantSvc,
	})
	apptSvc := appointmentservice.NewService(appointmentservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed,
		Outbox: events.NewOutbox(db, node), TenantSvc: tenantSvc, ClientSvc: clientSvc,
	})

	sms := &fakeSMSClient{}
	email := &fakeEmailClient{}
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fixed,
		Cfg:   cfg,

		TenantSvc:      tenantSvc,
		ClientSvc:      clientSvc,
		AppointmentSvc: apptSvc,
		UsageSvc:       usageSvc,
		SMSClient:      sms,
		EmailClient:    email,
	})

	record, err := tenantSvc.Create(context.Background(), tenantdomain.CreateTenantRequest{
		Name: "Demo Services", Subdomain: "demo-services",
	})
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	return &messagingFixture{
		db:       db,
		svc:      svc,
		appts:    apptSvc,
		clients:  clientSvc,
		tenants:  tenantSvc,
		sms:      sms,
		email:    email,
		tenantID: record.ID,
	}
}

func (f *messagingFixture) capSMSLimit(t *testing.T, limit int64) {
	t.Helper()
	_, err := f.tenants.Update(context.Background(), f.tenantID, tenantdomain.UpdateTenantRequest{
		SMSLimitOverride: &limit,
	})
	if err != nil {
		t.Fatalf("set limit override: %v", err)
	}
}

func TestSendSMSLogsAndTracksUsage(t *testing.T) {
	f := setupMessagingTest(t)

	entry, err := f.svc.SendSMS(context.Background(), f.tenantID, messagingdomain.SendSMSRequest{
		To:   "(555) 123-4567",
		Body: "Your technician is on the way.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if entry.Status != messagingdomain.MessageStatusSent {
		t.Fatalf("status = %q", entry.Status)
	}
	if entry.ToAddress != "+15551234567" {
		t.Fatalf("to = %q", entry.ToAddress)
	}
	if entry.ProviderMessageID == "" || entry.Segments != 1 {
		t.Fatalf("provider fields = %+v", entry)
	}
	if len(f.sms.calls) != 1 {
		t.Fatalf("provider calls = %d", len(f.sms.calls))
	}
}

func TestSendSMSStopsAtQuotaWithoutProviderCall(t *testing.T) {
	f := setupMessagingTest(t)
	f.capSMSLimit(t, 1)
	ctx := context.Background()

	if _, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "one"}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	_, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "two"})
	if err == nil || !strings.Contains(err.Error(), "usage_limit_exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
	if len(f.sms.calls) != 1 {
		t.Fatalf("provider was called past the ceiling: %d calls", len(f.sms.calls))
	}

	var failed messagingdomain.MessageLog
	if err := f.db.Where("status = ?", messagingdomain.MessageStatusFailed).First(&failed).Error; err != nil {
		t.Fatalf("failed log not written: %v", err)
	}
	if failed.ErrorMessage != "usage_limit_exceeded" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
}

func TestSendSMSReleasesQuotaOnProviderFailure(t *testing.T) {
	f := setupMessagingTest(t)
	f.capSMSLimit(t, 1)
	ctx := context.Background()

	f.sms.err = errors.New("provider timeout")
	if _, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "hi"}); err == nil {
		t.Fatal("expected provider error")
	}

	// The reserved unit came back, so the single-unit ceiling still allows a send.
	f.sms.err = nil
	if _, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "hi"}); err != nil {
		t.Fatalf("send after release: %v", err)
	}
}

func TestSendSMSSuspendedTenant(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	if _, err := f.tenants.SetStatus(ctx, f.tenantID, tenantdomain.StatusCanceled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	_, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "hi"})
	if !errors.Is(err, tenantdomain.ErrMessagingSuspended) {
		t.Fatalf("expected ErrMessagingSuspended, got %v", err)
	}
	if len(f.sms.calls) != 0 {
		t.Fatal("provider called for suspended tenant")
	}
}

func TestSendSMSRendersTemplate(t *testing.T) {
	f := setupMessagingTest(t)

	entry, err := f.svc.SendSMS(context.Background(), f.tenantID, messagingdomain.SendSMSRequest{
		To:          "5551234567",
		TemplateKey: "appointment_reminder",
		Variables: map[string]string{
			"clientName":      "Dana",
			"serviceName":     "Drain cleaning",
			"appointmentDate": "Friday",
			"appointmentTime": "2:00 PM",
			"businessName":    "Demo Services",
		},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(entry.Body, "Dana") || !strings.Contains(entry.Body, "Drain cleaning") {
		t.Fatalf("template not rendered: %q", entry.Body)
	}
	if strings.Contains(entry.Body, "{{") {
		t.Fatalf("unresolved placeholder in %q", entry.Body)
	}
}

func TestInboundConfirmKeywordConfirmsAppointment(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	contact, err := f.clients.CaptureLead(ctx, f.tenantID, clientdomain.CaptureLeadRequest{
		Name: "Dana", Phone: "5551234567", Source: clientdomain.SourceManual,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	appt, err := f.appts.Create(ctx, f.tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID: contact.ID,
		Service:  "Inspection",
		StartsAt: time.Date(2026, time.August, 17, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	reply, err := f.svc.HandleInboundSMS(ctx, f.tenantID, messagingdomain.InboundSMSRequest{
		From: "+15551234567",
		To:   "+15550001111",
		Body: "YES",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if reply == nil || !strings.Contains(reply.Body, "confirmed") {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.AutomationRule != "appointment_confirmed" {
		t.Fatalf("rule = %q", reply.AutomationRule)
	}

	updated, err := f.appts.Get(ctx, f.tenantID, appt.ID)
	if err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if updated.Status != appointmentdomain.AppointmentConfirmed {
		t.Fatalf("status = %q", updated.Status)
	}
}

func TestInboundCancelFreesSlot(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	contact, err := f.clients.CaptureLead(ctx, f.tenantID, clientdomain.CaptureLeadRequest{
		Phone: "5551234567", Source: clientdomain.SourceManual,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	appt, err := f.appts.Create(ctx, f.tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID: contact.ID,
		Service:  "Inspection",
		StartsAt: time.Date(2026, time.August, 17, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	reply, err := f.svc.HandleInboundSMS(ctx, f.tenantID, messagingdomain.InboundSMSRequest{
		From: "5551234567",
		Body: "no",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if reply == nil || reply.AutomationRule != "appointment_cancelled" {
		t.Fatalf("reply = %+v", reply)
	}

	updated, err := f.appts.Get(ctx, f.tenantID, appt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != appointmentdomain.AppointmentCancelled {
		t.Fatalf("status = %q", updated.Status)
	}
	if updated.CancelledBy != appointmentdomain.CancelledByClient {
		t.Fatalf("cancelled by = %q", updated.CancelledBy)
	}
}

func TestInboundAcceptBooksWaitlistSlot(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	contact, err := f.clients.CaptureLead(ctx, f.tenantID, clientdomain.CaptureLeadRequest{
		Phone: "5551234567", Source: clientdomain.SourceManual,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	appt, err := f.appts.Create(ctx, f.tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID: contact.ID,
		Service:  "Inspection",
		StartsAt: time.Date(2026, time.August, 17, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	if _, err := f.appts.JoinWaitlist(ctx, f.tenantID, appointmentdomain.JoinWaitlistRequest{
		ClientID: contact.ID, Service: "Inspection",
	}); err != nil {
		t.Fatalf("join waitlist: %v", err)
	}
	// Cancelling the appointment moves the entry to notified.
	if _, err := f.appts.Cancel(ctx, f.tenantID, appt.ID, "business", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	reply, err := f.svc.HandleInboundSMS(ctx, f.tenantID, messagingdomain.InboundSMSRequest{
		From: "5551234567",
		Body: "accept",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if reply == nil || reply.AutomationRule != "waitlist_accepted" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.AppointmentID == nil || reply.WaitlistEntryID == nil {
		t.Fatalf("reply references missing: %+v", reply)
	}
}

func TestInboundFAQGetsCannedAnswer(t *testing.T) {
	f := setupMessagingTest(t)

	reply, err := f.svc.HandleInboundSMS(context.Background(), f.tenantID, messagingdomain.InboundSMSRequest{
		From: "5551234567",
		Body: "How much does it cost?",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if reply == nil || reply.AutomationRule != "auto_response_cost" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestInboundUnknownStaysSilent(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	reply, err := f.svc.HandleInboundSMS(ctx, f.tenantID, messagingdomain.InboundSMSRequest{
		From: "5551234567",
		Body: "lorem ipsum dolor",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if reply != nil {
		t.Fatalf("expected no reply, got %+v", reply)
	}
	if len(f.sms.calls) != 0 {
		t.Fatal("provider called for unclassified message")
	}

	// The inbound text itself is still logged and the sender captured.
	var count int64
	if err := f.db.Model(&messagingdomain.MessageLog{}).
		Where("direction = ?", messagingdomain.DirectionInbound).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("inbound logs = %d", count)
	}
	if _, err := f.clients.GetByPhone(ctx, f.tenantID, "5551234567"); err != nil {
		t.Fatalf("sender not captured: %v", err)
	}
}

func TestDeliveryStatusCallback(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	entry, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{To: "5551234567", Body: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	err = f.svc.UpdateDeliveryStatus(ctx, f.tenantID, messagingdomain.DeliveryStatusUpdate{
		ProviderMessageID: entry.ProviderMessageID,
		Status:            "delivered",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var reloaded messagingdomain.MessageLog
	if err := f.db.First(&reloaded, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != messagingdomain.MessageStatusDelivered || reloaded.DeliveredAt == nil {
		t.Fatalf("log = %+v", reloaded)
	}

	err = f.svc.UpdateDeliveryStatus(ctx, f.tenantID, messagingdomain.DeliveryStatusUpdate{
		ProviderMessageID: "SM-unknown",
		Status:            "delivered",
	})
	if !errors.Is(err, messagingdomain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestListMessagesPages(t *testing.T) {
	f := setupMessagingTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := f.svc.SendSMS(ctx, f.tenantID, messagingdomain.SendSMSRequest{
			To: "5551234567", Body: fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	page, err := f.svc.List(ctx, f.tenantID, messagingdomain.ListMessagesRequest{PageSize: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Messages) != 3 {
		t.Fatalf("page size = %d", len(page.Messages))
	}
	if !page.HasMore || page.NextPageToken == "" {
		t.Fatalf("pagination = %+v", page)
	}
}
