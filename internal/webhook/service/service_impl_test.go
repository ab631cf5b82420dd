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

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	appointmentservice "github.com/raylanfranco/whitelabel-admin/internal/appointment/service"
	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	clientservice "github.com/raylanfranco/whitelabel-admin/internal/client/service"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	tenantservice "github.com/raylanfranco/whitelabel-admin/internal/tenant/service"
	webhookdomain "github.com/raylanfranco/whitelabel-admin/internal/webhook/domain"
	stripewebhook "github.com/raylanfranco/whitelabel-admin/internal/webhook/stripe"
)

const webhookTestSecret = "whsec_test"

type webhookFixture struct {
	db       *gorm.DB
	svc      *Service
	tenants  tenantdomain.Service
	clients  clientdomain.Service
	appts    appointmentdomain.Service
	node     *snowflake.Node
	now      time.Time
	tenantID snowflake.ID
}

func setupWebhookTest(t *testing.T) *webhookFixture {
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
		&billingdomain.Transaction{},
		&webhookdomain.EventRecord{},
		&events.NotificationJob{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	now := time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)
	fixed := clock.FixedClock{At: now}
	cfg := config.Config{Stripe: config.StripeConfig{WebhookSecret: webhookTestSecret}}

	tenantSvc := tenantservice.NewService(tenantservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed, Cfg: cfg,
	})
	clientSvc := clientservice.NewService(clientservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed,
	})
	apptSvc := appointmentservice.NewService(appointmentservice.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fixed,
		Outbox: events.NewOutbox(db, node), TenantSvc: tenantSvc, ClientSvc: clientSvc,
	})
	svc := NewService(ServiceParam{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          fixed,
		Cfg:            cfg,
		TenantSvc:      tenantSvc,
		ClientSvc:      clientSvc,
		AppointmentSvc: apptSvc,
		Outbox:         events.NewOutbox(db, node),
	})

	record, err := tenantSvc.Create(context.Background(), tenantdomain.CreateTenantRequest{
		Name: "Demo Services", Subdomain: "demo-services", Email: "owner@demo.example",
	})
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	customerID := "cus_001"
	subscriptionID := "sub_001"
	if _, err := tenantSvc.Update(context.Background(), record.ID, tenantdomain.UpdateTenantRequest{
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subscriptionID,
	}); err != nil {
		t.Fatalf("store processor refs: %v", err)
	}

	return &webhookFixture{
		db:       db,
		svc:      svc,
		tenants:  tenantSvc,
		clients:  clientSvc,
		appts:    apptSvc,
		node:     node,
		now:      now,
		tenantID: record.ID,
	}
}

func (f *webhookFixture) ingest(t *testing.T, payload string) error {
	t.Helper()
	header := stripewebhook.SignPayload(webhookTestSecret, []byte(payload), f.now)
	return f.svc.IngestStripe(context.Background(), []byte(payload), header)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{}}}`
	header := stripewebhook.SignPayload("whsec_wrong", []byte(payload), f.now)
	err := f.svc.IngestStripe(context.Background(), []byte(payload), header)
	if !errors.Is(err, webhookdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	var count int64
	if err := f.db.Model(&webhookdomain.EventRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("rejected delivery was recorded")
	}
}

func TestIngestSubscriptionStatusChange(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_sub1","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"past_due"}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(context.Background(), f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Status != tenantdomain.StatusPastDue {
		t.Fatalf("status = %q", record.Status)
	}
}

func TestIngestSubscriptionUpdatedSyncsTier(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_tier1","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"active","metadata":{"tenant_id":"1","tier":"premium"}}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(context.Background(), f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Tier != tenantdomain.TierPremium {
		t.Fatalf("tier = %q, want premium", record.Tier)
	}
	if limits := record.EffectiveLimits(); limits.SMS != 500 {
		t.Fatalf("sms limit = %d, want 500", limits.SMS)
	}
}

func TestIngestSubscriptionUpdatedIgnoresUnknownTier(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_tier2","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"active","metadata":{"tier":"platinum"}}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(context.Background(), f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Tier != tenantdomain.TierBasic {
		t.Fatalf("tier = %q, want basic", record.Tier)
	}
}

func TestIngestSubscriptionCreatedSendsWelcome(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_new1","type":"customer.subscription.created","data":{"object":{"id":"sub_001","customer":"cus_001","status":"trialing"}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var job events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindWelcomeEmail).First(&job).Error; err != nil {
		t.Fatalf("welcome job missing: %v", err)
	}
	if job.Recipient != "owner@demo.example" || job.Channel != "email" {
		t.Fatalf("job = %+v", job)
	}

	// A redelivered created event under a fresh event id does not send a
	// second welcome for the same subscription.
	payload2 := `{"id":"evt_new2","type":"customer.subscription.created","data":{"object":{"id":"sub_001","customer":"cus_001","status":"trialing"}}}`
	if err := f.ingest(t, payload2); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	var count int64
	if err := f.db.Model(&events.NotificationJob{}).
		Where("kind = ?", events.KindWelcomeEmail).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("welcome jobs = %d", count)
	}
}

func TestIngestSubscriptionUpdatedNotifiesStatusChange(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_st1","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"past_due"}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var job events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindSubscriptionNotice).First(&job).Error; err != nil {
		t.Fatalf("notice job missing: %v", err)
	}
	if job.Recipient != "owner@demo.example" {
		t.Fatalf("recipient = %q", job.Recipient)
	}

	// Another update carrying the same status stays quiet.
	payload2 := `{"id":"evt_st2","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"past_due"}}}`
	if err := f.ingest(t, payload2); err != nil {
		t.Fatalf("second update: %v", err)
	}
	var count int64
	if err := f.db.Model(&events.NotificationJob{}).
		Where("kind = ?", events.KindSubscriptionNotice).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("notice jobs = %d", count)
	}
}

func TestIngestSubscriptionDeletedSendsCancellationNotice(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_del1","type":"customer.subscription.deleted","data":{"object":{"id":"sub_001","customer":"cus_001","status":"canceled"}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(context.Background(), f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Status != tenantdomain.StatusCanceled {
		t.Fatalf("status = %q", record.Status)
	}

	var job events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindSubscriptionCanceled).First(&job).Error; err != nil {
		t.Fatalf("cancellation job missing: %v", err)
	}
	if job.Recipient != "owner@demo.example" {
		t.Fatalf("recipient = %q", job.Recipient)
	}
}

func TestIngestDuplicateEventRunsHandlerOnce(t *testing.T) {
	f := setupWebhookTest(t)
	ctx := context.Background()

	payload := `{"id":"evt_dup","type":"customer.subscription.updated","data":{"object":{"id":"sub_001","customer":"cus_001","status":"active"}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Flip local state so a re-run would be visible.
	if _, err := f.tenants.SetStatus(ctx, f.tenantID, tenantdomain.StatusPastDue); err != nil {
		t.Fatalf("set status: %v", err)
	}

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	record, err := f.tenants.Get(ctx, f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Status != tenantdomain.StatusPastDue {
		t.Fatalf("redelivery re-ran the handler, status = %q", record.Status)
	}

	var count int64
	if err := f.db.Model(&webhookdomain.EventRecord{}).
		Where("provider_event_id = ?", "evt_dup").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("event records = %d", count)
	}
}

func TestIngestInvoiceFailedSchedulesDunning(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_inv1","type":"invoice.payment_failed","data":{"object":{"id":"in_001","customer":"cus_001","amount_due":4900}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(context.Background(), f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Status != tenantdomain.StatusPastDue {
		t.Fatalf("status = %q", record.Status)
	}

	var jobs []events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindDunningReminder).Order("run_at ASC").Find(&jobs).Error; err != nil {
		t.Fatalf("find jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("dunning jobs = %d, want 3", len(jobs))
	}
	for i, day := range []int{1, 3, 7} {
		want := f.now.Add(time.Duration(day) * 24 * time.Hour)
		if !jobs[i].RunAt.Equal(want) {
			t.Fatalf("job %d run_at = %v, want %v", i, jobs[i].RunAt, want)
		}
		if jobs[i].Recipient != "owner@demo.example" {
			t.Fatalf("job %d recipient = %q", i, jobs[i].Recipient)
		}
	}

	// A redelivered failure does not double the reminders.
	payload2 := `{"id":"evt_inv2","type":"invoice.payment_failed","data":{"object":{"id":"in_001","customer":"cus_001","amount_due":4900}}}`
	if err := f.ingest(t, payload2); err != nil {
		t.Fatalf("second failure event: %v", err)
	}
	var count int64
	if err := f.db.Model(&events.NotificationJob{}).
		Where("kind = ?", events.KindDunningReminder).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("dunning jobs after redelivery = %d", count)
	}
}

func TestIngestInvoicePaidCompletesSetupFee(t *testing.T) {
	f := setupWebhookTest(t)
	ctx := context.Background()

	tx := &billingdomain.Transaction{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		ProcessorID: "in_setup",
		Type:        billingdomain.TypeSetupFee,
		Status:      billingdomain.TxPending,
		AmountCents: billingdomain.SetupFeeCents,
	}
	if err := f.db.Create(tx).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	payload := `{"id":"evt_setup","type":"invoice.payment_succeeded","data":{"object":{"id":"in_setup","customer":"cus_001","amount_paid":250000}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var reloaded billingdomain.Transaction
	if err := f.db.First(&reloaded, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("reload tx: %v", err)
	}
	if reloaded.Status != billingdomain.TxCompleted {
		t.Fatalf("tx status = %q", reloaded.Status)
	}

	record, err := f.tenants.Get(ctx, f.tenantID)
	if err != nil {
		t.Fatalf("reload tenant: %v", err)
	}
	if !record.SetupCompleted || record.OnboardingStep != tenantdomain.OnboardingCompleted {
		t.Fatalf("setup not marked: %+v", record)
	}
}

func TestIngestPaymentSucceededConfirmsDepositAppointment(t *testing.T) {
	f := setupWebhookTest(t)
	ctx := context.Background()

	contact, err := f.clients.CaptureLead(ctx, f.tenantID, clientdomain.CaptureLeadRequest{
		Name: "Dana", Phone: "5551234567", Source: clientdomain.SourceManual,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	appt, err := f.appts.Create(ctx, f.tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID:        contact.ID,
		Service:         "Inspection",
		StartsAt:        f.now.Add(48 * time.Hour),
		DepositRequired: true,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	tx := &billingdomain.Transaction{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		ClientID:      &contact.ID,
		AppointmentID: &appt.ID,
		ProcessorID:   "pi_dep",
		Type:          billingdomain.TypePayment,
		Status:        billingdomain.TxPending,
		AmountCents:   5000,
		Description:   "Appointment deposit",
	}
	if err := f.db.Create(tx).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	payload := `{"id":"evt_pi1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_dep","amount":5000,"metadata":{"deposit":"true"}}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	updated, err := f.appts.Get(ctx, f.tenantID, appt.ID)
	if err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if !updated.DepositPaid {
		t.Fatal("deposit not marked paid")
	}
	if updated.Status != appointmentdomain.AppointmentConfirmed {
		t.Fatalf("status = %q", updated.Status)
	}

	var job events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindPaymentReceipt).First(&job).Error; err != nil {
		t.Fatalf("receipt job missing: %v", err)
	}
	if job.Recipient != "+15551234567" {
		t.Fatalf("receipt recipient = %q", job.Recipient)
	}
}

func TestIngestPaymentFailedRecordsFailure(t *testing.T) {
	f := setupWebhookTest(t)

	tx := &billingdomain.Transaction{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		ProcessorID: "pi_fail",
		Type:        billingdomain.TypePayment,
		Status:      billingdomain.TxPending,
		AmountCents: 5000,
	}
	if err := f.db.Create(tx).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	payload := `{"id":"evt_pifail","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_fail","amount":5000,"last_payment_error":{"message":"Your card was declined."}}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var reloaded billingdomain.Transaction
	if err := f.db.First(&reloaded, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != billingdomain.TxFailed {
		t.Fatalf("status = %q", reloaded.Status)
	}
	if reloaded.FailureMessage != "Your card was declined." {
		t.Fatalf("failure message = %q", reloaded.FailureMessage)
	}

	// Without a client on the charge only the owner hears about it.
	var jobs []events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindPaymentFailed).Find(&jobs).Error; err != nil {
		t.Fatalf("find jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("payment failed jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Recipient != "owner@demo.example" || jobs[0].Channel != "email" {
		t.Fatalf("job = %+v", jobs[0])
	}
}

func TestIngestPaymentFailedNotifiesOwnerAndClient(t *testing.T) {
	f := setupWebhookTest(t)
	ctx := context.Background()

	contact, err := f.clients.CaptureLead(ctx, f.tenantID, clientdomain.CaptureLeadRequest{
		Name: "Dana", Phone: "5551234567", Source: clientdomain.SourceManual,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	tx := &billingdomain.Transaction{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		ClientID:    &contact.ID,
		ProcessorID: "pi_fail2",
		Type:        billingdomain.TypePayment,
		Status:      billingdomain.TxPending,
		AmountCents: 12500,
	}
	if err := f.db.Create(tx).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	payload := `{"id":"evt_pifail2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_fail2","amount":12500,"last_payment_error":{"message":"Insufficient funds."}}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var jobs []events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindPaymentFailed).Order("channel ASC").Find(&jobs).Error; err != nil {
		t.Fatalf("find jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("payment failed jobs = %d, want 2", len(jobs))
	}
	if jobs[0].Channel != "email" || jobs[0].Recipient != "owner@demo.example" {
		t.Fatalf("owner job = %+v", jobs[0])
	}
	if jobs[1].Channel != "sms" || jobs[1].Recipient != "+15551234567" {
		t.Fatalf("client job = %+v", jobs[1])
	}
}

func TestIngestAccountUpdatedSyncsConnectFlags(t *testing.T) {
	f := setupWebhookTest(t)
	ctx := context.Background()

	accountID := "acct_001"
	if _, err := f.tenants.Update(ctx, f.tenantID, tenantdomain.UpdateTenantRequest{
		StripeAccountID: &accountID,
	}); err != nil {
		t.Fatalf("store account: %v", err)
	}

	payload := `{"id":"evt_acct","type":"account.updated","data":{"object":{"id":"acct_001","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	record, err := f.tenants.Get(ctx, f.tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !record.ChargesEnabled || !record.PayoutsEnabled || !record.DetailsSubmitted {
		t.Fatalf("connect flags = %+v", record)
	}
	if record.PaymentProcessingStatus() != "enabled" {
		t.Fatalf("processing status = %q", record.PaymentProcessingStatus())
	}

	var job events.NotificationJob
	if err := f.db.Where("kind = ?", events.KindConnectEnabled).First(&job).Error; err != nil {
		t.Fatalf("connect enabled job missing: %v", err)
	}
	if job.Recipient != "owner@demo.example" {
		t.Fatalf("recipient = %q", job.Recipient)
	}
}

func TestIngestUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := setupWebhookTest(t)

	payload := `{"id":"evt_other","type":"charge.updated","data":{"object":{}}}`
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var record webhookdomain.EventRecord
	if err := f.db.First(&record, "provider_event_id = ?", "evt_other").Error; err != nil {
		t.Fatalf("event not recorded: %v", err)
	}
	if record.ProcessedAt == nil || record.ProcessError != "" {
		t.Fatalf("record = %+v", record)
	}
}
