// Package service routes verified webhook events to the owning domain
// services. Every delivery is recorded before dispatch so redeliveries and
// concurrent duplicates are acknowledged without side effects.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	webhookdomain "github.com/raylanfranco/whitelabel-admin/internal/webhook/domain"
	stripewebhook "github.com/raylanfranco/whitelabel-admin/internal/webhook/stripe"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

// Days past due at which dunning reminders go out.
var dunningSchedule = []int{1, 3, 7}

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Cfg            config.Config
	TenantSvc      tenantdomain.Service
	ClientSvc      clientdomain.Service
	AppointmentSvc appointmentdomain.Service
	Outbox         *events.Outbox
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	tenantsvc      tenantdomain.Service
	clientsvc      clientdomain.Service
	appointmentsvc appointmentdomain.Service
	outbox         *events.Outbox

	eventRepo repository.Repository[webhookdomain.EventRecord]
	txRepo    repository.Repository[billingdomain.Transaction]
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("webhook.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,

		tenantsvc:      p.TenantSvc,
		clientsvc:      p.ClientSvc,
		appointmentsvc: p.AppointmentSvc,
		outbox:         p.Outbox,

		eventRepo: repository.ProvideStore[webhookdomain.EventRecord](p.DB),
		txRepo:    repository.ProvideStore[billingdomain.Transaction](p.DB),
	}
}

// IngestStripe verifies, records, and dispatches one Stripe delivery. A
// replayed event id is acknowledged without re-running its handler.
func (s *Service) IngestStripe(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := stripewebhook.VerifySignature(s.cfg.Stripe.WebhookSecret, payload, signatureHeader, s.clock.Now()); err != nil {
		s.log.Warn("stripe signature rejected", zap.Error(err))
		return err
	}

	event, err := stripewebhook.ParseEvent(payload)
	if err != nil {
		return err
	}

	record := &webhookdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        webhookdomain.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         payload,
		ReceivedAt:      s.clock.Now(),
	}
	insert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if insert.Error != nil {
		return insert.Error
	}
	if insert.RowsAffected == 0 {
		s.log.Info("duplicate stripe event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return nil
	}

	handleErr := s.dispatchStripe(ctx, event)

	now := s.clock.Now()
	record.ProcessedAt = &now
	if handleErr != nil {
		record.ProcessError = handleErr.Error()
	}
	if err := s.eventRepo.Save(ctx, record); err != nil {
		return err
	}
	return handleErr
}

func (s *Service) dispatchStripe(ctx context.Context, event stripewebhook.Event) error {
	switch event.Type {
	case "customer.subscription.created":
		return s.handleSubscriptionChange(ctx, event.Object, true)
	case "customer.subscription.updated":
		return s.handleSubscriptionChange(ctx, event.Object, false)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event.Object)
	case "customer.subscription.trial_will_end":
		return s.handleTrialWillEnd(ctx, event.Object)
	case "invoice.payment_succeeded":
		return s.handleInvoicePaid(ctx, event.Object)
	case "invoice.payment_failed":
		return s.handleInvoiceFailed(ctx, event.Object)
	case "payment_intent.succeeded":
		return s.handlePaymentSucceeded(ctx, event.Object)
	case "payment_intent.payment_failed":
		return s.handlePaymentFailed(ctx, event.Object)
	case "account.updated":
		return s.handleAccountUpdated(ctx, event.Object)
	default:
		s.log.Debug("stripe event ignored", zap.String("event_type", event.Type))
		return nil
	}
}

func subscriptionStatus(stripeStatus string) (string, bool) {
	switch stripeStatus {
	case "trialing":
		return tenantdomain.StatusTrialing, true
	case "active":
		return tenantdomain.StatusActive, true
	case "past_due":
		return tenantdomain.StatusPastDue, true
	case "canceled":
		return tenantdomain.StatusCanceled, true
	case "unpaid":
		return tenantdomain.StatusUnpaid, true
	case "incomplete", "incomplete_expired":
		return tenantdomain.StatusIncomplete, true
	default:
		return "", false
	}
}

func (s *Service) handleSubscriptionChange(ctx context.Context, object json.RawMessage, created bool) error {
	var sub stripewebhook.SubscriptionObject
	if err := json.Unmarshal(object, &sub); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	record, err := s.tenantsvc.GetByStripeCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}

	status, known := subscriptionStatus(sub.Status)
	if !known {
		s.log.Warn("unmapped subscription status",
			zap.String("tenant_id", record.ID.String()),
			zap.String("status", sub.Status),
		)
		return nil
	}
	prevStatus := record.Status
	if _, err := s.tenantsvc.SetStatus(ctx, record.ID, status); err != nil {
		return err
	}

	// The subscription metadata is the source of truth for the tier. Picking
	// it up here also repairs a tier change that updated the price at the
	// processor but failed to commit locally.
	if tier := sub.Metadata["tier"]; tier != "" && tier != record.Tier {
		if !tenantdomain.ValidTier(tier) {
			s.log.Warn("unmapped subscription tier",
				zap.String("tenant_id", record.ID.String()),
				zap.String("tier", tier),
			)
		} else if _, err := s.tenantsvc.SetTier(ctx, record.ID, tier); err != nil {
			return err
		}
	}

	if record.Email == "" {
		return nil
	}
	if created && (status == tenantdomain.StatusTrialing || status == tenantdomain.StatusActive) {
		return s.outbox.Enqueue(ctx, events.Job{
			TenantID:    record.ID,
			Kind:        events.KindWelcomeEmail,
			Channel:     messagingdomain.ChannelEmail,
			Recipient:   record.Email,
			TemplateKey: messagingdomain.TemplateWelcome,
			Variables:   map[string]any{"businessName": record.Name},
			DedupeKey:   fmt.Sprintf("welcome:%s", sub.ID),
			RunAt:       s.clock.Now(),
		})
	}
	if !created && status != prevStatus {
		return s.outbox.Enqueue(ctx, events.Job{
			TenantID:    record.ID,
			Kind:        events.KindSubscriptionNotice,
			Channel:     messagingdomain.ChannelEmail,
			Recipient:   record.Email,
			TemplateKey: messagingdomain.TemplateSubscriptionNotice,
			Variables: map[string]any{
				"businessName": record.Name,
				"status":       status,
			},
			DedupeKey: fmt.Sprintf("subscription_status:%s:%s", sub.ID, status),
			RunAt:     s.clock.Now(),
		})
	}
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, object json.RawMessage) error {
	var sub stripewebhook.SubscriptionObject
	if err := json.Unmarshal(object, &sub); err != nil {
		return webhookdomain.ErrMalformedEvent
	}
	record, err := s.tenantsvc.GetByStripeCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}
	if _, err := s.tenantsvc.SetStatus(ctx, record.ID, tenantdomain.StatusCanceled); err != nil {
		return err
	}
	if record.Email == "" {
		return nil
	}
	return s.outbox.Enqueue(ctx, events.Job{
		TenantID:    record.ID,
		Kind:        events.KindSubscriptionCanceled,
		Channel:     messagingdomain.ChannelEmail,
		Recipient:   record.Email,
		TemplateKey: messagingdomain.TemplateSubscriptionCanceled,
		Variables:   map[string]any{"businessName": record.Name},
		DedupeKey:   fmt.Sprintf("subscription_canceled:%s", sub.ID),
		RunAt:       s.clock.Now(),
	})
}

func (s *Service) handleTrialWillEnd(ctx context.Context, object json.RawMessage) error {
	var sub stripewebhook.SubscriptionObject
	if err := json.Unmarshal(object, &sub); err != nil {
		return webhookdomain.ErrMalformedEvent
	}
	record, err := s.tenantsvc.GetByStripeCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}
	if record.Email == "" {
		return nil
	}

	trialEndsAt := "soon"
	if sub.TrialEnd > 0 {
		trialEndsAt = time.Unix(sub.TrialEnd, 0).UTC().Format("January 2, 2006")
	}
	return s.outbox.Enqueue(ctx, events.Job{
		TenantID:    record.ID,
		Kind:        events.KindTrialEnding,
		Channel:     messagingdomain.ChannelEmail,
		Recipient:   record.Email,
		TemplateKey: messagingdomain.TemplateTrialEnding,
		Variables: map[string]any{
			"businessName": record.Name,
			"trialEndsAt":  trialEndsAt,
		},
		DedupeKey: fmt.Sprintf("trial_ending:%s", sub.ID),
		RunAt:     s.clock.Now(),
	})
}

func (s *Service) handleInvoicePaid(ctx context.Context, object json.RawMessage) error {
	var invoice stripewebhook.InvoiceObject
	if err := json.Unmarshal(object, &invoice); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	record, err := s.tenantsvc.GetByStripeCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}

	tx, err := s.txRepo.FindOne(ctx, map[string]any{"processor_id": invoice.ID})
	if err != nil {
		return err
	}
	if tx != nil && tx.Status == billingdomain.TxPending {
		tx.Status = billingdomain.TxCompleted
		tx.UpdatedAt = s.clock.Now()
		if err := s.txRepo.Save(ctx, tx); err != nil {
			return err
		}
	}

	isSetupFee := invoice.Metadata["type"] == billingdomain.TypeSetupFee ||
		(tx != nil && tx.Type == billingdomain.TypeSetupFee)
	if isSetupFee {
		if err := s.tenantsvc.MarkSetupCompleted(ctx, record.ID); err != nil {
			return err
		}
		s.log.Info("setup fee collected", zap.String("tenant_id", record.ID.String()))
		return nil
	}

	// A paid subscription invoice clears past_due state.
	if record.Status == tenantdomain.StatusPastDue || record.Status == tenantdomain.StatusUnpaid {
		if _, err := s.tenantsvc.SetStatus(ctx, record.ID, tenantdomain.StatusActive); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, object json.RawMessage) error {
	var invoice stripewebhook.InvoiceObject
	if err := json.Unmarshal(object, &invoice); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	record, err := s.tenantsvc.GetByStripeCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}
	if _, err := s.tenantsvc.SetStatus(ctx, record.ID, tenantdomain.StatusPastDue); err != nil {
		return err
	}

	if record.Email == "" {
		s.log.Warn("tenant has no email for dunning",
			zap.String("tenant_id", record.ID.String()),
		)
		return nil
	}

	now := s.clock.Now()
	for attempt, day := range dunningSchedule {
		job := events.Job{
			TenantID:    record.ID,
			Kind:        events.KindDunningReminder,
			Channel:     messagingdomain.ChannelEmail,
			Recipient:   record.Email,
			TemplateKey: messagingdomain.TemplateDunningReminder,
			Variables: map[string]any{
				"businessName": record.Name,
				"attempt":      fmt.Sprintf("reminder %d of %d", attempt+1, len(dunningSchedule)),
			},
			DedupeKey: fmt.Sprintf("dunning:%s:day%d", invoice.ID, day),
			RunAt:     now.Add(time.Duration(day) * 24 * time.Hour),
		}
		if err := s.outbox.Enqueue(ctx, job); err != nil {
			return err
		}
	}

	s.log.Info("dunning reminders scheduled",
		zap.String("tenant_id", record.ID.String()),
		zap.String("invoice_id", invoice.ID),
	)
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, object json.RawMessage) error {
	var intent stripewebhook.PaymentIntentObject
	if err := json.Unmarshal(object, &intent); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	tx, err := s.txRepo.FindOne(ctx, map[string]any{"processor_id": intent.ID})
	if err != nil {
		return err
	}
	if tx == nil {
		s.log.Warn("payment intent has no transaction", zap.String("payment_intent_id", intent.ID))
		return nil
	}
	if tx.Status == billingdomain.TxPending {
		tx.Status = billingdomain.TxCompleted
		tx.UpdatedAt = s.clock.Now()
		if err := s.txRepo.Save(ctx, tx); err != nil {
			return err
		}
	}

	if intent.Metadata["deposit"] == "true" && tx.AppointmentID != nil {
		if err := s.appointmentsvc.MarkDepositPaid(ctx, tx.TenantID, *tx.AppointmentID); err != nil {
			return err
		}
		if _, err := s.appointmentsvc.Confirm(ctx, tx.TenantID, *tx.AppointmentID); err != nil &&
			err != appointmentdomain.ErrAppointmentNotPending {
			return err
		}
	}

	return s.enqueueReceipt(ctx, tx)
}

func (s *Service) enqueueReceipt(ctx context.Context, tx *billingdomain.Transaction) error {
	if tx.ClientID == nil {
		return nil
	}
	client, err := s.clientsvc.Get(ctx, tx.TenantID, *tx.ClientID)
	if err != nil || client == nil || client.Phone == "" {
		return err
	}

	record, err := s.tenantsvc.Get(ctx, tx.TenantID)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, events.Job{
		TenantID:    tx.TenantID,
		Kind:        events.KindPaymentReceipt,
		Channel:     messagingdomain.ChannelSMS,
		Recipient:   client.Phone,
		TemplateKey: messagingdomain.TemplatePaymentReceipt,
		Variables: map[string]any{
			"clientName":         client.Name,
			"amount":             dollars(tx.AmountCents),
			"serviceDescription": tx.Description,
			"receiptNumber":      tx.ID.String(),
			"businessName":       record.Name,
		},
		DedupeKey: fmt.Sprintf("receipt:%s", tx.ProcessorID),
		RunAt:     s.clock.Now(),
	})
}

func (s *Service) handlePaymentFailed(ctx context.Context, object json.RawMessage) error {
	var intent stripewebhook.PaymentIntentObject
	if err := json.Unmarshal(object, &intent); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	tx, err := s.txRepo.FindOne(ctx, map[string]any{"processor_id": intent.ID})
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}
	if tx.Status != billingdomain.TxPending {
		return nil
	}

	tx.Status = billingdomain.TxFailed
	tx.FailureMessage = strings.TrimSpace(intent.LastPaymentError.Message)
	tx.UpdatedAt = s.clock.Now()
	if err := s.txRepo.Save(ctx, tx); err != nil {
		return err
	}

	s.log.Warn("payment failed",
		zap.String("tenant_id", tx.TenantID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.String("failure_message", tx.FailureMessage),
	)
	return s.enqueuePaymentFailed(ctx, tx)
}

// enqueuePaymentFailed notifies both sides of a failed charge: the business
// owner by email and the client by text.
func (s *Service) enqueuePaymentFailed(ctx context.Context, tx *billingdomain.Transaction) error {
	record, err := s.tenantsvc.Get(ctx, tx.TenantID)
	if err != nil {
		return err
	}

	clientName := "a client"
	clientPhone := ""
	if tx.ClientID != nil {
		client, err := s.clientsvc.Get(ctx, tx.TenantID, *tx.ClientID)
		if err != nil {
			return err
		}
		if client != nil {
			clientName = client.Name
			clientPhone = client.Phone
		}
	}

	amount := dollars(tx.AmountCents)
	if record.Email != "" {
		if err := s.outbox.Enqueue(ctx, events.Job{
			TenantID:    tx.TenantID,
			Kind:        events.KindPaymentFailed,
			Channel:     messagingdomain.ChannelEmail,
			Recipient:   record.Email,
			TemplateKey: messagingdomain.TemplatePaymentFailedOwner,
			Variables: map[string]any{
				"businessName":   record.Name,
				"clientName":     clientName,
				"amount":         amount,
				"failureMessage": tx.FailureMessage,
			},
			DedupeKey: fmt.Sprintf("payment_failed:%s:owner", tx.ProcessorID),
			RunAt:     s.clock.Now(),
		}); err != nil {
			return err
		}
	}
	if clientPhone == "" {
		return nil
	}
	return s.outbox.Enqueue(ctx, events.Job{
		TenantID:    tx.TenantID,
		Kind:        events.KindPaymentFailed,
		Channel:     messagingdomain.ChannelSMS,
		Recipient:   clientPhone,
		TemplateKey: messagingdomain.TemplatePaymentFailedClient,
		Variables: map[string]any{
			"clientName":   clientName,
			"businessName": record.Name,
			"amount":       amount,
		},
		DedupeKey: fmt.Sprintf("payment_failed:%s:client", tx.ProcessorID),
		RunAt:     s.clock.Now(),
	})
}

func (s *Service) handleAccountUpdated(ctx context.Context, object json.RawMessage) error {
	var account stripewebhook.AccountObject
	if err := json.Unmarshal(object, &account); err != nil {
		return webhookdomain.ErrMalformedEvent
	}

	record, err := s.tenantsvc.GetByStripeAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	updated, err := s.tenantsvc.UpdateConnectStatus(ctx, record.ID, tenantdomain.ConnectStatus{
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	})
	if err != nil {
		return err
	}

	if updated.ChargesEnabled && updated.PayoutsEnabled {
		s.log.Info("connect account fully enabled",
			zap.String("tenant_id", record.ID.String()),
			zap.String("account_id", account.ID),
		)
		if record.Email != "" {
			return s.outbox.Enqueue(ctx, events.Job{
				TenantID:    record.ID,
				Kind:        events.KindConnectEnabled,
				Channel:     messagingdomain.ChannelEmail,
				Recipient:   record.Email,
				TemplateKey: messagingdomain.TemplateConnectEnabled,
				Variables:   map[string]any{"businessName": record.Name},
				DedupeKey:   fmt.Sprintf("connect_enabled:%s", account.ID),
				RunAt:       s.clock.Now(),
			})
		}
	}
	return nil
}

func dollars(cents int64) string {
	return "$" + strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
