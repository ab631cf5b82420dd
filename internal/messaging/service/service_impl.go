package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/cache"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/logger"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/option"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/pagination"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

// Twilio US pricing per segment, in cents.
var smsSegmentCostCents = decimal.NewFromFloat(0.75)

const templateCacheTTL = 60 // seconds, see resolveTemplate

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
	UsageSvc       usagedomain.Service
	SMSClient      messagingdomain.SMSClient
	EmailClient    messagingdomain.EmailClient
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
	usagesvc       usagedomain.Service
	sms            messagingdomain.SMSClient
	email          messagingdomain.EmailClient

	repo          repository.Repository[messagingdomain.MessageLog]
	templateCache *cache.TTLCache[string, string]
}

func NewService(p ServiceParam) messagingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("messaging.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,

		tenantsvc:      p.TenantSvc,
		clientsvc:      p.ClientSvc,
		appointmentsvc: p.AppointmentSvc,
		usagesvc:       p.UsageSvc,
		sms:            p.SMSClient,
		email:          p.EmailClient,

		repo:          repository.ProvideStore[messagingdomain.MessageLog](p.DB),
		templateCache: cache.NewTTLCache[string, string](),
	}
}

func (s *Service) SendSMS(ctx context.Context, tenantID snowflake.ID, req messagingdomain.SendSMSRequest) (*messagingdomain.MessageLog, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !record.CanSendMessages() {
		return nil, tenantdomain.ErrMessagingSuspended
	}

	to, err := clientdomain.NormalizePhone(req.To)
	if err != nil {
		return nil, messagingdomain.ErrInvalidRecipient
	}

	body := strings.TrimSpace(req.Body)
	if key := strings.TrimSpace(req.TemplateKey); key != "" {
		body = messagingdomain.RenderTemplate(s.resolveTemplate(ctx, record, key), req.Variables)
	}
	if body == "" {
		return nil, messagingdomain.ErrEmptyMessage
	}

	entry := &messagingdomain.MessageLog{
		ID:                  s.genID.Generate(),
		TenantID:            tenantID,
		ClientID:            req.ClientID,
		AppointmentID:       req.AppointmentID,
		WaitlistEntryID:     req.WaitlistEntryID,
		Channel:             messagingdomain.ChannelSMS,
		Direction:           messagingdomain.DirectionOutbound,
		ToAddress:           to,
		FromAddress:         s.cfg.Twilio.FromNumber,
		Body:                body,
		TemplateKey:         strings.TrimSpace(req.TemplateKey),
		Status:              messagingdomain.MessageStatusQueued,
		AutomationTriggered: req.AutomationRule != "",
		AutomationRule:      req.AutomationRule,
	}

	// Quota is consumed before the provider sees the message. A tenant at
	// its ceiling never produces a provider call.
	if err := s.usagesvc.Reserve(ctx, tenantID, usagedomain.ChannelSMS); err != nil {
		if errors.Is(err, usagedomain.ErrLimitExceeded) {
			entry.Status = messagingdomain.MessageStatusFailed
			entry.ErrorMessage = err.Error()
			if logErr := s.repo.Create(ctx, entry); logErr != nil {
				s.log.Error("message log write failed", zap.Error(logErr))
			}
		}
		return nil, err
	}

	result, sendErr := s.sms.Send(ctx, to, s.cfg.Twilio.FromNumber, body)
	if sendErr != nil {
		if releaseErr := s.usagesvc.Release(ctx, tenantID, usagedomain.ChannelSMS); releaseErr != nil {
			s.log.Error("usage release failed", zap.Error(releaseErr))
		}
		entry.Status = messagingdomain.MessageStatusFailed
		entry.ErrorMessage = sendErr.Error()
		if logErr := s.repo.Create(ctx, entry); logErr != nil {
			s.log.Error("message log write failed", zap.Error(logErr))
		}
		return nil, sendErr
	}

	cost := smsSegmentCostCents.Mul(decimal.NewFromInt(int64(result.Segments))).Round(0).IntPart()
	if err := s.usagesvc.Track(ctx, tenantID, usagedomain.ChannelSMS, cost); err != nil {
		s.log.Warn("usage cost tracking failed", zap.Error(err))
	}

	entry.ProviderMessageID = result.MessageID
	entry.Status = messagingdomain.MessageStatusSent
	entry.Segments = result.Segments
	entry.CostCents = cost
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error("message log write failed", zap.Error(err))
	}

	s.log.Info("sms sent",
		zap.String("tenant_id", tenantID.String()),
		zap.String("to", logger.MaskPhone(to)),
		zap.Int("segments", result.Segments),
		zap.String("rule", req.AutomationRule),
	)
	return entry, nil
}

func (s *Service) SendEmail(ctx context.Context, tenantID snowflake.ID, req messagingdomain.SendEmailRequest) (*messagingdomain.MessageLog, error) {
	record, err := s.tenantsvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !record.CanSendMessages() {
		return nil, tenantdomain.ErrMessagingSuspended
	}

	to := strings.TrimSpace(req.To)
	if to == "" || !strings.Contains(to, "@") {
		return nil, messagingdomain.ErrInvalidRecipient
	}

	body := strings.TrimSpace(req.Body)
	if key := strings.TrimSpace(req.TemplateKey); key != "" {
		body = messagingdomain.RenderTemplate(s.resolveTemplate(ctx, record, key), req.Variables)
	}
	if body == "" {
		return nil, messagingdomain.ErrEmptyMessage
	}

	entry := &messagingdomain.MessageLog{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		ClientID:    req.ClientID,
		Channel:     messagingdomain.ChannelEmail,
		Direction:   messagingdomain.DirectionOutbound,
		ToAddress:   to,
		FromAddress: s.cfg.Email.FromAddress,
		Subject:     strings.TrimSpace(req.Subject),
		Body:        body,
		TemplateKey: strings.TrimSpace(req.TemplateKey),
		Status:      messagingdomain.MessageStatusQueued,
	}

	if err := s.usagesvc.Reserve(ctx, tenantID, usagedomain.ChannelEmail); err != nil {
		if errors.Is(err, usagedomain.ErrLimitExceeded) {
			entry.Status = messagingdomain.MessageStatusFailed
			entry.ErrorMessage = err.Error()
			if logErr := s.repo.Create(ctx, entry); logErr != nil {
				s.log.Error("message log write failed", zap.Error(logErr))
			}
		}
		return nil, err
	}

	messageID, sendErr := s.email.Send(ctx, to, entry.Subject, body)
	if sendErr != nil {
		if releaseErr := s.usagesvc.Release(ctx, tenantID, usagedomain.ChannelEmail); releaseErr != nil {
			s.log.Error("usage release failed", zap.Error(releaseErr))
		}
		entry.Status = messagingdomain.MessageStatusFailed
		entry.ErrorMessage = sendErr.Error()
		if logErr := s.repo.Create(ctx, entry); logErr != nil {
			s.log.Error("message log write failed", zap.Error(logErr))
		}
		return nil, sendErr
	}

	entry.ProviderMessageID = messageID
	entry.Status = messagingdomain.MessageStatusSent
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error("message log write failed", zap.Error(err))
	}
	return entry, nil
}

func (s *Service) HandleInboundSMS(ctx context.Context, tenantID snowflake.ID, req messagingdomain.InboundSMSRequest) (*messagingdomain.MessageLog, error) {
	contact, err := s.clientsvc.CaptureLead(ctx, tenantID, clientdomain.CaptureLeadRequest{
		Phone:  req.From,
		Source: clientdomain.SourceInbound,
	})
	if err != nil {
		return nil, err
	}

	inbound := &messagingdomain.MessageLog{
		ID:                s.genID.Generate(),
		TenantID:          tenantID,
		ClientID:          &contact.ID,
		Channel:           messagingdomain.ChannelSMS,
		Direction:         messagingdomain.DirectionInbound,
		ProviderMessageID: strings.TrimSpace(req.ProviderMessageID),
		ToAddress:         strings.TrimSpace(req.To),
		FromAddress:       contact.Phone,
		Body:              req.Body,
		Status:            messagingdomain.MessageStatusReceived,
	}
	if err := s.repo.Create(ctx, inbound); err != nil {
		return nil, err
	}

	reply, rule, refs := s.automate(ctx, tenantID, contact, messagingdomain.ClassifyIntent(req.Body))
	if reply == "" {
		return nil, nil
	}

	return s.SendSMS(ctx, tenantID, messagingdomain.SendSMSRequest{
		To:              contact.Phone,
		Body:            reply,
		ClientID:        &contact.ID,
		AppointmentID:   refs.appointmentID,
		WaitlistEntryID: refs.waitlistEntryID,
		AutomationRule:  rule,
	})
}

type automationRefs struct {
	appointmentID   *snowflake.ID
	waitlistEntryID *snowflake.ID
}

// automate performs the side effect for a classified inbound reply and
// returns the response body plus the rule name. Unknown stays silent.
func (s *Service) automate(ctx context.Context, tenantID snowflake.ID, contact *clientdomain.Client, intent messagingdomain.Intent) (string, string, automationRefs) {
	switch typed := intent.(type) {
	case messagingdomain.ConfirmIntent:
		return s.automateConfirmation(ctx, tenantID, contact, true)
	case messagingdomain.CancelIntent:
		return s.automateConfirmation(ctx, tenantID, contact, false)
	case messagingdomain.WaitlistAcceptIntent:
		return s.automateWaitlist(ctx, tenantID, contact, true)
	case messagingdomain.WaitlistDeclineIntent:
		return s.automateWaitlist(ctx, tenantID, contact, false)
	case messagingdomain.FAQIntent:
		return messagingdomain.FAQAnswer(typed.Topic), "auto_response_" + string(typed.Topic), automationRefs{}
	default:
		return "", "", automationRefs{}
	}
}

func (s *Service) automateConfirmation(ctx context.Context, tenantID snowflake.ID, contact *clientdomain.Client, confirmed bool) (string, string, automationRefs) {
	pending, err := s.appointmentsvc.FindPendingForClient(ctx, tenantID, contact.ID)
	if err != nil {
		s.log.Error("pending appointment lookup failed", zap.Error(err))
		return "", "", automationRefs{}
	}
	if pending == nil {
		return "We don't see any pending appointments to confirm. Please call if you need assistance!",
			"no_pending_appointment", automationRefs{}
	}

	if confirmed {
		updated, err := s.appointmentsvc.Confirm(ctx, tenantID, pending.ID)
		if err != nil {
			s.log.Error("appointment confirmation failed", zap.Error(err))
			return "", "", automationRefs{}
		}
		return fmt.Sprintf("Perfect! Your appointment on %s is confirmed. See you then!", formatSlot(updated.StartsAt)),
			"appointment_confirmed", automationRefs{appointmentID: &updated.ID}
	}

	updated, err := s.appointmentsvc.Cancel(ctx, tenantID, pending.ID, appointmentdomain.CancelledByClient, "Client cancelled via SMS")
	if err != nil {
		s.log.Error("appointment cancellation failed", zap.Error(err))
		return "", "", automationRefs{}
	}
	return "Your appointment has been cancelled. Thanks for letting us know! We'll be in touch soon.",
		"appointment_cancelled", automationRefs{appointmentID: &updated.ID}
}

func (s *Service) automateWaitlist(ctx context.Context, tenantID snowflake.ID, contact *clientdomain.Client, accepted bool) (string, string, automationRefs) {
	entry, err := s.appointmentsvc.FindNotifiedEntry(ctx, tenantID, contact.ID)
	if err != nil {
		s.log.Error("waitlist entry lookup failed", zap.Error(err))
		return "", "", automationRefs{}
	}
	if entry == nil {
		return "We don't see any waitlist notifications for you. Please call if you'd like to join our waitlist!",
			"no_waitlist_entry", automationRefs{}
	}

	if accepted {
		appointment, err := s.appointmentsvc.BookFromWaitlist(ctx, tenantID, entry.ID, s.clock.Now().Add(24*time.Hour))
		if err != nil {
			s.log.Error("waitlist booking failed", zap.Error(err))
			return "", "", automationRefs{}
		}
		return fmt.Sprintf("Fantastic! We've booked your appointment for %s. Confirmation details coming soon!", formatSlot(appointment.StartsAt)),
			"waitlist_accepted", automationRefs{appointmentID: &appointment.ID, waitlistEntryID: &entry.ID}
	}

	if _, err := s.appointmentsvc.DeclineWaitlist(ctx, tenantID, entry.ID); err != nil {
		s.log.Error("waitlist decline failed", zap.Error(err))
		return "", "", automationRefs{}
	}
	return "No problem! We'll keep you on the waitlist and reach out with the next available slot.",
		"waitlist_declined", automationRefs{waitlistEntryID: &entry.ID}
}

func (s *Service) UpdateDeliveryStatus(ctx context.Context, tenantID snowflake.ID, update messagingdomain.DeliveryStatusUpdate) error {
	providerID := strings.TrimSpace(update.ProviderMessageID)
	if providerID == "" {
		return messagingdomain.ErrMessageNotFound
	}

	entry, err := s.repo.FindOne(ctx, "tenant_id = ? AND provider_message_id = ?", tenantID, providerID)
	if err != nil {
		return err
	}
	if entry == nil {
		return messagingdomain.ErrMessageNotFound
	}

	now := s.clock.Now()
	switch strings.ToLower(strings.TrimSpace(update.Status)) {
	case "delivered":
		entry.Status = messagingdomain.MessageStatusDelivered
		entry.DeliveredAt = &now
	case "failed", "undelivered":
		entry.Status = messagingdomain.MessageStatusFailed
		entry.ErrorMessage = strings.TrimSpace(update.ErrorMessage)
	default:
		// Intermediate states (queued, sending) keep the current status.
		return nil
	}
	entry.UpdatedAt = now
	return s.repo.Save(ctx, entry)
}

func (s *Service) ApplyEmailEvents(ctx context.Context, tenantID snowflake.ID, emailEvents []messagingdomain.EmailEvent) error {
	for _, event := range emailEvents {
		providerID := normalizeSGMessageID(event.MessageID)
		if providerID == "" {
			continue
		}
		entry, err := s.repo.FindOne(ctx, "tenant_id = ? AND provider_message_id = ?", tenantID, providerID)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}

		occurred := event.OccurredAt()
		if occurred.IsZero() {
			occurred = s.clock.Now()
		}
		switch strings.ToLower(strings.TrimSpace(event.Event)) {
		case "delivered":
			entry.Status = messagingdomain.MessageStatusDelivered
			entry.DeliveredAt = &occurred
		case "open":
			entry.OpenedAt = &occurred
		case "click":
			entry.ClickedAt = &occurred
		case "bounce", "dropped":
			entry.Status = messagingdomain.MessageStatusFailed
			entry.BouncedAt = &occurred
		default:
			continue
		}
		entry.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, req messagingdomain.ListMessagesRequest) (messagingdomain.ListMessagesResponse, error) {
	filter := map[string]any{"tenant_id": tenantID}
	if channel := strings.TrimSpace(req.Channel); channel != "" {
		filter["channel"] = channel
	}
	if direction := strings.TrimSpace(req.Direction); direction != "" {
		filter["direction"] = direction
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return messagingdomain.ListMessagesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(record *messagingdomain.MessageLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]messagingdomain.MessageLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := messagingdomain.ListMessagesResponse{Messages: records}
	if pageInfo != nil {
		resp.HasMore = pageInfo.HasMore
		resp.NextPageToken = pageInfo.NextPageToken
	}
	return resp, nil
}

// resolveTemplate prefers a tenant override stored in metadata, falling
// back to the built-in default.
func (s *Service) resolveTemplate(ctx context.Context, record *tenantdomain.Tenant, key string) string {
	cacheKey := record.ID.String() + ":" + key
	if body, ok := s.templateCache.Get(cacheKey); ok {
		return body
	}

	body := messagingdomain.DefaultTemplate(key)
	if overrides, ok := record.Metadata["templates"].(map[string]any); ok {
		if custom, ok := overrides[key].(string); ok && strings.TrimSpace(custom) != "" {
			body = custom
		}
	}
	s.templateCache.Set(cacheKey, body, templateCacheTTL*time.Second)
	return body
}

// SendGrid suffixes sg_message_id with a filter identifier.
func normalizeSGMessageID(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}

func formatSlot(at time.Time) string {
	return at.Format("Mon Jan 2 at 3:04 PM")
}
