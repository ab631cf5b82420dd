package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Outbox    *events.Outbox
	TenantSvc tenantdomain.Service
	ClientSvc clientdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	outbox    *events.Outbox
	tenantsvc tenantdomain.Service
	clientsvc clientdomain.Service

	appointments repository.Repository[appointmentdomain.Appointment]
	waitlist     repository.Repository[appointmentdomain.WaitlistEntry]
}

func NewService(p ServiceParam) appointmentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("appointment.service"),
		genID: p.GenID,
		clock: p.Clock,

		outbox:    p.Outbox,
		tenantsvc: p.TenantSvc,
		clientsvc: p.ClientSvc,

		appointments: repository.ProvideStore[appointmentdomain.Appointment](p.DB),
		waitlist:     repository.ProvideStore[appointmentdomain.WaitlistEntry](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, tenantID snowflake.ID, req appointmentdomain.CreateAppointmentRequest) (*appointmentdomain.Appointment, error) {
	service := strings.TrimSpace(req.Service)
	if service == "" || req.ClientID == 0 || req.StartsAt.IsZero() {
		return nil, appointmentdomain.ErrInvalidAppointment
	}
	if _, err := s.clientsvc.Get(ctx, tenantID, req.ClientID); err != nil {
		return nil, err
	}

	record := &appointmentdomain.Appointment{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		ClientID:        req.ClientID,
		Service:         service,
		StartsAt:        req.StartsAt.UTC(),
		Status:          appointmentdomain.AppointmentScheduled,
		DepositRequired: req.DepositRequired,
	}
	if err := s.appointments.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("appointment created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("appointment_id", record.ID.String()),
		zap.Time("starts_at", record.StartsAt),
	)
	return record, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id snowflake.ID) (*appointmentdomain.Appointment, error) {
	record, err := s.appointments.FindOne(ctx, "tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, appointmentdomain.ErrAppointmentNotFound
	}
	return record, nil
}

func (s *Service) FindPendingForClient(ctx context.Context, tenantID, clientID snowflake.ID) (*appointmentdomain.Appointment, error) {
	return s.appointments.FindOne(ctx,
		"tenant_id = ? AND client_id = ? AND status = ? AND starts_at > ?",
		tenantID, clientID, appointmentdomain.AppointmentScheduled, s.clock.Now(),
	)
}

func (s *Service) Confirm(ctx context.Context, tenantID, id snowflake.ID) (*appointmentdomain.Appointment, error) {
	record, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if record.Status != appointmentdomain.AppointmentScheduled {
		return nil, appointmentdomain.ErrAppointmentNotPending
	}

	now := s.clock.Now()
	record.Status = appointmentdomain.AppointmentConfirmed
	record.ClientConfirmedAt = &now
	record.UpdatedAt = now
	if err := s.appointments.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Cancel(ctx context.Context, tenantID, id snowflake.ID, cancelledBy, reason string) (*appointmentdomain.Appointment, error) {
	record, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if record.Status == appointmentdomain.AppointmentCancelled {
		return record, nil
	}

	now := s.clock.Now()
	record.Status = appointmentdomain.AppointmentCancelled
	record.CancelledAt = &now
	record.CancelledBy = strings.TrimSpace(cancelledBy)
	record.CancelReason = strings.TrimSpace(reason)
	record.UpdatedAt = now
	if err := s.appointments.Save(ctx, record); err != nil {
		return nil, err
	}

	// The freed slot goes to the longest-waiting active entry.
	if err := s.offerSlotToWaitlist(ctx, record); err != nil {
		s.log.Warn("waitlist offer failed after cancellation",
			zap.String("tenant_id", tenantID.String()),
			zap.String("appointment_id", record.ID.String()),
			zap.Error(err),
		)
	}
	return record, nil
}

func (s *Service) MarkDepositPaid(ctx context.Context, tenantID, id snowflake.ID) error {
	record, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if record.DepositPaid {
		return nil
	}
	record.DepositPaid = true
	record.UpdatedAt = s.clock.Now()
	return s.appointments.Save(ctx, record)
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, from, to time.Time) ([]appointmentdomain.Appointment, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !from.IsZero() {
		query = query.Where("starts_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("starts_at < ?", to)
	}

	var records []appointmentdomain.Appointment
	if err := query.Order("starts_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) JoinWaitlist(ctx context.Context, tenantID snowflake.ID, req appointmentdomain.JoinWaitlistRequest) (*appointmentdomain.WaitlistEntry, error) {
	service := strings.TrimSpace(req.Service)
	if service == "" || req.ClientID == 0 {
		return nil, appointmentdomain.ErrInvalidAppointment
	}
	if _, err := s.clientsvc.Get(ctx, tenantID, req.ClientID); err != nil {
		return nil, err
	}

	existing, err := s.waitlist.FindOne(ctx,
		"tenant_id = ? AND client_id = ? AND status IN ?",
		tenantID, req.ClientID,
		[]string{appointmentdomain.WaitlistActive, appointmentdomain.WaitlistNotified},
	)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &appointmentdomain.WaitlistEntry{
		ID:       s.genID.Generate(),
		TenantID: tenantID,
		ClientID: req.ClientID,
		Service:  service,
		Status:   appointmentdomain.WaitlistActive,
	}
	if err := s.waitlist.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) FindNotifiedEntry(ctx context.Context, tenantID, clientID snowflake.ID) (*appointmentdomain.WaitlistEntry, error) {
	return s.waitlist.FindOne(ctx,
		"tenant_id = ? AND client_id = ? AND status = ?",
		tenantID, clientID, appointmentdomain.WaitlistNotified,
	)
}

func (s *Service) BookFromWaitlist(ctx context.Context, tenantID, entryID snowflake.ID, startsAt time.Time) (*appointmentdomain.Appointment, error) {
	entry, err := s.waitlist.FindOne(ctx, "tenant_id = ? AND id = ?", tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, appointmentdomain.ErrWaitlistEntryNotFound
	}
	if entry.Status != appointmentdomain.WaitlistNotified && entry.Status != appointmentdomain.WaitlistActive {
		return nil, appointmentdomain.ErrWaitlistEntryClosed
	}

	now := s.clock.Now()
	if startsAt.IsZero() {
		startsAt = now.Add(24 * time.Hour)
	}

	appointment, err := s.Create(ctx, tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID: entry.ClientID,
		Service:  entry.Service,
		StartsAt: startsAt,
	})
	if err != nil {
		return nil, err
	}

	entry.Status = appointmentdomain.WaitlistBooked
	entry.BookedAt = &now
	entry.UpdatedAt = now
	if err := s.waitlist.Save(ctx, entry); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (s *Service) DeclineWaitlist(ctx context.Context, tenantID, entryID snowflake.ID) (*appointmentdomain.WaitlistEntry, error) {
	entry, err := s.waitlist.FindOne(ctx, "tenant_id = ? AND id = ?", tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, appointmentdomain.ErrWaitlistEntryNotFound
	}
	if entry.Status == appointmentdomain.WaitlistBooked || entry.Status == appointmentdomain.WaitlistDeclined {
		return nil, appointmentdomain.ErrWaitlistEntryClosed
	}

	now := s.clock.Now()
	entry.Status = appointmentdomain.WaitlistDeclined
	entry.DeclinedAt = &now
	entry.UpdatedAt = now
	if err := s.waitlist.Save(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) ExpireStaleOffers(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.clock.Now()

	var stale []appointmentdomain.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("status = ? AND response_deadline IS NOT NULL AND response_deadline < ?", appointmentdomain.WaitlistNotified, now).
		Limit(limit).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		result := s.db.WithContext(ctx).Model(&appointmentdomain.WaitlistEntry{}).
			Where("id = ? AND status = ?", stale[i].ID, appointmentdomain.WaitlistNotified).
			Updates(map[string]any{
				"status":            appointmentdomain.WaitlistActive,
				"notified_at":       nil,
				"response_deadline": nil,
				"updated_at":        now,
			})
		if result.Error != nil {
			return expired, result.Error
		}
		if result.RowsAffected > 0 {
			expired++
		}
	}
	return expired, nil
}

// offerSlotToWaitlist notifies the oldest active entry about the slot a
// cancellation just freed. The SMS goes through the durable outbox.
func (s *Service) offerSlotToWaitlist(ctx context.Context, cancelled *appointmentdomain.Appointment) error {
	var entry appointmentdomain.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", cancelled.TenantID, appointmentdomain.WaitlistActive).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	record, err := s.tenantsvc.Get(ctx, cancelled.TenantID)
	if err != nil {
		return err
	}
	contact, err := s.clientsvc.Get(ctx, cancelled.TenantID, entry.ClientID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	deadline := now.Add(appointmentdomain.ResponseWindow)
	entry.Status = appointmentdomain.WaitlistNotified
	entry.NotifiedAt = &now
	entry.ResponseDeadline = &deadline
	entry.UpdatedAt = now
	if err := s.waitlist.Save(ctx, &entry); err != nil {
		return err
	}

	return s.outbox.Enqueue(ctx, events.Job{
		TenantID:    cancelled.TenantID,
		Kind:        events.KindWaitlistOffer,
		Channel:     "sms",
		Recipient:   contact.Phone,
		TemplateKey: "waitlist_notification",
		Variables: map[string]any{
			"clientName":    contact.Name,
			"serviceName":   cancelled.Service,
			"availableDate": cancelled.StartsAt.Format("Mon Jan 2"),
			"availableTime": cancelled.StartsAt.Format("3:04 PM"),
			"responseText":  "Reply ACCEPT to book it or DECLINE to pass",
			"expiresIn":     "2 hours",
			"businessName":  record.Name,
		},
		DedupeKey: fmt.Sprintf("waitlist_offer:%s:%s", entry.ID, cancelled.ID),
		RunAt:     now,
	})
}
