package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/metrics"
)

// Email subjects per job kind. SMS jobs ignore these.
var emailSubjects = map[string]string{
	events.KindDunningReminder:      "Action needed: subscription payment failed",
	events.KindTrialEnding:          "Your free trial is ending soon",
	events.KindPaymentReceipt:       "Payment receipt",
	events.KindPaymentFailed:        "A payment didn't go through",
	events.KindWaitlistOffer:        "A slot opened up",
	events.KindWelcomeEmail:         "Welcome! Your account is ready",
	events.KindSubscriptionNotice:   "Your subscription status changed",
	events.KindSubscriptionCanceled: "Your subscription has been cancelled",
	events.KindConnectEnabled:       "Payments are live on your account",
}

type NotifierParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Cfg          Config `optional:"true"`
	MessagingSvc messagingdomain.Service
	JobMetrics   *metrics.JobMetrics
}

// Notifier drains due notification jobs and hands them to the messaging
// service. Jobs are claimed with a conditional update so multiple
// instances never double-send.
type Notifier struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   Config

	messagingsvc messagingdomain.Service
	jobMetrics   *metrics.JobMetrics
}

func NewNotifier(p NotifierParam) *Notifier {
	return &Notifier{
		db:    p.DB,
		log:   p.Log.Named("scheduler.notifier"),
		clock: p.Clock,
		cfg:   p.Cfg.withDefaults(),

		messagingsvc: p.MessagingSvc,
		jobMetrics:   p.JobMetrics,
	}
}

func (n *Notifier) RunForever(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := n.RunOnce(ctx); err != nil {
			n.log.Warn("notification run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims and dispatches one batch of due jobs, returning how many
// were attempted.
func (n *Notifier) RunOnce(ctx context.Context) (int, error) {
	now := n.clock.Now()
	staleBefore := now.Add(-n.cfg.LockTimeout)

	var due []events.NotificationJob
	err := n.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", events.JobStatusPending, now).
		Where("locked_at IS NULL OR locked_at < ?", staleBefore).
		Order("run_at ASC").
		Limit(n.cfg.BatchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		job := due[i]
		if !n.claim(ctx, job.ID.Int64(), staleBefore, now) {
			continue
		}
		attempted++
		n.dispatch(ctx, &job)
	}

	n.updateBacklog(ctx)
	return attempted, nil
}

func (n *Notifier) claim(ctx context.Context, jobID int64, staleBefore, now time.Time) bool {
	result := n.db.WithContext(ctx).
		Model(&events.NotificationJob{}).
		Where("id = ? AND status = ?", jobID, events.JobStatusPending).
		Where("locked_at IS NULL OR locked_at < ?", staleBefore).
		Update("locked_at", now)
	if result.Error != nil {
		n.log.Warn("job claim failed", zap.Int64("job_id", jobID), zap.Error(result.Error))
		return false
	}
	return result.RowsAffected == 1
}

func (n *Notifier) dispatch(ctx context.Context, job *events.NotificationJob) {
	sendErr := n.send(ctx, job)
	now := n.clock.Now()

	if sendErr == nil {
		updates := map[string]any{
			"status":     events.JobStatusSent,
			"locked_at":  nil,
			"updated_at": now,
		}
		if err := n.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
			n.log.Error("sent job not marked", zap.String("job_id", job.ID.String()), zap.Error(err))
			return
		}
		n.jobMetrics.IncProcessed("delivered")
		n.jobMetrics.ObserveDeliveryLag(job.Kind, now.Sub(job.RunAt))
		return
	}

	attempts := job.Attempts + 1
	updates := map[string]any{
		"attempts":   attempts,
		"last_error": sendErr.Error(),
		"locked_at":  nil,
		"updated_at": now,
	}
	if attempts >= events.MaxAttempts {
		updates["status"] = events.JobStatusDead
		n.jobMetrics.IncProcessed("dead")
		n.log.Error("notification parked as dead",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.Error(sendErr),
		)
	} else {
		updates["run_at"] = now.Add(retryBackoff(attempts))
		n.jobMetrics.IncProcessed("retried")
		n.log.Warn("notification send failed",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
	}
	if err := n.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		n.log.Error("failed job not updated", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

// retryBackoff doubles per attempt: 1m, 2m, 4m, 8m.
func retryBackoff(attempts int) time.Duration {
	backoff := time.Minute << (attempts - 1)
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	return backoff
}

func (n *Notifier) send(ctx context.Context, job *events.NotificationJob) error {
	variables := make(map[string]string, len(job.Variables))
	for key, value := range job.Variables {
		variables[key] = fmt.Sprint(value)
	}

	switch job.Channel {
	case messagingdomain.ChannelSMS:
		_, err := n.messagingsvc.SendSMS(ctx, job.TenantID, messagingdomain.SendSMSRequest{
			To:          job.Recipient,
			TemplateKey: job.TemplateKey,
			Variables:   variables,
		})
		return err
	case messagingdomain.ChannelEmail:
		subject := emailSubjects[job.Kind]
		if subject == "" {
			subject = "Notification"
		}
		_, err := n.messagingsvc.SendEmail(ctx, job.TenantID, messagingdomain.SendEmailRequest{
			To:          job.Recipient,
			Subject:     subject,
			TemplateKey: job.TemplateKey,
			Variables:   variables,
		})
		return err
	default:
		return fmt.Errorf("unknown channel %q", job.Channel)
	}
}

func (n *Notifier) updateBacklog(ctx context.Context) {
	for _, status := range []string{events.JobStatusPending, events.JobStatusDead} {
		var count int64
		err := n.db.WithContext(ctx).
			Model(&events.NotificationJob{}).
			Where("status = ?", status).
			Count(&count).Error
		if err != nil {
			continue
		}
		n.jobMetrics.SetBacklog(status, int(count))
	}
}
