package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/metrics"
)

type SweeperParam struct {
	fx.In

	Log            *zap.Logger
	Cfg            Config `optional:"true"`
	AppointmentSvc appointmentdomain.Service
	JobMetrics     *metrics.JobMetrics
}

// WaitlistSweeper returns offers to the pool once their response window
// lapses without a reply.
type WaitlistSweeper struct {
	log *zap.Logger
	cfg Config

	appointmentsvc appointmentdomain.Service
	jobMetrics     *metrics.JobMetrics
}

func NewWaitlistSweeper(p SweeperParam) *WaitlistSweeper {
	return &WaitlistSweeper{
		log: p.Log.Named("scheduler.waitlist"),
		cfg: p.Cfg.withDefaults(),

		appointmentsvc: p.AppointmentSvc,
		jobMetrics:     p.JobMetrics,
	}
}

func (w *WaitlistSweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("waitlist sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *WaitlistSweeper) RunOnce(ctx context.Context) (int, error) {
	expired, err := w.appointmentsvc.ExpireStaleOffers(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for i := 0; i < expired; i++ {
		w.jobMetrics.IncWaitlistExpired()
	}
	if expired > 0 {
		w.log.Info("stale waitlist offers expired", zap.Int("count", expired))
	}
	return expired, nil
}
