package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks the notification job worker and the waitlist sweeper.
type JobMetrics struct {
	notificationDeliveryLag *prometheus.HistogramVec
	notificationBacklog     *prometheus.GaugeVec
	notificationProcessed   *prometheus.CounterVec
	waitlistOffersExpired   prometheus.Counter
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

func ResetJobMetricsForTest() {
	jobMetricsOnce = sync.Once{}
	jobMetrics = nil
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName(cfg),
		"env":     environment,
	}

	notificationDeliveryLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "whitelabel_notification_delivery_lag_seconds",
			Help: "Lag between a notification job's run_at and actual delivery.",
			Buckets: []float64{
				1,
				10,
				60,   // 1m
				300,  // 5m
				900,  // 15m
				3600, // 1h
			},
			ConstLabels: constLabels,
		},
		[]string{"kind"}, // dunning | receipt | waitlist_offer
	)

	notificationBacklog := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "whitelabel_notification_backlog_total",
			Help:        "Number of notification jobs pending delivery by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	notificationProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "whitelabel_notification_processed_total",
			Help:        "Total notification jobs processed.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // delivered | retried | dead
	)

	waitlistOffersExpired := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "whitelabel_waitlist_offers_expired_total",
			Help:        "Total waitlist offers expired after the response deadline.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		notificationDeliveryLag,
		notificationBacklog,
		notificationProcessed,
		waitlistOffersExpired,
	)

	return &JobMetrics{
		notificationDeliveryLag: notificationDeliveryLag,
		notificationBacklog:     notificationBacklog,
		notificationProcessed:   notificationProcessed,
		waitlistOffersExpired:   waitlistOffersExpired,
	}
}

func (m *JobMetrics) ObserveDeliveryLag(kind string, lag time.Duration) {
	if m == nil {
		return
	}
	seconds := lag.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.notificationDeliveryLag.WithLabelValues(kind).Observe(seconds)
}

func (m *JobMetrics) SetBacklog(status string, value int) {
	if m == nil {
		return
	}
	m.notificationBacklog.WithLabelValues(status).Set(float64(value))
}

func (m *JobMetrics) IncProcessed(result string) {
	if m == nil {
		return
	}
	m.notificationProcessed.WithLabelValues(result).Inc()
}

func (m *JobMetrics) IncWaitlistExpired() {
	if m == nil {
		return
	}
	m.waitlistOffersExpired.Inc()
}
