// Package observability wires logging, tracing, and metrics into the app.
package observability

import (
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/logger"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/metrics"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/tracing"
)

const serviceName = "whitelabel-admin"

// Version is stamped at build time via -ldflags.
var Version = "dev"

var Module = fx.Module("observability",
	fx.Provide(
		newLogger,
		newTracerProvider,
		newMeterProvider,
		newHTTPMetrics,
		newJobMetrics,
	),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Environment: cfg.Environment,
	})
}

func newTracerProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	return tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      serviceName,
		ServiceVersion:   Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Tracing.OTLPEndpoint,
		ExporterProtocol: cfg.Tracing.OTLPProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}, log)
}

func newMeterProvider(cfg config.Config) (metric.MeterProvider, error) {
	return metrics.NewMeterProvider(metrics.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
	})
}

func newHTTPMetrics(cfg config.Config, provider metric.MeterProvider) (*metrics.HTTPMetrics, error) {
	return metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
	}, provider)
}

func newJobMetrics(cfg config.Config) *metrics.JobMetrics {
	return metrics.JobsWithConfig(metrics.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
	})
}
