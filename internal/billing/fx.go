package billing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/billing/service"
	"github.com/raylanfranco/whitelabel-admin/internal/billing/stripe"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
)

var Module = fx.Module("billing.service",
	fx.Provide(
		newProcessorClient,
		service.NewService,
	),
)

func newProcessorClient(cfg config.Config, log *zap.Logger) billingdomain.ProcessorClient {
	return stripe.NewClient(cfg.Stripe, log)
}
