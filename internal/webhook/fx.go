package webhook

import (
	"go.uber.org/fx"

	"github.com/raylanfranco/whitelabel-admin/internal/webhook/service"
)

var Module = fx.Module("webhook.service",
	fx.Provide(service.NewService),
)
