package tenant

import (
	"go.uber.org/fx"

	"github.com/raylanfranco/whitelabel-admin/internal/tenant/service"
)

var Module = fx.Module("tenant.service",
	fx.Provide(service.NewService),
)
