package appointment

import (
	"go.uber.org/fx"

	"github.com/raylanfranco/whitelabel-admin/internal/appointment/service"
)

var Module = fx.Module("appointment.service",
	fx.Provide(service.NewService),
)
