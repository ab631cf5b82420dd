package messaging

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/raylanfranco/whitelabel-admin/internal/config"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/messaging/sendgrid"
	"github.com/raylanfranco/whitelabel-admin/internal/messaging/service"
	"github.com/raylanfranco/whitelabel-admin/internal/messaging/twilio"
)

var Module = fx.Module("messaging.service",
	fx.Provide(
		newSMSClient,
		newEmailClient,
		service.NewService,
	),
)

func newSMSClient(cfg config.Config, log *zap.Logger) messagingdomain.SMSClient {
	return twilio.NewClient(cfg.Twilio, log)
}

func newEmailClient(cfg config.Config, log *zap.Logger) messagingdomain.EmailClient {
	return sendgrid.NewClient(cfg.Email, log)
}
