// Package server exposes the HTTP API: tenant signup and billing for the
// admin dashboard, public chatbot lead capture, and the provider webhook
// endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	auditdomain "github.com/raylanfranco/whitelabel-admin/internal/audit/domain"
	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/logger"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/metrics"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	webhookservice "github.com/raylanfranco/whitelabel-admin/internal/webhook/service"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock

	TenantSvc      tenantdomain.Service
	ClientSvc      clientdomain.Service
	AppointmentSvc appointmentdomain.Service
	UsageSvc       usagedomain.Service
	MessagingSvc   messagingdomain.Service
	BillingSvc     billingdomain.Service
	WebhookSvc     *webhookservice.Service
	AuditSvc       auditdomain.Service

	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock

	tenantSvc      tenantdomain.Service
	clientSvc      clientdomain.Service
	appointmentSvc appointmentdomain.Service
	usageSvc       usagedomain.Service
	messagingSvc   messagingdomain.Service
	billingSvc     billingdomain.Service
	webhookSvc     *webhookservice.Service
	auditSvc       auditdomain.Service

	httpMetrics    *metrics.HTTPMetrics
	chatbotLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		db:    p.DB,
		log:   p.Log.Named("server"),
		cfg:   p.Cfg,
		clock: p.Clock,

		tenantSvc:      p.TenantSvc,
		clientSvc:      p.ClientSvc,
		appointmentSvc: p.AppointmentSvc,
		usageSvc:       p.UsageSvc,
		messagingSvc:   p.MessagingSvc,
		billingSvc:     p.BillingSvc,
		webhookSvc:     p.WebhookSvc,
		auditSvc:       p.AuditSvc,

		httpMetrics:    p.HTTPMetrics,
		chatbotLimiter: newRateLimiter(20, time.Minute),
	}
}

// NewEngine builds the gin engine with middleware and all routes.
func NewEngine(s *Server) *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/webhooks/health"},
	}))
	if s.httpMetrics != nil {
		engine.Use(metrics.GinMiddleware(s.httpMetrics))
	}

	engine.GET("/healthz", s.Health)

	webhooks := engine.Group("/webhooks")
	{
		webhooks.GET("/health", s.WebhookHealth)
		webhooks.POST("/stripe", s.StripeWebhook)
		webhooks.POST("/sms-incoming/:tenantID", s.TwilioInbound)
		webhooks.POST("/sms-status/:tenantID", s.TwilioStatus)
		webhooks.POST("/sendgrid/:tenantID", s.SendGridEvents)
	}

	api := engine.Group("/api")
	{
		api.POST("/tenants", s.CreateTenant)
		api.POST("/chatbot/lead", s.rateLimited(s.chatbotLimiter), s.CaptureChatbotLead)

		authed := api.Group("", s.AuthRequired())
		{
			authed.GET("/tenant", s.GetTenant)
			authed.PATCH("/tenant", s.UpdateTenant)

			authed.POST("/payments/subscribe", s.Subscribe)
			authed.POST("/payments/change-tier", s.ChangeTier)
			authed.GET("/payments/subscription", s.SubscriptionStatus)
			authed.POST("/payments/charge", s.Charge)
			authed.POST("/payments/deposit", s.ChargeDeposit)
			authed.POST("/payments/refund", s.Refund)
			authed.POST("/payments/connect", s.CreateConnectAccount)
			authed.GET("/payments/connect", s.ConnectStatus)
			authed.GET("/payments/transactions", s.ListTransactions)

			authed.GET("/chatbot/leads", s.ListLeads)

			authed.POST("/messages/sms", s.SendSMS)
			authed.POST("/messages/email", s.SendEmail)
			authed.GET("/messages", s.ListMessages)

			authed.POST("/appointments", s.CreateAppointment)
			authed.GET("/appointments", s.ListAppointments)
			authed.POST("/appointments/:id/confirm", s.ConfirmAppointment)
			authed.POST("/appointments/:id/cancel", s.CancelAppointment)
			authed.POST("/waitlist", s.JoinWaitlist)

			authed.GET("/usage", s.UsageReport)
			authed.GET("/audit", s.ListAuditLogs)
		}
	}

	return engine
}

// Health reports process liveness and database reachability.
func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) rateLimited(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate_limited",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// Module wires the HTTP server into the application lifecycle.
var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, invalidRequestError()
	}
	return id, nil
}
