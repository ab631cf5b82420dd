package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/internal/appointment"
	"github.com/raylanfranco/whitelabel-admin/internal/audit"
	"github.com/raylanfranco/whitelabel-admin/internal/billing"
	"github.com/raylanfranco/whitelabel-admin/internal/client"
	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/events"
	"github.com/raylanfranco/whitelabel-admin/internal/messaging"
	"github.com/raylanfranco/whitelabel-admin/internal/migration"
	"github.com/raylanfranco/whitelabel-admin/internal/observability"
	"github.com/raylanfranco/whitelabel-admin/internal/scheduler"
	"github.com/raylanfranco/whitelabel-admin/internal/seed"
	"github.com/raylanfranco/whitelabel-admin/internal/server"
	"github.com/raylanfranco/whitelabel-admin/internal/tenant"
	"github.com/raylanfranco/whitelabel-admin/internal/usage"
	"github.com/raylanfranco/whitelabel-admin/internal/webhook"
	"github.com/raylanfranco/whitelabel-admin/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		clock.Module,
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.Bootstrap.EnsureDefaultTenant && !cfg.IsProduction() {
				return seed.EnsureDefaultTenant(conn)
			}
			return nil
		}),
		events.Module,
		audit.Module,
		tenant.Module,
		client.Module,
		usage.Module,
		appointment.Module,
		messaging.Module,
		billing.Module,
		webhook.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
