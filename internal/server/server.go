// Package server builds the fiber application: middleware, error envelope
// and routes.
package server

import (
	"strings"

	"cargo-backend/internal/audit"
	"cargo-backend/internal/auth"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/config"
	"cargo-backend/internal/ledger"
	"cargo-backend/internal/maintenance"
	"cargo-backend/internal/models"
	"cargo-backend/internal/orders"
	"cargo-backend/internal/shipments"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Services struct {
	Ledger      *ledger.Service
	Orders      *orders.Service
	Shipments   *shipments.Service
	Maintenance *maintenance.Service
	Audit       *audit.Service
}

// NewServices wires the domain services on db.
func NewServices(cfg *config.Config, db *gorm.DB, clk clock.Clock, log *zap.Logger) Services {
	th := shipments.Thresholds{
		ShippedAfter:   cfg.Reconcile.ShippedAfter,
		DeliveredAfter: cfg.Reconcile.DeliveredAfter,
	}

	l := ledger.NewService(db, clk, log)
	sh := shipments.NewService(db, clk, th, log)
	o := orders.NewService(db, clk, l, sh.Aggregator(), log)

	return Services{
		Ledger:      l,
		Orders:      o,
		Shipments:   sh,
		Maintenance: maintenance.NewService(db, o, log),
		Audit:       audit.NewService(db, log),
	}
}

// New returns the configured app. db is only used by the auth handlers.
func New(cfg *config.Config, db *gorm.DB, svc Services, log *zap.Logger) *fiber.App {
	errHandler := ErrorHandler(log)

	app := fiber.New(fiber.Config{
		AppName:      "cargo-backend",
		ErrorHandler: errHandler,
	})

	app.Use(RequestLogger(log, errHandler))
	app.Use(recover.New())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg.JWT))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWT.Secret))

	protected.Get("/auth/me", auth.MeHandler())

	// Orders
	protected.Post("/orders", orders.CreateOrderHandler(svc.Orders, svc.Audit))
	protected.Get("/orders/:id", orders.GetOrderHandler(svc.Orders))
	protected.Put("/orders/:id/status", orders.UpdateOrderStatusHandler(svc.Orders, svc.Audit))
	protected.Post("/orders/:id/resync", orders.ResyncOrderChargeHandler(svc.Orders, svc.Audit))

	// Client ledger
	protected.Post("/clients/:id/payments", ledger.RecordPaymentHandler(svc.Ledger, svc.Audit))
	protected.Get("/clients/:id/balance", ledger.BalanceHandler(svc.Ledger))
	protected.Get("/clients/:id/statement", ledger.StatementHandler(svc.Ledger))
	protected.Get("/clients/:id/statement/xlsx", ledger.StatementExportHandler(svc.Ledger))
	protected.Get("/debtors", ledger.DebtorsHandler(svc.Ledger))

	// Shipments
	protected.Post("/shipments", shipments.CreateShipmentHandler(svc.Shipments, svc.Audit))
	protected.Get("/shipments", shipments.ListShipmentsHandler(svc.Shipments))
	protected.Get("/shipments/:id", shipments.GetShipmentHandler(svc.Shipments))
	protected.Put("/shipments/:id", shipments.UpdateShipmentHandler(svc.Shipments, svc.Audit))
	protected.Post("/shipments/:id/sync", shipments.SyncShipmentHandler(svc.Shipments))
	protected.Post("/shipments/:id/recompute", shipments.RecomputeShipmentHandler(svc.Shipments))

	// Audit logs
	protected.Get("/audit-logs", auth.RequireRole(models.RoleAdmin), audit.ListAuditLogsHandler(svc.Audit))

	// Guarded deletes, admin only
	protected.Delete("/:type/:id", auth.RequireRole(models.RoleAdmin), maintenance.DeleteEntityHandler(svc.Maintenance, svc.Audit))

	return app
}
