package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fx-wallet/fx_wallet/internal/config"
	"github.com/fx-wallet/fx_wallet/internal/fx"
	"github.com/fx-wallet/fx_wallet/internal/idempotency"
	"github.com/fx-wallet/fx_wallet/internal/identity"
	"github.com/fx-wallet/fx_wallet/internal/ledger"
	"github.com/fx-wallet/fx_wallet/internal/logging"
	"github.com/fx-wallet/fx_wallet/internal/metrics"
	"github.com/fx-wallet/fx_wallet/internal/middleware"
	"github.com/fx-wallet/fx_wallet/internal/notification"
	"github.com/fx-wallet/fx_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// RateSource overrides the provider adapter; tests and dev mode use it.
	RateSource fx.Source
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Metrics())

	metrics.Init()
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	RegisterHealthRoutes(app, d)

	// Storage backends
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	var idemStore idempotency.Store
	switch {
	case d.DB != nil:
		idemStore = idempotency.NewPostgresStore(d.DB)
	case d.Cache != nil:
		idemStore = idempotency.NewRedisStore(d.Cache, d.Cfg.IdempotencyTTL)
	default:
		idemStore = idempotency.NewMemoryStore()
	}

	// Rate resolver
	source := d.RateSource
	if source == nil {
		if d.Cfg.FxAPIKey != "" {
			source = fx.NewHTTPSource(d.Cfg.FxAPIURL, d.Cfg.FxAPIKey, d.Cfg.FxFetchTimeout)
		} else {
			source = fx.StaticSource{}
		}
	}
	resolver := fx.NewResolver(source, d.Cfg.FxCacheTTL, logging.Component(d.Logger, "fx"))

	// Services and handlers
	guard := idempotency.NewGuard(idemStore, logging.Component(d.Logger, "idempotency"))
	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(identityRepo)
	walletSvc := wallet.NewService(ledgerBackend, identityRepo, resolver, guard, notifier, d.Cfg.StarterCurrencies)
	walletHandler := wallet.NewHandler(walletSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(api, identitySvc, walletSvc, d.Logger)
	RegisterWalletRoutes(api, walletHandler)

	return nil
}
