// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/streadway/amqp"

	"github.com/carterperez-dev/coursegate/internal/access"
	"github.com/carterperez-dev/coursegate/internal/admin"
	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/auth"
	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/health"
	"github.com/carterperez-dev/coursegate/internal/ledger"
	"github.com/carterperez-dev/coursegate/internal/metrics"
	"github.com/carterperez-dev/coursegate/internal/middleware"
	"github.com/carterperez-dev/coursegate/internal/migrations"
	"github.com/carterperez-dev/coursegate/internal/progress"
	"github.com/carterperez-dev/coursegate/internal/rank"
	"github.com/carterperez-dev/coursegate/internal/reveal"
	"github.com/carterperez-dev/coursegate/internal/server"
	"github.com/carterperez-dev/coursegate/internal/user"
)

const (
	defaultDrainDelay = 5 * time.Second
	amqpRetries       = 5
	amqpRetryDelay    = 2 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db.DB.DB); err != nil {
			return err
		}
		version, dirty, _ := migrations.Version(db.DB.DB) //nolint:errcheck // informational
		logger.Info("migrations applied", "version", version, "dirty", dirty)
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT verifier initialized",
		"algorithm", "ES256",
		"key_id", jwtVerifier.KeyID(),
	)

	checks := []health.Check{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis},
	}

	var sink audit.Sink = audit.NewLogSink(logger)
	var amqpSink *audit.AMQPSink
	if cfg.Audit.Enabled {
		sink, amqpSink, checks = setupAuditBroker(cfg.Audit, logger, sink, checks)
	}

	metrics.MustRegister()

	tiers := entitlement.NewTiers(cfg.Plans)

	catalog := content.NewCachedCatalog(
		content.NewRepository(db.DB),
		redis,
		cfg.Content.CacheTTL,
	)

	ledgerSvc := ledger.NewService(db.DB, db, nil)
	entitlementSvc := entitlement.NewService(db.DB, db, nil, tiers, sink).WithLedger(ledgerSvc)
	gate := access.NewGate(entitlementSvc, catalog, tiers)

	progressSvc, err := progress.NewService(progress.Deps{
		DB:       db.DB,
		Tx:       db,
		Gate:     gate,
		Ledger:   ledgerSvc,
		Tiers:    tiers,
		Economy:  cfg.Economy,
		Progress: cfg.Progress,
	})
	if err != nil {
		return err
	}

	revealSvc := reveal.NewService(reveal.Deps{
		DB:      db.DB,
		Tx:      db,
		Gate:    gate,
		Hints:   catalog,
		Ledger:  ledgerSvc,
		Economy: cfg.Economy,
	})

	userSvc := user.NewService(user.NewRepository(db.DB), sink)

	healthHandler := health.NewHandler(checks...)

	probes := make([]admin.Probe, 0, len(checks))
	for _, c := range checks {
		probes = append(probes, admin.Probe{Name: c.Name, Ping: c.Checker.Ping})
	}

	var broker *admin.BrokerCounters
	if amqpSink != nil {
		broker = &admin.BrokerCounters{
			Dropped: amqpSink.Dropped,
			Failed:  amqpSink.Failed,
		}
	}

	schemaVersion := func() (uint, bool, error) {
		return migrations.Version(db.DB.DB)
	}

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Probes:        probes,
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		SchemaVersion: schemaVersion,
		Broker:        broker,
		CachePurge:    catalog.Purge,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Scope: "global",
			Limit: middleware.Window(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			KeyFunc:  func(r *http.Request) string { return redis.Key(middleware.KeyByIP(r)) },
			FailOpen: true,
			Sink:     sink,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Handle("/metrics", metrics.Handler())
	router.Get("/.well-known/jwks.json", jwtVerifier.JWKSHandler())

	authenticator := middleware.Chain(
		middleware.Authenticator(jwtVerifier),
		middleware.Provision(userSvc),
	)
	adminOnly := middleware.RequireAdmin(sink)

	spendLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Scope: "spend",
		Limit: middleware.Window(
			cfg.RateLimit.SpendRequests,
			0,
			cfg.RateLimit.SpendWindow,
		),
		KeyFunc: func(r *http.Request) string {
			return redis.Key("spend", middleware.KeyByUserAndEndpoint(r))
		},
		FailOpen: true,
		Sink:     sink,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		entitlementHandler := entitlement.NewHandler(entitlementSvc)
		entitlementHandler.RegisterRoutes(r, authenticator)
		entitlementHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		access.NewHandler(gate, catalog).RegisterRoutes(r, authenticator)

		ledgerHandler := ledger.NewHandler(ledgerSvc)
		ledgerHandler.RegisterRoutes(r, authenticator)
		ledgerHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		progress.NewHandler(progressSvc).RegisterRoutes(r, authenticator)
		reveal.NewHandler(revealSvc).RegisterRoutes(r, authenticator, spendLimiter)
		rank.NewHandler().RegisterRoutes(r, authenticator)

		userHandler := user.NewHandler(userSvc)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	drainDelay := cfg.Server.DrainDelay
	if drainDelay <= 0 {
		drainDelay = defaultDrainDelay
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if amqpSink != nil {
		if err := amqpSink.Close(shutdownCtx); err != nil {
			logger.Error("audit sink close error", "error", err)
		}
		logger.Info("audit sink closed",
			"dropped", amqpSink.Dropped(),
			"failed", amqpSink.Failed(),
		)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// setupAuditBroker adds the AMQP publisher next to the log sink. A broker
// that cannot be reached leaves the log sink in place and marks readiness
// degraded.
func setupAuditBroker(
	cfg config.AuditConfig,
	logger *slog.Logger,
	logSink audit.Sink,
	checks []health.Check,
) (audit.Sink, *audit.AMQPSink, []health.Check) {
	conn, err := audit.Connect(cfg.AMQPURL, amqpRetries, amqpRetryDelay)
	if err != nil {
		logger.Warn("audit broker unavailable, logging only", "error", err)
		return logSink, nil, append(checks, health.Check{
			Name:     "audit_broker",
			Checker:  health.CheckFunc(func(context.Context) error { return err }),
			Optional: true,
		})
	}

	ch, err := audit.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // cleanup on setup failure
		logger.Warn("audit channel setup failed, logging only", "error", err)
		return logSink, nil, checks
	}

	amqpSink := audit.NewAMQPSink(ch, cfg, logger)
	logger.Info("audit broker connected", "exchange", cfg.Exchange)

	return audit.Multi{logSink, amqpSink}, amqpSink, append(checks, health.Check{
		Name: "audit_broker",
		Checker: health.CheckFunc(func(context.Context) error {
			if conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		}),
		Optional: true,
	})
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
