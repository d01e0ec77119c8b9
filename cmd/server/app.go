package main

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"time"

	eventapp "github.com/agencyhq/invoicing/internal/application/event"
	identityapp "github.com/agencyhq/invoicing/internal/application/identity"
	invoicingapp "github.com/agencyhq/invoicing/internal/application/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/auth"
	"github.com/agencyhq/invoicing/internal/infrastructure/cache"
	"github.com/agencyhq/invoicing/internal/infrastructure/config"
	"github.com/agencyhq/invoicing/internal/infrastructure/event"
	"github.com/agencyhq/invoicing/internal/infrastructure/logger"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence"
	"github.com/agencyhq/invoicing/internal/infrastructure/printing"
	"github.com/agencyhq/invoicing/internal/infrastructure/scheduler"
	"github.com/agencyhq/invoicing/internal/infrastructure/storage"
	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"github.com/agencyhq/invoicing/internal/interfaces/http/handler"
	"github.com/agencyhq/invoicing/internal/interfaces/http/middleware"
	"github.com/agencyhq/invoicing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// app owns every long-lived component of the server process
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	engine *gin.Engine

	db        *persistence.Database
	dbMetrics *telemetry.DBMetrics
	bus       *event.InMemoryEventBus
	processor *event.OutboxProcessor
	sweeper   *scheduler.OverdueSweeper
	limiter   *middleware.RateLimiter
	closers   []io.Closer

	operatorNetworks []netip.Prefix
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, providers *telemetry.Providers, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	operatorNetworks, err := middleware.ParseNetworks(cfg.HTTP.OperatorNetworks)
	if err != nil {
		return nil, fmt.Errorf("parse operator networks: %w", err)
	}
	a.operatorNetworks = operatorNetworks

	// Database
	sqlLog := logger.NewSQLLogger(log, logger.SQLLogConfig{
		Level:         cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, sqlLog)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		log.Info("Database schema auto-migrated")
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled && providers.Tracer.IsEnabled(),
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.Register(db.DB); err != nil {
		return nil, fmt.Errorf("register database tracing: %w", err)
	}

	meter := providers.Meter.Meter("invoicing")
	if providers.Meter.IsEnabled() {
		a.dbMetrics, err = telemetry.RegisterDBMetrics(ctx, db.DB, meter, telemetry.DBMetricsConfig{
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
	}

	promRegistry := telemetry.NewPrometheusRegistry()
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter, promRegistry)
	if err != nil {
		return nil, fmt.Errorf("create ledger metrics: %w", err)
	}

	// Redis-backed stores, degraded to in-memory when Redis is off or down
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create idempotency store: %w", err)
	}
	if c, ok := idempotencyStore.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	blacklist := newTokenBlacklist(ctx, cfg.Redis, log)
	if c, ok := blacklist.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	// Ledger
	serializer := event.NewInvoicingSerializer()
	publisher := event.NewOutboxPublisher(serializer)
	uow := persistence.NewGormUnitOfWork(db.DB, publisher)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	invoiceService := invoicingapp.NewInvoiceService(uow, invoiceRepo, paymentRepo, invoicingapp.ServiceConfig{
		DefaultDueDays:      cfg.Invoicing.DefaultDueDays,
		DefaultCurrency:     cfg.Invoicing.DefaultCurrency,
		NumberRetryAttempts: cfg.Invoicing.NumberRetryAttempts,
		OverdueBatchSize:    cfg.Invoicing.OverdueSweepBatch,
	}, log)
	paymentService := invoicingapp.NewPaymentService(uow, invoiceRepo, paymentRepo, log,
		invoicingapp.WithIdempotencyStore(idempotencyStore, cfg.Invoicing.IdempotencyTTL))

	// Documents
	renderers, err := newRenderers(cfg.Printing, log)
	if err != nil {
		return nil, err
	}
	for _, r := range renderers {
		a.closers = append(a.closers, r)
	}
	var documentStore invoicingapp.DocumentStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3DocumentStore(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("create document store: %w", err)
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure document bucket: %w", err)
		}
		documentStore = s3Store
	}
	documentService := invoicingapp.NewDocumentService(invoiceService, documentStore,
		cfg.Storage.PresignExpiration, log, renderers...)

	// Identity
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(auth.NewAdminCredentials(cfg.Admin), jwtService, blacklist, log)

	// Events
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	a.bus = event.NewInMemoryEventBus(log)
	metricsHandler := event.NewIdempotentHandler("ledger_metrics",
		invoicingapp.NewLedgerMetricsHandler(ledgerMetrics, log), idempotencyStore, log)
	a.bus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)

	if len(cfg.Event.KafkaBrokers) > 0 {
		relay, err := event.NewKafkaRelayHandler(event.KafkaRelayConfig{
			Brokers: cfg.Event.KafkaBrokers,
			Topic:   cfg.Event.KafkaTopic,
		}, serializer, log)
		if err != nil {
			return nil, fmt.Errorf("create kafka relay: %w", err)
		}
		a.closers = append(a.closers, relay)
		a.bus.Subscribe(event.NewIdempotentHandler("kafka_relay", relay, idempotencyStore, log))
		log.Info("Kafka relay enabled",
			zap.Strings("brokers", cfg.Event.KafkaBrokers),
			zap.String("topic", cfg.Event.KafkaTopic))
	}

	var outboxHandler *handler.OutboxHandler
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.OutboxProcessorConfig{
			BatchSize:    cfg.Event.BatchSize,
			PollInterval: cfg.Event.PollInterval,
			ClaimLease:   cfg.Event.ClaimLease,
			Retry: shared.RetryPolicy{
				MaxAttempts: cfg.Event.MaxRetries,
				BaseDelay:   cfg.Event.RetryBaseDelay,
				MaxDelay:    cfg.Event.RetryMaxDelay,
			},
			PurgeInterval: time.Hour,
		}
		if cfg.Event.CleanupEnabled {
			processorCfg.Retention = cfg.Event.CleanupRetention
		}
		a.processor = event.NewOutboxProcessor(outboxRepo, a.bus, serializer, processorCfg, log,
			event.WithDeliveryObserver(ledgerMetrics))
		outboxHandler = handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log))
	}

	if cfg.Invoicing.OverdueSweepInterval > 0 {
		sweeperCfg := scheduler.DefaultOverdueSweeperConfig()
		sweeperCfg.Interval = cfg.Invoicing.OverdueSweepInterval
		a.sweeper, err = scheduler.NewOverdueSweeper(sweeperCfg, invoiceService, log)
		if err != nil {
			return nil, fmt.Errorf("create overdue sweeper: %w", err)
		}
	}

	// HTTP
	systemHandler := handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion).
		AddCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	if p, ok := idempotencyStore.(pinger); ok {
		systemHandler.AddCheck("redis", p.Ping)
	}

	a.engine, err = a.newEngine(providers, promRegistry, jwtService, blacklist)
	if err != nil {
		return nil, err
	}
	a.engine.GET("/health", systemHandler.Health)

	router.RegisterAPI(router.NewRouter(a.engine), router.APIHandlers{
		Auth:    handler.NewAuthHandler(authService),
		Invoice: handler.NewInvoiceHandler(invoiceService, paymentService, documentService),
		Payment: handler.NewPaymentHandler(paymentService),
		System:  systemHandler,
		Outbox:  outboxHandler,

		OperatorGuard: middleware.RequireOperator(middleware.OperatorAccess{
			Enabled:  true,
			Networks: a.operatorNetworks,
		}, "outbox console"),
	}).Setup()

	return a, nil
}

// newEngine builds the gin engine with the full middleware chain and the
// endpoints that live outside the versioned API.
func (a *app) newEngine(
	providers *telemetry.Providers,
	promRegistry *prometheus.Registry,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
) (*gin.Engine, error) {
	cfg := a.cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.TokenBlacklist = blacklist
	jwtCfg.Logger = a.log
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtCfg)

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = providers.Profiler.IsEnabled()

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(a.log),
		logger.Recovery(a.log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     providers.Tracer.IsEnabled(),
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: providers.Meter,
			Registerer:    promRegistry,
			Logger:        a.log,
		}),
		middleware.ProfilingWithConfig(profilingCfg),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		a.limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitBurst)
		engine.Use(middleware.RateLimit(a.limiter))
	}
	engine.Use(
		middleware.Timeout(cfg.HTTP.WriteTimeout),
		jwtMiddleware,
		middleware.TracingAttributeInjector(),
	)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))
	engine.GET("/swagger/*any",
		middleware.RequireOperator(middleware.OperatorAccess{
			Enabled:  cfg.Swagger.Enabled,
			Networks: a.operatorNetworks,
		}, "API documentation"),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	return engine, nil
}

// start launches the background workers
func (a *app) start(ctx context.Context) error {
	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	if a.processor != nil {
		if err := a.processor.Start(ctx); err != nil {
			return err
		}
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// stop shuts the workers down in reverse start order, then releases
// connections. Errors are logged; shutdown always runs to the end.
func (a *app) stop(ctx context.Context) {
	if a.sweeper != nil {
		if err := a.sweeper.Stop(ctx); err != nil {
			a.log.Warn("Overdue sweeper stop", zap.Error(err))
		}
	}
	if a.processor != nil {
		if err := a.processor.Stop(ctx); err != nil {
			a.log.Warn("Outbox processor stop", zap.Error(err))
		}
	}
	if err := a.bus.Stop(ctx); err != nil {
		a.log.Warn("Event bus stop", zap.Error(err))
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.dbMetrics != nil {
		a.dbMetrics.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("Close failed", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Error("Error closing database", zap.Error(err))
	}
}

// newRenderers returns the configured renderer plus the HTML renderer it
// wraps, so HTML stays available when PDF output is enabled.
func newRenderers(cfg config.PrintingConfig, log *zap.Logger) ([]printing.DocumentRenderer, error) {
	renderer, err := printing.NewRenderer(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create document renderer: %w", err)
	}
	renderers := []printing.DocumentRenderer{renderer}
	if pdf, ok := renderer.(*printing.ChromedpRenderer); ok {
		renderers = append(renderers, pdf.HTML())
	}
	return renderers, nil
}

func newTokenBlacklist(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) auth.TokenBlacklist {
	if !cfg.Enabled {
		return auth.NewInMemoryTokenBlacklist()
	}
	blacklist, err := auth.NewRedisTokenBlacklist(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory token blacklist", zap.Error(err))
		return auth.NewInMemoryTokenBlacklist()
	}
	return blacklist
}
