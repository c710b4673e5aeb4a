package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/application/detection"
	"github.com/channelsync/backend/internal/application/propagation"
	"github.com/channelsync/backend/internal/application/reconcile"
	"github.com/channelsync/backend/internal/infrastructure/cache"
	"github.com/channelsync/backend/internal/infrastructure/config"
	"github.com/channelsync/backend/internal/infrastructure/event"
	"github.com/channelsync/backend/internal/infrastructure/logger"
	"github.com/channelsync/backend/internal/infrastructure/marketplace"
	"github.com/channelsync/backend/internal/infrastructure/persistence"
	"github.com/channelsync/backend/internal/infrastructure/scheduler"
	"github.com/channelsync/backend/internal/infrastructure/telemetry"
	"github.com/channelsync/backend/internal/interfaces/http/handler"
	"github.com/channelsync/backend/internal/interfaces/http/middleware"
	"github.com/channelsync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ChannelSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Development convenience; production runs versioned migrations
	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	linkRepo := persistence.NewGormPlatformLinkRepository(db.DB)
	eventLog := persistence.NewGormEventLog(db.DB)

	// Initialize caches (Redis-backed, in-memory fallback)
	cacheFactory := cache.NewFactory(cfg.Redis, cache.WithLogger(log))

	suppressor, err := cacheFactory.CreateEchoSuppressor()
	if err != nil {
		log.Fatal("Failed to create echo suppressor", zap.Error(err))
	}
	defer func() {
		if err := suppressor.Close(); err != nil {
			log.Error("Error closing echo suppressor", zap.Error(err))
		}
	}()

	idempotencyStore, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize marketplace adapters from config
	registry, err := marketplace.NewRegistryFromConfig(&cfg.Marketplaces)
	if err != nil {
		log.Fatal("Failed to build marketplace registry", zap.Error(err))
	}
	for _, adapter := range registry.List() {
		log.Info("Marketplace adapter registered", zap.String("platform", adapter.Code().String()))
	}

	// Initialize event bus and subscribe the run audit trail
	eventBus := event.NewInMemoryEventBus(log)

	auditHandler := detection.NewSyncRunAuditHandler(log)
	eventBus.Subscribe(event.NewIdempotentHandler(auditHandler, idempotencyStore, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize propagation (outbound writes to marketplaces)
	propagator := propagation.NewService(registry, linkRepo, productRepo, suppressor, propagation.Config{
		QueueSize:   cfg.Propagation.QueueSize,
		SuppressTTL: cfg.Propagation.SuppressTTL,
		Retry: propagation.RetryPolicy{
			MaxAttempts:    cfg.Propagation.MaxAttempts,
			InitialBackoff: cfg.Propagation.InitialBackoff,
			MaxBackoff:     cfg.Propagation.MaxBackoff,
			Multiplier:     2.0,
		},
	}, log)
	if err := propagator.Start(context.Background()); err != nil {
		log.Fatal("Failed to start propagation service", zap.Error(err))
	}
	defer func() {
		if err := propagator.Stop(context.Background()); err != nil {
			log.Error("Error stopping propagation service", zap.Error(err))
		}
	}()

	// Initialize detection and reconciliation
	detector := detection.NewService(registry, linkRepo, eventLog, eventBus, suppressor, detection.Config{
		FetchTimeout:  cfg.Detection.FetchTimeout,
		OrderLookback: cfg.Detection.OrderLookback,
	}, log)

	reconciler := reconcile.NewEngine(productRepo, linkRepo, eventLog, registry, propagator, reconcile.Config{
		MirrorNewListings: cfg.Reconcile.MirrorNewListings,
	}, log)

	// Initialize the sync scheduler; manual triggers need it running even
	// when the periodic trigger is disabled
	schedulerConfig := scheduler.DefaultSyncSchedulerConfig()
	schedulerConfig.JobTimeout = cfg.Scheduler.JobTimeout
	schedulerConfig.HistorySize = cfg.Scheduler.HistorySize

	executor := scheduler.NewSyncCycleExecutor(detector, reconciler)
	syncScheduler, err := scheduler.NewSyncScheduler(schedulerConfig, executor, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()

	if cfg.Scheduler.Enabled {
		triggerConfig := scheduler.DefaultSyncCronTriggerConfig()
		triggerConfig.SyncInterval = cfg.Scheduler.SyncInterval
		triggerConfig.PurgeEnabled = cfg.EventLog.PurgeEnabled
		triggerConfig.PurgeRetention = cfg.EventLog.PurgeRetention

		cronTrigger, err := scheduler.NewSyncCronTrigger(triggerConfig, syncScheduler, eventLog, log)
		if err != nil {
			log.Fatal("Failed to create sync cron trigger", zap.Error(err))
		}
		if err := cronTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync cron trigger", zap.Error(err))
		}
		defer func() {
			if err := cronTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync cron trigger", zap.Error(err))
			}
		}()
		log.Info("Sync cron trigger started",
			zap.Duration("sync_interval", triggerConfig.SyncInterval),
			zap.Bool("purge_enabled", triggerConfig.PurgeEnabled),
		)
	}

	// Initialize HTTP handlers
	syncHandler := handler.NewSyncHandler(syncScheduler, detector, reconciler, propagator, eventLog)
	systemHandler := handler.NewSystemHandler(db, registry)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	// Health check endpoint (outside API versioning)
	engine.GET("/healthz", systemHandler.Health)

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(syncHandler).Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
