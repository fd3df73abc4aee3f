package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/faasbill/backend/internal/application/billing"
	pricingapp "github.com/faasbill/backend/internal/application/pricing"
	registryapp "github.com/faasbill/backend/internal/application/registry"
	usageapp "github.com/faasbill/backend/internal/application/usage"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/cache"
	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/messaging"
	"github.com/faasbill/backend/internal/infrastructure/persistence"
	"github.com/faasbill/backend/internal/infrastructure/scheduler"
	"github.com/faasbill/backend/internal/infrastructure/storage"
	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/faasbill/backend/internal/interfaces/http/handler"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/faasbill/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			FaaS Billing API
//	@version		1.0
//	@description	Usage metering and billing for function-as-a-service tenants
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/faasbill/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// OTLP log export is bridged into zap, so the logger is rebuilt once the
	// provider exists
	logsProvider, err := telemetry.NewLoggerProvider(rootCtx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if logsProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logsProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting FaaS billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		Allocations:     cfg.Telemetry.ProfilingAllocations,
		SpanProfiles:    cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing unavailable", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            meterProvider.IsEnabled(),
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  15 * time.Second,
	}, log)
	if err != nil {
		log.Warn("Database metrics unavailable", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(rootCtx)
	}

	// Dedupe keys and bill locks live in Redis when it is configured
	stores, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!isProduction(cfg.App.Env)),
	).Create(rootCtx)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()

	objectStorage, err := storage.New(rootCtx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	serviceRepo := persistence.NewGormServiceRepository(db.DB)
	planRepo := persistence.NewGormPricingPlanRepository(db.DB)
	usageRepo := persistence.NewGormUsageRepository(db.DB)
	billRepo := persistence.NewGormBillRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	// Initialize application services
	clock := shared.SystemClock
	registryService := registryapp.NewService(tenantRepo, serviceRepo, objectStorage, clock, registryapp.Options{
		MaxUploadSize:     cfg.Storage.MaxUploadSize,
		PresignExpiration: cfg.Storage.PresignExpiration,
	}, log)
	pricingService := pricingapp.NewService(planRepo, tenantRepo, clock, log)
	usageService, err := usageapp.NewService(usageRepo, serviceRepo, stores.Idempotency, clock, usageapp.Options{
		Policy:         usage.WindowPolicy{Size: cfg.Usage.WindowSize, Grace: cfg.Usage.GracePeriod},
		MaxClockSkew:   cfg.Usage.MaxClockSkew,
		DedupeTTL:      cfg.Usage.DedupeTTL,
		EventRetention: cfg.Usage.EventRetention,
		MaxBatchSize:   cfg.Usage.MaxBatchSize,
	}, log)
	if err != nil {
		log.Fatal("Invalid usage configuration", zap.Error(err))
	}
	billingService := billingapp.NewService(pricingService, usageService, billRepo, paymentRepo, stores.Locker, clock, billingapp.Options{
		LockTTL:  cfg.Billing.LockTTL,
		LockWait: cfg.Billing.LockWait,
	}, log)

	billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:          meterProvider.Meter("faasbill/billing"),
		Logger:         log,
		WindowProvider: usageRepo,
	})
	if err != nil {
		log.Warn("Billing metrics unavailable", zap.Error(err))
	} else {
		usageService.SetMetrics(billingMetrics)
		billingService.SetMetrics(billingMetrics)
		if meterProvider.IsEnabled() {
			billingMetrics.StartPeriodicCollection(rootCtx, cfg.Telemetry.MetricsInterval)
		}
	}

	// Background workers
	windowScheduler := scheduler.NewWindowCloseScheduler(usageService, log, scheduler.WindowCloseSchedulerConfig{
		Enabled:       cfg.Usage.SchedulerEnabled,
		CloseInterval: cfg.Usage.CloseInterval,
		PurgeInterval: cfg.Usage.PurgeInterval,
		RunTimeout:    cfg.Usage.RunTimeout,
	})
	if err := windowScheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start window close scheduler", zap.Error(err))
	}

	var consumer *messaging.UsageEventConsumer
	if cfg.Kafka.Enabled {
		reader, err := messaging.NewKafkaReader(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to create Kafka reader", zap.Error(err))
		}
		consumer = messaging.NewUsageEventConsumer(reader, usageService, cfg.Kafka.RetryBackoff, log)
		if err := consumer.Start(rootCtx); err != nil {
			log.Fatal("Failed to start usage event consumer", zap.Error(err))
		}
	}

	var ingestLimiter *middleware.RateLimiter
	if cfg.HTTP.IngestRateLimit {
		ingestLimiter = middleware.NewRateLimiter(cfg.HTTP.IngestRatePerSecond, cfg.HTTP.IngestBurst, 0)
		ingestLimiter.StartCleanup(rootCtx, time.Minute)
	}

	// HTTP layer
	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:             cfg.HTTP,
		Production:       isProduction(cfg.App.Env),
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   tracerProvider.IsEnabled(),
		MeterProvider:    meterProvider,
		MetricsEnabled:   meterProvider.IsEnabled(),
		ProfilingEnabled: profiler.IsEnabled(),
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	routes := router.Register(engine, router.Handlers{
		Health:  handler.NewHealthHandler(db, stores),
		Tenant:  handler.NewTenantHandler(registryService, pricingService),
		Service: handler.NewServiceHandler(registryService),
		Plan:    handler.NewPricingPlanHandler(pricingService),
		Usage:   handler.NewUsageHandler(usageService, clock),
		Billing: handler.NewBillingHandler(billingService),
	}, router.RouteOptions{
		MaxBodySize:   cfg.HTTP.MaxBodySize,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		IngestLimiter: ingestLimiter,
		Swagger:       !isProduction(cfg.App.Env),
	})
	log.Info("Routes registered", zap.Int("count", len(routes.Routes())))

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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Stop(ctx); err != nil {
			log.Warn("Usage event consumer stop", zap.Error(err))
		}
	}
	if err := windowScheduler.Stop(ctx); err != nil {
		log.Warn("Window close scheduler stop", zap.Error(err))
	}
	stopRoot()

	if billingMetrics != nil {
		billingMetrics.Stop()
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Warn("Meter provider shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Warn("Tracer provider shutdown", zap.Error(err))
	}
	if err := logsProvider.Shutdown(ctx); err != nil {
		log.Warn("Log provider shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func isProduction(env string) bool {
	return env == "production" || env == "prod"
}
