package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/storefront/backend/docs"
	exportapp "github.com/storefront/backend/internal/application/export"
	"github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/printing"
	"github.com/storefront/backend/internal/infrastructure/raster"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Storefront Export API
//	@version		1.0
//	@description	Renders storefront documents to trimmed PNG images
//	@BasePath		/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Storefront Export",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// =========================================================================
	// Telemetry
	// =========================================================================

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		ExportLogs:        cfg.Telemetry.ExportLogs,
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetryCfg, log.Named("telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		exportLevel, err := zapcore.ParseLevel(cfg.Telemetry.LogLevel)
		if err != nil {
			log.Fatal("Invalid telemetry log level", zap.String("level", cfg.Telemetry.LogLevel), zap.Error(err))
		}
		log = telemetry.Bridge(log, logProvider, exportLevel)
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log.Named("telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log.Named("telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.App.Name)
	exportMetrics, err := telemetry.NewExportMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create export metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServer,
		ApplicationName:   cfg.App.Name,
		BasicAuthUser:     cfg.Telemetry.ProfilingUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingPassword,
	}, log.Named("profiler"))
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.SpanProfiles {
		tracerProvider.EnableSpanProfiles(profiler)
	}

	// =========================================================================
	// Database
	// =========================================================================

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQuery),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if err := db.Migrate(ctx, log.Named("migrate")); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	dbSystem := "postgresql"
	if db.Driver() == persistence.DriverSQLite {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		SlowQueryThresh: cfg.Telemetry.DBSlowQuery,
		DBSystem:        dbSystem,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB.Stats); err != nil {
			log.Warn("Failed to register pool metrics", zap.Error(err))
		}
	}

	jobRepo := persistence.NewGormExportJobRepository(db.DB)

	// =========================================================================
	// Cache, storage and rendering
	// =========================================================================

	artifactCache, err := cache.NewArtifactCacheFactory(cfg.Redis,
		cache.WithLogger(log.Named("cache")),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateCache()
	if err != nil {
		log.Fatal("Failed to create artifact cache", zap.Error(err))
	}

	artifactStorage, err := storage.NewArtifactStorage(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if fs, ok := artifactStorage.(*printing.FileSystemStorage); ok && cfg.Storage.Retention > 0 {
		go fs.RunCleanup(sweepCtx, time.Hour, cfg.Storage.Retention)
	}

	browser, err := printing.NewChromedpRasterizer(&printing.ChromedpConfig{
		DefaultTimeout: cfg.Chrome.Timeout,
		RemoteURL:      cfg.Chrome.RemoteURL,
		Headless:       true,
		DisableGPU:     true,
		NoSandbox:      cfg.Chrome.NoSandbox,
		ViewportWidth:  cfg.Chrome.ViewportWidth,
		ViewportHeight: cfg.Chrome.ViewportHeight,
		Logger:         log.Named("chromedp"),
	})
	if err != nil {
		log.Fatal("Failed to initialize Chrome rasterizer", zap.Error(err))
	}

	engine, err := raster.NewEngine(browser, browser, &raster.EngineConfig{
		ReadinessTimeout: cfg.Export.ReadinessTimeout,
		MaxPixels:        cfg.Export.MaxPixels,
		Logger:           log.Named("raster"),
	})
	if err != nil {
		log.Fatal("Failed to create export engine", zap.Error(err))
	}

	// =========================================================================
	// Events and application services
	// =========================================================================

	bus := event.NewInMemoryEventBus(log.Named("events"), event.WithAsync(256))
	jobLogger := event.NewExportJobLogger(log.Named("export-jobs"))
	bus.Subscribe(jobLogger, jobLogger.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	serviceOpts := []exportapp.ExportServiceOption{
		exportapp.WithEventPublisher(bus),
		exportapp.WithMetrics(exportMetrics),
		exportapp.WithDefaultOptions(export.RenderOptions{
			Scale:          cfg.Export.Scale,
			Padding:        cfg.Export.Padding,
			WhiteThreshold: cfg.Export.WhiteThreshold,
			SampleStep:     cfg.Export.SampleStep,
			Background:     cfg.Export.Background,
		}),
		exportapp.WithMaxHTMLBytes(cfg.Export.MaxHTMLBytes),
		exportapp.WithMaxConcurrentRenders(cfg.Export.MaxConcurrentRenders),
		exportapp.WithRenderTimeout(cfg.Chrome.Timeout),
	}
	if cfg.Export.CacheEnabled {
		serviceOpts = append(serviceOpts, exportapp.WithArtifactCache(artifactCache, cfg.Export.CacheTTL))
	}

	exportService := exportapp.NewExportService(
		jobRepo,
		printing.NewTemplateEngine(printing.WithCurrencySymbol(cfg.Export.CurrencySymbol)),
		browser,
		engine,
		artifactStorage,
		log.Named("export"),
		serviceOpts...,
	)

	// =========================================================================
	// HTTP
	// =========================================================================

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	handler.DefaultTenantID = cfg.Export.DefaultTenantID

	ginEngine := gin.New()
	if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.App.Name
	tracingCfg.Enabled = tracerProvider.IsEnabled()

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.DefaultTenantID = cfg.Export.DefaultTenantID
	tenantCfg.Logger = log

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.App.Env == "production"

	ginEngine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(tracingCfg),
		logger.GinMiddleware(log),
		httpMetrics,
		middleware.CORSWithConfig(corsCfg),
		middleware.SecureWithConfig(securityCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tenant(tenantCfg),
		middleware.SpanEnricher(),
	)

	var renderLimit gin.HandlerFunc
	var limiter *middleware.RateLimiter
	if cfg.Export.RenderRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Export.RenderRateLimit, cfg.Export.RenderRateWindow)
		renderLimit = middleware.RateLimit(limiter)
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
		"database": db.Ping,
	})

	r := router.NewRouter(ginEngine, router.WithAPIVersion("v1"))
	r.Register(handler.ExportRoutes(handler.NewExportHandler(exportService), renderLimit)).
		Register(handler.SystemRoutes(systemHandler))
	r.Setup()

	ginEngine.GET("/health", systemHandler.Health)
	ginEngine.GET(r.BasePath()+"/health", systemHandler.Health)
	ginEngine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	for _, route := range r.Routes() {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if limiter != nil {
		limiter.Stop()
	}
	stopSweep()
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := browser.Close(); err != nil {
		log.Error("Error closing Chrome", zap.Error(err))
	}
	if err := artifactCache.Close(); err != nil {
		log.Error("Error closing artifact cache", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
