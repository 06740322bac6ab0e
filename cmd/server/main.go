package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcommission "github.com/erp/commission/internal/application/commission"
	"github.com/erp/commission/internal/infrastructure/cache"
	"github.com/erp/commission/internal/infrastructure/config"
	"github.com/erp/commission/internal/infrastructure/logger"
	"github.com/erp/commission/internal/infrastructure/persistence"
	"github.com/erp/commission/internal/infrastructure/scheduler"
	"github.com/erp/commission/internal/infrastructure/telemetry"
	"github.com/erp/commission/internal/interfaces/http/handler"
	"github.com/erp/commission/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	providers, err := telemetry.NewProviders(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		SpanProfiles:      cfg.Telemetry.SpanProfiles,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog, zapcore.InfoLevel)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting commission service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	// Database with zap-backed GORM logger and otelgorm tracing
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Log.Level),
		Tracing: telemetry.DBTracingConfig{
			Enabled:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBName:        cfg.Database.DBName,
			WithVariables: cfg.Telemetry.DBLogFullSQL,
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	// Postgres schemas are owned by cmd/migrate
	if db.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	// Repositories
	ledger := persistence.NewGormInvoiceLedger(db.DB)
	directory := persistence.NewGormEmployeeDirectory(db.DB)
	drafts := persistence.NewGormAdditionalSalaryRepository(db.DB)
	auditLog := persistence.NewGormAuditLog(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)

	metrics, err := telemetry.NewRunMetrics(nil)
	if err != nil {
		log.Fatal("Failed to register run metrics", zap.Error(err))
	}

	var runLock cache.RunLock
	var serviceLock appcommission.RunLock
	if cfg.Commission.LockEnabled {
		runLock, err = cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).CreateLock()
		if err != nil {
			log.Fatal("Failed to create run lock", zap.Error(err))
		}
		serviceLock = runLock
	}

	loc := cfg.Commission.TimeLocation()
	runService := appcommission.NewRunService(
		appcommission.NewSettingsResolver(settingsRepo, cfg.Commission.Settings()),
		appcommission.NewRevenueAggregator(ledger, log, metrics),
		appcommission.NewDraftReconciler(drafts, log, metrics),
		directory,
		auditLog,
		serviceLock,
		metrics,
		log,
		appcommission.RunServiceConfig{
			Location:          loc,
			SkippedTraceLimit: cfg.Commission.SkippedTraceLimit,
			ResultTraceLimit:  cfg.Commission.ResultTraceLimit,
			LockTTL:           cfg.Commission.LockTTL,
		},
	)

	// Monthly trigger on the worker-pool scheduler
	var jobScheduler *scheduler.Scheduler
	var trigger *scheduler.MonthlyTrigger
	if cfg.Scheduler.Enabled {
		jobScheduler = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Enabled:           true,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
			QueueSize:         scheduler.DefaultSchedulerConfig().QueueSize,
		}, scheduler.NewCommissionRunExecutor(runService, log), log)
		if err := jobScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}

		trigger = scheduler.NewMonthlyTrigger(scheduler.MonthlyTriggerConfig{
			DayOfMonth:    cfg.Scheduler.DayOfMonth,
			Hour:          cfg.Scheduler.Hour,
			Minute:        cfg.Scheduler.Minute,
			CheckInterval: cfg.Scheduler.CheckInterval,
			Location:      loc,
		}, jobScheduler, log)
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start monthly trigger", zap.Error(err))
		}
		log.Info("Monthly commission trigger started",
			zap.Time("next_run_at", trigger.NextRunAt(time.Now())),
		)
	}

	// HTTP
	ginMode := gin.DebugMode
	if cfg.App.Env == "production" {
		ginMode = gin.ReleaseMode
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Mode:           ginMode,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to configure HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewCommissionHandler(runService, auditLog, loc)).
		Register(systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

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
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(ctx); err != nil {
			log.Error("Error stopping monthly trigger", zap.Error(err))
		}
	}
	if jobScheduler != nil {
		if err := jobScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if runLock != nil {
		if err := runLock.Close(); err != nil {
			log.Error("Error closing run lock", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
