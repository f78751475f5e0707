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
	"go.uber.org/zap"

	importapp "github.com/erp/catalogsync/internal/application/import"
	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
	"github.com/erp/catalogsync/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := bootstrap.LoadDotEnv(); err != nil {
		panic(err.Error())
	}

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catalogsync import API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	tel, err := bootstrap.NewTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = tel.Logger(log)

	db, err := bootstrap.OpenDatabase(cfg, log, tel.DB)
	if err != nil {
		log.Fatal("Failed to open import history database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Import history database ready", zap.String("driver", db.Driver()))

	titleGuard, err := cache.OpenTitleGuard(ctx, cfg.Redis, cache.WithLogger(log.Named("title_guard")))
	if err != nil {
		log.Fatal("Failed to create import title store", zap.Error(err))
	}
	defer func() {
		if err := titleGuard.Close(); err != nil {
			log.Error("Error closing import title store", zap.Error(err))
		}
	}()

	storefront, err := bootstrap.NewShopifyClient(cfg, log, tel.Platform)
	if err != nil {
		log.Fatal("Failed to create storefront client", zap.Error(err))
	}

	importService := importapp.NewProductImportService(storefront,
		importapp.WithTitleGuard(titleGuard, cfg.Import.TitleGuardTTL),
		importapp.WithMaxBatchSize(cfg.Import.MaxBatchSize),
		importapp.WithLogger(log.Named("import")),
	)
	historyService := importapp.NewImportHistoryService(
		persistence.NewGormImportRunRepository(db.DB),
		log.Named("import_history"),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var traceService string
	if cfg.Telemetry.Enabled {
		traceService = cfg.Telemetry.ServiceName
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:         log,
		TraceService:   traceService,
		AllowOrigins:   cfg.HTTP.CORSAllowOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
	})

	importLimiter := middleware.NewRateLimiter(cfg.HTTP.ImportRateLimit, time.Minute)
	defer importLimiter.Close()
	log.Info("Import rate limiting enabled", zap.Int("requests_per_minute", cfg.HTTP.ImportRateLimit))

	importHandler := handler.NewStorefrontImportHandler(importService, historyService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)

	router.NewAPI(engine, router.WithVersion("v1")).
		Add(
			router.StorefrontRoutes(importHandler, systemHandler, middleware.RateLimit(importLimiter)),
			router.SystemRoutes(systemHandler),
		).
		Mount()

	// Also keep a health check outside API versioning
	engine.GET("/health", systemHandler.Health)

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
