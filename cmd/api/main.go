package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/cache"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/database"
	"github.com/bimakw/stage-rebalancer/internal/presentation/handlers"
	"github.com/bimakw/stage-rebalancer/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting stage-rebalancer API",
		zap.Int("port", cfg.API.Port),
		zap.Int("default_stage", cfg.Strategy.DefaultStage),
	)

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("Failed to register database metrics", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL(), cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied", zap.String("path", cfg.Database.MigrationsPath))
	}

	// Connect to Redis cache (optional)
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Create repositories
	snapshotRepo := database.NewSnapshotRepo(db.DB())
	priceRepo := database.NewPriceRepo(db.DB())
	alertRepo := database.NewAlertRepo(db.DB())

	// Create services
	strategyService := services.NewStrategyService(cfg.Strategy, logger)
	snapshotService := services.NewSnapshotService(snapshotRepo, redisCache, cfg.API.CacheTTL, logger)
	signalsService := services.NewSignalsService(priceRepo, redisCache, cfg.API.CacheTTL, logger)
	alertService := services.NewAlertService(snapshotRepo, alertRepo, logger)

	// Create handlers
	strategyHandler := handlers.NewStrategyHandler(strategyService, signalsService, logger)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService, logger)
	signalsHandler := handlers.NewSignalsHandler(signalsService, logger)
	alertHandler := handlers.NewAlertHandler(alertService, logger)

	healthHandler := handlers.NewHealthHandler(db)
	if redisCache != nil {
		healthHandler = healthHandler.WithOptional("cache", redisCache)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		r.Use(chimiddleware.RequestSize(cfg.API.MaxBodyBytes))

		strategyHandler.RegisterRoutes(r)
		snapshotHandler.RegisterRoutes(r)
		signalsHandler.RegisterRoutes(r)
		alertHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
