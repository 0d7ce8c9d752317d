package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/cache"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/database"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/ethereum"
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

	logger.Info("Starting stage-rebalancer oracle",
		zap.String("rpc_url", cfg.Oracle.RPCURL),
		zap.Duration("poll_interval", cfg.Oracle.PollInterval),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("Failed to register database metrics", zap.Error(err))
	}

	// Connect to Redis cache (optional); the API reads signals from it
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Connect to Ethereum node
	ethClient, err := ethereum.NewClient(cfg.Oracle, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum node", zap.Error(err))
	}
	defer ethClient.Close()

	// Create price feeds
	feeds := make(map[entities.Asset]services.PriceSource, len(entities.Assets))
	for asset, address := range map[entities.Asset]string{
		entities.AssetETH: cfg.Oracle.ETHUSDFeed,
		entities.AssetSOL: cfg.Oracle.SOLUSDFeed,
	} {
		feed, err := ethereum.NewPriceFeed(ethClient, address, cfg.Oracle.MaxStaleness, logger)
		if err != nil {
			logger.Fatal("Failed to create price feed", zap.String("asset", string(asset)), zap.Error(err))
		}
		feeds[asset] = feed
	}

	// Create repositories
	snapshotRepo := database.NewSnapshotRepo(db.DB())
	priceRepo := database.NewPriceRepo(db.DB())
	alertRepo := database.NewAlertRepo(db.DB())

	// Create services
	signalsService := services.NewSignalsService(priceRepo, redisCache, cfg.API.CacheTTL, logger)
	alertService := services.NewAlertService(snapshotRepo, alertRepo, logger)
	oracleService := services.NewOracleService(
		feeds,
		priceRepo,
		signalsService,
		alertService,
		cfg.Oracle,
		services.NewOracleMetrics(nil),
		logger,
	)

	// Start oracle
	if err := oracleService.Start(ctx); err != nil {
		logger.Fatal("Failed to start oracle", zap.Error(err))
	}

	// Start metrics server
	go startMetricsServer(cfg.Oracle.MetricsPort, oracleService, logger)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping oracle...")

	// Graceful shutdown
	oracleService.Stop()

	logger.Info("Oracle stopped")
}

type statusResponse struct {
	Observations  int64  `json:"observations"`
	LastPollTime  string `json:"lastPollTime,omitempty"`
	PollLatencyMs int64  `json:"pollLatencyMs"`
	ErrorCount    int64  `json:"errorCount"`
	LastTriggered int    `json:"lastTriggered"`
}

func startMetricsServer(port int, oracle *services.OracleService, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		status := oracle.GetStatus()
		resp := statusResponse{
			Observations:  status.Observations,
			PollLatencyMs: status.PollLatencyMs,
			ErrorCount:    status.ErrorCount,
			LastTriggered: status.LastTriggered,
		}
		if !status.LastPollTime.IsZero() {
			resp.LastPollTime = status.LastPollTime.UTC().Format(time.RFC3339)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
