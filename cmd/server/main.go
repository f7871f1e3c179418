package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/whackboard/internal/cache"
	"github.com/whackboard/internal/config"
	"github.com/whackboard/internal/handler"
	"github.com/whackboard/internal/kafka"
	"github.com/whackboard/internal/scoring"
	"github.com/whackboard/internal/service"
	"github.com/whackboard/internal/store"
	"github.com/whackboard/internal/websocket"
	"github.com/whackboard/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env if present, then configuration
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Build scoring rules from config
	ranks := make([]scoring.RankBand, len(cfg.Scoring.Ranks))
	for i, band := range cfg.Scoring.Ranks {
		ranks[i] = scoring.RankBand{MinScore: band.MinScore, Label: band.Label}
	}
	rules, err := scoring.NewRules(cfg.Scoring.EventPoints, ranks, cfg.Scoring.Levels)
	if err != nil {
		logger.Error("invalid scoring configuration", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the profile store
	var profiles store.ProfileStore
	switch cfg.Store.Driver {
	case "memory":
		logger.Info("using in-memory profile store")
		profiles = store.NewMemory()
	default:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		pg, err := store.NewPostgres(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		profiles = pg
		logger.Info("connected to PostgreSQL")
	}
	defer profiles.Close()

	// Initialize the Redis mirror
	var scoreCache *cache.Cache
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		scoreCache, err = cache.New(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
			scoreCache = nil
		} else {
			defer scoreCache.Close()
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the ledger service
	ledger := service.NewLedger(profiles, rules, scoreCache, &cfg.Leaderboard, logger)
	ledger.SetHub(wsHub)

	// Initialize sweep worker
	sweepWorker := worker.NewSweepWorker(profiles, scoreCache, &cfg.Worker, logger)

	// Rebuild the cache from the store on startup (recovery)
	if scoreCache != nil {
		logger.Info("rebuilding leaderboard cache from store")
		if err := sweepWorker.RebuildCache(ctx); err != nil {
			logger.Warn("failed to rebuild cache on startup", "error", err)
		}
	}

	// Start sweep worker
	if cfg.Worker.Enabled {
		if err := sweepWorker.Start(ctx); err != nil {
			logger.Error("failed to start sweep worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, ledger, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(ledger, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop sweep worker
	if err := sweepWorker.Stop(); err != nil {
		logger.Error("failed to stop sweep worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
