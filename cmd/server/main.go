package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/config"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/instruments"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/marketprice"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/pubsub"
)

var (
	version   = "1.0.0"
	startTime = time.Now()
)

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.Info("Starting OKX market price subscription service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: ", err)
	}

	// Set log level and format
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	marketType, err := models.ParseMarketType(cfg.Service.DefaultMarket)
	if err != nil {
		logger.Fatal("Invalid DEFAULT_MARKET_TYPE: ", err)
	}

	// Optional Redis publisher
	var publisher marketprice.TickerPublisher
	if cfg.Redis.Enabled {
		logger.Info("Connecting to Redis...")
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis: ", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected successfully")

		publisher = pubsub.NewPublisher(redisClient, cfg.Redis.ChannelPrefix, logger)
	}

	// Initialize fetcher and subscription manager
	fetcher := instruments.NewFetcher(cfg.Rest.BaseURL, cfg.Rest.Timeout, logger)

	manager := marketprice.NewSubscriptionManager(
		marketprice.NewWebsocketDialer(),
		cfg.Stream.URL,
		cfg.Stream.Channel,
		marketprice.RetryPolicy{
			Interval:    cfg.Stream.CloseRetryInterval,
			MaxAttempts: cfg.Stream.MaxCloseAttempts,
		},
		cfg.Stream.PingInterval,
		logger,
	)

	// Initialize market price service
	svc := marketprice.NewService(fetcher, manager, publisher, cfg.Service.DefaultPageSize, cfg.Service.Verbose, logger)

	// Pre-seed instrument lists if configured
	if cfg.Service.SeedFile != "" {
		seed, err := instruments.LoadSeedFromYAML(cfg.Service.SeedFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load instrument seed file, falling back to REST fetch")
		} else {
			svc.Seed(seed)
		}
	}

	// Start HTTP server for health checks and metrics
	go startHTTPServer(cfg, logger)

	// Open the initial subscription
	if err := svc.Get(context.Background(), 1, marketType, func(ticker models.Ticker) {
		logger.WithFields(logrus.Fields{
			"inst_id": ticker.InstID,
			"last":    ticker.LastPrice.String(),
			"bid":     ticker.BidPrice.String(),
			"ask":     ticker.AskPrice.String(),
		}).Info("Ticker update")
	}, ""); err != nil {
		logger.WithError(err).Fatal("Failed to open subscription")
	}

	logger.Infof("Service v%s started: %s page 1 of %d (page size %d)",
		version, marketType, svc.GetPageCount(marketType), svc.GetPageSize(marketType))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	if err := svc.Dispose(); err != nil {
		logger.WithError(err).Error("Failed to dispose service")
	}

	logger.Info("Shutdown complete")
}

func startHTTPServer(cfg *config.Config, logger *logrus.Logger) {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"healthy":true,"version":"%s","uptime_seconds":%d}`,
			version, int64(time.Since(startTime).Seconds()))
	})

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Infof("HTTP server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("HTTP server failed: ", err)
	}
}
