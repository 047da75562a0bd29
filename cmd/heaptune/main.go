package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/23skdu/heaptune/internal/logging"
	"github.com/23skdu/heaptune/internal/tuner"
)

func main() {
	// .env is optional; deployments configure through the environment
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("heaptune", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Start metrics server
	go func() {
		logger.Info("starting metrics server", zap.String("address", cfg.MetricsAddr))
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// The simulator plays the storage engine: it feeds observations in and
	// adopts whatever split the tuner emits.
	sim := newWorkloadSimulator(cfg.BlockCacheSize, cfg.MemStoreSize, time.Now().UnixNano())
	engine := tuner.NewDefaultTuner(cfg.TunerConfig(), logger)
	manager := tuner.NewManager(engine, sim, sim, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("heap memory tuner starting",
		zap.Duration("period", cfg.TunePeriod),
		zap.Float64("block_cache_size", cfg.BlockCacheSize),
		zap.Float64("memstore_size", cfg.MemStoreSize),
	)
	manager.Start(ctx, cfg.TunePeriod)
	logger.Info("heap memory tuner stopped")
}
