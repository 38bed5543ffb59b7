package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"squeeze/config"
	"squeeze/encoder"
	"squeeze/failures"
	"squeeze/job"
	"squeeze/logger"
	"squeeze/metrics"
	"squeeze/pipeline"
	"squeeze/results"
	"squeeze/routes"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)
	if err := logger.Init(logger.Options{
		File:       cfg.Log.File,
		Console:    cfg.Log.Console,
		Level:      level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting squeeze server initialization")

	if config.Watch(func(next *config.Config) {
		if lvl, err := logger.ParseLevel(next.Log.Level); err == nil && lvl != logger.Level() {
			logger.SetLevel(lvl)
			logger.Infof("Log level changed to %s", lvl)
		}
	}, func(err error) {
		logger.Warnf("Ignoring invalid configuration change: %v", err)
	}) {
		logger.Info("Watching configuration file for log level changes")
	}

	// Register encoders
	encoder.RegisterDefaults()
	logger.Infof("Available encoders: %v", encoder.Names())
	imaging := pipeline.NewNativeImaging(encoder.Resolve(cfg.Pipeline.Encoder), cfg.Pipeline.MaxPixels)
	pipe := pipeline.New(imaging, pipeline.Options{
		MaxPixels:           cfg.Pipeline.MaxPixels,
		MeasureIntermediate: cfg.Pipeline.MeasureIntermediate,
	})

	// Initialize failure store
	logger.Debug("Initializing failure store")
	if err := failures.Init(); err != nil {
		logger.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer failures.Close()

	// Initialize result store
	logger.Debug("Initializing result store")
	if err := results.Init(); err != nil {
		logger.Fatalf("Failed to initialize result store: %v", err)
	}
	defer results.Close()
	logger.Info("Stores initialized")

	runner := job.NewRunner(cfg.Pipeline.Workers, cfg.Pipeline.QueueTimeout)

	srv, err := routes.NewServer(cfg, pipe, runner)
	if err != nil {
		logger.Fatalf("Failed to set up routes: %v", err)
	}

	if cfg.Delivery.Enabled() {
		logger.Infof("Delivery backend: %s", cfg.Delivery.Backend)
		if cfg.Delivery.Backend == "directServe" {
			if err := os.MkdirAll(cfg.Delivery.ServeDir, 0o755); err != nil {
				logger.Fatalf("Failed to create serve directory %s: %v", cfg.Delivery.ServeDir, err)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start cleanup routine for expired results and failures
	go cleanupRoutine(ctx, cfg.Store)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("squeeze server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

// cleanupRoutine periodically drops expired results and old failure records
func cleanupRoutine(ctx context.Context, store config.StoreConfig) {
	logger.Infof("Cleanup routine started - will run every %s", store.CleanupInterval)
	ticker := time.NewTicker(store.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			n, err := results.CleanupOldRecords(store.ResultTTL)
			if err != nil {
				logger.Errorf("Failed to cleanup expired results: %v", err)
			} else if n > 0 {
				metrics.Expired.WithLabelValues("results").Add(float64(n))
				logger.Debugf("Removed %d expired results", n)
			}

			n, err = failures.CleanupOldRecords(store.FailureTTL)
			if err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else if n > 0 {
				metrics.Expired.WithLabelValues("failures").Add(float64(n))
				logger.Debugf("Removed %d old failure records", n)
			}
		}
	}
}
