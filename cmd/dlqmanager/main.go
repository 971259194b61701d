package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/planner/internal/config"
	"example.com/planner/internal/logging"
	"example.com/planner/internal/observability"
	"example.com/planner/internal/outbox"
)

const batchSize = 50

// The DLQ manager re-enqueues dead-lettered planner events with backoff and
// quarantines those that keep failing.
func main() {
	cfg := config.Load()
	logger, err := logging.New(os.Stderr, "dlq", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatal("invalid logging configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", "err", err)
	}
	defer pool.Close()

	metrics := observability.ServeMetrics(cfg.MetricsAddress, logger)
	defer metrics.Shutdown(10 * time.Second)

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
	logger.Info("started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)
	sweep(ctx, manager, cfg.DLQPollInterval, logger)
	logger.Info("shutting down")
}

// sweep runs one DLQ pass per interval until ctx is cancelled.
func sweep(ctx context.Context, manager *outbox.DLQManager, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		processed, err := manager.RunOnce(ctx, batchSize)
		switch {
		case err != nil:
			logger.Error("dlq pass", "err", err)
		case processed > 0:
			logger.Info("dlq pass", "processed", processed)
		}
	}
}
