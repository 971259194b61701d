package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/planner/internal/config"
	"example.com/planner/internal/consumer"
	"example.com/planner/internal/logging"
	"example.com/planner/internal/observability"
)

// The event log consumer copies every planner event from Kafka into planner_event_log.
func main() {
	cfg := config.Load()
	logger, err := logging.New(os.Stderr, "consumer", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatal("invalid logging configuration", "err", err)
	}
	if len(cfg.ConsumerTopics) == 0 {
		logger.Fatal("no topics configured", "env", "CONSUMER_TOPICS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", "err", err)
	}
	defer pool.Close()

	metrics := observability.ServeMetrics(cfg.MetricsAddress, logger)
	handler := consumer.NewPersistenceHandler(pool)

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumeTopic(ctx, cfg, topic, handler, logger.With("topic", topic))
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	wg.Wait()
	metrics.Shutdown(10 * time.Second)
}

func consumeTopic(ctx context.Context, cfg config.Config, topic string, handler consumer.Handler, logger *log.Logger) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.ConsumerGroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("close reader", "err", err)
		}
	}()

	logger.Info("consuming", "group", cfg.ConsumerGroupID)
	err := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger)).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "err", err)
	}
}
