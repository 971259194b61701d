package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/planner/internal/api"
	"example.com/planner/internal/auth"
	"example.com/planner/internal/config"
	"example.com/planner/internal/domain"
	"example.com/planner/internal/logging"
	"example.com/planner/internal/outbox"
	"example.com/planner/internal/persistence/memory"
	"example.com/planner/internal/persistence/postgres"
	"example.com/planner/internal/persistence/sqlite"
	httptransport "example.com/planner/internal/transport/http"
	authlib "example.com/planner/pkg/auth"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(os.Stderr, "api", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatal("invalid logging configuration", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	labels, err := cfg.LoadLabels()
	if err != nil {
		logger.Fatal("load labels", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, dispatcher := openRepository(ctx, cfg, logger)
	defer closeRepo()
	if dispatcher != nil {
		go dispatcher.Start(ctx)
	}

	service := domain.NewService(repo,
		domain.WithLogger(logger.WithPrefix("domain")),
		domain.WithLabels(labels),
	)

	handler := api.NewHandler(service, api.WithLogger(logger))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authenticate := auth.Middleware(authlib.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		httptransport.RequestLogger(logger.WithPrefix("http")),
		httptransport.CORS(cfg.CORSOrigin),
		authenticate,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("planner api listening", "addr", cfg.HTTPAddress, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}

// openRepository selects the storage driver. Only the postgres driver publishes events,
// so it is the only one that returns a dispatcher.
func openRepository(ctx context.Context, cfg config.Config, logger *log.Logger) (domain.ActivityRepository, func(), *outbox.Dispatcher) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("open sqlite", "path", cfg.SQLitePath, "err", err)
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.NewRepository(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", "err", err)
	}
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
		outbox.WithLogger(logger.WithPrefix("outbox")))

	closeFn := func() {
		if err := producer.Close(); err != nil {
			logger.Error("close kafka producer", "err", err)
		}
		pool.Close()
	}
	return postgres.NewRepository(pool), closeFn, dispatcher
}
