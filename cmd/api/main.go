package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/paymentrecon/payment-service/api"
	"github.com/paymentrecon/payment-service/internal/adapter"
	"github.com/paymentrecon/payment-service/internal/config"
	"github.com/paymentrecon/payment-service/internal/handler"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/messaging"
	"github.com/paymentrecon/payment-service/internal/metrics"
	"github.com/paymentrecon/payment-service/internal/middleware"
	"github.com/paymentrecon/payment-service/internal/repository"
	"github.com/paymentrecon/payment-service/internal/service"
)

type idempotencyStore interface {
	Get(ctx context.Context, key string) (*repository.IdempotencyCacheEntry, error)
	Set(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	CleanExpired(ctx context.Context) (int64, error)
}

type components struct {
	payments    *service.PaymentService
	reconciler  *service.Reconciler
	relay       *service.OutboxRelay
	idempotency idempotencyStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payment-service", cfg.LogLevel, cfg.AppEnv)
	if err := run(cfg, logger); err != nil {
		logger.Error("payment service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Consumers and pollers stop with ctx; cancel it before closing what they use.
	ctx, cancel := context.WithCancel(sigCtx)
	var closers []func()
	defer func() {
		cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	m := metrics.New()
	clock := clockwork.NewRealClock()
	checks := map[string]handler.Check{}

	transport, closeTransport, err := openTransport(ctx, cfg, clock, m, logger, checks)
	if err != nil {
		return err
	}
	closers = append(closers, closeTransport)

	publisher := messaging.NewPublisher(transport, cfg.RequestTopic, m)

	comps, closeStorage, err := openStorage(ctx, cfg, publisher, clock, m, logger, checks)
	if err != nil {
		return err
	}
	closers = append(closers, closeStorage)

	dedup, closeDedup, err := openDedup(ctx, cfg, clock, checks)
	if err != nil {
		return err
	}
	closers = append(closers, closeDedup)

	consumer := messaging.NewResponseConsumer(comps.reconciler, dedup, m)
	if err := transport.Subscribe(ctx, cfg.ResponseTopic, cfg.ConsumerGroup, consumer.Handle); err != nil {
		return fmt.Errorf("subscribe responses: %w", err)
	}

	go comps.relay.Start(ctx)
	go sweepIdempotency(ctx, comps.idempotency, cfg.IdempotencySweepInt, logger)

	router := handler.NewRouter(
		handler.NewPaymentHandler(comps.payments),
		handler.NewHealthHandler(checks),
		m.Handler(),
	)
	router.HandleFunc("GET /docs", handler.ServeDocs("/docs/openapi.yaml"))
	router.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.OpenAPI))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: middleware.Chain(router,
			middleware.Tracing,
			middleware.Logging(m),
			middleware.Recovery,
			middleware.Idempotency(comps.idempotency, cfg.IdempotencyTTL),
		),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "storage", cfg.StorageDriver, "transport", cfg.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openTransport(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
	checks map[string]handler.Check,
) (messaging.Transport, func(), error) {
	if cfg.Transport == config.TransportNATS {
		tr, err := messaging.ConnectNATS(messaging.NATSConfig{
			URL:             cfg.NatsURL,
			Partitions:      cfg.Partitions,
			RedeliveryDelay: cfg.RedeliveryDelay,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := tr.EnsureStream(ctx, cfg.RequestTopic); err != nil {
			tr.Close()
			return nil, nil, err
		}
		checks["nats"] = func(context.Context) error { return tr.Ping() }
		return tr, tr.Close, nil
	}

	// In-process bus: the settlement simulator runs embedded.
	bus := messaging.NewMemoryBus(cfg.Partitions, cfg.RedeliveryDelay, logger)
	sched := adapter.NewScheduler(clock)
	sim := adapter.NewSimulator(bus, sched, clock, adapter.AlwaysSucceed(), adapter.Config{
		ResponseTopic: cfg.ResponseTopic,
		Delay:         cfg.SimulatorDelay,
	}, m, logger.With("component", "simulator"))
	if err := bus.Subscribe(ctx, cfg.RequestTopic, "settlement-adapter", sim.OnRequest); err != nil {
		return nil, nil, fmt.Errorf("subscribe simulator: %w", err)
	}

	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Shutdown(shutdownCtx); err != nil {
			logger.Warn("simulator shutdown incomplete", "error", err)
		}
		bus.Close()
	}
	return bus, closeFn, nil
}

func openStorage(
	ctx context.Context,
	cfg *config.Config,
	publisher *messaging.Publisher,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
	checks map[string]handler.Check,
) (components, func(), error) {
	relayLogger := logger.With("component", "outbox_relay")

	if cfg.StorageDriver == config.StorageMemory {
		store := repository.NewMemoryStore(clock)
		return components{
			payments:    service.NewPaymentService(store, store, publisher, clock),
			reconciler:  service.NewReconciler(store, clock, m),
			relay:       service.NewOutboxRelay(store, store, publisher, m, relayLogger, cfg.OutboxInterval, cfg.OutboxBatch),
			idempotency: repository.NewMemoryIdempotencyCache(),
		}, func() {}, nil
	}

	sqlDB, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, cfg.DBConnectAttempts)
	if err != nil {
		return components{}, nil, fmt.Errorf("connect database: %w", err)
	}
	checks["database"] = sqlDB.PingContext

	db := repository.NewDB(sqlDB)
	payments := repository.NewPaymentRepository(db)
	outbox := repository.NewOutboxRepository(db)

	return components{
		payments:    service.NewPaymentService(payments, outbox, publisher, clock),
		reconciler:  service.NewReconciler(payments, clock, m),
		relay:       service.NewOutboxRelay(outbox, payments, publisher, m, relayLogger, cfg.OutboxInterval, cfg.OutboxBatch),
		idempotency: repository.NewIdempotencyRepository(db),
	}, func() { sqlDB.Close() }, nil
}

func openDedup(ctx context.Context, cfg *config.Config, clock clockwork.Clock, checks map[string]handler.Check) (messaging.Deduplicator, func(), error) {
	if cfg.RedisURL == "" {
		return messaging.NewMemoryDeduplicator(clock, cfg.DedupTTL), func() {}, nil
	}

	client, err := messaging.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return messaging.NewRedisDeduplicator(client, cfg.DedupTTL), func() { client.Close() }, nil
}

func sweepIdempotency(ctx context.Context, store idempotencyStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanExpired(ctx)
			if err != nil {
				logger.Error("failed to clean idempotency cache", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("idempotency cache cleaned", "removed", n)
			}
		}
	}
}
