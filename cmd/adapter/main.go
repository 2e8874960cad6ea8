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

	"github.com/paymentrecon/payment-service/internal/adapter"
	"github.com/paymentrecon/payment-service/internal/config"
	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/handler"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/messaging"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

func main() {
	cfg, err := config.LoadAdapter()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("settlement-adapter", cfg.LogLevel, cfg.AppEnv)
	if err := run(cfg, logger); err != nil {
		logger.Error("settlement adapter failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AdapterConfig, logger *slog.Logger) error {
	if cfg.Transport != config.TransportNATS {
		return fmt.Errorf("adapter needs TRANSPORT=%s, got %q", config.TransportNATS, cfg.Transport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	clock := clockwork.NewRealClock()

	tr, err := messaging.ConnectNATS(messaging.NATSConfig{
		Name:            "settlement-adapter",
		URL:             cfg.NatsURL,
		Partitions:      cfg.Partitions,
		RedeliveryDelay: cfg.RedeliveryDelay,
	}, logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := tr.EnsureStream(ctx, cfg.ResponseTopic); err != nil {
		return err
	}

	sched := adapter.NewScheduler(clock)
	sim := adapter.NewSimulator(tr, sched, clock, adapter.FixedStatus(domain.AdapterStatus(cfg.SimulatorStatus)), adapter.Config{
		ResponseTopic: cfg.ResponseTopic,
		Delay:         cfg.SimulatorDelay,
	}, m, logger)

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	if err := tr.Subscribe(subCtx, cfg.RequestTopic, cfg.ConsumerGroup, sim.OnRequest); err != nil {
		return err
	}

	health := handler.NewHealthHandler(map[string]handler.Check{
		"nats": func(context.Context) error { return tr.Ping() },
	})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.Handle("GET /metrics", m.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("settlement adapter started",
			"addr", addr, "delay", cfg.SimulatorDelay, "status", cfg.SimulatorStatus,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down settlement adapter", "pending_responses", sched.Pending())

	cancelSub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	logger.Info("settlement adapter stopped")
	return nil
}
