package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

// OutboxRelay republishes Request Messages whose first send failed.
type OutboxRelay struct {
	outbox    outboxStore
	payments  paymentStore
	publisher requestPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	batch     int
}

func NewOutboxRelay(
	outbox outboxStore,
	payments paymentStore,
	publisher requestPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	interval time.Duration,
	batch int,
) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		payments:  payments,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		batch:     batch,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch", r.batch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *OutboxRelay) poll(ctx context.Context) {
	sent, failed := 0, 0
	_, err := r.outbox.ProcessPending(ctx, r.batch, func(ctx context.Context, e domain.OutboxEntry) error {
		if err := r.relay(ctx, e); err != nil {
			failed++
			r.logger.Warn("outbox relay attempt failed",
				"payment_id", e.PaymentID,
				"attempts", e.Attempts+1,
				"error", err,
			)
			return err
		}
		sent++
		return nil
	})
	if err != nil {
		r.logger.Error("failed to process outbox", "error", err)
	}

	r.metrics.OutboxRelayed(metrics.ResultSent, sent)
	r.metrics.OutboxRelayed(metrics.ResultFailed, failed)
	if sent+failed > 0 {
		r.logger.Info("outbox relayed", "sent", sent, "failed", failed)
	}
}

func (r *OutboxRelay) relay(ctx context.Context, e domain.OutboxEntry) error {
	p, err := r.payments.GetByID(ctx, e.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil
		}
		return err
	}
	return r.publisher.Publish(ctx, p)
}
