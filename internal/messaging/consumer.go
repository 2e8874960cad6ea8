package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

type StatusReconciler interface {
	Reconcile(ctx context.Context, paymentID uuid.UUID, status domain.AdapterStatus) (domain.PaymentStatus, error)
}

// ResponseConsumer turns Response Messages into reconciliations. It is a
// Handler: nil acknowledges the delivery, an error leaves it for redelivery.
type ResponseConsumer struct {
	reconciler StatusReconciler
	dedup      Deduplicator
	metrics    *metrics.Metrics
}

func NewResponseConsumer(r StatusReconciler, dedup Deduplicator, m *metrics.Metrics) *ResponseConsumer {
	if dedup == nil {
		dedup = NopDeduplicator{}
	}
	return &ResponseConsumer{reconciler: r, dedup: dedup, metrics: m}
}

func (c *ResponseConsumer) Handle(ctx context.Context, d Delivery) error {
	logger := logging.FromContext(ctx).With("partition", d.Partition, "offset", d.Offset, "attempt", d.Attempt)

	var msg domain.ResponseMessage
	if err := Decode(d.Payload, &msg); err != nil {
		// Redelivering a payload that can never decode would block the partition.
		logger.Error("dropping undecodable response", "error", err)
		c.metrics.Dropped("undecodable")
		return nil
	}
	if msg.PaymentGUID == uuid.Nil {
		logger.Error("dropping response without payment guid", "message_id", msg.MessageID)
		c.metrics.Dropped("missing_guid")
		return nil
	}

	logger = logging.WithPayment(logger, msg.PaymentGUID).With("message_id", msg.MessageID, "status", msg.Status)
	ctx = logging.WithLogger(ctx, logger)

	if msg.MessageID != uuid.Nil {
		seen, err := c.dedup.Seen(ctx, msg.MessageID)
		if err != nil {
			logger.Warn("dedup lookup failed, reconciling anyway", "error", err)
		}
		if seen {
			logger.Debug("response already processed")
			c.metrics.Reconciled(metrics.OutcomeDuplicate)
			return nil
		}
	}

	status, err := c.reconciler.Reconcile(ctx, msg.PaymentGUID, msg.Status)
	if err != nil {
		c.metrics.Reconciled(outcomeOf(err))
		logger.Warn("reconciliation failed", "error", err)
		return fmt.Errorf("Handle %s: %w", msg.PaymentGUID, err)
	}

	if msg.MessageID != uuid.Nil {
		if err := c.dedup.Remember(ctx, msg.MessageID); err != nil {
			logger.Warn("dedup remember failed", "error", err)
		}
	}

	logger.Info("payment reconciled", "payment_status", status)
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownStatus):
		return metrics.OutcomeUnknownStatus
	case errors.Is(err, domain.ErrPaymentNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
