package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

type Reconciler struct {
	store   statusStore
	clock   clockwork.Clock
	metrics *metrics.Metrics
}

func NewReconciler(store statusStore, clock clockwork.Clock, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, clock: clock, metrics: m}
}

// Reconcile moves a payment to the status mapped from an adapter status.
// Unknown statuses are rejected before storage is touched. Re-applying the
// status a payment already holds writes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID uuid.UUID, status domain.AdapterStatus) (domain.PaymentStatus, error) {
	target, err := domain.MapAdapterStatus(status)
	if err != nil {
		return "", &domain.UnknownStatusError{PaymentID: paymentID, Status: status}
	}

	p, changed, err := r.store.ApplyStatus(ctx, paymentID, target, r.clock.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("Reconcile %s: %w", paymentID, err)
	}

	log := logging.FromContext(ctx)
	if changed {
		r.metrics.Reconciled(metrics.OutcomeApplied)
		log.Info("payment status updated", slog.String("status", string(p.Status)))
	} else {
		r.metrics.Reconciled(metrics.OutcomeUnchanged)
		log.Debug("payment status already applied", slog.String("status", string(p.Status)))
	}
	return p.Status, nil
}
