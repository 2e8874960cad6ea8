// Package adapter simulates the external settlement system. It consumes
// Request Messages and answers each one with a single Response Message after
// a fixed delay.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/messaging"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

// Policy decides the status the simulator reports for a request.
type Policy func(domain.RequestMessage) domain.AdapterStatus

func AlwaysSucceed() Policy {
	return FixedStatus(domain.AdapterStatusSucceeded)
}

// FixedStatus reports s for every request. s need not be a known status.
func FixedStatus(s domain.AdapterStatus) Policy {
	return func(domain.RequestMessage) domain.AdapterStatus { return s }
}

type Config struct {
	ResponseTopic string
	Delay         time.Duration
	SendTimeout   time.Duration
}

type Simulator struct {
	sender    messaging.Sender
	scheduler *Scheduler
	clock     clockwork.Clock
	policy    Policy
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewSimulator(
	sender messaging.Sender,
	scheduler *Scheduler,
	clock clockwork.Clock,
	policy Policy,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Simulator {
	if policy == nil {
		policy = AlwaysSucceed()
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Simulator{
		sender:    sender,
		scheduler: scheduler,
		clock:     clock,
		policy:    policy,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// OnRequest is a messaging.Handler for the request topic.
func (s *Simulator) OnRequest(ctx context.Context, d messaging.Delivery) error {
	var req domain.RequestMessage
	if err := messaging.Decode(d.Payload, &req); err != nil {
		s.logger.Error("dropping undecodable request", "offset", d.Offset, "error", err)
		s.metrics.Simulated("", metrics.ResultInvalid)
		return nil
	}

	logger := logging.WithPayment(s.logger, req.PaymentGUID)
	if err := s.scheduler.Schedule(s.cfg.Delay, func() { s.respond(req, logger) }); err != nil {
		return fmt.Errorf("OnRequest %s: %w", req.PaymentGUID, err)
	}

	logger.Info("response scheduled", "delay", s.cfg.Delay)
	return nil
}

func (s *Simulator) respond(req domain.RequestMessage, logger *slog.Logger) {
	resp := domain.ResponseMessage{
		MessageID:        uuid.New(),
		PaymentGUID:      req.PaymentGUID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		TransactionRefID: uuid.New(),
		Status:           s.policy(req),
		OccurredAt:       s.clock.Now().UTC(),
	}

	payload, err := messaging.Encode(resp)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		s.metrics.Simulated(string(resp.Status), metrics.ResultInvalid)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, s.cfg.ResponseTopic, req.PaymentGUID.String(), payload); err != nil {
		logger.Error("failed to send response", "status", resp.Status, "error", err)
		s.metrics.Simulated(string(resp.Status), metrics.ResultFailed)
		return
	}

	logger.Info("response sent", "status", resp.Status, "message_id", resp.MessageID)
	s.metrics.Simulated(string(resp.Status), metrics.ResultSent)
}
