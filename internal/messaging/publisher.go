package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/metrics"
)

type Publisher struct {
	sender  Sender
	topic   string
	metrics *metrics.Metrics
}

func NewPublisher(sender Sender, topic string, m *metrics.Metrics) *Publisher {
	return &Publisher{sender: sender, topic: topic, metrics: m}
}

// Publish sends the Request Message for a committed payment, keyed by its GUID.
func (p *Publisher) Publish(ctx context.Context, payment *domain.Payment) error {
	if err := validateOutbound(payment); err != nil {
		p.metrics.Published(metrics.ResultInvalid)
		return fmt.Errorf("Publish: %w", err)
	}

	payload, err := Encode(domain.NewRequestMessage(payment))
	if err != nil {
		p.metrics.Published(metrics.ResultInvalid)
		return fmt.Errorf("Publish: %v: %w", err, domain.ErrInvalidPayment)
	}

	if err := p.sender.Send(ctx, p.topic, payment.ID.String(), payload); err != nil {
		p.metrics.Published(metrics.ResultFailed)
		if errors.Is(err, domain.ErrTransportUnavailable) {
			return fmt.Errorf("Publish %s: %w", payment.ID, err)
		}
		return fmt.Errorf("Publish %s: %v: %w", payment.ID, err, domain.ErrTransportUnavailable)
	}

	p.metrics.Published(metrics.ResultSent)
	return nil
}

func validateOutbound(p *domain.Payment) error {
	switch {
	case p == nil:
		return fmt.Errorf("nil payment: %w", domain.ErrInvalidPayment)
	case p.ID == uuid.Nil:
		return fmt.Errorf("missing guid: %w", domain.ErrInvalidPayment)
	case !p.Amount.IsPositive():
		return fmt.Errorf("amount %s: %w", p.Amount, domain.ErrInvalidPayment)
	case p.Currency == "":
		return fmt.Errorf("missing currency: %w", domain.ErrInvalidPayment)
	}
	return nil
}
