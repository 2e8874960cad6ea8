package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
)

// OutboxEntry records the intent to send a RequestMessage for a payment. It is
// written in the same transaction as the payment.
type OutboxEntry struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Status    OutboxStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	SentAt    *time.Time
}
