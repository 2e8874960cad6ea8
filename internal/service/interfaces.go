package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
)

type paymentStore interface {
	CreateWithOutbox(ctx context.Context, payment *domain.Payment, entry *domain.OutboxEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateNote(ctx context.Context, id uuid.UUID, note string, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, error)
	FindAll(ctx context.Context, q query.Query) (query.Page[domain.Payment], error)
}

type statusStore interface {
	ApplyStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, bool, error)
}

type outboxStore interface {
	MarkSent(ctx context.Context, paymentID uuid.UUID) error
	ProcessPending(ctx context.Context, limit int, fn func(context.Context, domain.OutboxEntry) error) (int, error)
}

type requestPublisher interface {
	Publish(ctx context.Context, payment *domain.Payment) error
}
