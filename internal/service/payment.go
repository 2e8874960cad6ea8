package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/query"
)

type CreatePaymentInput struct {
	InquiryRefID uuid.UUID
	Amount       decimal.Decimal
	Currency     domain.Currency
	Note         *string
}

type UpdatePaymentInput struct {
	InquiryRefID     uuid.UUID
	Amount           decimal.Decimal
	Currency         domain.Currency
	TransactionRefID *uuid.UUID
	Status           domain.PaymentStatus
	Note             *string
}

type PaymentService struct {
	store     paymentStore
	outbox    outboxStore
	publisher requestPublisher
	clock     clockwork.Clock
}

func NewPaymentService(store paymentStore, outbox outboxStore, publisher requestPublisher, clock clockwork.Clock) *PaymentService {
	return &PaymentService{store: store, outbox: outbox, publisher: publisher, clock: clock}
}

// now is truncated to the precision Postgres stores.
func (s *PaymentService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// Create stores a RECEIVED payment together with its outbox entry and then
// publishes the Request Message. When publishing fails the payment is kept
// as NOT_SENT and returned alongside an error wrapping
// domain.ErrTransportUnavailable; the outbox relay retries the send.
func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (*domain.Payment, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if !in.Currency.IsValid() {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidCurrency)
	}

	inquiryRef := in.InquiryRefID
	if inquiryRef == uuid.Nil {
		inquiryRef = uuid.New()
	}

	now := s.now()
	p := &domain.Payment{
		ID:           uuid.New(),
		InquiryRefID: inquiryRef,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Status:       domain.PaymentStatusReceived,
		Note:         in.Note,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	entry := &domain.OutboxEntry{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Status:    domain.OutboxStatusPending,
		CreatedAt: now,
	}

	if err := s.store.CreateWithOutbox(ctx, p, entry); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	log := logging.WithPayment(logging.FromContext(ctx), p.ID)
	log.Info("payment created", "amount", p.Amount.String(), "currency", p.Currency)

	if err := s.publisher.Publish(ctx, p); err != nil {
		log.Warn("request not sent, left for outbox relay", "error", err)

		updated, uerr := s.store.UpdateStatus(ctx, p.ID, domain.PaymentStatusNotSent, s.now())
		if uerr != nil {
			log.Error("failed to mark payment not sent", "error", uerr)
		} else {
			p = updated
		}
		if !errors.Is(err, domain.ErrTransportUnavailable) {
			err = fmt.Errorf("%v: %w", err, domain.ErrTransportUnavailable)
		}
		return p, fmt.Errorf("Create: %w", err)
	}

	if err := s.outbox.MarkSent(ctx, p.ID); err != nil {
		// The relay will send a duplicate request; the reconciler tolerates it.
		log.Error("failed to mark outbox entry sent", "error", err)
	}
	return p, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (s *PaymentService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return ok, nil
}

// Update replaces the mutable attributes of a payment.
func (s *PaymentService) Update(ctx context.Context, id uuid.UUID, in UpdatePaymentInput) (*domain.Payment, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if !in.Currency.IsValid() {
		return nil, fmt.Errorf("Update: %w", domain.ErrInvalidCurrency)
	}
	if !in.Status.IsValid() {
		return nil, fmt.Errorf("Update: %w", domain.ErrInvalidStatus)
	}

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if in.InquiryRefID != uuid.Nil {
		p.InquiryRefID = in.InquiryRefID
	}
	p.Amount = in.Amount
	p.Currency = in.Currency
	p.TransactionRefID = in.TransactionRefID
	p.Status = in.Status
	p.Note = in.Note
	p.Touch(s.now())

	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return updated, nil
}

func (s *PaymentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (s *PaymentService) UpdateNote(ctx context.Context, id uuid.UUID, note string) (*domain.Payment, error) {
	if err := s.store.UpdateNote(ctx, id, note, s.now()); err != nil {
		return nil, fmt.Errorf("UpdateNote: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PaymentService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Payment, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidStatus)
	}
	p, err := s.store.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	return p, nil
}

// Search runs a filter against storage. Invalid page requests are rejected
// before storage is queried.
func (s *PaymentService) Search(ctx context.Context, f query.FilterSpec) (query.Page[domain.Payment], error) {
	q, err := query.Build(f)
	if err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("Search: %w", err)
	}
	page, err := s.store.FindAll(ctx, q)
	if err != nil {
		return query.Page[domain.Payment]{}, fmt.Errorf("Search: %w", err)
	}
	return page, nil
}

func (s *PaymentService) List(ctx context.Context, pageNumber, pageSize int) (query.Page[domain.Payment], error) {
	return s.Search(ctx, query.FilterSpec{PageNumber: &pageNumber, PageSize: &pageSize})
}

func validateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !a.Equal(a.Round(domain.AmountScale)) {
		return fmt.Errorf("more than %d decimal places: %w", domain.AmountScale, domain.ErrInvalidAmount)
	}
	return nil
}
