package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/query"
	"github.com/paymentrecon/payment-service/internal/repository"
)

func TestPaymentService_Create(t *testing.T) {
	svc, store, pub, _ := newTestService(t)
	ctx := context.Background()
	inquiry := uuid.New()

	p, err := svc.Create(ctx, CreatePaymentInput{
		InquiryRefID: inquiry,
		Amount:       decimal.RequireFromString("123.45"),
		Currency:     "EUR",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusReceived, p.Status)
	assert.Equal(t, inquiry, p.InquiryRefID)
	assert.Equal(t, epoch, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Equal(t, []uuid.UUID{p.ID}, pub.published)

	entries, err := store.GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxStatusSent, entries[0].Status)
}

func TestPaymentService_CreateGeneratesInquiryRef(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	p := createPayment(t, svc, "1.00", "USD")
	assert.NotEqual(t, uuid.Nil, p.InquiryRefID)
}

func TestPaymentService_CreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  error
	}{
		{"zero amount", "0", "USD", domain.ErrInvalidAmount},
		{"negative amount", "-5.00", "USD", domain.ErrInvalidAmount},
		{"too many decimals", "1.005", "USD", domain.ErrInvalidAmount},
		{"lower-case currency", "1.00", "usd", domain.ErrInvalidCurrency},
		{"short currency", "1.00", "US", domain.ErrInvalidCurrency},
		{"empty currency", "1.00", "", domain.ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, pub, _ := newTestService(t)

			_, err := svc.Create(context.Background(), CreatePaymentInput{
				Amount:   decimal.RequireFromString(tt.amount),
				Currency: domain.Currency(tt.currency),
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, pub.published)

			page, err := store.FindAll(context.Background(), query.MatchAll())
			require.NoError(t, err)
			assert.Zero(t, page.TotalItems)
		})
	}
}

func TestPaymentService_PublishFailureMarksNotSent(t *testing.T) {
	svc, store, pub, clock := newTestService(t)
	pub.setErr(errBrokerDown)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreatePaymentInput{Amount: decimal.RequireFromString("50.00"), Currency: "GBP"})
	require.ErrorIs(t, err, domain.ErrTransportUnavailable)
	require.NotNil(t, p)
	assert.Equal(t, domain.PaymentStatusNotSent, p.Status)

	stored, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusNotSent, stored.Status)

	entries, err := store.GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxStatusPending, entries[0].Status)

	relay := NewOutboxRelay(store, store, pub, nil, logging.Discard(), time.Second, 10)
	relay.poll(ctx)

	entries, _ = store.GetByPaymentID(ctx, p.ID)
	assert.Equal(t, domain.OutboxStatusPending, entries[0].Status)
	assert.Equal(t, 1, entries[0].Attempts)
	require.NotNil(t, entries[0].LastError)

	pub.setErr(nil)
	clock.Advance(time.Second)
	relay.poll(ctx)

	entries, _ = store.GetByPaymentID(ctx, p.ID)
	assert.Equal(t, domain.OutboxStatusSent, entries[0].Status)
	assert.Nil(t, entries[0].LastError)
	assert.Equal(t, 1, pub.count())
}

func TestPaymentService_Update(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()
	p := createPayment(t, svc, "10.00", "USD")
	txRef := uuid.New()
	note := "manual correction"

	clock.Advance(time.Minute)
	updated, err := svc.Update(ctx, p.ID, UpdatePaymentInput{
		Amount:           decimal.RequireFromString("12.50"),
		Currency:         "EUR",
		TransactionRefID: &txRef,
		Status:           domain.PaymentStatusPending,
		Note:             &note,
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("12.50").Equal(updated.Amount))
	assert.Equal(t, domain.Currency("EUR"), updated.Currency)
	assert.Equal(t, p.InquiryRefID, updated.InquiryRefID)
	assert.Equal(t, &txRef, updated.TransactionRefID)
	assert.Equal(t, domain.PaymentStatusPending, updated.Status)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.Equal(t, epoch.Add(time.Minute), updated.UpdatedAt)

	_, err = svc.Update(ctx, p.ID, UpdatePaymentInput{Amount: decimal.NewFromInt(1), Currency: "EUR", Status: "LOST"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.Update(ctx, uuid.New(), UpdatePaymentInput{Amount: decimal.NewFromInt(1), Currency: "EUR", Status: domain.PaymentStatusPending})
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentService_NoteStatusDelete(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()
	p := createPayment(t, svc, "10.00", "USD")

	clock.Advance(time.Second)
	withNote, err := svc.UpdateNote(ctx, p.ID, "urgent")
	require.NoError(t, err)
	require.NotNil(t, withNote.Note)
	assert.Equal(t, "urgent", *withNote.Note)
	assert.True(t, withNote.UpdatedAt.After(p.UpdatedAt))

	approved, err := svc.UpdateStatus(ctx, p.ID, domain.PaymentStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, approved.Status)

	_, err = svc.UpdateStatus(ctx, p.ID, "SETTLED")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, svc.Delete(ctx, p.ID))
	ok, err := svc.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, svc.Delete(ctx, p.ID), domain.ErrPaymentNotFound)
	_, err = svc.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentService_Search(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	for _, amount := range []string{"5.00", "10.00", "15.50", "20.00", "123.45"} {
		createPayment(t, svc, amount, "USD")
		clock.Advance(time.Second)
	}
	createPayment(t, svc, "12.00", "EUR")

	lower, upper := decimal.NewFromInt(10), decimal.NewFromInt(20)
	desc := query.Desc
	page, err := svc.Search(ctx, query.FilterSpec{
		Currencies:      []domain.Currency{"USD"},
		MinAmount:       &lower,
		MaxAmount:       &upper,
		DirectionAmount: &desc,
	})
	require.NoError(t, err)

	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, "20", page.Items[0].Amount.String())
	assert.Equal(t, "15.5", page.Items[1].Amount.String())
	assert.Equal(t, "10", page.Items[2].Amount.String())

	all, err := svc.List(ctx, 1, 4)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, 6, all.TotalItems)
	assert.Equal(t, 2, all.TotalPages)

	_, err = svc.List(ctx, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidPageRequest)
}

func TestPaymentService_InvalidPageNeverReachesStorage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	store := &countingStore{MemoryStore: repository.NewMemoryStore(clock)}
	svc := NewPaymentService(store, store, &stubPublisher{}, clock)
	ctx := context.Background()

	tests := []struct {
		name         string
		number, size int
	}{
		{"zero size", 0, 0},
		{"negative page", -1, 10},
		{"offset overflow", 1 << 62, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(ctx, tt.number, tt.size)
			require.ErrorIs(t, err, domain.ErrInvalidPageRequest)
		})
	}
	assert.Zero(t, store.findAll.Load())

	_, err := svc.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.findAll.Load())
}
