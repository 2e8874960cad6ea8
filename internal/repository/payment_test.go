package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
	"github.com/paymentrecon/payment-service/internal/testutil"
)

func setupPaymentRepo(t *testing.T) (*PaymentRepository, *OutboxRepository, *DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := NewDB(testutil.SetupTestDB(t))
	return NewPaymentRepository(db), NewOutboxRepository(db), db
}

func pendingEntry(p *domain.Payment) *domain.OutboxEntry {
	return &domain.OutboxEntry{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Status:    domain.OutboxStatusPending,
		CreatedAt: p.CreatedAt,
	}
}

func TestPaymentRepository_CreateAndGet(t *testing.T) {
	payments, outbox, _ := setupPaymentRepo(t)
	ctx := context.Background()

	p := testutil.NewPayment("123.45", "EUR")
	require.NoError(t, payments.CreateWithOutbox(ctx, p, pendingEntry(p)))

	got, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.InquiryRefID, got.InquiryRefID)
	assert.True(t, p.Amount.Equal(got.Amount))
	assert.Equal(t, p.Currency, got.Currency)
	assert.Equal(t, domain.PaymentStatusReceived, got.Status)
	assert.Nil(t, got.TransactionRefID)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	entries, err := outbox.GetByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxStatusPending, entries[0].Status)

	ok, err := payments.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = payments.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentRepository_CreateIsAtomic(t *testing.T) {
	payments, _, _ := setupPaymentRepo(t)
	ctx := context.Background()

	p := testutil.NewPayment("10.00", "USD")
	entry := pendingEntry(p)
	entry.Status = "bogus"

	require.Error(t, payments.CreateWithOutbox(ctx, p, entry))

	ok, err := payments.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentRepository_ApplyStatus(t *testing.T) {
	payments, _, db := setupPaymentRepo(t)
	ctx := context.Background()

	p := testutil.SeedPayment(t, db.Conn(), testutil.NewPayment("10.00", "USD"))
	later := p.UpdatedAt.Add(time.Second)

	updated, changed, err := payments.ApplyStatus(ctx, p.ID, domain.PaymentStatusApproved, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PaymentStatusApproved, updated.Status)
	assert.True(t, later.Equal(updated.UpdatedAt))

	again, changed, err := payments.ApplyStatus(ctx, p.ID, domain.PaymentStatusApproved, later.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, later.Equal(again.UpdatedAt))

	_, _, err = payments.ApplyStatus(ctx, uuid.New(), domain.PaymentStatusApproved, later)
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentRepository_UpdatedAtNeverMovesBack(t *testing.T) {
	payments, _, db := setupPaymentRepo(t)
	ctx := context.Background()

	p := testutil.SeedPayment(t, db.Conn(), testutil.NewPayment("10.00", "USD"))

	updated, err := payments.UpdateStatus(ctx, p.ID, domain.PaymentStatusPending, p.UpdatedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, updated.Status)
	assert.True(t, p.UpdatedAt.Equal(updated.UpdatedAt))
}

func TestPaymentRepository_UpdateNoteDelete(t *testing.T) {
	payments, _, db := setupPaymentRepo(t)
	ctx := context.Background()

	p := testutil.SeedPayment(t, db.Conn(), testutil.NewPayment("10.00", "USD"))
	require.NoError(t, payments.UpdateNote(ctx, p.ID, "hello", p.UpdatedAt.Add(time.Minute)))

	got, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Note)
	assert.Equal(t, "hello", *got.Note)

	txRef := uuid.New()
	got.TransactionRefID = &txRef
	got.Amount = decimal.RequireFromString("11.00")
	got.UpdatedAt = got.UpdatedAt.Add(time.Minute)
	saved, err := payments.Update(ctx, got)
	require.NoError(t, err)
	require.NotNil(t, saved.TransactionRefID)
	assert.Equal(t, txRef, *saved.TransactionRefID)
	assert.Equal(t, "11", saved.Amount.String())

	require.NoError(t, payments.Delete(ctx, p.ID))
	require.ErrorIs(t, payments.Delete(ctx, p.ID), domain.ErrPaymentNotFound)
	require.ErrorIs(t, payments.UpdateNote(ctx, p.ID, "x", time.Now()), domain.ErrPaymentNotFound)
}

func TestPaymentRepository_FindAll(t *testing.T) {
	payments, _, db := setupPaymentRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, amount := range []string{"5.00", "10.00", "15.50", "20.00", "123.45"} {
		p := testutil.NewPayment(amount, "USD")
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		p.UpdatedAt = p.CreatedAt
		testutil.SeedPayment(t, db.Conn(), p)
	}
	eur := testutil.NewPayment("12.00", "EUR")
	eur.Status = domain.PaymentStatusApproved
	testutil.SeedPayment(t, db.Conn(), eur)

	lower, upper := decimal.NewFromInt(10), decimal.NewFromInt(20)
	desc := query.Desc
	tests := []struct {
		name      string
		spec      query.FilterSpec
		wantTotal int
		wantFirst string
	}{
		{"empty filter", query.FilterSpec{}, 6, ""},
		{"min only", query.FilterSpec{MinAmount: &lower}, 5, ""},
		{"interval desc", query.FilterSpec{MinAmount: &lower, MaxAmount: &upper, DirectionAmount: &desc}, 4, "20"},
		{"currency", query.FilterSpec{Currencies: []domain.Currency{"EUR"}}, 1, "12"},
		{"status", query.FilterSpec{Status: ptr(domain.PaymentStatusApproved)}, 1, "12"},
		{"created window", query.FilterSpec{CreatedFrom: ptr(base.Add(time.Hour)), CreatedTo: ptr(base.Add(2 * time.Hour))}, 2, ""},
		{"inquiry ref", query.FilterSpec{InquiryRefIDs: []uuid.UUID{eur.InquiryRefID}}, 1, "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := query.Build(tt.spec)
			require.NoError(t, err)

			page, err := payments.FindAll(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.TotalItems)
			assert.Len(t, page.Items, tt.wantTotal)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, page.Items[0].Amount.String())
			}
		})
	}

	q, err := query.Build(query.FilterSpec{PageNumber: ptr(1), PageSize: ptr(4)})
	require.NoError(t, err)
	page, err := payments.FindAll(ctx, q)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 6, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
}

func TestOutboxRepository_ProcessPending(t *testing.T) {
	payments, outbox, _ := setupPaymentRepo(t)
	ctx := context.Background()

	ok := testutil.NewPayment("1.00", "USD")
	bad := testutil.NewPayment("2.00", "USD")
	require.NoError(t, payments.CreateWithOutbox(ctx, ok, pendingEntry(ok)))
	require.NoError(t, payments.CreateWithOutbox(ctx, bad, pendingEntry(bad)))

	sent, err := outbox.ProcessPending(ctx, 10, func(_ context.Context, e domain.OutboxEntry) error {
		if e.PaymentID == bad.ID {
			return errors.New("broker down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	entries, err := outbox.GetByPaymentID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusSent, entries[0].Status)
	assert.NotNil(t, entries[0].SentAt)

	entries, err = outbox.GetByPaymentID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusPending, entries[0].Status)
	assert.Equal(t, 1, entries[0].Attempts)
	require.NotNil(t, entries[0].LastError)
	assert.Equal(t, "broker down", *entries[0].LastError)

	require.NoError(t, outbox.MarkSent(ctx, bad.ID))
	entries, err = outbox.GetByPaymentID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusSent, entries[0].Status)
}

func TestIdempotencyRepository(t *testing.T) {
	_, _, db := setupPaymentRepo(t)
	repo := NewIdempotencyRepository(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now().UTC()
	require.NoError(t, repo.Set(ctx, &IdempotencyCacheEntry{
		Key: "k1", RequestHash: "h", StatusCode: 201, ResponseBody: []byte(`{"ok":true}`),
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.Set(ctx, &IdempotencyCacheEntry{
		Key: "old", RequestHash: "h", StatusCode: 200, ResponseBody: []byte(`{}`),
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	got, err = repo.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(got.ResponseBody))

	n, err := repo.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func ptr[T any](v T) *T { return &v }
