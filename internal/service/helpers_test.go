package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
	"github.com/paymentrecon/payment-service/internal/repository"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	published []uuid.UUID
}

func (p *stubPublisher) Publish(_ context.Context, payment *domain.Payment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, payment.ID)
	return nil
}

func (p *stubPublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

var errBrokerDown = errors.New("broker down")

func newTestService(t *testing.T) (*PaymentService, *repository.MemoryStore, *stubPublisher, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	store := repository.NewMemoryStore(clock)
	pub := &stubPublisher{}
	return NewPaymentService(store, store, pub, clock), store, pub, clock
}

// countingStore records how often FindAll reaches storage.
type countingStore struct {
	*repository.MemoryStore
	findAll atomic.Int32
}

func (s *countingStore) FindAll(ctx context.Context, q query.Query) (query.Page[domain.Payment], error) {
	s.findAll.Add(1)
	return s.MemoryStore.FindAll(ctx, q)
}

func createPayment(t *testing.T, svc *PaymentService, amount, currency string) *domain.Payment {
	t.Helper()
	p, err := svc.Create(context.Background(), CreatePaymentInput{
		Amount:   decimal.RequireFromString(amount),
		Currency: domain.Currency(currency),
	})
	require.NoError(t, err)
	return p
}
