package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/paymentrecon/payment-service/internal/domain"
	"github.com/paymentrecon/payment-service/internal/query"
)

// MemoryStore keeps payments and their outbox in process memory. It serves the
// same contracts as PaymentRepository and OutboxRepository and is used when
// the service runs without Postgres.
type MemoryStore struct {
	clock clockwork.Clock

	mu       sync.Mutex
	order    []uuid.UUID
	payments map[uuid.UUID]domain.Payment
	outbox   []domain.OutboxEntry
}

// NewMemoryStore stamps outbox send times from clock; nil means the real clock.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock, payments: make(map[uuid.UUID]domain.Payment)}
}

func (s *MemoryStore) CreateWithOutbox(_ context.Context, p *domain.Payment, e *domain.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID]; ok {
		return fmt.Errorf("CreateWithOutbox: payment %s already exists", p.ID)
	}
	s.payments[p.ID] = *p
	s.order = append(s.order, p.ID)
	s.outbox = append(s.outbox, *e)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrPaymentNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.payments[id]
	return ok, nil
}

func (s *MemoryStore) Update(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.payments[p.ID]
	if !ok {
		return nil, fmt.Errorf("Update: %w", domain.ErrPaymentNotFound)
	}
	updated := *p
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = current.UpdatedAt
	updated.Touch(p.UpdatedAt)
	s.payments[p.ID] = updated
	return &updated, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("Delete: %w", domain.ErrPaymentNotFound)
	}
	delete(s.payments, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) UpdateNote(_ context.Context, id uuid.UUID, note string, at time.Time) error {
	return s.mutate(id, "UpdateNote", func(p *domain.Payment) bool {
		p.Note = &note
		p.Touch(at)
		return true
	})
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, error) {
	var out domain.Payment
	err := s.mutate(id, "UpdateStatus", func(p *domain.Payment) bool {
		p.Status = status
		p.Touch(at)
		out = *p
		return true
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) ApplyStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus, at time.Time) (*domain.Payment, bool, error) {
	var out domain.Payment
	changed := false
	err := s.mutate(id, "ApplyStatus", func(p *domain.Payment) bool {
		if p.Status != status {
			p.Status = status
			p.Touch(at)
			changed = true
		}
		out = *p
		return changed
	})
	if err != nil {
		return nil, false, err
	}
	return &out, changed, nil
}

func (s *MemoryStore) FindAll(_ context.Context, q query.Query) (query.Page[domain.Payment], error) {
	s.mu.Lock()
	matched := make([]domain.Payment, 0, len(s.order))
	for _, id := range s.order {
		p := s.payments[id]
		if query.Match(q.Where, &p) {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()

	query.SortPayments(matched, q.Sort)

	total := len(matched)
	if q.Page.Unpaged {
		return query.NewPage(matched, q.Page, total), nil
	}
	start := min(q.Page.Offset(), total)
	end := min(start+q.Page.Size, total)
	return query.NewPage(matched[start:end], q.Page, total), nil
}

func (s *MemoryStore) MarkSent(_ context.Context, paymentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	for i := range s.outbox {
		e := &s.outbox[i]
		if e.PaymentID == paymentID && e.Status == domain.OutboxStatusPending {
			e.Status = domain.OutboxStatusSent
			e.SentAt = &now
			e.Attempts++
			e.LastError = nil
		}
	}
	return nil
}

// ProcessPending holds the store lock only while claiming, so fn may read
// payments back from the store.
func (s *MemoryStore) ProcessPending(ctx context.Context, limit int, fn func(context.Context, domain.OutboxEntry) error) (int, error) {
	s.mu.Lock()
	var claimed []domain.OutboxEntry
	for _, e := range s.outbox {
		if e.Status == domain.OutboxStatusPending && len(claimed) < limit {
			claimed = append(claimed, e)
		}
	}
	s.mu.Unlock()

	sent := 0
	for _, e := range claimed {
		sendErr := fn(ctx, e)

		s.mu.Lock()
		for i := range s.outbox {
			entry := &s.outbox[i]
			if entry.ID != e.ID || entry.Status != domain.OutboxStatusPending {
				continue
			}
			entry.Attempts++
			if sendErr != nil {
				msg := sendErr.Error()
				entry.LastError = &msg
				continue
			}
			now := s.clock.Now().UTC()
			entry.Status = domain.OutboxStatusSent
			entry.SentAt = &now
			entry.LastError = nil
			sent++
		}
		s.mu.Unlock()
	}
	return sent, nil
}

func (s *MemoryStore) GetByPaymentID(_ context.Context, paymentID uuid.UUID) ([]domain.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutboxEntry
	for _, e := range s.outbox {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) mutate(id uuid.UUID, op string, fn func(*domain.Payment) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, domain.ErrPaymentNotFound)
	}
	if fn(&p) {
		s.payments[id] = p
	}
	return nil
}

// MemoryIdempotencyCache is the in-process counterpart of IdempotencyRepository.
type MemoryIdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]IdempotencyCacheEntry
}

func NewMemoryIdempotencyCache() *MemoryIdempotencyCache {
	return &MemoryIdempotencyCache{entries: make(map[string]IdempotencyCacheEntry)}
}

func (c *MemoryIdempotencyCache) Get(_ context.Context, key string) (*IdempotencyCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryIdempotencyCache) Set(_ context.Context, entry *IdempotencyCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[entry.Key]; !ok || !e.ExpiresAt.After(time.Now()) {
		c.entries[entry.Key] = *entry
	}
	return nil
}

func (c *MemoryIdempotencyCache) CleanExpired(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	now := time.Now()
	for k, e := range c.entries {
		if e.ExpiresAt.Before(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}
