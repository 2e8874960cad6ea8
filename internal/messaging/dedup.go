package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Deduplicator remembers processed response message ids.
type Deduplicator interface {
	Seen(ctx context.Context, messageID uuid.UUID) (bool, error)
	Remember(ctx context.Context, messageID uuid.UUID) error
}

type NopDeduplicator struct{}

func (NopDeduplicator) Seen(context.Context, uuid.UUID) (bool, error) { return false, nil }
func (NopDeduplicator) Remember(context.Context, uuid.UUID) error     { return nil }

const dedupKeyPrefix = "payment:response:"

type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl}
}

// ConnectRedis parses a redis:// URL and verifies the server answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ConnectRedis: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ConnectRedis: ping: %w", err)
	}
	return client, nil
}

func (d *RedisDeduplicator) Seen(ctx context.Context, messageID uuid.UUID) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+messageID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("Seen: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduplicator) Remember(ctx context.Context, messageID uuid.UUID) error {
	if err := d.client.Set(ctx, dedupKeyPrefix+messageID.String(), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("Remember: %w", err)
	}
	return nil
}

type MemoryDeduplicator struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu   sync.Mutex
	seen map[uuid.UUID]time.Time
}

func NewMemoryDeduplicator(clock clockwork.Clock, ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{clock: clock, ttl: ttl, seen: make(map[uuid.UUID]time.Time)}
}

func (d *MemoryDeduplicator) Seen(_ context.Context, messageID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[messageID]
	if !ok {
		return false, nil
	}
	if !d.clock.Now().Before(exp) {
		delete(d.seen, messageID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDeduplicator) Remember(_ context.Context, messageID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
		}
	}
	d.seen[messageID] = now.Add(d.ttl)
	return nil
}
