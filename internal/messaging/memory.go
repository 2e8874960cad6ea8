package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paymentrecon/payment-service/internal/domain"
)

// MemoryBus is an in-process partitioned log with per-group committed
// offsets. It backs single-process deployments and tests.
type MemoryBus struct {
	partitions      int
	redeliveryDelay time.Duration
	logger          *slog.Logger

	mu     sync.Mutex
	topics map[string]*memTopic
	closed bool
	wg     sync.WaitGroup
}

type memTopic struct {
	logs    [][]Delivery
	commits map[string][]uint64
	// signal is closed and replaced on every append
	signal chan struct{}
}

func NewMemoryBus(partitions int, redeliveryDelay time.Duration, logger *slog.Logger) *MemoryBus {
	if partitions < 1 {
		partitions = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		partitions:      partitions,
		redeliveryDelay: redeliveryDelay,
		logger:          logger,
		topics:          make(map[string]*memTopic),
	}
}

func (b *MemoryBus) topic(name string) *memTopic {
	t, ok := b.topics[name]
	if !ok {
		t = &memTopic{
			logs:    make([][]Delivery, b.partitions),
			commits: make(map[string][]uint64),
			signal:  make(chan struct{}),
		}
		b.topics[name] = t
	}
	return t
}

func (b *MemoryBus) Send(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Send: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("Send: bus closed: %w", domain.ErrTransportUnavailable)
	}

	t := b.topic(topic)
	p := PartitionFor(key, b.partitions)
	t.logs[p] = append(t.logs[p], Delivery{
		Payload:   append([]byte(nil), payload...),
		Key:       key,
		Partition: p,
		Offset:    uint64(len(t.logs[p])),
	})
	close(t.signal)
	t.signal = make(chan struct{})
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("Subscribe: bus closed: %w", domain.ErrTransportUnavailable)
	}

	t := b.topic(topic)
	if _, ok := t.commits[group]; ok {
		return fmt.Errorf("Subscribe: group %q already consuming %q", group, topic)
	}
	t.commits[group] = make([]uint64, b.partitions)

	for p := range b.partitions {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.consumePartition(ctx, topic, group, p, h)
		}()
	}
	return nil
}

func (b *MemoryBus) consumePartition(ctx context.Context, topic, group string, partition int, h Handler) {
	attempt := 0
	for {
		d, wait, ok := b.next(topic, group, partition)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-wait:
				continue
			}
		}

		attempt++
		d.Attempt = attempt
		if err := h(ctx, d); err != nil {
			b.logger.Warn("message not acknowledged",
				"topic", topic, "group", group, "partition", partition,
				"offset", d.Offset, "attempt", attempt, "error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.redeliveryDelay):
			}
			continue
		}

		b.commit(topic, group, partition, d.Offset)
		attempt = 0
	}
}

// next returns the first uncommitted delivery of a partition, or a channel
// that is closed when the partition grows.
func (b *MemoryBus) next(topic, group string, partition int) (Delivery, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topics[topic]
	offset := t.commits[group][partition]
	if offset < uint64(len(t.logs[partition])) {
		return t.logs[partition][offset], nil, true
	}
	return Delivery{}, t.signal, false
}

func (b *MemoryBus) commit(topic, group string, partition int, offset uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	commits := b.topics[topic].commits[group]
	if commits[partition] == offset {
		commits[partition] = offset + 1
	}
}

// Committed reports how many messages of a partition the group has acknowledged.
func (b *MemoryBus) Committed(topic, group string, partition int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return 0
	}
	commits, ok := t.commits[group]
	if !ok {
		return 0
	}
	return commits[partition]
}

// Messages returns a copy of a partition's log.
func (b *MemoryBus) Messages(topic string, partition int) []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return nil
	}
	return append([]Delivery(nil), t.logs[partition]...)
}

func (b *MemoryBus) Partitions() int { return b.partitions }

// Close rejects further sends and waits for consumers whose contexts have
// been cancelled to return.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
