// Package messaging carries request and response messages between the payment
// service and the settlement adapter.
//
// Transports partition every topic by message key. All messages sharing a key
// land in the same partition, and each partition is consumed by exactly one
// sequential worker per consumer group, so per-key order is preserved while
// different keys proceed concurrently. Delivery is at-least-once: a handler
// that returns an error leaves the message unacknowledged and it is delivered
// again before anything behind it in the same partition.
package messaging

import (
	"context"
	"hash/fnv"
)

// Delivery is one message handed to a Handler.
type Delivery struct {
	Payload   []byte
	Key       string
	Partition int
	Offset    uint64
	// Attempt is 1 on first delivery.
	Attempt int
}

// Handler processes a delivery. Returning nil acknowledges it; returning an
// error leaves it unacknowledged for redelivery.
type Handler func(ctx context.Context, d Delivery) error

type Sender interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
}

type Subscriber interface {
	// Subscribe starts consuming topic as part of group until ctx is done.
	Subscribe(ctx context.Context, topic, group string, h Handler) error
}

type Transport interface {
	Sender
	Subscriber
}

// PartitionFor maps a key to one of n partitions.
func PartitionFor(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
