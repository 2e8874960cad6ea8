package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentrecon/payment-service/internal/logging"
	"github.com/paymentrecon/payment-service/internal/testutil"
)

func TestNATSTransport_OrderAndRedelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	url := testutil.SetupNATS(t)
	tr, err := ConnectNATS(NATSConfig{URL: url, Partitions: 3, RedeliveryDelay: 50 * time.Millisecond}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	require.NoError(t, tr.Ping())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	failedOnce := false
	require.NoError(t, tr.Subscribe(ctx, "test.topic", "svc", func(_ context.Context, d Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		if string(d.Payload) == "0" && !failedOnce {
			failedOnce = true
			return assert.AnError
		}
		got = append(got, string(d.Payload))
		return nil
	}))

	for _, p := range []string{"0", "1", "2", "3"} {
		require.NoError(t, tr.Send(ctx, "test.topic", "key-1", []byte(p)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, 10*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0", "1", "2", "3"}, got)
}

func TestRedisDeduplicator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	client, err := ConnectRedis(ctx, testutil.SetupRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	d := NewRedisDeduplicator(client, time.Minute)
	id := uuid.New()

	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, id))

	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := client.TTL(ctx, dedupKeyPrefix+id.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
