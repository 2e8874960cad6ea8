package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/paymentrecon/payment-service/internal/domain"
)

const keyHeader = "Payment-Key"

type NATSConfig struct {
	// Name identifies the connection in server monitoring.
	Name            string
	URL             string
	Partitions      int
	RedeliveryDelay time.Duration
	ConnectTimeout  time.Duration
}

// NATSTransport maps each topic to a JetStream stream with one subject per
// partition (<topic>.<n>). Every partition gets its own durable consumer that
// allows a single unacknowledged message, which keeps per-key order across
// redeliveries.
type NATSTransport struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    NATSConfig
	logger *slog.Logger

	mu       sync.Mutex
	consumes []jetstream.ConsumeContext
}

func ConnectNATS(cfg NATSConfig, logger *slog.Logger) (*NATSTransport, error) {
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "payment-service"
	}
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ConnectNATS: %v: %w", err, domain.ErrTransportUnavailable)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ConnectNATS: jetstream: %w", err)
	}

	return &NATSTransport{nc: nc, js: js, cfg: cfg, logger: logger}, nil
}

func streamName(topic string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(topic))
}

func subject(topic string, partition int) string {
	return topic + "." + strconv.Itoa(partition)
}

// EnsureStream creates or updates the stream backing topic.
func (t *NATSTransport) EnsureStream(ctx context.Context, topic string) error {
	_, err := t.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(topic),
		Subjects:  []string{topic + ".>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("EnsureStream %s: %w", topic, err)
	}
	return nil
}

func (t *NATSTransport) Send(ctx context.Context, topic, key string, payload []byte) error {
	msg := nats.NewMsg(subject(topic, PartitionFor(key, t.cfg.Partitions)))
	msg.Data = payload
	msg.Header.Set(keyHeader, key)

	if _, err := t.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("Send %s: %v: %w", topic, err, domain.ErrTransportUnavailable)
	}
	return nil
}

func (t *NATSTransport) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	if err := t.EnsureStream(ctx, topic); err != nil {
		return fmt.Errorf("Subscribe: %w", err)
	}

	for p := range t.cfg.Partitions {
		cons, err := t.js.CreateOrUpdateConsumer(ctx, streamName(topic), jetstream.ConsumerConfig{
			Durable:       fmt.Sprintf("%s_%d", group, p),
			FilterSubject: subject(topic, p),
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverAllPolicy,
			MaxAckPending: 1,
			AckWait:       30 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("Subscribe %s partition %d: %w", topic, p, err)
		}

		partition := p
		cc, err := cons.Consume(func(msg jetstream.Msg) {
			t.deliver(ctx, topic, partition, msg, h)
		})
		if err != nil {
			return fmt.Errorf("Subscribe %s partition %d: consume: %w", topic, p, err)
		}

		t.mu.Lock()
		t.consumes = append(t.consumes, cc)
		t.mu.Unlock()

		go func() {
			<-ctx.Done()
			cc.Stop()
		}()
	}
	return nil
}

func (t *NATSTransport) deliver(ctx context.Context, topic string, partition int, msg jetstream.Msg, h Handler) {
	d := Delivery{
		Payload:   msg.Data(),
		Key:       msg.Headers().Get(keyHeader),
		Partition: partition,
		Attempt:   1,
	}
	if meta, err := msg.Metadata(); err == nil {
		d.Offset = meta.Sequence.Stream
		d.Attempt = int(meta.NumDelivered)
	}

	if err := h(ctx, d); err != nil {
		t.logger.Warn("message not acknowledged",
			"topic", topic, "partition", partition, "offset", d.Offset,
			"attempt", d.Attempt, "error", err,
		)
		if nakErr := msg.NakWithDelay(t.cfg.RedeliveryDelay); nakErr != nil {
			t.logger.Error("nak failed", "topic", topic, "error", nakErr)
		}
		return
	}

	if err := msg.DoubleAck(ctx); err != nil {
		t.logger.Error("ack failed", "topic", topic, "offset", d.Offset, "error", err)
	}
}

func (t *NATSTransport) Ping() error {
	if !t.nc.IsConnected() {
		return fmt.Errorf("nats %s: %w", t.nc.Status(), domain.ErrTransportUnavailable)
	}
	return nil
}

func (t *NATSTransport) Close() {
	t.mu.Lock()
	for _, cc := range t.consumes {
		cc.Stop()
	}
	t.consumes = nil
	t.mu.Unlock()

	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
	}
}
