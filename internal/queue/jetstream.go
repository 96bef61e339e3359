package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/teemow/meetassist/internal/logging"
)

// JetStreamConfig configures the partitioned transport.
type JetStreamConfig struct {
	// Stream is the JetStream stream name.
	Stream string

	// SubjectPrefix is followed by ".<partition>" on every subject.
	SubjectPrefix string

	// Partitions is the number of partitions, at least 1.
	Partitions int

	// Durable is the consumer name prefix, suffixed with the partition.
	Durable string

	// AckWait is how long the server waits for an ack before redelivery.
	AckWait time.Duration

	// MaxDeliver bounds redeliveries of nacked messages.
	MaxDeliver int

	// FetchWait bounds how long Receive waits for messages.
	FetchWait time.Duration
}

func (c *JetStreamConfig) setDefaults() {
	if c.Partitions < 1 {
		c.Partitions = 1
	}
	if c.Durable == "" {
		c.Durable = "meetassist-worker"
	}
	if c.AckWait <= 0 {
		c.AckWait = 60 * time.Second
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.FetchWait <= 0 {
		c.FetchWait = 5 * time.Second
	}
}

// Subject returns the subject of partition p.
func (c JetStreamConfig) Subject(p int) string {
	return c.SubjectPrefix + "." + strconv.Itoa(p)
}

// PartitionFor maps key onto one of n partitions.
func PartitionFor(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// EnsureStream creates or updates the stream covering every partition.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".*"},
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// JetStreamConsumer consumes a single partition.
type JetStreamConsumer struct {
	consumer  jetstream.Consumer
	partition int
	fetchWait time.Duration
	logger    logging.Logger
}

// NewJetStreamConsumer creates or updates the durable consumer of partition.
func NewJetStreamConsumer(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig, partition int, logger logging.Logger) (*JetStreamConsumer, error) {
	cfg.setDefaults()
	if partition < 0 || partition >= cfg.Partitions {
		return nil, fmt.Errorf("partition %d out of range [0,%d)", partition, cfg.Partitions)
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	stream, err := js.Stream(ctx, cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", cfg.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       fmt.Sprintf("%s-%d", cfg.Durable, partition),
		FilterSubject: cfg.Subject(partition),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer for partition %d: %w", partition, err)
	}

	return &JetStreamConsumer{
		consumer:  consumer,
		partition: partition,
		fetchWait: cfg.FetchWait,
		logger:    logger,
	}, nil
}

// Partition returns the partition this consumer reads.
func (c *JetStreamConsumer) Partition() int {
	return c.partition
}

// Receive implements Consumer.
func (c *JetStreamConsumer) Receive(ctx context.Context, max int) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max < 1 {
		max = 1
	}

	batch, err := c.consumer.Fetch(max, jetstream.FetchMaxWait(c.fetchWait))
	if err != nil {
		return nil, fmt.Errorf("fetch partition %d: %w", c.partition, err)
	}

	var msgs []*Message
	for msg := range batch.Messages() {
		msgs = append(msgs, c.wrap(msg))
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("Fetch ended with error", "partition", c.partition, "error", err)
	}
	return msgs, nil
}

func (c *JetStreamConsumer) wrap(msg jetstream.Msg) *Message {
	m := NewMessage("", msg.Data(), TransportJetStream,
		func(ctx context.Context) error { return msg.DoubleAck(ctx) },
		func(context.Context) error { return msg.Nak() },
	)
	m.Partition = c.partition
	if meta, err := msg.Metadata(); err == nil {
		m.Offset = meta.Sequence.Stream
		m.ID = strconv.FormatUint(meta.Sequence.Stream, 10)
	}
	return m
}

// Close implements Consumer. The durable consumer stays on the server.
func (c *JetStreamConsumer) Close() error {
	return nil
}

// JetStreamPublisher publishes notifications onto the partition of their key.
type JetStreamPublisher struct {
	js  jetstream.JetStream
	cfg JetStreamConfig
}

// NewJetStreamPublisher returns a publisher for cfg.
func NewJetStreamPublisher(js jetstream.JetStream, cfg JetStreamConfig) *JetStreamPublisher {
	cfg.setDefaults()
	return &JetStreamPublisher{js: js, cfg: cfg}
}

// Publish implements Publisher.
func (p *JetStreamPublisher) Publish(ctx context.Context, key string, body Body) error {
	data, err := body.Encode()
	if err != nil {
		return err
	}
	subject := p.cfg.Subject(PartitionFor(key, p.cfg.Partitions))
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
