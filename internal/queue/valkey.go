package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/teemow/meetassist/internal/logging"
)

// ValkeyConfig configures a ValkeyQueue.
type ValkeyConfig struct {
	// Key is the list holding pending notifications.
	Key string

	// Reliable moves received messages to ProcessingKey until acked
	// instead of deleting them on receipt.
	Reliable bool

	// ProcessingKey defaults to Key + ":processing".
	ProcessingKey string

	// BlockTimeout bounds how long Receive waits for the first message.
	BlockTimeout time.Duration
}

// ValkeyQueue is a point-to-point queue on a Valkey list.
type ValkeyQueue struct {
	client valkey.Client
	cfg    ValkeyConfig
	logger logging.Logger
}

// NewValkeyQueue returns a queue on client.
func NewValkeyQueue(client valkey.Client, cfg ValkeyConfig, logger logging.Logger) *ValkeyQueue {
	if cfg.ProcessingKey == "" {
		cfg.ProcessingKey = cfg.Key + ":processing"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &ValkeyQueue{client: client, cfg: cfg, logger: logger}
}

// Publish implements Publisher.
func (q *ValkeyQueue) Publish(ctx context.Context, _ string, body Body) error {
	data, err := body.Encode()
	if err != nil {
		return err
	}
	cmd := q.client.B().Rpush().Key(q.cfg.Key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("rpush %s: %w", q.cfg.Key, err)
	}
	return nil
}

// Receive implements Consumer.
func (q *ValkeyQueue) Receive(ctx context.Context, max int) ([]*Message, error) {
	if max < 1 {
		max = 1
	}
	if q.cfg.Reliable {
		return q.receiveReliable(ctx, max)
	}

	first, err := q.client.Do(ctx, q.client.B().Blpop().Key(q.cfg.Key).Timeout(q.cfg.BlockTimeout.Seconds()).Build()).AsStrSlice()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop %s: %w", q.cfg.Key, err)
	}
	// BLPOP replies with [key, element].
	elements := first[1:]

	if max > 1 {
		rest, err := q.client.Do(ctx, q.client.B().Lpop().Key(q.cfg.Key).Count(int64(max-1)).Build()).AsStrSlice()
		switch {
		case valkey.IsValkeyNil(err):
		case err != nil:
			q.logger.Warn("Failed to pop remaining batch", "key", q.cfg.Key, "error", err)
		default:
			elements = append(elements, rest...)
		}
	}

	msgs := make([]*Message, 0, len(elements))
	for _, el := range elements {
		msgs = append(msgs, NewMessage(uuid.NewString(), []byte(el), TransportValkey,
			nil,
			func(ctx context.Context) error { return q.requeue(ctx, el) },
		))
	}
	return msgs, nil
}

func (q *ValkeyQueue) receiveReliable(ctx context.Context, max int) ([]*Message, error) {
	src, dst := q.cfg.Key, q.cfg.ProcessingKey

	first, err := q.client.Do(ctx, q.client.B().Blmove().Source(src).Destination(dst).Left().Right().Timeout(q.cfg.BlockTimeout.Seconds()).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blmove %s: %w", src, err)
	}
	elements := []string{first}

	for len(elements) < max {
		el, err := q.client.Do(ctx, q.client.B().Lmove().Source(src).Destination(dst).Left().Right().Build()).ToString()
		if valkey.IsValkeyNil(err) {
			break
		}
		if err != nil {
			q.logger.Warn("Failed to move remaining batch", "key", src, "error", err)
			break
		}
		elements = append(elements, el)
	}

	msgs := make([]*Message, 0, len(elements))
	for _, el := range elements {
		msgs = append(msgs, NewMessage(uuid.NewString(), []byte(el), TransportValkey,
			func(ctx context.Context) error { return q.release(ctx, el) },
			func(ctx context.Context) error {
				if err := q.release(ctx, el); err != nil {
					return err
				}
				return q.requeue(ctx, el)
			},
		))
	}
	return msgs, nil
}

func (q *ValkeyQueue) release(ctx context.Context, el string) error {
	cmd := q.client.B().Lrem().Key(q.cfg.ProcessingKey).Count(1).Element(el).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("lrem %s: %w", q.cfg.ProcessingKey, err)
	}
	return nil
}

func (q *ValkeyQueue) requeue(ctx context.Context, el string) error {
	cmd := q.client.B().Rpush().Key(q.cfg.Key).Element(el).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("requeue to %s: %w", q.cfg.Key, err)
	}
	return nil
}

// Close implements Consumer. The client is owned by the caller.
func (q *ValkeyQueue) Close() error {
	return nil
}
