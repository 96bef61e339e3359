package queue

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue. Nak puts a message back at the tail.
type MemoryQueue struct {
	mu      sync.Mutex
	pending [][]byte
	acked   int
	nacked  int
	closed  bool
	seq     uint64
	notify  chan struct{}
	maxWait time.Duration
}

// NewMemoryQueue returns an empty queue. Receive waits at most maxWait for
// the first message.
func NewMemoryQueue(maxWait time.Duration) *MemoryQueue {
	if maxWait <= 0 {
		maxWait = 100 * time.Millisecond
	}
	return &MemoryQueue{notify: make(chan struct{}, 1), maxWait: maxWait}
}

// Publish implements Publisher.
func (q *MemoryQueue) Publish(_ context.Context, _ string, body Body) error {
	data, err := body.Encode()
	if err != nil {
		return err
	}
	q.push(data)
	return nil
}

// PublishRaw enqueues data without validating it.
func (q *MemoryQueue) PublishRaw(data []byte) {
	q.push(data)
}

func (q *MemoryQueue) push(data []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, data)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Receive implements Consumer.
func (q *MemoryQueue) Receive(ctx context.Context, max int) ([]*Message, error) {
	if max < 1 {
		max = 1
	}
	timer := time.NewTimer(q.maxWait)
	defer timer.Stop()

	for {
		if msgs, err := q.take(max); err != nil || len(msgs) > 0 {
			return msgs, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take(max int) ([]*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	n := min(max, len(q.pending))
	msgs := make([]*Message, 0, n)
	for _, data := range q.pending[:n] {
		q.seq++
		m := NewMessage(strconv.FormatUint(q.seq, 10), data, TransportMemory,
			func(context.Context) error {
				q.mu.Lock()
				q.acked++
				q.mu.Unlock()
				return nil
			},
			func(context.Context) error {
				q.mu.Lock()
				q.nacked++
				q.mu.Unlock()
				q.push(data)
				return nil
			},
		)
		m.Offset = q.seq
		msgs = append(msgs, m)
	}
	q.pending = q.pending[n:]
	return msgs, nil
}

// Len returns the number of pending messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Acked returns how many messages were acked.
func (q *MemoryQueue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}

// Nacked returns how many messages were nacked.
func (q *MemoryQueue) Nacked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nacked
}

// Close implements Consumer.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
