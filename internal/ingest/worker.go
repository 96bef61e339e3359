package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/meetassist/internal/batch"
	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/planner"
	"github.com/teemow/meetassist/internal/queue"
)

// Dispatcher applies a validated planning result.
type Dispatcher interface {
	Dispatch(ctx context.Context, body *planner.PostProcessQueueBody) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, body *planner.PostProcessQueueBody) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, body *planner.PostProcessQueueBody) error {
	return f(ctx, body)
}

// Config tunes a Worker.
type Config struct {
	Policy AckPolicy
	// Concurrency bounds the fan-out over one received batch.
	Concurrency int
	// BatchSize is the maximum number of messages per receive.
	BatchSize int
	// RetryDelay is the pause after a failed receive.
	RetryDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Policy == "" {
		c.Policy = AckBeforeProcess
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.BatchSize < 1 {
		c.BatchSize = 10
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
}

// Outcome is the result of handling one message.
type Outcome struct {
	MessageID string
	FileKey   string
	// State is the final state, StateSucceeded or StateFailed.
	State State
	// Trace lists every state the message passed through, in order.
	Trace []State
	Err   error
	Class string
	// DeadLetterID is set when the failure was recorded in the ledger.
	DeadLetterID string
}

// Worker turns queue notifications into dispatched planning results.
type Worker struct {
	blobs       blob.Store
	dispatcher  Dispatcher
	deadLetters deadletter.Store
	cfg         Config
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
}

// NewWorker creates a Worker. deadLetters and metrics may be nil.
func NewWorker(blobs blob.Store, dispatcher Dispatcher, deadLetters deadletter.Store, cfg Config, metrics *instrumentation.Metrics, logger *slog.Logger) *Worker {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		blobs:       blobs,
		dispatcher:  dispatcher,
		deadLetters: deadLetters,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logging.WithComponent(logger, "ingest"),
	}
}

// Policy returns the ack policy in effect.
func (w *Worker) Policy() AckPolicy {
	return w.cfg.Policy
}

// progress tracks one message through the state machine.
type progress struct {
	out  Outcome
	span trace.Span
}

func (p *progress) enter(s State) {
	p.out.State = s
	p.out.Trace = append(p.out.Trace, s)
	instrumentation.AddStageEvent(p.span, string(s))
}

// Handle runs one message through the state machine. It never panics on
// bad input and never returns an error; failures are in the Outcome.
func (w *Worker) Handle(ctx context.Context, msg *queue.Message) Outcome {
	started := time.Now()
	w.metrics.IncrementInflight(ctx, msg.Transport)
	defer w.metrics.DecrementInflight(ctx, msg.Transport)

	ctx, span := instrumentation.StartConsumerSpan(ctx, msg.Transport,
		instrumentation.NewSpanAttributeBuilder().WithMessage(msg.Transport, msg.Partition, msg.ID).Build()...)
	defer span.End()

	p := &progress{span: span, out: Outcome{MessageID: msg.ID}}
	p.enter(StateReceived)

	if w.cfg.Policy == AckAfterSuccess {
		w.ackAfterSuccess(ctx, msg, p)
	} else {
		w.ackBeforeProcess(ctx, msg, p)
	}

	elapsed := time.Since(started)
	w.metrics.RecordMessage(ctx, msg.Transport, msg.Partition, string(p.out.State), p.out.Class, elapsed)

	logger := w.logger.With(
		slog.String("message_id", msg.ID),
		slog.String(logging.KeyTransport, msg.Transport),
		logging.FileKey(p.out.FileKey),
	)
	if p.out.State == StateSucceeded {
		instrumentation.SetSpanSuccess(span)
		logger.Info("Processed planning result", slog.Duration(logging.KeyDuration, elapsed))
		return p.out
	}

	instrumentation.SetSpanError(span, p.out.Err)
	attrs := []any{
		slog.String("class", p.out.Class),
		logging.Stage(string(p.failedIn())),
		logging.Err(p.out.Err),
	}
	if p.out.DeadLetterID != "" {
		attrs = append(attrs, slog.String("dead_letter_id", p.out.DeadLetterID))
	}
	if p.out.Class == ClassMissing {
		logger.Warn("Planning result already consumed", attrs...)
	} else {
		logger.Error("Failed to process planning result", attrs...)
	}
	return p.out
}

// failedIn returns the last state entered before StateFailed.
func (p *progress) failedIn() State {
	for i := len(p.out.Trace) - 1; i >= 0; i-- {
		if s := p.out.Trace[i]; s != StateFailed {
			return s
		}
	}
	return StateReceived
}

// ackBeforeProcess releases the message and blob first. Anything failing
// after the ack can only be recovered from the dead-letter ledger.
func (w *Worker) ackBeforeProcess(ctx context.Context, msg *queue.Message, p *progress) {
	p.enter(StateQueueAckOrDelete)
	if err := msg.Ack(ctx); err != nil {
		w.fail(ctx, p, ClassAck, fmt.Errorf("ack message: %w", err), nil, false)
		return
	}

	body, err := msg.Body()
	if err != nil {
		w.fail(ctx, p, ClassValidation, &planner.ValidationError{Field: "fileKey", Err: err}, nil, true)
		return
	}
	p.out.FileKey = body.FileKey

	p.enter(StateFetchingPayload)
	data, err := w.blobs.Get(ctx, body.FileKey)
	if errors.Is(err, blob.ErrNotFound) {
		w.fail(ctx, p, ClassMissing, fmt.Errorf("fetch %s: %w", body.FileKey, err), nil, false)
		return
	}
	if err != nil {
		w.fail(ctx, p, ClassTransient, fmt.Errorf("%w: fetch %s: %w", ErrTransientFetch, body.FileKey, err), nil, true)
		return
	}

	if err := w.blobs.Delete(ctx, body.FileKey); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// another consumer claimed the payload first
			w.fail(ctx, p, ClassMissing, fmt.Errorf("delete %s: %w", body.FileKey, err), nil, false)
			return
		}
		w.fail(ctx, p, ClassTransient, fmt.Errorf("%w: delete %s: %w", ErrTransientFetch, body.FileKey, err), data, true)
		return
	}
	p.enter(StateBlobDeleted)

	p.enter(StateValidating)
	result, err := planner.DecodePostProcessQueueBody(data)
	if err != nil {
		w.fail(ctx, p, ClassValidation, err, data, true)
		return
	}
	if result.FileKey == "" {
		result.FileKey = body.FileKey
	}

	p.enter(StateDispatched)
	if err := w.dispatcher.Dispatch(ctx, result); err != nil {
		w.fail(ctx, p, ClassTerminalLoss, fmt.Errorf("%w: %s: %w", ErrTerminalLoss, body.FileKey, err), data, true)
		return
	}
	p.enter(StateSucceeded)
}

// ackAfterSuccess keeps the message and blob until the dispatch succeeded.
// Retryable failures nak so the transport redelivers.
func (w *Worker) ackAfterSuccess(ctx context.Context, msg *queue.Message, p *progress) {
	body, err := msg.Body()
	if err != nil {
		p.enter(StateQueueAckOrDelete)
		w.release(ctx, msg, p)
		w.fail(ctx, p, ClassValidation, &planner.ValidationError{Field: "fileKey", Err: err}, nil, true)
		return
	}
	p.out.FileKey = body.FileKey

	p.enter(StateFetchingPayload)
	data, err := w.blobs.Get(ctx, body.FileKey)
	if errors.Is(err, blob.ErrNotFound) {
		p.enter(StateQueueAckOrDelete)
		w.release(ctx, msg, p)
		w.fail(ctx, p, ClassMissing, fmt.Errorf("fetch %s: %w", body.FileKey, err), nil, false)
		return
	}
	if err != nil {
		w.redeliver(ctx, msg, p)
		w.fail(ctx, p, ClassTransient, fmt.Errorf("%w: fetch %s: %w", ErrTransientFetch, body.FileKey, err), nil, false)
		return
	}

	p.enter(StateValidating)
	result, err := planner.DecodePostProcessQueueBody(data)
	if err != nil {
		// rejected results are not retried
		w.deleteBlob(ctx, body.FileKey, p)
		p.enter(StateQueueAckOrDelete)
		w.release(ctx, msg, p)
		w.fail(ctx, p, ClassValidation, err, data, true)
		return
	}
	if result.FileKey == "" {
		result.FileKey = body.FileKey
	}

	p.enter(StateDispatched)
	if err := w.dispatcher.Dispatch(ctx, result); err != nil {
		w.redeliver(ctx, msg, p)
		w.fail(ctx, p, ClassReconcile, fmt.Errorf("dispatch %s: %w", body.FileKey, err), nil, false)
		return
	}

	w.deleteBlob(ctx, body.FileKey, p)
	p.enter(StateQueueAckOrDelete)
	if err := msg.Ack(ctx); err != nil {
		w.fail(ctx, p, ClassAck, fmt.Errorf("ack message: %w", err), nil, false)
		return
	}
	p.enter(StateSucceeded)
}

func (w *Worker) deleteBlob(ctx context.Context, key string, p *progress) {
	if err := w.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		w.logger.Warn("Failed to delete planning result", logging.FileKey(key), logging.Err(err))
		return
	}
	p.enter(StateBlobDeleted)
}

func (w *Worker) release(ctx context.Context, msg *queue.Message, p *progress) {
	if err := msg.Ack(ctx); err != nil {
		w.logger.Warn("Failed to ack message", slog.String("message_id", msg.ID), logging.FileKey(p.out.FileKey), logging.Err(err))
	}
}

func (w *Worker) redeliver(ctx context.Context, msg *queue.Message, p *progress) {
	if err := msg.Nak(ctx); err != nil {
		w.logger.Warn("Failed to nak message", slog.String("message_id", msg.ID), logging.FileKey(p.out.FileKey), logging.Err(err))
	}
}

// fail moves p to StateFailed. With record set the failure is written to
// the dead-letter ledger together with payload.
func (w *Worker) fail(ctx context.Context, p *progress, class string, err error, payload []byte, record bool) {
	stage := p.out.State
	p.out.Err = err
	p.out.Class = class
	p.enter(StateFailed)

	if !record {
		return
	}
	w.metrics.RecordDeadLetter(ctx, class)
	if w.deadLetters == nil {
		return
	}
	entry, rerr := w.deadLetters.Record(ctx, deadletter.Entry{
		FileKey: p.out.FileKey,
		Class:   class,
		Stage:   string(stage),
		Error:   err.Error(),
		Payload: payload,
	})
	if rerr != nil {
		w.logger.Error("Failed to record dead letter",
			logging.FileKey(p.out.FileKey), slog.Int("payload_bytes", len(payload)), logging.Err(rerr))
		return
	}
	p.out.DeadLetterID = entry.ID
}

// HandleBatch handles msgs with bounded fan-out. Outcomes keep the order
// of msgs.
func (w *Worker) HandleBatch(ctx context.Context, msgs []*queue.Message) []Outcome {
	return batch.Run(ctx, msgs, w.cfg.Concurrency, w.Handle)
}

// Run consumes a point-to-point queue until ctx is cancelled or the
// consumer is closed.
func (w *Worker) Run(ctx context.Context, c queue.Consumer) error {
	return w.consume(ctx, c, func(ctx context.Context, msgs []*queue.Message) {
		w.HandleBatch(ctx, msgs)
	})
}

// RunPartitions runs one sequential consumer per partition of a
// partitioned log. Messages of one partition are handled in order.
func (w *Worker) RunPartitions(ctx context.Context, consumers []queue.Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			return w.consume(ctx, c, func(ctx context.Context, msgs []*queue.Message) {
				for _, m := range msgs {
					w.Handle(ctx, m)
				}
			})
		})
	}
	return g.Wait()
}

func (w *Worker) consume(ctx context.Context, c queue.Consumer, handle func(context.Context, []*queue.Message)) error {
	for {
		msgs, err := c.Receive(ctx, w.cfg.BatchSize)
		if len(msgs) > 0 {
			// in-flight messages run to completion after shutdown starts
			handle(context.WithoutCancel(ctx), msgs)
		}
		switch {
		case ctx.Err() != nil, errors.Is(err, queue.ErrClosed):
			return nil
		case err != nil:
			w.logger.Warn("Failed to receive messages", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.RetryDelay):
			}
		}
	}
}
