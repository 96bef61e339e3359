package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/planner"
	"github.com/teemow/meetassist/internal/queue"
)

func planningResult(t *testing.T, mutate func(*planner.PostProcessQueueBody)) []byte {
	t.Helper()
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	body := planner.PostProcessQueueBody{
		HostID:       "host",
		SingletonID:  "run-1",
		HostTimezone: "Europe/Berlin",
		PlannerBodyResponse: planner.PlannerBodyResponse{
			UserList: []planner.User{{ID: "host", HostID: "host"}},
			EventPartList: []planner.EventPart{{
				EventID: "E1", GroupID: "G1", Part: 1, LastPart: 1,
				StartDate: start, EndDate: start.Add(time.Hour),
			}},
		},
		AllEvents: []calendar.Event{{ID: "E1", UserID: "host", StartDate: start, EndDate: start.Add(time.Hour)}},
	}
	if mutate != nil {
		mutate(&body)
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

// hooks records ack and nak calls of test messages.
type hooks struct {
	mu    sync.Mutex
	calls []string
}

func (h *hooks) message(t *testing.T, key string) *queue.Message {
	t.Helper()
	data, err := queue.Body{FileKey: key}.Encode()
	require.NoError(t, err)
	return h.raw("m-"+key, data)
}

func (h *hooks) raw(id string, data []byte) *queue.Message {
	record := func(call string) func(context.Context) error {
		return func(context.Context) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.calls = append(h.calls, call)
			return nil
		}
	}
	return queue.NewMessage(id, data, queue.TransportMemory, record("ack"), record("nak"))
}

func (h *hooks) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

type fixture struct {
	blobs      *blob.MemoryStore
	dead       *deadletter.MemoryStore
	hooks      *hooks
	dispatched atomic.Int32
	dispatch   func(*planner.PostProcessQueueBody) error
}

func newFixture() *fixture {
	return &fixture{blobs: blob.NewMemoryStore(), dead: deadletter.NewMemoryStore(), hooks: &hooks{}}
}

func (f *fixture) worker(policy AckPolicy) *Worker {
	return f.workerWith(f.blobs, policy)
}

func (f *fixture) workerWith(store blob.Store, policy AckPolicy) *Worker {
	d := DispatcherFunc(func(_ context.Context, body *planner.PostProcessQueueBody) error {
		f.dispatched.Add(1)
		if f.dispatch != nil {
			return f.dispatch(body)
		}
		return nil
	})
	return NewWorker(store, d, f.dead, Config{Policy: policy, Concurrency: 4}, nil, nil)
}

func (f *fixture) put(t *testing.T, key string, data []byte) {
	t.Helper()
	require.NoError(t, f.blobs.Put(context.Background(), key, data))
}

func (f *fixture) deadLetters(t *testing.T) []deadletter.Entry {
	t.Helper()
	entries, err := f.dead.List(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func TestAckBeforeProcessSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.put(t, "host/run-1_processed.json", planningResult(t, nil))

	var got *planner.PostProcessQueueBody
	f.dispatch = func(b *planner.PostProcessQueueBody) error { got = b; return nil }

	out := f.worker(AckBeforeProcess).Handle(ctx, f.hooks.message(t, "host/run-1_processed.json"))

	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, []State{
		StateReceived, StateQueueAckOrDelete, StateFetchingPayload, StateBlobDeleted,
		StateValidating, StateDispatched, StateSucceeded,
	}, out.Trace)
	assert.Equal(t, []string{"ack"}, f.hooks.Calls())

	require.NotNil(t, got)
	assert.Equal(t, "host/run-1_processed.json", got.FileKey)

	_, err := f.blobs.Get(ctx, "host/run-1_processed.json")
	assert.ErrorIs(t, err, blob.ErrNotFound, "payload is single use")
}

func TestAckBeforeProcessDispatchFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	payload := planningResult(t, nil)
	f.put(t, "host/run-1_processed.json", payload)
	f.dispatch = func(*planner.PostProcessQueueBody) error { return errors.New("store unavailable") }

	out := f.worker(AckBeforeProcess).Handle(ctx, f.hooks.message(t, "host/run-1_processed.json"))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTerminalLoss)
	assert.Equal(t, ClassTerminalLoss, out.Class)
	assert.Equal(t, []string{"ack"}, f.hooks.Calls(), "terminal failures are never requeued")

	entries := f.deadLetters(t)
	require.Len(t, entries, 1)
	assert.Equal(t, out.DeadLetterID, entries[0].ID)
	assert.Equal(t, string(StateDispatched), entries[0].Stage)
	assert.Equal(t, payload, entries[0].Payload)
	assert.Equal(t, "host/run-1_processed.json", entries[0].FileKey)
}

func TestValidationFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*planner.PostProcessQueueBody)
		want   error
	}{
		{"no event parts", func(b *planner.PostProcessQueueBody) { b.EventPartList = nil }, planner.ErrNoEventParts},
		{"no live events", func(b *planner.PostProcessQueueBody) { b.AllEvents = nil }, planner.ErrNoLiveEvents},
		{"no users", func(b *planner.PostProcessQueueBody) { b.UserList = nil }, planner.ErrNoUsers},
		{"no host timezone", func(b *planner.PostProcessQueueBody) { b.HostTimezone = "" }, planner.ErrNoHostTimezone},
	}

	for _, policy := range []AckPolicy{AckBeforeProcess, AckAfterSuccess} {
		for _, tt := range tests {
			t.Run(string(policy)+"/"+tt.name, func(t *testing.T) {
				f := newFixture()
				f.put(t, "k.json", planningResult(t, tt.mutate))

				out := f.worker(policy).Handle(context.Background(), f.hooks.message(t, "k.json"))

				assert.Equal(t, StateFailed, out.State)
				assert.ErrorIs(t, out.Err, tt.want)
				assert.ErrorIs(t, out.Err, planner.ErrValidation)
				assert.Equal(t, ClassValidation, out.Class)
				assert.Zero(t, f.dispatched.Load(), "invalid results are never dispatched")
				assert.Equal(t, []string{"ack"}, f.hooks.Calls(), "invalid results are not retried")
				assert.Len(t, f.deadLetters(t), 1)
				assert.Zero(t, f.blobs.Len())
			})
		}
	}
}

func TestMalformedMessage(t *testing.T) {
	f := newFixture()
	out := f.worker(AckBeforeProcess).Handle(context.Background(), f.hooks.raw("m-1", []byte("not json")))

	assert.Equal(t, ClassValidation, out.Class)
	assert.ErrorIs(t, out.Err, planner.ErrValidation)
	assert.Equal(t, []string{"ack"}, f.hooks.Calls())
}

func TestMissingPayload(t *testing.T) {
	for _, policy := range []AckPolicy{AckBeforeProcess, AckAfterSuccess} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture()
			out := f.worker(policy).Handle(context.Background(), f.hooks.message(t, "gone.json"))

			assert.Equal(t, StateFailed, out.State)
			assert.ErrorIs(t, out.Err, blob.ErrNotFound)
			assert.Equal(t, ClassMissing, out.Class)
			assert.Empty(t, f.deadLetters(t))
			assert.Equal(t, []string{"ack"}, f.hooks.Calls())
		})
	}
}

type flakyStore struct {
	*blob.MemoryStore
}

func (s flakyStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestTransientFetch(t *testing.T) {
	t.Run("ack before process records a dead letter", func(t *testing.T) {
		f := newFixture()
		f.put(t, "k.json", planningResult(t, nil))

		out := f.workerWith(flakyStore{f.blobs}, AckBeforeProcess).Handle(context.Background(), f.hooks.message(t, "k.json"))

		assert.ErrorIs(t, out.Err, ErrTransientFetch)
		assert.Equal(t, ClassTransient, out.Class)
		entries := f.deadLetters(t)
		require.Len(t, entries, 1)
		assert.Equal(t, string(StateFetchingPayload), entries[0].Stage)
		assert.Equal(t, 1, f.blobs.Len(), "blob is left for replay")
	})

	t.Run("ack after success redelivers", func(t *testing.T) {
		f := newFixture()
		f.put(t, "k.json", planningResult(t, nil))

		out := f.workerWith(flakyStore{f.blobs}, AckAfterSuccess).Handle(context.Background(), f.hooks.message(t, "k.json"))

		assert.ErrorIs(t, out.Err, ErrTransientFetch)
		assert.Equal(t, []string{"nak"}, f.hooks.Calls())
		assert.Empty(t, f.deadLetters(t))
		assert.Equal(t, 1, f.blobs.Len())
	})
}

func TestAckAfterSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("success releases after dispatch", func(t *testing.T) {
		f := newFixture()
		f.put(t, "k.json", planningResult(t, nil))

		out := f.worker(AckAfterSuccess).Handle(ctx, f.hooks.message(t, "k.json"))

		require.NoError(t, out.Err)
		assert.Equal(t, []State{
			StateReceived, StateFetchingPayload, StateValidating, StateDispatched,
			StateBlobDeleted, StateQueueAckOrDelete, StateSucceeded,
		}, out.Trace)
		assert.Equal(t, []string{"ack"}, f.hooks.Calls())
		assert.Zero(t, f.blobs.Len())
	})

	t.Run("dispatch failure keeps the payload", func(t *testing.T) {
		f := newFixture()
		f.put(t, "k.json", planningResult(t, nil))
		f.dispatch = func(*planner.PostProcessQueueBody) error { return errors.New("store unavailable") }

		out := f.worker(AckAfterSuccess).Handle(ctx, f.hooks.message(t, "k.json"))

		assert.Equal(t, StateFailed, out.State)
		assert.Equal(t, ClassReconcile, out.Class)
		assert.NotErrorIs(t, out.Err, ErrTerminalLoss)
		assert.Equal(t, []string{"nak"}, f.hooks.Calls())
		assert.Equal(t, 1, f.blobs.Len())
		assert.Empty(t, f.deadLetters(t))
	})
}

func TestHandleBatchIsolatesFailures(t *testing.T) {
	f := newFixture()
	keys := []string{"a.json", "b.json", "c.json"}
	var msgs []*queue.Message
	for _, k := range keys {
		f.put(t, k, planningResult(t, nil))
		msgs = append(msgs, f.hooks.message(t, k))
	}
	f.dispatch = func(b *planner.PostProcessQueueBody) error {
		if b.FileKey == "b.json" {
			return errors.New("boom")
		}
		return nil
	}

	outs := f.worker(AckBeforeProcess).HandleBatch(context.Background(), msgs)

	require.Len(t, outs, 3)
	for i, k := range keys {
		assert.Equal(t, k, outs[i].FileKey)
	}
	assert.Equal(t, StateSucceeded, outs[0].State)
	assert.Equal(t, StateFailed, outs[1].State)
	assert.Equal(t, StateSucceeded, outs[2].State)
}

func TestRun(t *testing.T) {
	f := newFixture()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, k := range []string{"a.json", "b.json", "c.json"} {
		f.put(t, k, planningResult(t, nil))
		require.NoError(t, q.Publish(ctx, "host", queue.Body{FileKey: k}))
	}
	f.dispatch = func(*planner.PostProcessQueueBody) error {
		if f.dispatched.Load() == 3 {
			cancel()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.worker(AckBeforeProcess).Run(ctx, q) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.EqualValues(t, 3, f.dispatched.Load())
	assert.Equal(t, 3, q.Acked())
	assert.Zero(t, f.blobs.Len())
}

func TestRunPartitions(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	partitions := []*queue.MemoryQueue{
		queue.NewMemoryQueue(10 * time.Millisecond),
		queue.NewMemoryQueue(10 * time.Millisecond),
	}
	for i, k := range []string{"a.json", "b.json", "c.json", "d.json"} {
		f.put(t, k, planningResult(t, nil))
		require.NoError(t, partitions[i%2].Publish(ctx, "host", queue.Body{FileKey: k}))
	}

	var mu sync.Mutex
	var order []string
	f.dispatch = func(b *planner.PostProcessQueueBody) error {
		mu.Lock()
		order = append(order, b.FileKey)
		mu.Unlock()
		if f.dispatched.Load() == 4 {
			cancel()
		}
		return nil
	}

	err := f.worker(AckBeforeProcess).RunPartitions(ctx, []queue.Consumer{partitions[0], partitions[1]})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a.json", "b.json", "c.json", "d.json"}, order)
	assert.Less(t, indexOf(order, "a.json"), indexOf(order, "c.json"), "partition order is kept")
	assert.Less(t, indexOf(order, "b.json"), indexOf(order, "d.json"), "partition order is kept")
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestParseAckPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    AckPolicy
		wantErr bool
	}{
		{in: "", want: AckBeforeProcess},
		{in: "ack-before-process", want: AckBeforeProcess},
		{in: " ACK-AFTER-SUCCESS ", want: AckAfterSuccess},
		{in: "never", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAckPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&planner.ValidationError{Field: "x", Err: planner.ErrNoUsers}, ClassValidation},
		{ErrTransientFetch, ClassTransient},
		{errors.Join(ErrTerminalLoss, ErrTransientFetch), ClassTerminalLoss},
		{blob.ErrNotFound, ClassMissing},
		{errors.New("other"), ClassInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err))
	}
}
