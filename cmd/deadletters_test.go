package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/queue"
)

func recordDeadLetter(t *testing.T, store deadletter.Store, payload string) deadletter.Entry {
	t.Helper()
	e, err := store.Record(context.Background(), deadletter.Entry{
		FileKey: "host-1/s1_processed.json",
		Class:   "terminal_loss",
		Stage:   "dispatched",
		Error:   "reconcile failed",
		Payload: []byte(payload),
	})
	require.NoError(t, err)
	return e
}

func TestReplayDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	t.Cleanup(func() { _ = q.Close() })

	ok := recordDeadLetter(t, store, `{"hostId":"host-1","singletonId":"s1"}`)
	empty := recordDeadLetter(t, store, "")
	noHost := recordDeadLetter(t, store, `{"singletonId":"s2"}`)

	results := replayDeadLetters(ctx, store, blobs, q, []string{ok.ID, empty.ID, noHost.ID, "missing"}, false)
	require.Len(t, results, 4)

	assert.Equal(t, "success", results[0].Status, results[0].Error)
	assert.True(t, strings.HasPrefix(results[0].Result, "queued as host-1/"))
	assert.Equal(t, "error", results[1].Status)
	assert.Contains(t, results[1].Error, "no payload")
	assert.Equal(t, "error", results[2].Status)
	assert.Contains(t, results[2].Error, "no host id")
	assert.Equal(t, "error", results[3].Status)

	// The replayed payload is stored under a fresh processed key and queued.
	require.Equal(t, 1, q.Len())
	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	body, err := queue.DecodeBody(msgs[0].Data)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(body.FileKey, "_processed.json"))
	assert.NotEqual(t, ok.FileKey, body.FileKey)

	data, err := blobs.Get(ctx, body.FileKey)
	require.NoError(t, err)
	assert.JSONEq(t, string(ok.Payload), string(data))

	// Only the replayed entry left the ledger.
	_, err = store.Get(ctx, ok.ID)
	assert.ErrorIs(t, err, deadletter.ErrNotFound)
	_, err = store.Get(ctx, empty.ID)
	assert.NoError(t, err)
}

func TestReplayDeadLetters_RequeuesUnreadBlob(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	t.Cleanup(func() { _ = q.Close() })

	// A failed fetch records no payload and leaves the blob in place.
	unread, err := store.Record(ctx, deadletter.Entry{
		FileKey: "host-1/s1_processed.json",
		Class:   "transient_fetch",
		Stage:   "fetching_payload",
		Error:   "fetch failed",
	})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, unread.FileKey, []byte(`{"hostId":"host-1"}`)))

	results := replayDeadLetters(ctx, store, blobs, q, []string{unread.ID}, false)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Status, results[0].Error)
	assert.Equal(t, "requeued host-1/s1_processed.json", results[0].Result)

	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	body, err := queue.DecodeBody(msgs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, unread.FileKey, body.FileKey)

	_, err = store.Get(ctx, unread.ID)
	assert.ErrorIs(t, err, deadletter.ErrNotFound)

	// Without the blob there is nothing left to replay.
	gone, err := store.Record(ctx, deadletter.Entry{FileKey: "host-1/gone_processed.json", Class: "transient_fetch"})
	require.NoError(t, err)
	results = replayDeadLetters(ctx, store, blobs, q, []string{gone.ID}, false)
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Contains(t, results[0].Error, "is gone")
	assert.Equal(t, 0, q.Len())
}

func TestReplayDeadLetters_Keep(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	t.Cleanup(func() { _ = q.Close() })

	e := recordDeadLetter(t, store, `{"hostId":"host-1"}`)
	results := replayDeadLetters(ctx, store, blob.NewMemoryStore(), q, []string{e.ID}, true)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Status, results[0].Error)

	_, err := store.Get(ctx, e.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, queue.Body) error {
	return errors.New("broker down")
}

func TestReplayDeadLetters_PublishFailureRemovesBlob(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	blobs := blob.NewMemoryStore()

	e := recordDeadLetter(t, store, `{"hostId":"host-1"}`)
	results := replayDeadLetters(ctx, store, blobs, failingPublisher{}, []string{e.ID}, false)
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Contains(t, results[0].Error, "broker down")
	assert.Equal(t, 0, blobs.Len())

	_, err := store.Get(ctx, e.ID)
	assert.NoError(t, err, "failed replays stay in the ledger")
}

func TestDropDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := deadletter.NewMemoryStore()
	e := recordDeadLetter(t, store, `{"hostId":"host-1"}`)

	results := dropDeadLetters(ctx, store, []string{e.ID, "missing"})
	require.Len(t, results, 2)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "error", results[1].Status)
	assert.Error(t, batchError(results))
	assert.NoError(t, batchError(results[:1]))

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintDeadLetters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDeadLetters(&buf, nil))
	assert.Equal(t, "No dead letters\n", buf.String())

	store := deadletter.NewMemoryStore()
	e := recordDeadLetter(t, store, `{"hostId":"host-1"}`)

	buf.Reset()
	require.NoError(t, printDeadLetters(&buf, []deadletter.Entry{e}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], e.ID)
	assert.Contains(t, lines[1], "terminal_loss")
	assert.Contains(t, lines[1], "host-1/s1_processed.json")
}
