package planner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/queue"
)

func storeContext(t *testing.T, blobs blob.Store, key string) {
	t.Helper()
	ctxBody := PostProcessQueueBody{
		HostID:                  "host",
		SingletonID:             "run-1",
		HostTimezone:            "Europe/Berlin",
		AllEvents:               []calendar.Event{{ID: "E1", UserID: "host"}},
		IsReplan:                true,
		OriginalExternalEventID: "ext-1",
	}
	data, err := json.Marshal(ctxBody)
	require.NoError(t, err)
	require.NoError(t, blobs.Put(context.Background(), key, data))
}

func callback(score string) CallbackBody {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return CallbackBody{
		FileKey: "host/run-1.json",
		HostID:  "host",
		Score:   score,
		PlannerBodyResponse: PlannerBodyResponse{
			UserList:      []User{{ID: "host", HostID: "host"}},
			EventPartList: []EventPart{{EventID: "E1", GroupID: "G1", Part: 1, LastPart: 1, StartDate: start, EndDate: start.Add(time.Hour)}},
		},
	}
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	storeContext(t, blobs, "host/run-1.json")

	key, err := NewFinalizer(blobs, q, nil).Finalize(ctx, callback("0hard/-1medium/-20soft"))
	require.NoError(t, err)
	assert.Equal(t, "host/run-1_processed.json", key)

	_, err = blobs.Get(ctx, "host/run-1.json")
	assert.ErrorIs(t, err, blob.ErrNotFound, "planning context is single use")

	data, err := blobs.Get(ctx, key)
	require.NoError(t, err)
	body, err := DecodePostProcessQueueBody(data)
	require.NoError(t, err)
	assert.Equal(t, "run-1", body.SingletonID)
	assert.Equal(t, "0hard/-1medium/-20soft", body.Score)
	assert.Len(t, body.EventPartList, 1)
	assert.NotNil(t, body.Replan())

	msgs, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	b, err := msgs[0].Body()
	require.NoError(t, err)
	assert.Equal(t, key, b.FileKey)
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, string, queue.Body) error { return p.err }

func TestFinalizeRetryAfterPublishFailure(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	storeContext(t, blobs, "host/run-1.json")

	_, err := NewFinalizer(blobs, failingPublisher{err: errors.New("queue down")}, nil).Finalize(ctx, callback("0hard/0medium/0soft"))
	require.Error(t, err)

	_, err = blobs.Get(ctx, "host/run-1.json")
	require.NoError(t, err, "planning context survives a failed publish")

	q := queue.NewMemoryQueue(10 * time.Millisecond)
	key, err := NewFinalizer(blobs, q, nil).Finalize(ctx, callback("0hard/0medium/0soft"))
	require.NoError(t, err)
	assert.Equal(t, "host/run-1_processed.json", key)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, blobs.Len(), "only the processed payload remains")
}

func TestFinalizeInfeasible(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	storeContext(t, blobs, "host/run-1.json")

	_, err := NewFinalizer(blobs, q, nil).Finalize(ctx, callback("-1hard/0medium/0soft"))
	assert.True(t, errors.Is(err, ErrInfeasible))
	assert.Equal(t, 0, blobs.Len(), "planning context is dropped")
	assert.Equal(t, 0, q.Len(), "nothing is published")
}

func TestFinalizeUnparseableScoreProceeds(t *testing.T) {
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(10 * time.Millisecond)
	storeContext(t, blobs, "host/run-1.json")

	_, err := NewFinalizer(blobs, q, nil).Finalize(context.Background(), callback("n/a"))
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

func TestFinalizeErrors(t *testing.T) {
	ctx := context.Background()
	f := NewFinalizer(blob.NewMemoryStore(), queue.NewMemoryQueue(0), nil)

	cb := callback("")
	cb.HostID = ""
	_, err := f.Finalize(ctx, cb)
	assert.ErrorIs(t, err, ErrValidation)

	cb = callback("")
	cb.FileKey = ""
	_, err = f.Finalize(ctx, cb)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.Finalize(ctx, callback(""))
	assert.ErrorIs(t, err, blob.ErrNotFound, "missing planning context")
}
