package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/planner"
	"github.com/teemow/meetassist/internal/queue"
)

type callbackFixture struct {
	blobs   *blob.MemoryStore
	queue   *queue.MemoryQueue
	handler *CallbackHandler
}

func newCallbackFixture(t *testing.T, withContext bool) callbackFixture {
	t.Helper()
	f := callbackFixture{
		blobs: blob.NewMemoryStore(),
		queue: queue.NewMemoryQueue(10 * time.Millisecond),
	}
	if withContext {
		data, err := json.Marshal(planner.PostProcessQueueBody{
			HostID:       "host",
			SingletonID:  "run-1",
			HostTimezone: "UTC",
		})
		require.NoError(t, err)
		require.NoError(t, f.blobs.Put(context.Background(), "host/run-1.json", data))
	}
	f.handler = NewCallbackHandler(planner.NewFinalizer(f.blobs, f.queue, nil), nil)
	return f
}

func postCallback(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCallback(t *testing.T, rec *httptest.ResponseRecorder) CallbackResponse {
	t.Helper()
	var resp CallbackResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

const validCallback = `{
	"fileKey": "host/run-1.json",
	"hostId": "host",
	"score": "0hard/-2medium/-10soft",
	"userList": [{"id": "host", "hostId": "host"}],
	"eventPartList": []
}`

func TestCallbackHandler_Queued(t *testing.T) {
	f := newCallbackFixture(t, true)

	rec := postCallback(f.handler, validCallback)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeCallback(t, rec)
	assert.Equal(t, CallbackQueued, resp.Status)
	assert.Equal(t, "host/run-1_processed.json", resp.FileKey)
	assert.Equal(t, 1, f.queue.Len())

	_, err := f.blobs.Get(context.Background(), "host/run-1.json")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestCallbackHandler_Infeasible(t *testing.T) {
	f := newCallbackFixture(t, true)

	body := strings.Replace(validCallback, "0hard/-2medium/-10soft", "-1hard/0medium/0soft", 1)
	rec := postCallback(f.handler, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CallbackDiscarded, decodeCallback(t, rec).Status)
	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, 0, f.blobs.Len(), "the planning context is dropped")
}

func TestCallbackHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		context    bool
		wantStatus int
	}{
		{name: "GET not allowed", method: http.MethodGet, context: true, wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed body", method: http.MethodPost, body: `{"fileKey":`, context: true, wantStatus: http.StatusBadRequest},
		{name: "missing host id", method: http.MethodPost, body: `{"fileKey":"host/run-1.json"}`, context: true, wantStatus: http.StatusBadRequest},
		{name: "missing file key", method: http.MethodPost, body: `{"hostId":"host"}`, context: true, wantStatus: http.StatusBadRequest},
		{name: "planning context gone", method: http.MethodPost, body: validCallback, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCallbackFixture(t, tt.context)
			req := httptest.NewRequest(tt.method, CallbackPath, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, CallbackRejected, decodeCallback(t, rec).Status)
			assert.Equal(t, 0, f.queue.Len())
		})
	}
}

type finalizerFunc func(context.Context, planner.CallbackBody) (string, error)

func (f finalizerFunc) Finalize(ctx context.Context, cb planner.CallbackBody) (string, error) {
	return f(ctx, cb)
}

func TestCallbackHandler_InternalError(t *testing.T) {
	h := NewCallbackHandler(finalizerFunc(func(context.Context, planner.CallbackBody) (string, error) {
		return "", errors.New("publish: connection refused")
	}), nil)

	rec := postCallback(h, validCallback)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeCallback(t, rec)
	assert.Equal(t, CallbackFailed, resp.Status)
	assert.NotContains(t, resp.Error, "connection refused")
}
