package blob

import (
	"context"
	"time"

	"github.com/teemow/meetassist/internal/instrumentation"
)

// InstrumentedStore records an operation metric for every call.
type InstrumentedStore struct {
	store   Store
	backend string
	metrics *instrumentation.Metrics
}

// Instrumented wraps store. backend labels the metrics, e.g. "valkey".
func Instrumented(store Store, backend string, metrics *instrumentation.Metrics) *InstrumentedStore {
	return &InstrumentedStore{store: store, backend: backend, metrics: metrics}
}

func (s *InstrumentedStore) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordBlobOperation(ctx, s.backend, op, status, time.Since(start))
}

// Get implements Store.
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.store.Get(ctx, key)
	s.record(ctx, instrumentation.OperationGet, start, err)
	return data, err
}

// Put implements Store.
func (s *InstrumentedStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.store.Put(ctx, key, data)
	s.record(ctx, instrumentation.OperationPut, start, err)
	return err
}

// Delete implements Store.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.record(ctx, instrumentation.OperationDelete, start, err)
	return err
}
