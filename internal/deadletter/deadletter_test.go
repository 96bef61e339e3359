package deadletter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "dl", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := store.Record(ctx, Entry{
				FileKey:   "h1/s1_processed.json",
				Class:     "terminal_loss",
				Stage:     "dispatched",
				Error:     "store unavailable",
				Payload:   []byte(`{"hostId":"h1"}`),
				CreatedAt: base,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, first.ID)

			second, err := store.Record(ctx, Entry{
				FileKey:   "h2/s2_processed.json",
				Class:     "validation",
				Stage:     "validating",
				Error:     "no users",
				CreatedAt: base.Add(time.Minute),
			})
			require.NoError(t, err)

			list, err := store.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID, "newest first")

			list, err = store.List(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			got, err := store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "h1/s1_processed.json", got.FileKey)
			assert.Equal(t, `{"hostId":"h1"}`, string(got.Payload))
			assert.True(t, base.Equal(got.CreatedAt))

			require.NoError(t, store.Delete(ctx, first.ID))
			_, err = store.Get(ctx, first.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, first.ID), ErrNotFound)
		})
	}
}
