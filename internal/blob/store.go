package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned for keys that do not exist, including keys that
// were already deleted.
var ErrNotFound = errors.New("blob not found")

// Store is a key/value payload store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects keys that cannot be stored portably.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("invalid blob key: empty")
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("invalid blob key %q: must be relative", key)
	case strings.Contains(key, ".."):
		return fmt.Errorf("invalid blob key %q: must not contain ..", key)
	}
	return nil
}

// ContextKey is the key of the payload stored before the optimizer runs.
func ContextKey(hostID, singletonID string) string {
	return hostID + "/" + singletonID + ".json"
}

// ProcessedKey is the key of the merged payload referenced by the queue.
func ProcessedKey(hostID, singletonID string) string {
	return hostID + "/" + singletonID + "_processed.json"
}
