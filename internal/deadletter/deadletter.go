package deadletter

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown entry ids.
var ErrNotFound = errors.New("dead letter not found")

// Entry is one failed planning result.
type Entry struct {
	ID      string `json:"id"`
	FileKey string `json:"fileKey"`
	// Class is the error class, e.g. "terminal_loss" or "validation".
	Class string `json:"class"`
	// Stage is the worker stage the message failed in.
	Stage string `json:"stage"`
	Error string `json:"error"`
	// Payload is the stored planning payload, when it was fetched.
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store records and serves dead letters.
type Store interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Delete(ctx context.Context, id string) error
}
