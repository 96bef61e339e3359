package blob

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore stores blobs as plain string keys on a Valkey server.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore returns a store on client. Every key is prefixed with prefix.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) key(k string) string {
	return s.prefix + k
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Put implements Store.
func (s *ValkeyStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(s.key(key)).Value(valkey.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", key, ErrNotFound)
	}
	return nil
}
