package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// CompressedStore compresses payloads with zstd on write. Reads accept both
// compressed and plain payloads, detected by the zstd frame magic.
type CompressedStore struct {
	Store

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Compressed wraps store.
func Compressed(store Store) (*CompressedStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &CompressedStore{Store: store, enc: enc, dec: dec}, nil
}

// Get implements Store.
func (s *CompressedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	plain, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return plain, nil
}

// Put implements Store.
func (s *CompressedStore) Put(ctx context.Context, key string, data []byte) error {
	return s.Store.Put(ctx, key, s.enc.EncodeAll(data, nil))
}
