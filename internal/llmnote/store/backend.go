package store

import (
	"context"
	"fmt"
	"sync"
)

// Backend persists whole-collection blobs by collection name.
//
// Read returns (nil, nil) when nothing has been written under name yet.
// Write replaces the blob under name as a unit.
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Close() error
}

// Kind names a Backend implementation.
type Kind string

const (
	KindKV       Kind = "kv"
	KindDocument Kind = "document"
	KindMemory   Kind = "memory"
)

// ParseKind validates a backend name from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindKV, KindDocument, KindMemory:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported storage backend: %q (expected kv, document or memory)", s)
	}
}

// MemoryBackend keeps blobs in process memory only.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (b *MemoryBackend) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.blobs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Write(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

var _ Backend = (*MemoryBackend)(nil)
