package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps slots in process memory. It is the default backend
// for the demo shell and for tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryBackend creates an empty in-memory slot store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc, ok := b.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

func (b *MemoryBackend) Store(_ context.Context, key string, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(doc))
	copy(cp, doc)
	b.slots[key] = cp
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.slots, key)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
