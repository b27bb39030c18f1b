package persist

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps snapshots in process memory. It is meant for tests
// and examples.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string][]byte{}}
}

func (b *MemoryBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	b.mu.RLock()
	data, ok := b.records[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

func (b *MemoryBackend) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	b.mu.Lock()
	if b.records == nil {
		b.records = map[string][]byte{}
	}
	b.records[key] = slices.Clone(data)
	b.mu.Unlock()
	return nil
}

// Keys lists the stored keys in sorted order.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.records))
	for key := range b.records {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
