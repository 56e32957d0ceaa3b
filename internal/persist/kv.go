package persist

import (
	"context"
	"sync"
	"time"
)

// KV is the durable key-value boundary the persistence adapter writes
// through. Implementations must tolerate concurrent calls for distinct
// keys; per-key serialization is the caller's responsibility.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryKV is an in-memory KV used by tests and single-process runs.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryKV constructs an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]memoryItem)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
