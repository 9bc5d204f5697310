package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrCacheMiss is returned by a Store when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store persists raw provider payloads between process restarts. Keys follow
// the Key.String / Key.Driver / Key.Lap contract.
type Store interface {
	// Get returns the stored value or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a value, replacing any previous one.
	Put(ctx context.Context, key string, value []byte) error

	// DeletePrefix removes every key starting with prefix and returns the count.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// StoreStats describes the contents of a persistent Store.
type StoreStats struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// StatsReporter is implemented by stores that can describe their contents.
type StatsReporter interface {
	Stats(ctx context.Context) (StoreStats, error)
}

// MemoryStore is a Store kept in process memory. Used for tests and for
// deployments that opt out of a persistent cache.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a copy of value.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	return nil
}

// DeletePrefix removes matching keys.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			delete(m.values, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Stats reports the number of stored keys and their total size.
func (m *MemoryStore) Stats(_ context.Context) (StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := StoreStats{Backend: "memory", Entries: int64(len(m.values))}
	for _, v := range m.values {
		stats.Bytes += int64(len(v))
	}
	return stats, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
