package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend keeps entries in a size-bounded in-process otter cache.
type MemoryBackend struct {
	cache *otter.Cache[string, memoryEntry]
}

// NewMemoryBackend creates a memory backend holding at most maxEntries
// entries. maxTTL bounds how long otter keeps an entry around; the ttl given
// to Put is enforced per entry on read.
func NewMemoryBackend(maxEntries int, maxTTL time.Duration) (*MemoryBackend, error) {
	cache, err := otter.New(&otter.Options[string, memoryEntry]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryWriting[string, memoryEntry](maxTTL),
	})
	if err != nil {
		return nil, err
	}

	return &MemoryBackend{cache: cache}, nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	entry, ok := m.cache.GetIfPresent(key)
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.cache.Invalidate(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryBackend) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.cache.Set(key, memoryEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryBackend) Close() error {
	m.cache.InvalidateAll()
	return nil
}
