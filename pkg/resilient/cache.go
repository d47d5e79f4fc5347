// Package resilient implements offline-first durable storage: writes that
// cannot reach the durable backend are never dropped, they land in a local
// cache and are replayed by Reconcile once connectivity returns.
package resilient

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrCacheEntryNotFound = errors.New("cache entry not found")
	ErrContentMismatch    = errors.New("cached payload does not match its content hash")
)

// SyncState tracks a cached write's progress toward the durable backend.
type SyncState string

const (
	StateCached      SyncState = "CACHED"
	StateSyncPending SyncState = "SYNC_PENDING"
	StateSyncFailed  SyncState = "SYNC_FAILED"
	StateSynced      SyncState = "SYNCED"
)

// CacheEntry is a locally buffered write. Key embeds a fresh uniqueness
// suffix, so two writes to the same location never collide in the cache or in
// the durable backend.
type CacheEntry struct {
	Key         string    `json:"key"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	ContentHash string    `json:"content_hash"`
	Payload     []byte    `json:"payload"`
	State       SyncState `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	Quarantined bool      `json:"quarantined"`
}

// CacheStore is the local buffer behind a Store. Pending returns entries that
// still need a durable write, oldest first; quarantined entries are excluded
// from Pending but never deleted.
type CacheStore interface {
	Put(ctx context.Context, e *CacheEntry) error
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Update(ctx context.Context, e *CacheEntry) error
	Pending(ctx context.Context, limit int) ([]*CacheEntry, error)
	All(ctx context.Context) ([]*CacheEntry, error)
	Delete(ctx context.Context, key string) error
}

// MemoryCache is the in-process CacheStore. Default for tests and for
// deployments without a cache path configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*CacheEntry)}
}

func (m *MemoryCache) Put(ctx context.Context, e *CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryCache) Update(ctx context.Context, e *CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; !ok {
		return ErrCacheEntryNotFound
	}
	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

func (m *MemoryCache) Pending(ctx context.Context, limit int) ([]*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*CacheEntry
	for _, e := range m.entries {
		if e.Quarantined || e.State == StateSynced {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryCache) All(ctx context.Context) ([]*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
