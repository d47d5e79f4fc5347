package ledger

import (
	"context"
	"sync"
)

// Storage is the persistence contract behind a Ledger. Implementations only
// store and page entries; chain construction and verification live in Ledger.
// No update or delete operation exists by design.
type Storage interface {
	// Append persists a fully-formed entry.
	Append(ctx context.Context, e *AuditEntry) error
	// Last returns the most recent entry, or ErrEntryNotFound when empty.
	Last(ctx context.Context) (*AuditEntry, error)
	// Page returns up to limit entries with Sequence > afterSeq, ascending.
	Page(ctx context.Context, afterSeq uint64, limit int) ([]*AuditEntry, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (uint64, error)
}

// MemoryStorage keeps entries in process memory. Used by tests and as the
// default backend when no durable configuration is present.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*AuditEntry
	byID    map[string]*AuditEntry
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byID: make(map[string]*AuditEntry)}
}

func (m *MemoryStorage) Append(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	m.byID[e.EntryID] = e
	return nil
}

func (m *MemoryStorage) Last(ctx context.Context) (*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return nil, ErrEntryNotFound
	}
	return m.entries[len(m.entries)-1], nil
}

func (m *MemoryStorage) Page(ctx context.Context, afterSeq uint64, limit int) ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*AuditEntry, 0, limit)
	for _, e := range m.entries {
		if e.Sequence <= afterSeq {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStorage) Count(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

// Get retrieves an entry by ID. Not part of the Storage contract; used by
// tests to inspect specific entries.
func (m *MemoryStorage) Get(entryID string) (*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e, nil
}
