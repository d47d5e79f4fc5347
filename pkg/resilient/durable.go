package resilient

import (
	"context"
	"errors"
	"sync"
)

// DurableStore is the remote backend a Store drains into. Write must be
// idempotent for a given key; Reconcile may replay a key it already wrote if
// the process died before the cache state was updated.
type DurableStore interface {
	Write(ctx context.Context, key string, data []byte) error
	Name() string
}

// MemoryDurable is an in-process DurableStore with fault injection, so tests
// can force the cache-fallback and reconcile paths.
type MemoryDurable struct {
	mu      sync.RWMutex
	objects map[string][]byte
	fail    error
}

func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{objects: make(map[string][]byte)}
}

func (m *MemoryDurable) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
	return nil
}

func (m *MemoryDurable) Name() string { return "memory" }

// FailWrites makes every subsequent Write return the given error; a nil
// error restores normal operation.
func (m *MemoryDurable) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Get returns a stored object. Test helper.
func (m *MemoryDurable) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored objects. Test helper.
func (m *MemoryDurable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ErrWriteFailed is a generic injection error for tests.
var ErrWriteFailed = errors.New("durable write failed")
