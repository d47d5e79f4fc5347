package resilient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
)

func newTestSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := OpenSQLiteCache(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteCache_RoundTrip(t *testing.T) {
	c := newTestSQLiteCache(t)
	payload := []byte(`{"a":1}`)
	entry := &CacheEntry{
		Key:         "loc/abc",
		Location:    "loc",
		CreatedAt:   time.Now().UTC(),
		ContentHash: "sha256:" + canonicalize.HashBytes(payload),
		Payload:     payload,
		State:       StateCached,
	}
	require.NoError(t, c.Put(context.Background(), entry))

	got, err := c.Get(context.Background(), "loc/abc")
	require.NoError(t, err)
	assert.Equal(t, entry.Location, got.Location)
	assert.Equal(t, entry.ContentHash, got.ContentHash)
	assert.Equal(t, payload, got.Payload)
	assert.Equal(t, StateCached, got.State)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))

	_, err = c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheEntryNotFound)
}

func TestSQLiteCache_Update(t *testing.T) {
	c := newTestSQLiteCache(t)
	entry := &CacheEntry{Key: "k", Location: "loc", CreatedAt: time.Now().UTC(), ContentHash: "sha256:x", Payload: []byte("x"), State: StateCached}
	require.NoError(t, c.Put(context.Background(), entry))

	entry.State = StateSyncFailed
	entry.Attempts = 2
	entry.LastError = "connection refused"
	entry.Quarantined = true
	require.NoError(t, c.Update(context.Background(), entry))

	got, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, StateSyncFailed, got.State)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)
	assert.True(t, got.Quarantined)

	assert.ErrorIs(t, c.Update(context.Background(), &CacheEntry{Key: "missing"}), ErrCacheEntryNotFound)
}

func TestSQLiteCache_PendingOldestFirst(t *testing.T) {
	c := newTestSQLiteCache(t)
	base := time.Now().UTC()

	put := func(key string, age time.Duration, state SyncState, quarantined bool) {
		require.NoError(t, c.Put(context.Background(), &CacheEntry{
			Key: key, Location: "loc", CreatedAt: base.Add(-age),
			ContentHash: "sha256:x", Payload: []byte("x"),
			State: state, Quarantined: quarantined,
		}))
	}
	put("newest", time.Minute, StateCached, false)
	put("oldest", time.Hour, StateSyncFailed, false)
	put("synced", 2*time.Hour, StateSynced, false)
	put("bad", 3*time.Hour, StateCached, true)

	pending, err := c.Pending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "oldest", pending[0].Key)
	assert.Equal(t, "newest", pending[1].Key)

	limited, err := c.Pending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "oldest", limited[0].Key)

	all, err := c.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteCache_Delete(t *testing.T) {
	c := newTestSQLiteCache(t)
	entry := &CacheEntry{Key: "k", Location: "loc", CreatedAt: time.Now().UTC(), ContentHash: "sha256:x", Payload: []byte("x"), State: StateSynced}
	require.NoError(t, c.Put(context.Background(), entry))

	require.NoError(t, c.Delete(context.Background(), "k"))
	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheEntryNotFound)

	// Deleting a missing key is a no-op.
	assert.NoError(t, c.Delete(context.Background(), "k"))
}

// Store over the SQLite cache, end to end.
func TestStore_WithSQLiteCache(t *testing.T) {
	cache := newTestSQLiteCache(t)
	durable := NewMemoryDurable()
	store := New(cache, durable, WithProbe(NeverReachable{}))

	outcome, err := store.Persist(context.Background(), "ledger/exports", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, outcome)

	stats, err := store.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Synced: 1}, stats)
	assert.Equal(t, 1, durable.Len())
}
