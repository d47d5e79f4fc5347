package resilient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache persists the local write buffer, surviving process restarts. A
// crash between Persist and Reconcile loses nothing.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache wraps an opened SQLite handle and runs the migration.
func NewSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenSQLiteCache opens (or creates) the cache database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	return NewSQLiteCache(db)
}

func (c *SQLiteCache) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		created_at TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		payload BLOB NOT NULL,
		state TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		quarantined INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := c.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return nil
}

const cacheColumns = `key, location, created_at, content_hash, payload, state, attempts, last_error, quarantined`

func (c *SQLiteCache) Put(ctx context.Context, e *CacheEntry) error {
	query := `INSERT INTO cache_entries (` + cacheColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := c.db.ExecContext(ctx, query,
		e.Key, e.Location, e.CreatedAt.UTC().Format(time.RFC3339Nano), e.ContentHash,
		e.Payload, string(e.State), e.Attempts, e.LastError, boolToInt(e.Quarantined))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	query := `SELECT ` + cacheColumns + ` FROM cache_entries WHERE key = ?`
	e, err := scanCacheEntry(c.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, ErrCacheEntryNotFound
	}
	return e, err
}

func (c *SQLiteCache) Update(ctx context.Context, e *CacheEntry) error {
	query := `UPDATE cache_entries
		SET state = ?, attempts = ?, last_error = ?, quarantined = ?
		WHERE key = ?`
	res, err := c.db.ExecContext(ctx, query,
		string(e.State), e.Attempts, e.LastError, boolToInt(e.Quarantined), e.Key)
	if err != nil {
		return fmt.Errorf("failed to update cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update cache entry: %w", err)
	}
	if n == 0 {
		return ErrCacheEntryNotFound
	}
	return nil
}

func (c *SQLiteCache) Pending(ctx context.Context, limit int) ([]*CacheEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	query := `SELECT ` + cacheColumns + ` FROM cache_entries
		WHERE quarantined = 0 AND state != ?
		ORDER BY created_at ASC LIMIT ?`
	return c.queryEntries(ctx, query, string(StateSynced), limit)
}

func (c *SQLiteCache) All(ctx context.Context) ([]*CacheEntry, error) {
	query := `SELECT ` + cacheColumns + ` FROM cache_entries ORDER BY created_at ASC`
	return c.queryEntries(ctx, query)
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) queryEntries(ctx context.Context, query string, args ...any) ([]*CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row rowScanner) (*CacheEntry, error) {
	var e CacheEntry
	var created, state string
	var quarantined int
	err := row.Scan(&e.Key, &e.Location, &created, &e.ContentHash, &e.Payload,
		&state, &e.Attempts, &e.LastError, &quarantined)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}
	e.State = SyncState(state)
	e.Quarantined = quarantined != 0
	parsed, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invalid stored timestamp %q: %w", created, err)
	}
	e.CreatedAt = parsed
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
