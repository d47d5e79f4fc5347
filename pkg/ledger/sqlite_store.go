package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage persists ledger entries in a local SQLite database. Suitable
// for single-node deployments and the local half of an intermittently
// connected ledger.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage wraps an opened SQLite handle and runs the migration.
func NewSQLiteStorage(db *sql.DB) (*SQLiteStorage, error) {
	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStorage opens (or creates) the database file at path.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}
	return NewSQLiteStorage(db)
}

func (s *SQLiteStorage) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		sequence INTEGER PRIMARY KEY,
		entry_id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		actor TEXT NOT NULL,
		resource TEXT NOT NULL,
		outcome TEXT NOT NULL,
		payload_hash TEXT NOT NULL DEFAULT '',
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL,
		signature TEXT NOT NULL,
		signature_type TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

const sqliteEntryColumns = `sequence, entry_id, timestamp, elapsed_ns, event_type, actor, resource, outcome, payload_hash, previous_hash, entry_hash, signature, signature_type`

func (s *SQLiteStorage) Append(ctx context.Context, e *AuditEntry) error {
	query := `INSERT INTO audit_entries (` + sqliteEntryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		e.Sequence, e.EntryID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Elapsed,
		string(e.EventType), e.Actor, e.Resource, e.Outcome,
		e.PayloadHash, e.PreviousHash, e.EntryHash, e.Signature, e.SignatureType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Last(ctx context.Context) (*AuditEntry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM audit_entries ORDER BY sequence DESC LIMIT 1`
	e, err := scanEntry(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (s *SQLiteStorage) Page(ctx context.Context, afterSeq uint64, limit int) ([]*AuditEntry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM audit_entries WHERE sequence > ? ORDER BY sequence ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
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

func (s *SQLiteStorage) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*AuditEntry, error) {
	var e AuditEntry
	var ts, eventType string
	err := row.Scan(&e.Sequence, &e.EntryID, &ts, &e.Elapsed, &eventType,
		&e.Actor, &e.Resource, &e.Outcome, &e.PayloadHash, &e.PreviousHash,
		&e.EntryHash, &e.Signature, &e.SignatureType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.EventType = EventType(eventType)
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid stored timestamp %q: %w", ts, err)
	}
	e.Timestamp = parsed
	return &e, nil
}
