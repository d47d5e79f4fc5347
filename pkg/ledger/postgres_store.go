package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresStorage persists ledger entries in Postgres for multi-node
// deployments. Same contract as SQLiteStorage; only placeholders and the
// timestamp column type differ.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage wraps an opened Postgres handle and runs the migration.
func NewPostgresStorage(db *sql.DB) (*PostgresStorage, error) {
	s := &PostgresStorage{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgresStorage connects using a DSN.
func OpenPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres ledger: %w", err)
	}
	return NewPostgresStorage(db)
}

func (s *PostgresStorage) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		sequence BIGINT PRIMARY KEY,
		entry_id TEXT NOT NULL UNIQUE,
		timestamp TIMESTAMPTZ NOT NULL,
		elapsed_ns BIGINT NOT NULL,
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
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

const pgEntryColumns = `sequence, entry_id, timestamp, elapsed_ns, event_type, actor, resource, outcome, payload_hash, previous_hash, entry_hash, signature, signature_type`

func (s *PostgresStorage) Append(ctx context.Context, e *AuditEntry) error {
	query := `INSERT INTO audit_entries (` + pgEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		e.Sequence, e.EntryID, e.Timestamp.UTC(), e.Elapsed,
		string(e.EventType), e.Actor, e.Resource, e.Outcome,
		e.PayloadHash, e.PreviousHash, e.EntryHash, e.Signature, e.SignatureType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Last(ctx context.Context) (*AuditEntry, error) {
	query := `SELECT ` + pgEntryColumns + ` FROM audit_entries ORDER BY sequence DESC LIMIT 1`
	e, err := scanPgEntry(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (s *PostgresStorage) Page(ctx context.Context, afterSeq uint64, limit int) ([]*AuditEntry, error) {
	query := `SELECT ` + pgEntryColumns + ` FROM audit_entries WHERE sequence > $1 ORDER BY sequence ASC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*AuditEntry
	for rows.Next() {
		e, err := scanPgEntry(rows)
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

func (s *PostgresStorage) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func scanPgEntry(row rowScanner) (*AuditEntry, error) {
	var e AuditEntry
	var eventType string
	err := row.Scan(&e.Sequence, &e.EntryID, &e.Timestamp, &e.Elapsed, &eventType,
		&e.Actor, &e.Resource, &e.Outcome, &e.PayloadHash, &e.PreviousHash,
		&e.EntryHash, &e.Signature, &e.SignatureType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.EventType = EventType(eventType)
	return &e, nil
}
