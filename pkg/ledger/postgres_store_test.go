package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewPostgresStorage(db)
	require.NoError(t, err)
	return store, mock
}

func pgEntryRows(entries ...*AuditEntry) *sqlmock.Rows {
	cols := []string{"sequence", "entry_id", "timestamp", "elapsed_ns", "event_type",
		"actor", "resource", "outcome", "payload_hash", "previous_hash",
		"entry_hash", "signature", "signature_type"}
	rows := sqlmock.NewRows(cols)
	for _, e := range entries {
		rows.AddRow(e.Sequence, e.EntryID, e.Timestamp, e.Elapsed, string(e.EventType),
			e.Actor, e.Resource, e.Outcome, e.PayloadHash, e.PreviousHash,
			e.EntryHash, e.Signature, e.SignatureType)
	}
	return rows
}

func sampleEntry(seq uint64) *AuditEntry {
	return &AuditEntry{
		EntryID:       "entry-1",
		Sequence:      seq,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:       42,
		EventType:     EventPolicyDecision,
		Actor:         "svc-billing",
		Resource:      "customer/123",
		Outcome:       "APPROVED",
		PreviousHash:  GenesisHash,
		EntryHash:     "sha256:abc",
		Signature:     "00ff",
		SignatureType: "ed25519:key-1",
	}
}

func TestPostgresStorage_Append(t *testing.T) {
	store, mock := newMockPostgres(t)
	e := sampleEntry(1)

	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(e.Sequence, e.EntryID, e.Timestamp.UTC(), e.Elapsed,
			string(e.EventType), e.Actor, e.Resource, e.Outcome,
			e.PayloadHash, e.PreviousHash, e.EntryHash, e.Signature, e.SignatureType).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Last(t *testing.T) {
	store, mock := newMockPostgres(t)
	e := sampleEntry(3)

	mock.ExpectQuery("SELECT .+ FROM audit_entries ORDER BY sequence DESC LIMIT 1").
		WillReturnRows(pgEntryRows(e))

	got, err := store.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, e.EntryID, got.EntryID)
	assert.Equal(t, e.Sequence, got.Sequence)
	assert.Equal(t, EventPolicyDecision, got.EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_LastEmpty(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT .+ FROM audit_entries ORDER BY sequence DESC LIMIT 1").
		WillReturnRows(pgEntryRows())

	_, err := store.Last(context.Background())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestPostgresStorage_Page(t *testing.T) {
	store, mock := newMockPostgres(t)
	a, b := sampleEntry(4), sampleEntry(5)
	b.EntryID = "entry-2"
	b.PreviousHash = a.EntryHash

	mock.ExpectQuery(`SELECT .+ FROM audit_entries WHERE sequence > \$1 ORDER BY sequence ASC LIMIT \$2`).
		WithArgs(uint64(3), 10).
		WillReturnRows(pgEntryRows(a, b))

	page, err := store.Page(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(4), page[0].Sequence)
	assert.Equal(t, a.EntryHash, page[1].PreviousHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Count(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(17), n)
}
