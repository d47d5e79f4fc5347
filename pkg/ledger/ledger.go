package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
	"github.com/Veridex-Labs/veridex/kernel/pkg/crypto"
)

const pageSize = 256

// Ledger is an append-only, hash-chained audit log. Append is the one
// serialized operation: each entry's previous_hash depends on the prior
// entry, so appends go through a single critical section. Reads are
// unrestricted.
type Ledger struct {
	mu        sync.Mutex
	storage   Storage
	ring      *crypto.KeyRing
	chainHead string
	sequence  uint64
	start     time.Time

	// Cross-region confirmation is advisory metadata beside the chain; a
	// region-sync failure never touches cryptographic integrity.
	regionMu sync.RWMutex
	regions  map[string]map[string]time.Time
}

// VerifyReport localizes the first inconsistency in a chain so operators can
// act without re-deriving the break from raw entries.
type VerifyReport struct {
	Valid           bool   `json:"valid"`
	FirstBreakIndex int    `json:"first_break_index"` // -1 when valid
	Reason          string `json:"reason,omitempty"`
	Checked         int    `json:"checked"`
}

// New creates a ledger over the given storage, resuming an existing chain if
// the storage already holds entries.
func New(ctx context.Context, storage Storage, ring *crypto.KeyRing) (*Ledger, error) {
	if ring == nil || ring.Active() == nil {
		return nil, fmt.Errorf("ledger requires a signing key")
	}

	l := &Ledger{
		storage:   storage,
		ring:      ring,
		chainHead: GenesisHash,
		start:     time.Now(),
		regions:   make(map[string]map[string]time.Time),
	}

	last, err := storage.Last(ctx)
	switch {
	case err == nil:
		l.chainHead = last.EntryHash
		l.sequence = last.Sequence
	case err == ErrEntryNotFound:
		// Fresh ledger
	default:
		return nil, fmt.Errorf("failed to resume chain: %w", err)
	}

	return l, nil
}

// Append creates, signs, and persists a new entry. The read-compute-sign-
// publish sequence runs under the ledger mutex so two entries can never claim
// the same previous_hash. The entry becomes visible only after the store
// write returns.
func (l *Ledger) Append(ctx context.Context, ev Event) (*AuditEntry, error) {
	payloadHash := ""
	if ev.Payload != nil {
		h, err := canonicalize.CanonicalHash(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to hash payload: %w", err)
		}
		payloadHash = "sha256:" + h
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &AuditEntry{
		EntryID:       uuid.New().String(),
		Sequence:      l.sequence + 1,
		Timestamp:     time.Now().UTC(),
		Elapsed:       time.Since(l.start).Nanoseconds(),
		EventType:     ev.Type,
		Actor:         ev.Actor,
		Resource:      ev.Resource,
		Outcome:       ev.Outcome,
		PayloadHash:   payloadHash,
		PreviousHash:  l.chainHead,
		SignatureType: crypto.SigPrefixEd25519 + crypto.SigSeparator + l.ring.ActiveKeyID(),
	}

	hash, err := ComputeEntryHash(entry)
	if err != nil {
		return nil, err
	}
	entry.EntryHash = hash

	sig, err := l.ring.Sign([]byte(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to sign entry: %w", err)
	}
	entry.Signature = sig

	if err := l.storage.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to persist entry: %w", err)
	}

	l.sequence = entry.Sequence
	l.chainHead = entry.EntryHash
	return entry, nil
}

// RotateKey swaps the active signing key and records the rotation in the
// ledger itself, signed by the new key.
func (l *Ledger) RotateKey(ctx context.Context, next crypto.Signer) (*AuditEntry, error) {
	prevID, err := l.ring.Rotate(next)
	if err != nil {
		return nil, err
	}
	return l.Append(ctx, Event{
		Type:     EventKeyRotation,
		Actor:    "kernel",
		Resource: "signing-key",
		Outcome:  "ROTATED",
		Payload:  map[string]string{"previous_key": prevID, "active_key": next.KeyID()},
	})
}

// VerifyChain walks the whole ledger, recomputing each entry hash, checking
// previous_hash linkage and signature validity. The first inconsistency stops
// the walk and its index is reported. A detected break also appends an
// INTEGRITY_ALERT meta-entry documenting the corruption; the broken entry is
// never repaired or removed.
//
// The scan honors ctx cancellation between entries and returns the partial
// report alongside the context error.
func (l *Ledger) VerifyChain(ctx context.Context) (VerifyReport, error) {
	report := VerifyReport{Valid: true, FirstBreakIndex: -1}
	expectedPrev := GenesisHash

	var cursor uint64
	index := 0
	for {
		page, err := l.storage.Page(ctx, cursor, pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to page entries: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, entry := range page {
			select {
			case <-ctx.Done():
				report.Checked = index
				return report, ctx.Err()
			default:
			}

			if reason, ok := l.checkEntry(entry, expectedPrev); !ok {
				report.Valid = false
				report.FirstBreakIndex = index
				report.Reason = reason
				report.Checked = index + 1
				l.alertIntegrity(ctx, entry, index, reason)
				return report, nil
			}

			expectedPrev = entry.EntryHash
			cursor = entry.Sequence
			index++
		}
	}

	report.Checked = index
	return report, nil
}

func (l *Ledger) checkEntry(entry *AuditEntry, expectedPrev string) (string, bool) {
	if entry.PreviousHash != expectedPrev {
		return fmt.Sprintf("previous_hash %s, expected %s", entry.PreviousHash, expectedPrev), false
	}

	computed, err := ComputeEntryHash(entry)
	if err != nil {
		return fmt.Sprintf("hash computation failed: %v", err), false
	}
	if computed != entry.EntryHash {
		return fmt.Sprintf("entry_hash mismatch (computed %s, stored %s)", computed, entry.EntryHash), false
	}

	keyID, err := signatureKeyID(entry.SignatureType)
	if err != nil {
		return err.Error(), false
	}
	ok, err := l.ring.VerifyKey(keyID, entry.Signature, []byte(entry.EntryHash))
	if err != nil {
		return fmt.Sprintf("signature check failed: %v", err), false
	}
	if !ok {
		return "signature invalid", false
	}
	return "", true
}

// alertIntegrity appends the corruption meta-entry. Never auto-repairs.
func (l *Ledger) alertIntegrity(ctx context.Context, entry *AuditEntry, index int, reason string) {
	_, _ = l.Append(ctx, Event{
		Type:     EventIntegrityAlert,
		Actor:    "kernel",
		Resource: "ledger",
		Outcome:  "CHAIN_BROKEN",
		Payload: map[string]any{
			"entry_id":    entry.EntryID,
			"break_index": index,
			"reason":      reason,
		},
	})
}

// EntriesSince returns up to limit entries after the cursor, plus the cursor
// to resume from. A zero cursor starts from the beginning.
func (l *Ledger) EntriesSince(ctx context.Context, cursor uint64, limit int) ([]*AuditEntry, uint64, error) {
	if limit <= 0 {
		limit = pageSize
	}
	page, err := l.storage.Page(ctx, cursor, limit)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to page entries: %w", err)
	}
	next := cursor
	if len(page) > 0 {
		next = page[len(page)-1].Sequence
	}
	return page, next, nil
}

// Len returns the number of entries.
func (l *Ledger) Len(ctx context.Context) (uint64, error) {
	return l.storage.Count(ctx)
}

// Head returns the current chain head hash.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chainHead
}

// ConfirmRegion records that a region acknowledged replication of an entry.
func (l *Ledger) ConfirmRegion(entryID, region string) {
	l.regionMu.Lock()
	defer l.regionMu.Unlock()
	confirmed, ok := l.regions[entryID]
	if !ok {
		confirmed = make(map[string]time.Time)
		l.regions[entryID] = confirmed
	}
	confirmed[region] = time.Now().UTC()
}

// RegionStatus returns the sorted set of regions that confirmed an entry.
func (l *Ledger) RegionStatus(entryID string) []string {
	l.regionMu.RLock()
	defer l.regionMu.RUnlock()
	confirmed := l.regions[entryID]
	out := make([]string, 0, len(confirmed))
	for region := range confirmed {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

func signatureKeyID(signatureType string) (string, error) {
	parts := strings.Split(signatureType, crypto.SigSeparator)
	if len(parts) != 2 || parts[0] != crypto.SigPrefixEd25519 {
		return "", fmt.Errorf("invalid signature type format: %s", signatureType)
	}
	return parts[1], nil
}
