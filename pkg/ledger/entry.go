// Package ledger implements the append-only, hash-chained audit ledger.
//
// Every entry embeds the hash of its predecessor; retroactive tampering with
// any field breaks the chain at that index. Appends are strictly serialized;
// readers never observe a partial entry.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
)

// GenesisHash is the fixed previous_hash of the first entry in a ledger.
const GenesisHash = "genesis"

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrChainBroken   = errors.New("hash chain is broken")
	ErrClosed        = errors.New("ledger storage closed")
)

// EventType categorizes audit entries. The set is fixed; callers never invent
// ad-hoc types.
type EventType string

const (
	EventPolicyDecision EventType = "POLICY_DECISION"
	EventDataAccess     EventType = "DATA_ACCESS"
	EventSyncOutcome    EventType = "SYNC_OUTCOME"
	EventKeyRotation    EventType = "KEY_ROTATION"
	EventIntegrityAlert EventType = "INTEGRITY_ALERT"
	EventCatalogReload  EventType = "CATALOG_RELOAD"
)

// Event is what callers submit for appending.
type Event struct {
	Type     EventType
	Actor    string
	Resource string
	Outcome  string
	Payload  any
}

// AuditEntry is a single immutable ledger record. Timestamp carries wall-clock
// time; Elapsed is the monotonic-clock nanoseconds since the ledger started,
// immune to wall-clock adjustment.
type AuditEntry struct {
	EntryID       string    `json:"entry_id"`
	Sequence      uint64    `json:"sequence"`
	Timestamp     time.Time `json:"timestamp"`
	Elapsed       int64     `json:"elapsed_ns"`
	EventType     EventType `json:"event_type"`
	Actor         string    `json:"actor"`
	Resource      string    `json:"resource"`
	Outcome       string    `json:"outcome"`
	PayloadHash   string    `json:"payload_hash"`
	PreviousHash  string    `json:"previous_hash"`
	EntryHash     string    `json:"entry_hash"`
	Signature     string    `json:"signature"`
	SignatureType string    `json:"signature_type"`
}

// ComputeEntryHash digests every field except the hash and signature
// themselves, canonically serialized. Verifiers recompute this to detect
// tampering.
func ComputeEntryHash(e *AuditEntry) (string, error) {
	hashable := struct {
		EntryID       string    `json:"entry_id"`
		Sequence      uint64    `json:"sequence"`
		Timestamp     time.Time `json:"timestamp"`
		Elapsed       int64     `json:"elapsed_ns"`
		EventType     EventType `json:"event_type"`
		Actor         string    `json:"actor"`
		Resource      string    `json:"resource"`
		Outcome       string    `json:"outcome"`
		PayloadHash   string    `json:"payload_hash"`
		PreviousHash  string    `json:"previous_hash"`
		SignatureType string    `json:"signature_type"`
	}{
		EntryID:       e.EntryID,
		Sequence:      e.Sequence,
		Timestamp:     e.Timestamp,
		Elapsed:       e.Elapsed,
		EventType:     e.EventType,
		Actor:         e.Actor,
		Resource:      e.Resource,
		Outcome:       e.Outcome,
		PayloadHash:   e.PayloadHash,
		PreviousHash:  e.PreviousHash,
		SignatureType: e.SignatureType,
	}

	h, err := canonicalize.CanonicalHash(hashable)
	if err != nil {
		return "", fmt.Errorf("failed to hash entry: %w", err)
	}
	return "sha256:" + h, nil
}
