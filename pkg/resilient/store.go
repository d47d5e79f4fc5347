package resilient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
	"github.com/Veridex-Labs/veridex/kernel/pkg/ledger"
	"github.com/Veridex-Labs/veridex/kernel/pkg/retention"
)

// Outcome reports where a Persist call landed the payload.
type Outcome string

const (
	OutcomeRemoteOK Outcome = "REMOTE_OK"
	OutcomeCached   Outcome = "CACHED"
)

// Stats summarizes one Reconcile pass.
type Stats struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Recorder receives audit events for sync outcomes and integrity alerts.
// *ledger.Ledger satisfies it.
type Recorder interface {
	Append(ctx context.Context, ev ledger.Event) (*ledger.AuditEntry, error)
}

// Store is the offline-first write path: Persist always succeeds locally even
// when the durable backend is down, and Reconcile drains the backlog later.
type Store struct {
	cache     CacheStore
	durable   DurableStore
	probe     Prober
	recorder  Recorder
	limiter   *rate.Limiter
	retention retention.Policy
	log       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithProbe replaces the reachability check. Default is AlwaysReachable.
func WithProbe(p Prober) Option {
	return func(s *Store) { s.probe = p }
}

// WithRecorder wires the audit ledger. Without one, sync outcomes are only
// logged.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithReconcileRate paces durable writes during Reconcile, protecting a
// recovering backend from a thundering backlog.
func WithReconcileRate(perSecond float64, burst int) Option {
	return func(s *Store) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetention replaces the sweep retention policy.
func WithRetention(p retention.Policy) Option {
	return func(s *Store) { s.retention = p }
}

// WithLogger replaces the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a resilient store over a local cache and a durable backend.
func New(cache CacheStore, durable DurableStore, opts ...Option) *Store {
	s := &Store{
		cache:     cache,
		durable:   durable,
		probe:     AlwaysReachable{},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		retention: retention.DefaultPolicy(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persist writes the payload durably if the backend is reachable, otherwise
// buffers it locally. The payload is never lost: every fallback lands in the
// cache with a content hash for later verification. Every call appends one
// DATA_ACCESS entry to the ledger with the outcome.
func (s *Store) Persist(ctx context.Context, location string, payload []byte) (Outcome, error) {
	key := location + "/" + uuid.New().String()

	// JSON payloads are canonicalized so byte-level variants of the same
	// document share one content hash. Anything else is stored verbatim.
	if canonical, err := canonicalize.Transform(payload); err == nil {
		payload = canonical
	}
	contentHash := "sha256:" + canonicalize.HashBytes(payload)

	if s.probe.Reachable(ctx) {
		// The probe is advisory; the write itself is the source of truth.
		err := s.durable.Write(ctx, key, payload)
		if err == nil {
			s.recordPersist(ctx, location, key, contentHash, OutcomeRemoteOK)
			return OutcomeRemoteOK, nil
		}
		s.log.Warn("durable write failed, falling back to cache",
			"backend", s.durable.Name(), "location", location, "error", err)
	}

	entry := &CacheEntry{
		Key:         key,
		Location:    location,
		CreatedAt:   time.Now().UTC(),
		ContentHash: contentHash,
		Payload:     payload,
		State:       StateCached,
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to cache payload: %w", err)
	}
	s.recordPersist(ctx, location, key, contentHash, OutcomeCached)
	s.log.Info("payload cached for later sync", "location", location, "key", key)
	return OutcomeCached, nil
}

func (s *Store) recordPersist(ctx context.Context, location, key, contentHash string, outcome Outcome) {
	s.record(ctx, ledger.Event{
		Type:     ledger.EventDataAccess,
		Actor:    "resilient-store",
		Resource: location,
		Outcome:  string(outcome),
		Payload: map[string]any{
			"key":          key,
			"content_hash": contentHash,
			"backend":      s.durable.Name(),
		},
	})
}

// Reconcile drains cached entries into the durable backend, oldest first.
// Each entry's outcome is recorded in the audit ledger. Safe to call
// repeatedly; already-synced entries are skipped. Cancellation between
// entries returns the partial stats with ctx.Err().
func (s *Store) Reconcile(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := s.cache.Pending(ctx, 0)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending entries: %w", err)
	}
	stats.Remaining = len(pending)

	for _, entry := range pending {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		if err := s.syncEntry(ctx, entry); err != nil {
			stats.Failed++
		} else {
			stats.Synced++
		}
		stats.Remaining--
	}

	stats.Remaining += stats.Failed
	return stats, nil
}

func (s *Store) syncEntry(ctx context.Context, entry *CacheEntry) error {
	// Mark in-flight first so a crash mid-write is visible on restart.
	entry.State = StateSyncPending
	if err := s.cache.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to update cache entry %s: %w", entry.Key, err)
	}

	writeErr := s.durable.Write(ctx, entry.Key, entry.Payload)

	entry.Attempts++
	if writeErr != nil {
		entry.State = StateSyncFailed
		entry.LastError = writeErr.Error()
	} else {
		entry.State = StateSynced
		entry.LastError = ""
	}
	if err := s.cache.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to update cache entry %s: %w", entry.Key, err)
	}

	outcome := "SYNCED"
	if writeErr != nil {
		outcome = "FAILED"
		s.log.Warn("sync failed", "key", entry.Key, "attempts", entry.Attempts, "error", writeErr)
	}
	s.record(ctx, ledger.Event{
		Type:     ledger.EventSyncOutcome,
		Actor:    "resilient-store",
		Resource: entry.Location,
		Outcome:  outcome,
		Payload: map[string]any{
			"key":          entry.Key,
			"content_hash": entry.ContentHash,
			"attempts":     entry.Attempts,
			"backend":      s.durable.Name(),
		},
	})
	return writeErr
}

// IntegrityReport enumerates the cache by verification result. Corrupted
// lists every quarantined key, including ones quarantined on earlier passes;
// Quarantined counts only the mismatches found by this pass.
type IntegrityReport struct {
	Valid       []string `json:"valid"`
	Corrupted   []string `json:"corrupted"`
	Quarantined int      `json:"quarantined"`
}

// VerifyIntegrity recomputes every cached payload's content hash. Mismatched
// entries are quarantined, excluded from reconcile, and reported to the
// ledger. Nothing is deleted or repaired. New mismatches are also surfaced
// as an ErrContentMismatch error.
func (s *Store) VerifyIntegrity(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport

	entries, err := s.cache.All(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list cache entries: %w", err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		if entry.Quarantined {
			report.Corrupted = append(report.Corrupted, entry.Key)
			continue
		}
		if "sha256:"+canonicalize.HashBytes(entry.Payload) == entry.ContentHash {
			report.Valid = append(report.Valid, entry.Key)
			continue
		}

		entry.Quarantined = true
		if err := s.cache.Update(ctx, entry); err != nil {
			return report, fmt.Errorf("failed to quarantine %s: %w", entry.Key, err)
		}
		report.Corrupted = append(report.Corrupted, entry.Key)
		report.Quarantined++
		s.log.Error("cached payload failed integrity check", "key", entry.Key)
		s.record(ctx, ledger.Event{
			Type:     ledger.EventIntegrityAlert,
			Actor:    "resilient-store",
			Resource: entry.Location,
			Outcome:  "QUARANTINED",
			Payload: map[string]any{
				"key":           entry.Key,
				"expected_hash": entry.ContentHash,
			},
		})
	}

	if report.Quarantined > 0 {
		return report, fmt.Errorf("%w: %d entries quarantined", ErrContentMismatch, report.Quarantined)
	}
	return report, nil
}

// Sweep deletes synced cache entries that have aged out of the hot retention
// window. Unsynced and quarantined entries are never swept.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	entries, err := s.cache.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	now := time.Now().UTC()
	deleted := 0
	for _, entry := range entries {
		if entry.State != StateSynced || entry.Quarantined {
			continue
		}
		if s.retention.WritesAllowed(s.retention.ClassifyAt(entry.CreatedAt, now)) {
			continue // still hot
		}
		if err := s.cache.Delete(ctx, entry.Key); err != nil {
			return deleted, fmt.Errorf("failed to sweep %s: %w", entry.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) record(ctx context.Context, ev ledger.Event) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Append(ctx, ev); err != nil {
		s.log.Error("failed to record audit event", "event_type", ev.Type, "error", err)
	}
}
