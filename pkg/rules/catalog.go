package rules

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Snapshot is an immutable view of a loaded catalog. Concurrent readers hold
// a snapshot pointer; reloads never mutate one in place.
type Snapshot struct {
	version        *semver.Version
	byJurisdiction map[string][]*CompiledRule
	ruleCount      int
	contentHash    string
	loadedAt       time.Time
}

// Version returns the catalog's semantic version.
func (s *Snapshot) Version() *semver.Version {
	return s.version
}

// ContentHash returns the canonical hash of the source document.
func (s *Snapshot) ContentHash() string {
	return s.contentHash
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	return s.ruleCount
}

// RulesFor returns the rules applicable to a jurisdiction in evaluation
// order: jurisdiction-specific rules first, then global rules, each group in
// catalog insertion order. This ordering is part of the evaluation contract.
func (s *Snapshot) RulesFor(jurisdiction string) []*CompiledRule {
	specific := s.byJurisdiction[jurisdiction]
	global := s.byJurisdiction[JurisdictionGlobal]
	if jurisdiction == JurisdictionGlobal {
		global = nil
	}

	out := make([]*CompiledRule, 0, len(specific)+len(global))
	out = append(out, specific...)
	out = append(out, global...)
	return out
}

// Catalog holds the active snapshot behind an atomic pointer. Reload is the
// single writer; evaluations are unlimited readers.
type Catalog struct {
	current atomic.Pointer[Snapshot]
}

// NewCatalog creates a catalog with an initial snapshot.
func NewCatalog(initial *Snapshot) (*Catalog, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial snapshot required")
	}
	c := &Catalog{}
	c.current.Store(initial)
	return c, nil
}

// Snapshot returns the current immutable view.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace atomically swaps in a new snapshot. Version downgrades are
// rejected so a stale document cannot silently roll policy back.
func (c *Catalog) Replace(next *Snapshot) error {
	if next == nil {
		return fmt.Errorf("nil snapshot")
	}
	cur := c.current.Load()
	if next.version.LessThan(cur.version) {
		return fmt.Errorf("%w: version %s is older than active %s",
			ErrCatalogInvalid, next.version, cur.version)
	}
	c.current.Store(next)
	return nil
}
