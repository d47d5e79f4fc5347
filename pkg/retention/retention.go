// Package retention classifies record age into retention classes.
// Classification is a pure function of age and the configured thresholds;
// it is recomputed on every read and never stored.
package retention

import (
	"fmt"
	"time"
)

// Class represents the retention state of a record.
type Class string

const (
	// ClassHot records are eligible for active queries and writes.
	ClassHot Class = "HOT"
	// ClassCold records are archival only; writes are forbidden.
	ClassCold Class = "COLD"
	// ClassPurgeEligible records may be deleted under applicable law.
	ClassPurgeEligible Class = "PURGE_ELIGIBLE"
)

const (
	// DefaultHotDays is the inclusive upper bound of the HOT window.
	DefaultHotDays = 180
	// DefaultPurgeDays is the long-term ceiling (7 years).
	DefaultPurgeDays = 2555
)

const day = 24 * time.Hour

// Policy holds the retention thresholds in days.
type Policy struct {
	HotDays   int
	PurgeDays int
}

// DefaultPolicy returns the 180/2555 day defaults.
func DefaultPolicy() Policy {
	return Policy{HotDays: DefaultHotDays, PurgeDays: DefaultPurgeDays}
}

// Validate checks threshold sanity. Called eagerly at startup.
func (p Policy) Validate() error {
	if p.HotDays <= 0 {
		return fmt.Errorf("hot window must be positive, got %d days", p.HotDays)
	}
	if p.PurgeDays <= p.HotDays {
		return fmt.Errorf("purge ceiling (%d days) must exceed hot window (%d days)", p.PurgeDays, p.HotDays)
	}
	return nil
}

// Classify maps an age to a retention class. The HOT boundary is inclusive:
// a record aged exactly HotDays is still HOT.
func (p Policy) Classify(age time.Duration) Class {
	switch {
	case age > time.Duration(p.PurgeDays)*day:
		return ClassPurgeEligible
	case age > time.Duration(p.HotDays)*day:
		return ClassCold
	default:
		return ClassHot
	}
}

// ClassifyAt classifies a record created at the given time as of now.
func (p Policy) ClassifyAt(created, now time.Time) Class {
	return p.Classify(now.Sub(created))
}

// WritesAllowed reports whether a record in the given class may be modified.
// Only HOT records accept writes.
func (p Policy) WritesAllowed(c Class) bool {
	return c == ClassHot
}
