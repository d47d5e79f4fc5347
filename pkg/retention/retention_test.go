package retention

import (
	"testing"
	"time"
)

func TestClassify_Boundaries(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		name string
		days int
		want Class
	}{
		{"fresh", 0, ClassHot},
		{"mid hot window", 90, ClassHot},
		{"exactly 180 days is hot (inclusive)", 180, ClassHot},
		{"181 days is cold", 181, ClassCold},
		{"deep archive", 2555, ClassCold},
		{"past purge ceiling", 2556, ClassPurgeEligible},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Classify(time.Duration(tc.days) * 24 * time.Hour)
			if got != tc.want {
				t.Errorf("Classify(%d days) = %s, want %s", tc.days, got, tc.want)
			}
		})
	}
}

func TestClassifyAt(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	created := now.AddDate(0, 0, -181)
	if got := p.ClassifyAt(created, now); got != ClassCold {
		t.Errorf("expected COLD for 181-day-old record, got %s", got)
	}
}

func TestWritesAllowed(t *testing.T) {
	p := DefaultPolicy()

	if !p.WritesAllowed(ClassHot) {
		t.Error("writes to HOT records must be allowed")
	}
	if p.WritesAllowed(ClassCold) {
		t.Error("writes to COLD records must be refused")
	}
	if p.WritesAllowed(ClassPurgeEligible) {
		t.Error("writes to PURGE_ELIGIBLE records must be refused")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}

	bad := []Policy{
		{HotDays: 0, PurgeDays: 100},
		{HotDays: -5, PurgeDays: 100},
		{HotDays: 180, PurgeDays: 180},
		{HotDays: 180, PurgeDays: 90},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("policy %+v should fail validation", p)
		}
	}
}
