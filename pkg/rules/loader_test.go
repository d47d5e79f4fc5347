package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalog = `
version: "1.0.0"
rules:
  - id: gdpr-phi-export
    jurisdiction: GDPR_EU
    predicate: 'payload.data_type == "PHI" && !(payload.destination in ["local"])'
    effect: BLOCK
    citation: "GDPR Art. 44 (transfers to third countries)"
  - id: audit-read
    jurisdiction: GDPR_EU
    predicate: 'action == "Audit_Read"'
    effect: ALLOW
    citation: "GDPR Art. 30"
  - id: ai-explainability
    jurisdiction: global
    predicate: 'action == "Automated_Decision"'
    effect: REQUIRE_FIELDS
    required_fields: [explanation, confidence_score]
    citation: "EU AI Act Art. 13"
`

func TestLoader_ValidCatalog(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	snap, err := l.Load([]byte(validCatalog))
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, "1.0.0", snap.Version().String())
	assert.NotEmpty(t, snap.ContentHash())

	// Jurisdiction-specific first, then global, in insertion order.
	ordered := snap.RulesFor("GDPR_EU")
	require.Len(t, ordered, 3)
	assert.Equal(t, "gdpr-phi-export", ordered[0].ID)
	assert.Equal(t, "audit-read", ordered[1].ID)
	assert.Equal(t, "ai-explainability", ordered[2].ID)

	// Unknown jurisdiction still sees global rules.
	ordered = snap.RulesFor("US_CCPA")
	require.Len(t, ordered, 1)
	assert.Equal(t, "ai-explainability", ordered[0].ID)
}

func TestLoader_AllOrNothing(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	cases := []struct {
		name string
		doc  string
	}{
		{
			"missing citation",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: 'true'
    effect: ALLOW
    citation: ""
`,
		},
		{
			"malformed predicate",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: 'payload.x ==('
    effect: BLOCK
    citation: "ref"
`,
		},
		{
			"non-bool predicate",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: '"a string"'
    effect: BLOCK
    citation: "ref"
`,
		},
		{
			"require_fields without fields",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: 'true'
    effect: REQUIRE_FIELDS
    citation: "ref"
`,
		},
		{
			"duplicate rule id",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: 'true'
    effect: ALLOW
    citation: "a"
  - id: r1
    jurisdiction: global
    predicate: 'true'
    effect: ALLOW
    citation: "b"
`,
		},
		{
			"unknown effect",
			`
version: "1.0.0"
rules:
  - id: r1
    jurisdiction: global
    predicate: 'true'
    effect: MAYBE
    citation: "ref"
`,
		},
		{
			"bad version",
			`
version: "not-a-version"
rules: []
`,
		},
		{
			"unknown top-level key",
			`
version: "1.0.0"
extra: true
rules: []
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Load([]byte(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCatalogInvalid)
		})
	}
}

func TestLoader_EmptyRuleSetIsValid(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	snap, err := l.Load([]byte("version: \"0.1.0\"\nrules: []\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}
