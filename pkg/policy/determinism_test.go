// Property-based tests pinning the purity of Evaluate: repeated evaluation of
// the same (snapshot, request) pair always yields the identical Decision.
package policy

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Veridex-Labs/veridex/kernel/pkg/rules"
)

const determinismCatalog = `
version: "1.0.0"
rules:
  - id: phi-offshore-block
    jurisdiction: GDPR_EU
    predicate: 'payload.data_type == "PHI" && !(payload.destination in ["local"])'
    effect: BLOCK
    citation: "GDPR Art. 44"
  - id: need-explanation
    jurisdiction: global
    predicate: 'action == "Automated_Decision"'
    effect: REQUIRE_FIELDS
    required_fields: [explanation, confidence_score]
    citation: "EU AI Act Art. 13"
  - id: allow-internal
    jurisdiction: global
    predicate: 'payload.destination == "local"'
    effect: ALLOW
    citation: "internal policy 7"
`

func TestEvaluate_Deterministic(t *testing.T) {
	l, err := rules.NewLoader()
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	snap, err := l.Load([]byte(determinismCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	engine := NewEngine()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated evaluation is identical", prop.ForAll(
		func(action, jurisdiction, dataType, destination string, extraKeys []string) bool {
			payload := map[string]any{
				"data_type":   dataType,
				"destination": destination,
			}
			for _, k := range extraKeys {
				if k != "" {
					payload[k] = len(k)
				}
			}
			req := ActionRequest{
				RequestID:    "fixed-id",
				ActionType:   action,
				Jurisdiction: jurisdiction,
				Payload:      payload,
			}

			first := engine.Evaluate(req, snap)
			for i := 0; i < 3; i++ {
				if !reflect.DeepEqual(first, engine.Evaluate(req, snap)) {
					return false
				}
			}
			return true
		},
		gen.OneConstOf("Data_Transfer", "Automated_Decision", "Audit_Read"),
		gen.OneConstOf("GDPR_EU", "US_CCPA", "SG_PDPA", "global"),
		gen.OneConstOf("PHI", "PII", "PUBLIC"),
		gen.OneConstOf("local", "Foreign_Cloud", "partner_dc"),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestEvaluate_DoesNotMutateRequest(t *testing.T) {
	l, err := rules.NewLoader()
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	snap, err := l.Load([]byte(determinismCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	payload := map[string]any{"data_type": "PHI", "destination": "Foreign_Cloud"}
	req := NewActionRequest("Data_Transfer", "GDPR_EU", payload)

	before := len(req.Payload)
	_ = NewEngine().Evaluate(req, snap)
	if len(req.Payload) != before {
		t.Error("evaluation mutated the request payload")
	}
}
