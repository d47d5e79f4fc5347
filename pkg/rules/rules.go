// Package rules implements the jurisdiction rule catalog: loading, validation,
// predicate compilation, and atomic snapshot swapping.
//
// A catalog load is all-or-nothing. One malformed rule fails the entire load,
// so evaluators never observe a partial policy state.
package rules

import (
	"errors"

	"github.com/google/cel-go/cel"
)

// JurisdictionGlobal marks a rule that applies in every jurisdiction.
const JurisdictionGlobal = "global"

// Effect is the outcome a matched rule imposes.
type Effect string

const (
	EffectAllow         Effect = "ALLOW"
	EffectBlock         Effect = "BLOCK"
	EffectRequireFields Effect = "REQUIRE_FIELDS"
)

// ErrCatalogInvalid wraps every load-time validation failure.
var ErrCatalogInvalid = errors.New("rule catalog invalid")

// Rule is one entry in the catalog. Read-only at evaluation time.
type Rule struct {
	ID             string   `json:"id" yaml:"id"`
	Jurisdiction   string   `json:"jurisdiction" yaml:"jurisdiction"`
	Predicate      string   `json:"predicate" yaml:"predicate"`
	Effect         Effect   `json:"effect" yaml:"effect"`
	RequiredFields []string `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
	Citation       string   `json:"citation" yaml:"citation"`
}

// CompiledRule pairs a rule with its compiled predicate program.
type CompiledRule struct {
	Rule
	order int
	prg   cel.Program
}

// Order returns the rule's insertion position in the catalog, the tie-breaker
// for evaluation ordering.
func (c *CompiledRule) Order() int {
	return c.order
}

// Matches evaluates the trigger predicate against an evaluation input.
// The input map carries "action", "jurisdiction", and "payload".
func (c *CompiledRule) Matches(input map[string]any) (bool, error) {
	out, _, err := c.prg.Eval(input)
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("predicate result is not a bool")
	}
	return matched, nil
}
