package policy

import (
	"github.com/Veridex-Labs/veridex/kernel/pkg/rules"
)

// Engine evaluates requests against catalog snapshots. It holds no mutable
// state, so a single Engine serves arbitrarily many concurrent evaluations.
type Engine struct {
	requireFieldsReject bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictRequiredFields makes unmet REQUIRE_FIELDS rules reject the request
// outright instead of returning CONDITIONAL.
func WithStrictRequiredFields() Option {
	return func(e *Engine) { e.requireFieldsReject = true }
}

// NewEngine creates an evaluator. By default unmet REQUIRE_FIELDS rules yield
// CONDITIONAL.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate walks the rules applicable to the request's jurisdiction (specific
// first, then global, insertion order within each group) and folds their
// effects into a Decision:
//
//   - ALLOW records the match and continues; a later BLOCK still overrides.
//   - The first matching BLOCK rejects immediately and stops evaluation.
//     First-BLOCK-wins trades exhaustive citation gathering for a shorter
//     path to the safe outcome.
//   - REQUIRE_FIELDS accumulates the union of missing payload fields across
//     every such rule rather than stopping at the first.
//
// A predicate evaluation error (e.g. a key access on an absent payload field)
// marks that rule as unmatched. Malformed predicates cannot reach this point;
// they are rejected at catalog load.
func (e *Engine) Evaluate(req ActionRequest, snap *rules.Snapshot) Decision {
	decision := Decision{
		RequestID: req.RequestID,
		Status:    StatusApproved,
	}

	input := map[string]any{
		"action":       req.ActionType,
		"jurisdiction": req.Jurisdiction,
		"payload":      req.Payload,
	}

	citationSeen := make(map[string]struct{})
	missingSeen := make(map[string]struct{})
	conditional := false

	for _, rule := range snap.RulesFor(req.Jurisdiction) {
		matched, err := rule.Matches(input)
		if err != nil || !matched {
			continue
		}

		decision.MatchedRules = append(decision.MatchedRules, rule.ID)
		if _, dup := citationSeen[rule.Citation]; !dup {
			citationSeen[rule.Citation] = struct{}{}
			decision.Citations = append(decision.Citations, rule.Citation)
		}

		switch rule.Effect {
		case rules.EffectBlock:
			decision.Status = StatusRejected
			return decision

		case rules.EffectRequireFields:
			for _, field := range rule.RequiredFields {
				if _, present := req.Payload[field]; present {
					continue
				}
				if _, dup := missingSeen[field]; dup {
					continue
				}
				missingSeen[field] = struct{}{}
				decision.MissingFields = append(decision.MissingFields, field)
				conditional = true
			}

		case rules.EffectAllow:
			// Recorded above; evaluation continues.
		}
	}

	if conditional {
		if e.requireFieldsReject {
			decision.Status = StatusRejected
		} else {
			decision.Status = StatusConditional
		}
	}
	return decision
}
