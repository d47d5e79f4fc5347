// Package policy evaluates action requests against a rule catalog snapshot.
//
// Evaluation is a pure function of (snapshot, request): no clock, no
// randomness, no mutation. A rejection is a Decision value, never an error.
package policy

import (
	"github.com/google/uuid"
)

// Status is the outcome of evaluating an ActionRequest.
type Status string

const (
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusConditional Status = "CONDITIONAL"
)

// ActionRequest is the immutable value a policy consumer submits.
type ActionRequest struct {
	RequestID    string         `json:"request_id"`
	ActionType   string         `json:"action_type"`
	Jurisdiction string         `json:"jurisdiction"`
	Payload      map[string]any `json:"payload"`
}

// NewActionRequest builds a request with a synthetic ID. The payload map is
// copied so later caller mutations cannot leak into an evaluation.
func NewActionRequest(actionType, jurisdiction string, payload map[string]any) ActionRequest {
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return ActionRequest{
		RequestID:    uuid.New().String(),
		ActionType:   actionType,
		Jurisdiction: jurisdiction,
		Payload:      copied,
	}
}

// Decision is the evaluation result. MatchedRules preserves rule evaluation
// order; Citations are deduplicated in that same order; MissingFields is the
// union across all unmet REQUIRE_FIELDS rules.
type Decision struct {
	RequestID     string   `json:"request_id"`
	Status        Status   `json:"status"`
	MatchedRules  []string `json:"matched_rules,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Citations     []string `json:"citations,omitempty"`
}
