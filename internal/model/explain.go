package model

import "time"

// NumberSelectorKind identifies which figure on a priced quote an
// explanation request is asking about.
type NumberSelectorKind string

const (
	NumberSelectorSubtotal      NumberSelectorKind = "subtotal"
	NumberSelectorDiscountTotal NumberSelectorKind = "discount_total"
	NumberSelectorTaxTotal      NumberSelectorKind = "tax_total"
	NumberSelectorTotal         NumberSelectorKind = "total"
	NumberSelectorLineUnitPrice NumberSelectorKind = "line_unit_price"
	NumberSelectorLineTotal     NumberSelectorKind = "line_total"
)

// NumberSelector names exactly one figure to explain; LineId is only
// meaningful for the two line-scoped kinds.
type NumberSelector struct {
	Kind   NumberSelectorKind `json:"kind"`
	LineId QuoteLineId        `json:"lineId,omitempty"`
}

// PolicyEvaluationRecord is the persisted record of a policy engine
// invocation for a quote version, kept alongside the pricing snapshot so
// the explanation assembler can cite the rules that were actually applied
// without re-running the policy engine.
type PolicyEvaluationRecord struct {
	QuoteId        QuoteId        `json:"quoteId" bson:"quote_id"`
	QuoteVersion   int            `json:"quoteVersion" bson:"quote_version"`
	Decision       PolicyDecision `json:"decision" bson:"decision"`
	AppliedRuleIds []string       `json:"appliedRuleIds" bson:"applied_rule_ids"`
	CreatedAt      time.Time      `json:"createdAt" bson:"created_at"`
}

// ExplanationEvidence is the bundle of facts an explanation cites, copied
// verbatim from the snapshot and policy evaluation record it views.
type ExplanationEvidence struct {
	PricingTraceSteps []PricingStep     `json:"pricingTraceSteps"`
	PolicyViolations  []PolicyViolation `json:"policyViolations"`
	AppliedRules      []string          `json:"appliedRules"`
}

// ExplanationResponse is the deterministic, re-formatted-never-recomputed
// answer to "why is this number what it is" for one quote version.
type ExplanationResponse struct {
	QuoteId       QuoteId              `json:"quoteId"`
	Version       int                  `json:"version"`
	Summary       string               `json:"summary"`
	Evidence      ExplanationEvidence  `json:"evidence"`
	PolicyVersion string               `json:"policyVersion"`
	SnapshotId    string               `json:"snapshotId"`
}

// ExplanationErrorCode enumerates the ways assembling an explanation can
// fail.
type ExplanationErrorCode string

const (
	ExplanationErrorMissingQuote            ExplanationErrorCode = "missing_quote"
	ExplanationErrorMissingPricingSnapshot  ExplanationErrorCode = "missing_pricing_snapshot"
	ExplanationErrorMissingPolicyEvaluation ExplanationErrorCode = "missing_policy_evaluation"
	ExplanationErrorVersionMismatch         ExplanationErrorCode = "version_mismatch"
	ExplanationErrorEvidenceGatheringFailed ExplanationErrorCode = "evidence_gathering_failed"
)

// ExplanationError wraps an ExplanationErrorCode with context for the
// caller.
type ExplanationError struct {
	Code    ExplanationErrorCode
	QuoteId QuoteId
	Message string
}

func (e *ExplanationError) Error() string {
	return string(e.Code) + ": " + e.Message
}
