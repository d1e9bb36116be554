// Package cpqruntime composes the constraint, pricing, and policy engines
// into a single evaluate operation: validate first, short-circuiting on
// failure before any pricing is attempted; then price; then evaluate
// policy against the resulting totals.
package cpqruntime

import (
	"cpq-engine-api/internal/constraintengine"
	"cpq-engine-api/internal/model"
	"cpq-engine-api/internal/policyengine"
	"cpq-engine-api/internal/pricingengine"
)

// CpqEvaluation is the combined result of running all three engines in
// sequence. PricingResult and PolicyDecision are nil when the constraint
// result is invalid, since pricing is never attempted against a
// structurally invalid configuration.
type CpqEvaluation struct {
	ConstraintResult model.ConstraintResult
	PricingResult    *model.PricingResult
	PolicyDecision   *model.PolicyDecision
}

// Runtime composes the three engines.
type Runtime struct {
	Constraint constraintengine.Engine
	Pricing    pricingengine.Engine
	Policy     policyengine.Engine
}

// NewRuntime wires the production engines together.
func NewRuntime() *Runtime {
	return &Runtime{
		Constraint: constraintengine.NewDefaultEngine(),
		Pricing:    pricingengine.NewDefaultEngine(),
		Policy:     policyengine.NewDefaultEngine(),
	}
}

// EvaluateInput bundles the evaluate operation's dependencies.
type EvaluateInput struct {
	Snapshot      model.CanonicalSnapshot
	RuleSet       model.RuleSet
	PolicySet     model.PolicySet
	PricingInput  pricingengine.PriceInput
}

// Evaluate runs validate → price → policy in order, short-circuiting as
// soon as a prior stage fails to produce a usable result.
func (r *Runtime) Evaluate(input EvaluateInput) (CpqEvaluation, error) {
	constraintResult, err := r.Constraint.Validate(input.Snapshot, input.RuleSet)
	if err != nil {
		return CpqEvaluation{}, err
	}
	if !constraintResult.Valid {
		return CpqEvaluation{ConstraintResult: constraintResult}, nil
	}

	pricingResult, err := r.Pricing.Price(input.PricingInput)
	if err != nil {
		return CpqEvaluation{}, err
	}

	policyInput := model.PolicyInput{
		QuoteId:       input.Snapshot.QuoteId,
		DiscountBps:   pricingResult.DiscountBps,
		MarginBps:     pricingResult.MarginBps,
		DealSize:      pricingResult.Total,
		PolicyVersion: input.PolicySet.PolicyVersion,
	}
	policyDecision, err := r.Policy.Evaluate(policyInput, input.PolicySet)
	if err != nil {
		return CpqEvaluation{}, err
	}

	return CpqEvaluation{
		ConstraintResult: constraintResult,
		PricingResult:    &pricingResult,
		PolicyDecision:   &policyDecision,
	}, nil
}
