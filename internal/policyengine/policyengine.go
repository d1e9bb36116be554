// Package policyengine evaluates a priced quote's deal terms against a
// versioned policy set and decides whether approval is required, and at
// what tier. It is a pure function: identical inputs produce identical
// output for a pinned policy version.
package policyengine

import (
	"sort"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

// Engine is the capability this package implements.
type Engine interface {
	Evaluate(input model.PolicyInput, policySet model.PolicySet) (model.PolicyDecision, error)
}

// DefaultEngine is the production policy engine.
type DefaultEngine struct{}

// NewDefaultEngine constructs the production policy engine.
func NewDefaultEngine() *DefaultEngine { return &DefaultEngine{} }

// Evaluate checks input against every rule in policySet. approval_required
// is true iff at least one violation carries a non-None RequiredTier.
// Violations are ordered by policy id lexicographically.
func (e *DefaultEngine) Evaluate(input model.PolicyInput, policySet model.PolicySet) (model.PolicyDecision, error) {
	var violations []model.PolicyViolation

	for _, rule := range policySet.Rules {
		v, err := evaluateRule(rule, input)
		if err != nil {
			return model.PolicyDecision{}, err
		}
		if v != nil {
			violations = append(violations, *v)
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].PolicyId < violations[j].PolicyId
	})

	tiers := make([]model.ApprovalTier, 0, len(violations))
	for _, v := range violations {
		tiers = append(tiers, v.RequiredTier)
	}
	requiredTier := model.HighestApprovalTier(tiers)

	return model.PolicyDecision{
		Approved:      requiredTier == model.ApprovalTierNone,
		Violations:    violations,
		RequiredTier:  requiredTier,
		PolicyVersion: policySet.PolicyVersion,
	}, nil
}

func evaluateRule(rule model.PolicyRule, input model.PolicyInput) (*model.PolicyViolation, error) {
	switch rule.Kind {
	case model.PolicyKindDiscountCap:
		if input.DiscountBps > rule.MaxDiscountBps {
			return &model.PolicyViolation{
				PolicyId:     rule.ID,
				Kind:         model.PolicyKindDiscountCap,
				Message:      "requested discount exceeds policy cap",
				RequiredTier: rule.RequiredTier,
			}, nil
		}
		return nil, nil
	case model.PolicyKindMarginFloor:
		if input.MarginBps < rule.MinMarginBps {
			return &model.PolicyViolation{
				PolicyId:     rule.ID,
				Kind:         model.PolicyKindMarginFloor,
				Message:      "resulting margin falls below policy floor",
				RequiredTier: rule.RequiredTier,
			}, nil
		}
		return nil, nil
	case model.PolicyKindDealSizeThreshold:
		if rule.ThresholdAmount != nil && input.DealSize.Cmp(*rule.ThresholdAmount) >= 0 {
			return &model.PolicyViolation{
				PolicyId:     rule.ID,
				Kind:         model.PolicyKindDealSizeThreshold,
				Message:      "deal size meets or exceeds policy threshold",
				RequiredTier: rule.RequiredTier,
			}, nil
		}
		return nil, nil
	default:
		return nil, apperr.NewDomainError(apperr.CodeInvariantViolation,
			"policy rule has unrecognized kind",
			map[string]interface{}{"ruleId": rule.ID, "kind": string(rule.Kind)})
	}
}
