// Package constraintengine validates a quote's configuration against a
// versioned rule set and returns structured violations. The engine is a
// pure function: identical inputs produce identical output across runs and
// releases for a pinned rule set version, and it never performs I/O.
package constraintengine

import (
	"fmt"
	"sort"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

// Engine is the capability this package implements: evaluate against a
// canonical snapshot and a rule set, nothing more. Callers depend on this
// interface, not the concrete type, so tests can substitute a
// fixed-behavior variant.
type Engine interface {
	Validate(snapshot model.CanonicalSnapshot, ruleSet model.RuleSet) (model.ConstraintResult, error)
}

// DefaultEngine is the production constraint engine.
type DefaultEngine struct{}

// NewDefaultEngine constructs the production constraint engine.
func NewDefaultEngine() *DefaultEngine { return &DefaultEngine{} }

// Validate evaluates every rule in ruleSet against snapshot's canonical
// lines and returns the accumulated violations in deterministic order:
// rule iteration order, ties broken by (source_product_id,
// target_product_id) lexicographically.
//
// A malformed rule (an unrecognized Kind, or a variant missing its
// required fields) is not a validation failure; it is a programming bug
// and is surfaced as a fatal InvariantViolation domain error.
func (e *DefaultEngine) Validate(snapshot model.CanonicalSnapshot, ruleSet model.RuleSet) (model.ConstraintResult, error) {
	lineByProduct := indexLinesByProduct(snapshot.Lines)

	var violations []model.ConstraintViolation
	for _, rule := range ruleSet.Rules {
		v, err := evaluateRule(rule, snapshot, lineByProduct)
		if err != nil {
			return model.ConstraintResult{}, err
		}
		if v != nil {
			violations = append(violations, *v)
		}
	}

	ruleIndex := make(map[string]int, len(ruleSet.Rules))
	for i, rule := range ruleSet.Rules {
		if _, seen := ruleIndex[rule.ID]; !seen {
			ruleIndex[rule.ID] = i
		}
	}
	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := ruleIndex[violations[i].ConstraintId], ruleIndex[violations[j].ConstraintId]
		if ri != rj {
			return ri < rj
		}
		if violations[i].SourceProductId != violations[j].SourceProductId {
			return violations[i].SourceProductId < violations[j].SourceProductId
		}
		return violations[i].TargetProductId < violations[j].TargetProductId
	})

	return model.ConstraintResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}, nil
}

func indexLinesByProduct(lines []model.QuoteLine) map[model.ProductId][]model.QuoteLine {
	idx := make(map[model.ProductId][]model.QuoteLine, len(lines))
	for _, l := range lines {
		idx[l.ProductId] = append(idx[l.ProductId], l)
	}
	return idx
}

func evaluateRule(rule model.ConstraintRule, snapshot model.CanonicalSnapshot, lineByProduct map[model.ProductId][]model.QuoteLine) (*model.ConstraintViolation, error) {
	missingFields := false
	switch rule.Kind {
	case model.ConstraintKindRequires, model.ConstraintKindExcludes:
		missingFields = rule.Source == "" || rule.Target == ""
	case model.ConstraintKindQuantity:
		missingFields = rule.QuantityProductId == ""
	}
	if missingFields {
		return nil, apperr.NewDomainError(apperr.CodeInvariantViolation,
			fmt.Sprintf("constraint rule %q of kind %q is missing required fields", rule.ID, rule.Kind),
			map[string]interface{}{"ruleId": rule.ID, "kind": string(rule.Kind)})
	}
	switch rule.Kind {
	case model.ConstraintKindRequires:
		return evaluateRequires(rule, lineByProduct), nil
	case model.ConstraintKindExcludes:
		return evaluateExcludes(rule, lineByProduct), nil
	case model.ConstraintKindAttribute:
		return evaluateAttribute(rule, lineByProduct)
	case model.ConstraintKindQuantity:
		return evaluateQuantity(rule, lineByProduct), nil
	default:
		return nil, apperr.NewDomainError(apperr.CodeInvariantViolation,
			fmt.Sprintf("constraint rule %q has unrecognized kind %q", rule.ID, rule.Kind),
			map[string]interface{}{"ruleId": rule.ID, "kind": string(rule.Kind)})
	}
}

func evaluateRequires(rule model.ConstraintRule, lineByProduct map[model.ProductId][]model.QuoteLine) *model.ConstraintViolation {
	if _, sourcePresent := lineByProduct[rule.Source]; !sourcePresent {
		return nil
	}
	if _, targetPresent := lineByProduct[rule.Target]; targetPresent {
		return nil
	}
	return &model.ConstraintViolation{
		ConstraintId:    rule.ID,
		Kind:            model.ConstraintKindRequires,
		Message:         fmt.Sprintf("product %s requires product %s, which is not on the quote", rule.Source, rule.Target),
		Suggestion:      fmt.Sprintf("add product %s to the quote", rule.Target),
		SourceProductId: rule.Source,
		TargetProductId: rule.Target,
	}
}

func evaluateExcludes(rule model.ConstraintRule, lineByProduct map[model.ProductId][]model.QuoteLine) *model.ConstraintViolation {
	_, sourcePresent := lineByProduct[rule.Source]
	_, targetPresent := lineByProduct[rule.Target]
	if !sourcePresent || !targetPresent {
		return nil
	}
	return &model.ConstraintViolation{
		ConstraintId:    rule.ID,
		Kind:            model.ConstraintKindExcludes,
		Message:         fmt.Sprintf("product %s and product %s cannot both be on the quote", rule.Source, rule.Target),
		Suggestion:      fmt.Sprintf("remove one of %s or %s", rule.Source, rule.Target),
		SourceProductId: rule.Source,
		TargetProductId: rule.Target,
	}
}

func evaluateAttribute(rule model.ConstraintRule, lineByProduct map[model.ProductId][]model.QuoteLine) (*model.ConstraintViolation, error) {
	if rule.Condition == nil {
		return nil, apperr.NewDomainError(apperr.CodeInvariantViolation,
			fmt.Sprintf("attribute constraint %q has no condition", rule.ID),
			map[string]interface{}{"ruleId": rule.ID})
	}
	lines := lineByProduct[rule.AttributeProductId]
	for _, line := range lines {
		if !attributeConditionHolds(*rule.Condition, line.Attributes) {
			return &model.ConstraintViolation{
				ConstraintId:    rule.ID,
				Kind:            model.ConstraintKindAttribute,
				Message:         fmt.Sprintf("product %s line fails attribute condition on %q", rule.AttributeProductId, rule.Condition.Key),
				SourceProductId: rule.AttributeProductId,
			}, nil
		}
	}
	return nil, nil
}

func attributeConditionHolds(cond model.AttributeCondition, attrs map[string]string) bool {
	value, exists := attrs[cond.Key]
	switch cond.Op {
	case model.AttributeOpExists:
		return exists
	case model.AttributeOpNotExists:
		return !exists
	case model.AttributeOpEquals:
		return exists && len(cond.Values) == 1 && value == cond.Values[0]
	case model.AttributeOpNotEquals:
		return !exists || len(cond.Values) != 1 || value != cond.Values[0]
	case model.AttributeOpIn:
		if !exists {
			return false
		}
		for _, v := range cond.Values {
			if v == value {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateQuantity(rule model.ConstraintRule, lineByProduct map[model.ProductId][]model.QuoteLine) *model.ConstraintViolation {
	total := 0
	for _, line := range lineByProduct[rule.QuantityProductId] {
		total += line.Quantity
	}
	if rule.Min != nil && total < *rule.Min {
		return &model.ConstraintViolation{
			ConstraintId:    rule.ID,
			Kind:            model.ConstraintKindQuantity,
			Message:         fmt.Sprintf("product %s quantity %d is below the minimum of %d", rule.QuantityProductId, total, *rule.Min),
			SourceProductId: rule.QuantityProductId,
		}
	}
	if rule.Max != nil && total > *rule.Max {
		return &model.ConstraintViolation{
			ConstraintId:    rule.ID,
			Kind:            model.ConstraintKindQuantity,
			Message:         fmt.Sprintf("product %s quantity %d exceeds the maximum of %d", rule.QuantityProductId, total, *rule.Max),
			SourceProductId: rule.QuantityProductId,
		}
	}
	return nil
}
