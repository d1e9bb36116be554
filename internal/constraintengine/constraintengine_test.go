package constraintengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

func lineOf(productId model.ProductId, qty int, attrs map[string]string) model.QuoteLine {
	return model.QuoteLine{
		ProductId:        productId,
		ConfigurationKey: "default",
		Quantity:         qty,
		Attributes:       attrs,
	}
}

func snapshotOf(lines ...model.QuoteLine) model.CanonicalSnapshot {
	return model.CanonicalSnapshot{QuoteId: "Q-2026-0001", Lines: lines, Version: 1}
}

func TestValidate_RequiresViolation_WhenTargetMissing(t *testing.T) {
	snap := snapshotOf(lineOf("P2", 1, nil))
	ruleSet := model.RuleSet{
		RuleSetVersion: "v1",
		Rules: []model.ConstraintRule{
			{ID: "R1", Kind: model.ConstraintKindRequires, Source: "P2", Target: "P3"},
		},
	}

	engine := NewDefaultEngine()
	result, err := engine.Validate(snap, ruleSet)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "R1", result.Violations[0].ConstraintId)
	assert.Equal(t, model.ConstraintKindRequires, result.Violations[0].Kind)
	assert.Equal(t, model.ProductId("P2"), result.Violations[0].SourceProductId)
	assert.Equal(t, model.ProductId("P3"), result.Violations[0].TargetProductId)
}

func TestValidate_RequiresSatisfied_WhenTargetPresent(t *testing.T) {
	snap := snapshotOf(lineOf("P2", 1, nil), lineOf("P3", 1, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "R1", Kind: model.ConstraintKindRequires, Source: "P2", Target: "P3"},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestValidate_ExcludesViolation_WhenBothPresent(t *testing.T) {
	snap := snapshotOf(lineOf("P1", 1, nil), lineOf("P4", 1, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "R2", Kind: model.ConstraintKindExcludes, Source: "P1", Target: "P4"},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, model.ConstraintKindExcludes, result.Violations[0].Kind)
}

func TestValidate_AttributeCondition_EqualsFailsWhenMismatched(t *testing.T) {
	snap := snapshotOf(lineOf("P5", 1, map[string]string{"color": "red"}))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{
			ID:                  "R3",
			Kind:                model.ConstraintKindAttribute,
			AttributeProductId:  "P5",
			Condition:           &model.AttributeCondition{Key: "color", Op: model.AttributeOpEquals, Values: []string{"blue"}},
		},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidate_QuantityBounds_Inclusive(t *testing.T) {
	min, max := 2, 5
	snap := snapshotOf(lineOf("P6", 5, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "R4", Kind: model.ConstraintKindQuantity, QuantityProductId: "P6", Min: &min, Max: &max},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	assert.True(t, result.Valid, "quantity equal to max is within inclusive bounds")
}

func TestValidate_QuantityBounds_ExceedsMax(t *testing.T) {
	min, max := 2, 5
	snap := snapshotOf(lineOf("P6", 6, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "R4", Kind: model.ConstraintKindQuantity, QuantityProductId: "P6", Min: &min, Max: &max},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidate_ViolationsFollowRuleIterationOrder(t *testing.T) {
	snap := snapshotOf(lineOf("P9", 1, nil), lineOf("P2", 1, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "R-late", Kind: model.ConstraintKindRequires, Source: "P9", Target: "PZ"},
		{ID: "R-early", Kind: model.ConstraintKindRequires, Source: "P2", Target: "PA"},
	}}

	result, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.NoError(t, err)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, model.ProductId("P9"), result.Violations[0].SourceProductId)
	assert.Equal(t, model.ProductId("P2"), result.Violations[1].SourceProductId)
}

func TestValidate_MalformedRuleKind_IsFatalInvariantViolation(t *testing.T) {
	snap := snapshotOf(lineOf("P1", 1, nil))
	ruleSet := model.RuleSet{Rules: []model.ConstraintRule{
		{ID: "Rbad", Kind: "NotAKind"},
	}}

	_, err := NewDefaultEngine().Validate(snap, ruleSet)
	require.Error(t, err)
	assert.True(t, apperr.IsDomainCode(err, apperr.CodeInvariantViolation))
}
