package model

// ConstraintKind tags the variant of a ConstraintRule.
type ConstraintKind string

const (
	ConstraintKindRequires  ConstraintKind = "Requires"
	ConstraintKindExcludes  ConstraintKind = "Excludes"
	ConstraintKindAttribute ConstraintKind = "Attribute"
	ConstraintKindQuantity  ConstraintKind = "Quantity"
)

// AttributeConditionOp is the comparison operator used by an Attribute
// constraint against a line's attribute map.
type AttributeConditionOp string

const (
	AttributeOpEquals      AttributeConditionOp = "equals"
	AttributeOpNotEquals   AttributeConditionOp = "not_equals"
	AttributeOpIn          AttributeConditionOp = "in"
	AttributeOpExists      AttributeConditionOp = "exists"
	AttributeOpNotExists   AttributeConditionOp = "not_exists"
)

// AttributeCondition describes what an Attribute constraint checks.
type AttributeCondition struct {
	Key    string               `json:"key" bson:"key"`
	Op     AttributeConditionOp `json:"op" bson:"op"`
	Values []string             `json:"values,omitempty" bson:"values,omitempty"`
}

// ConstraintRule is a single tagged-variant rule in a versioned rule set.
// Exactly one of the variant-specific fields is populated, selected by Kind.
type ConstraintRule struct {
	ID     string         `json:"id" bson:"id"`
	Kind   ConstraintKind `json:"kind" bson:"kind"`

	// Requires / Excludes
	Source ProductId `json:"source,omitempty" bson:"source,omitempty"`
	Target ProductId `json:"target,omitempty" bson:"target,omitempty"`

	// Attribute
	AttributeProductId ProductId           `json:"attributeProductId,omitempty" bson:"attribute_product_id,omitempty"`
	Condition          *AttributeCondition `json:"condition,omitempty" bson:"condition,omitempty"`

	// Quantity
	QuantityProductId ProductId `json:"quantityProductId,omitempty" bson:"quantity_product_id,omitempty"`
	Min               *int      `json:"min,omitempty" bson:"min,omitempty"`
	Max               *int      `json:"max,omitempty" bson:"max,omitempty"`
}

// RuleSet is a versioned, ordered collection of ConstraintRules.
type RuleSet struct {
	RuleSetVersion string           `json:"ruleSetVersion" bson:"rule_set_version"`
	Rules          []ConstraintRule `json:"rules" bson:"rules"`
}

// ConstraintViolationKind mirrors ConstraintKind for reporting purposes.
type ConstraintViolationKind = ConstraintKind

// ConstraintViolation describes one failed rule evaluation.
type ConstraintViolation struct {
	ConstraintId string                    `json:"constraintId"`
	Kind         ConstraintViolationKind    `json:"kind"`
	Message      string                    `json:"message"`
	Suggestion   string                    `json:"suggestion,omitempty"`
	SourceProductId ProductId              `json:"sourceProductId,omitempty"`
	TargetProductId ProductId              `json:"targetProductId,omitempty"`
}

// ConstraintResult is the output of the constraint engine's validate
// operation.
type ConstraintResult struct {
	Valid      bool                  `json:"valid"`
	Violations []ConstraintViolation `json:"violations"`
}
