package model

// PolicyKind tags the variant of a PolicyRule.
type PolicyKind string

const (
	PolicyKindDiscountCap      PolicyKind = "DiscountCap"
	PolicyKindMarginFloor      PolicyKind = "MarginFloor"
	PolicyKindDealSizeThreshold PolicyKind = "DealSizeThreshold"
)

// ApprovalTier names the escalation level a policy violation routes to.
type ApprovalTier string

const (
	ApprovalTierNone    ApprovalTier = "None"
	ApprovalTierManager ApprovalTier = "Manager"
	ApprovalTierDesk    ApprovalTier = "Desk"
	ApprovalTierVP      ApprovalTier = "VP"
)

// PolicyRule is a single tagged-variant rule in a versioned policy set.
// Exactly one of the variant-specific fields is populated, selected by Kind.
type PolicyRule struct {
	ID   string     `json:"id" bson:"id"`
	Kind PolicyKind `json:"kind" bson:"kind"`

	// DiscountCap
	MaxDiscountBps Bps `json:"maxDiscountBps,omitempty" bson:"max_discount_bps,omitempty"`

	// MarginFloor
	MinMarginBps Bps `json:"minMarginBps,omitempty" bson:"min_margin_bps,omitempty"`

	// DealSizeThreshold
	ThresholdAmount *Money `json:"thresholdAmount,omitempty" bson:"threshold_amount,omitempty"`

	RequiredTier ApprovalTier `json:"requiredTier" bson:"required_tier"`
}

// PolicySet is a versioned, ordered collection of PolicyRules.
type PolicySet struct {
	PolicyVersion string       `json:"policyVersion" bson:"policy_version"`
	Rules         []PolicyRule `json:"rules" bson:"rules"`
}

// PolicyInput is the evaluation input derived from a priced quote snapshot.
type PolicyInput struct {
	QuoteId        QuoteId `json:"quoteId"`
	DiscountBps    Bps     `json:"discountBps"`
	MarginBps      Bps     `json:"marginBps"`
	DealSize       Money   `json:"dealSize"`
	PolicyVersion  string  `json:"policyVersion"`
}

// PolicyViolation describes one policy rule breached by a PolicyInput.
type PolicyViolation struct {
	PolicyId     string       `json:"policyId"`
	Kind         PolicyKind   `json:"kind"`
	Message      string       `json:"message"`
	RequiredTier ApprovalTier `json:"requiredTier"`
}

// PolicyDecision is the output of the policy engine's evaluate operation. The
// quote requires approval iff some violation carries a RequiredTier other
// than None; RequiredTier is the highest RequiredTier among the violations.
type PolicyDecision struct {
	Approved      bool              `json:"approved"`
	Violations    []PolicyViolation `json:"violations"`
	RequiredTier  ApprovalTier      `json:"requiredTier"`
	PolicyVersion string            `json:"policyVersion"`
}

var approvalTierRank = map[ApprovalTier]int{
	ApprovalTierNone:    0,
	ApprovalTierManager: 1,
	ApprovalTierDesk:    2,
	ApprovalTierVP:      3,
}

// HighestApprovalTier returns the most senior tier among the given tiers.
func HighestApprovalTier(tiers []ApprovalTier) ApprovalTier {
	highest := ApprovalTierNone
	for _, t := range tiers {
		if approvalTierRank[t] > approvalTierRank[highest] {
			highest = t
		}
	}
	return highest
}
