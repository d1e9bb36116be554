// Package explain assembles deterministic, re-formatted-never-recomputed
// explanations of a single priced figure on a quote, drawing only on the
// pricing snapshot and policy evaluation already on file for that version.
package explain

import (
	"context"
	"fmt"

	"cpq-engine-api/internal/model"
)

// SnapshotReader is the subset of snapshotstore.SnapshotStore the assembler
// depends on.
type SnapshotReader interface {
	Get(ctx context.Context, quoteId model.QuoteId, version int) (model.PricingSnapshot, error)
}

// PolicyEvaluationReader reads the policy evaluation recorded alongside a
// pricing snapshot.
type PolicyEvaluationReader interface {
	Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PolicyEvaluationRecord, error)
}

// Assembler is the production explanation assembler.
type Assembler struct {
	snapshots         SnapshotReader
	policyEvaluations PolicyEvaluationReader
}

// NewAssembler constructs an Assembler.
func NewAssembler(snapshots SnapshotReader, policyEvaluations PolicyEvaluationReader) *Assembler {
	return &Assembler{snapshots: snapshots, policyEvaluations: policyEvaluations}
}

// Explain answers "why is this number what it is" for one quote version and
// selected figure. It never recomputes pricing or policy; it only reads and
// re-formats what was already recorded.
func (a *Assembler) Explain(ctx context.Context, quoteId model.QuoteId, version int, selector model.NumberSelector) (model.ExplanationResponse, error) {
	snapshot, err := a.snapshots.Get(ctx, quoteId, version)
	if err != nil {
		if serr, ok := err.(*model.SnapshotError); ok {
			return model.ExplanationResponse{}, translateSnapshotError(serr)
		}
		return model.ExplanationResponse{}, err
	}

	if len(snapshot.Result.Trace) == 0 {
		return model.ExplanationResponse{}, &model.ExplanationError{
			Code: model.ExplanationErrorMissingPricingSnapshot, QuoteId: quoteId,
			Message: fmt.Sprintf("no pricing trace recorded for version %d", version),
		}
	}

	policyRecord, err := a.policyEvaluations.Get(ctx, quoteId, version)
	if err != nil {
		return model.ExplanationResponse{}, err
	}
	if policyRecord == nil {
		return model.ExplanationResponse{}, &model.ExplanationError{
			Code: model.ExplanationErrorMissingPolicyEvaluation, QuoteId: quoteId,
			Message: fmt.Sprintf("no policy evaluation recorded for version %d", version),
		}
	}

	value, label, err := resolveNumber(snapshot.Result, selector)
	if err != nil {
		return model.ExplanationResponse{}, &model.ExplanationError{
			Code: model.ExplanationErrorMissingPricingSnapshot, QuoteId: quoteId,
			Message: err.Error(),
		}
	}

	summary := fmt.Sprintf("%s for %s v%d is %s", label, quoteId, version, value.String())

	return model.ExplanationResponse{
		QuoteId: quoteId,
		Version: version,
		Summary: summary,
		Evidence: model.ExplanationEvidence{
			PricingTraceSteps: snapshot.Result.Trace,
			PolicyViolations:  policyRecord.Decision.Violations,
			AppliedRules:      policyRecord.AppliedRuleIds,
		},
		PolicyVersion: snapshot.PolicyVersion,
		SnapshotId:    snapshot.ID,
	}, nil
}

func translateSnapshotError(serr *model.SnapshotError) error {
	switch serr.Code {
	case model.SnapshotErrorMissingQuote:
		return &model.ExplanationError{Code: model.ExplanationErrorMissingQuote, QuoteId: serr.QuoteId, Message: serr.Message}
	case model.SnapshotErrorVersionMismatch:
		return &model.ExplanationError{Code: model.ExplanationErrorVersionMismatch, QuoteId: serr.QuoteId, Message: serr.Message}
	default:
		// Ledger mismatch and evidence-gathering failures both mean the
		// evidence this explanation would cite cannot be trusted or
		// produced; never paper over either with a recomputed answer.
		return &model.ExplanationError{Code: model.ExplanationErrorEvidenceGatheringFailed, QuoteId: serr.QuoteId, Message: serr.Message}
	}
}

func resolveNumber(result model.PricingResult, selector model.NumberSelector) (model.Money, string, error) {
	switch selector.Kind {
	case model.NumberSelectorSubtotal:
		return result.Subtotal, "subtotal", nil
	case model.NumberSelectorDiscountTotal:
		return result.DiscountTotal, "discount total", nil
	case model.NumberSelectorTaxTotal:
		return result.TaxTotal, "tax total", nil
	case model.NumberSelectorTotal:
		return result.Total, "total", nil
	case model.NumberSelectorLineUnitPrice:
		for _, line := range result.Lines {
			if line.LineId == selector.LineId {
				return line.UnitPrice, fmt.Sprintf("unit price for line %s", selector.LineId), nil
			}
		}
		return model.Money{}, "", fmt.Errorf("no line %s in pricing result", selector.LineId)
	case model.NumberSelectorLineTotal:
		for _, line := range result.Lines {
			if line.LineId == selector.LineId {
				return line.LineTotal, fmt.Sprintf("line total for line %s", selector.LineId), nil
			}
		}
		return model.Money{}, "", fmt.Errorf("no line %s in pricing result", selector.LineId)
	default:
		return model.Money{}, "", fmt.Errorf("unrecognized number selector %q", selector.Kind)
	}
}
