// Package quoteservice is the application layer that orchestrates the flow
// engine, the constraint/pricing/policy runtime, the ledger, and the
// supporting stores into the quote lifecycle operations an external
// caller actually invokes. It performs no domain computation itself; every
// decision is made by a pure engine, and this package's job is sequencing
// and persistence.
package quoteservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/approvalstore"
	"cpq-engine-api/internal/audit"
	"cpq-engine-api/internal/cpqruntime"
	"cpq-engine-api/internal/execqueue"
	"cpq-engine-api/internal/explain"
	"cpq-engine-api/internal/fingerprint"
	"cpq-engine-api/internal/fingerprintstore"
	"cpq-engine-api/internal/flowengine"
	"cpq-engine-api/internal/ledger"
	"cpq-engine-api/internal/model"
	"cpq-engine-api/internal/policyevalstore"
	"cpq-engine-api/internal/pricingengine"
	"cpq-engine-api/internal/quotestore"
	"cpq-engine-api/internal/snapshotstore"
)

// ledgerActionForStatus maps the flow engine's destination state onto the
// ledger action recorded for the transition that reached it.
var ledgerActionForStatus = map[model.QuoteStatus]model.LedgerAction{
	model.QuoteStatusValidated:       model.LedgerActionValidated,
	model.QuoteStatusPriced:          model.LedgerActionPriced,
	model.QuoteStatusPendingApproval: model.LedgerActionSubmitted,
	model.QuoteStatusApproved:        model.LedgerActionApproved,
	model.QuoteStatusRejected:        model.LedgerActionRejected,
	model.QuoteStatusFinalized:       model.LedgerActionFinalized,
	model.QuoteStatusSent:            model.LedgerActionSent,
	model.QuoteStatusRevised:         model.LedgerActionRevised,
}

// PricingContext bundles the pricing inputs a caller supplies for an
// Evaluate call; everything here is external-catalog data the core never
// owns.
type PricingContext struct {
	Currency        string
	CustomerSegment string
	Region          string
	PriceBooks      []model.PriceBook
	VolumeTiers     map[model.ProductId][]model.VolumeDiscountTier
	Bundles         []model.BundleDefinition
	DiscountRequest *model.DiscountRequest
	TaxEngine       model.TaxEngine
}

// Service is the production application service.
type Service struct {
	Quotes         quotestore.Store
	Ledger         ledger.Ledger
	Flow           flowengine.Engine
	Runtime        *cpqruntime.Runtime
	Snapshots      *snapshotstore.SnapshotStore
	PolicyEvals    policyevalstore.Store
	Fingerprints   fingerprintstore.Store
	Approvals      approvalstore.Store
	ApprovalRouter model.ApprovalRouter
	Audit          audit.Sink
	Explainer      *explain.Assembler
	// ExecQueue submits durable side effects (notify, render, export). A
	// nil ExecQueue disables submission entirely; the quote lifecycle
	// itself never depends on a task's eventual completion.
	ExecQueue *execqueue.Queue
	Clock     func() time.Time

	SimilarityThreshold float64
	SimilarityLimit     int
}

// New constructs a Service. clock defaults to time.Now if nil; the
// similarity search defaults to fingerprint.DefaultSimilarityThreshold and
// a limit of 10 candidates if left zero.
func New(s *Service) *Service {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.SimilarityThreshold == 0 {
		s.SimilarityThreshold = fingerprint.DefaultSimilarityThreshold
	}
	if s.SimilarityLimit == 0 {
		s.SimilarityLimit = 10
	}
	return s
}

func (s *Service) now() time.Time { return s.Clock().UTC() }

// CreateQuote starts a brand new Draft quote at version 1 and records its
// genesis ledger entry.
func (s *Service) CreateQuote(ctx context.Context, customerId model.CustomerId, currency string, lines []model.QuoteLine, actor string) (model.Quote, error) {
	now := s.now()
	quote := model.Quote{
		ID:         model.QuoteId("Q-" + uuid.NewString()),
		CustomerId: customerId,
		Status:     model.QuoteStatusDraft,
		Currency:   currency,
		Lines:      lines,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		Actor:      actor,
	}

	if quote.HasDuplicateLine() {
		return model.Quote{}, apperr.NewDomainError(apperr.CodeConstraintViolation, "duplicate (product, configuration) line in quote", nil)
	}

	if err := s.Quotes.Save(ctx, quote, 0); err != nil {
		return model.Quote{}, apperr.NewApplicationError(apperr.CodePersistence, "quote-store", "failed to save new quote", "", err)
	}

	if _, err := s.Ledger.Append(ctx, quote.ID, model.LedgerActionCreated, quote.Snapshot(), actor); err != nil {
		return model.Quote{}, err
	}

	s.emit(ctx, "quote_created", actor, map[string]interface{}{"quoteId": quote.ID})

	return quote, nil
}

// EvaluationOutcome is the result of running a quote through the full
// validate -> price -> policy pipeline.
type EvaluationOutcome struct {
	Quote      model.Quote
	Evaluation cpqruntime.CpqEvaluation
	Approval   *model.ApprovalRequest
}

// Evaluate drives a Draft quote through constraint validation, pricing, and
// policy evaluation, advancing the flow engine one step at a time and
// appending a ledger entry per transition. A constraint violation leaves
// the quote in Draft; a policy violation parks it in PendingApproval with a
// routed ApprovalRequest; a clean policy decision finalizes it.
func (s *Service) Evaluate(ctx context.Context, quoteId model.QuoteId, actor string, ruleSet model.RuleSet, policySet model.PolicySet, pricing PricingContext) (EvaluationOutcome, error) {
	quote, err := s.Quotes.Head(ctx, quoteId)
	if err != nil {
		return EvaluationOutcome{}, apperr.NewApplicationError(apperr.CodePersistence, "quote-store", "failed to load quote", "", err)
	}
	if quote.Status != model.QuoteStatusDraft {
		return EvaluationOutcome{}, apperr.NewDomainError(apperr.CodeInvalidQuoteTransition, fmt.Sprintf("quote is in state %s, not Draft", quote.Status), nil)
	}

	snapshot := quote.Snapshot()
	evaluation, err := s.Runtime.Evaluate(cpqruntime.EvaluateInput{
		Snapshot:  snapshot,
		RuleSet:   ruleSet,
		PolicySet: policySet,
		PricingInput: pricingengine.PriceInput{
			Snapshot:        snapshot,
			Currency:        pricing.Currency,
			CustomerSegment: pricing.CustomerSegment,
			Region:          pricing.Region,
			PriceBooks:      pricing.PriceBooks,
			VolumeTiers:     pricing.VolumeTiers,
			Bundles:         pricing.Bundles,
			DiscountRequest: pricing.DiscountRequest,
			TaxEngine:       pricing.TaxEngine,
		},
	})
	if err != nil {
		return EvaluationOutcome{}, err
	}

	if !evaluation.ConstraintResult.Valid {
		return EvaluationOutcome{Quote: quote, Evaluation: evaluation}, nil
	}

	quote, err = s.advance(ctx, quote, flowengine.EventRequiredFieldsCollected, actor)
	if err != nil {
		return EvaluationOutcome{}, err
	}

	quote, err = s.advance(ctx, quote, flowengine.EventPricingCalculated, actor)
	if err != nil {
		return EvaluationOutcome{}, err
	}

	latestEntry, err := s.Ledger.FetchLatest(ctx, quoteId)
	if err != nil {
		return EvaluationOutcome{}, apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to fetch latest entry", "", err)
	}

	if _, err := s.Snapshots.Record(ctx, quoteId, quote.Version, latestEntry.ID, latestEntry.ContentHash, *evaluation.PricingResult, ruleSet.RuleSetVersion, policySet.PolicyVersion, actor); err != nil {
		return EvaluationOutcome{}, err
	}

	if err := s.PolicyEvals.Record(ctx, model.PolicyEvaluationRecord{
		QuoteId:        quoteId,
		QuoteVersion:   quote.Version,
		Decision:       *evaluation.PolicyDecision,
		AppliedRuleIds: appliedRuleIds(*evaluation.PolicyDecision),
		CreatedAt:      s.now(),
	}); err != nil {
		return EvaluationOutcome{}, err
	}

	fp := fingerprint.ComputeFingerprint(quoteId, quote.Version, quote.Snapshot(), evaluation.PricingResult.Total, evaluation.PricingResult.DiscountBps, pricing.CustomerSegment)
	fp.CreatedAt = s.now()
	if err := s.Fingerprints.Upsert(ctx, fp); err != nil {
		return EvaluationOutcome{}, apperr.NewApplicationError(apperr.CodePersistence, "fingerprint-store", "failed to upsert fingerprint", "", err)
	}

	outcome := EvaluationOutcome{Evaluation: evaluation}

	if evaluation.PolicyDecision.Approved {
		quote, err = s.advance(ctx, quote, flowengine.EventPolicyClear, actor)
		if err != nil {
			return EvaluationOutcome{}, err
		}
		s.submitTask(ctx, model.TaskKindFinalizeQuote, quote.ID,
			fmt.Sprintf("%s:%d", quote.ID, quote.Version))
		outcome.Quote = quote
		return outcome, nil
	}

	quote, err = s.advance(ctx, quote, flowengine.EventPolicyViolationDetected, actor)
	if err != nil {
		return EvaluationOutcome{}, err
	}

	approval := model.ApprovalRequest{
		ID:           model.ApprovalId(uuid.NewString()),
		QuoteId:      quoteId,
		QuoteVersion: quote.Version,
		RequiredTier: evaluation.PolicyDecision.RequiredTier,
		Reasons:      violationMessages(*evaluation.PolicyDecision),
		Status:       model.ApprovalStatusPending,
		RequestedBy:  actor,
		CreatedAt:    s.now(),
	}
	if err := s.Approvals.Insert(ctx, approval); err != nil {
		return EvaluationOutcome{}, apperr.NewApplicationError(apperr.CodePersistence, "approval-store", "failed to insert approval request", "", err)
	}

	if s.ApprovalRouter != nil {
		if assignee, err := s.ApprovalRouter.RouteApproval(approval); err == nil {
			s.emit(ctx, "approval_routed", actor, map[string]interface{}{"approvalId": approval.ID, "assignee": assignee})
		}
	}

	s.submitTask(ctx, model.TaskKindNotifyApprover, quoteId,
		fmt.Sprintf("%s:%s:%d", approval.ID, quoteId, quote.Version))

	outcome.Quote = quote
	outcome.Approval = &approval
	return outcome, nil
}

// DecideApproval records a decision on a pending approval request and
// advances the quote's flow accordingly: a grant moves it to Approved and
// immediately finalizes it; a denial moves it to Rejected terminally.
// decider must hold a role authorized for the request's RequiredTier per
// model.Actor.CanDecideTier.
func (s *Service) DecideApproval(ctx context.Context, approvalId model.ApprovalId, decider model.Actor, approve bool, note string) (model.Quote, error) {
	req, err := s.Approvals.Get(ctx, approvalId)
	if err != nil {
		return model.Quote{}, apperr.NewApplicationError(apperr.CodePersistence, "approval-store", "failed to load approval request", "", err)
	}

	if !decider.CanDecideTier(req.RequiredTier) {
		return model.Quote{}, apperr.NewDomainError(apperr.CodeForbiddenAction,
			fmt.Sprintf("role %q is not authorized to decide a %s-tier approval", decider.Role, req.RequiredTier), nil)
	}
	decidedBy := decider.Email

	status := model.ApprovalStatusRejected
	if approve {
		status = model.ApprovalStatusApproved
	}
	if err := s.Approvals.Decide(ctx, approvalId, status, decidedBy, note, s.now()); err != nil {
		if err == approvalstore.ErrAlreadyDecided {
			return model.Quote{}, apperr.NewDomainError(apperr.CodeDuplicateOperation, "approval request was already decided", nil)
		}
		return model.Quote{}, apperr.NewApplicationError(apperr.CodePersistence, "approval-store", "failed to record approval decision", "", err)
	}

	quote, err := s.Quotes.Head(ctx, req.QuoteId)
	if err != nil {
		return model.Quote{}, apperr.NewApplicationError(apperr.CodePersistence, "quote-store", "failed to load quote", "", err)
	}

	if approve {
		quote, err = s.advance(ctx, quote, flowengine.EventApprovalGranted, decidedBy)
		if err != nil {
			return model.Quote{}, err
		}
		quote, err = s.advance(ctx, quote, flowengine.EventQuoteFinalized, decidedBy)
		if err != nil {
			return model.Quote{}, err
		}
		s.submitTask(ctx, model.TaskKindFinalizeQuote, quote.ID,
			fmt.Sprintf("%s:%d", quote.ID, quote.Version))
		return quote, nil
	}

	quote, err = s.advance(ctx, quote, flowengine.EventApprovalDenied, decidedBy)
	if err != nil {
		return model.Quote{}, err
	}
	return quote, nil
}

// advance runs one flow engine transition, bumps the quote's version,
// persists the new head, and appends the matching ledger entry.
func (s *Service) advance(ctx context.Context, quote model.Quote, event flowengine.Event, actor string) (model.Quote, error) {
	outcome, err := s.Flow.Transition(quote.Status, event)
	if err != nil {
		if ferr, ok := err.(*flowengine.FlowTransitionError); ok {
			return model.Quote{}, apperr.NewDomainError(apperr.CodeInvalidQuoteTransition, ferr.Error(), map[string]interface{}{
				"quoteId": quote.ID, "currentState": string(ferr.Current), "event": string(ferr.Event),
			})
		}
		return model.Quote{}, err
	}

	expectedVersion := quote.Version
	quote.Status = outcome.NewState
	quote.Version++
	quote.UpdatedAt = s.now()
	quote.Actor = actor

	if err := s.Quotes.Save(ctx, quote, expectedVersion); err != nil {
		return model.Quote{}, apperr.NewApplicationError(apperr.CodePersistence, "quote-store", "failed to save quote transition", "", err)
	}

	action, ok := ledgerActionForStatus[outcome.NewState]
	if !ok {
		action = model.LedgerActionValidated
	}
	if _, err := s.Ledger.Append(ctx, quote.ID, action, quote.Snapshot(), actor); err != nil {
		return model.Quote{}, err
	}

	return quote, nil
}

// submitTask enqueues a durable side effect. A nil ExecQueue, or a
// submission failure, never blocks or fails the quote lifecycle operation
// that triggered it: notification and rendering are best-effort follow-on
// work, not part of the transactional boundary.
func (s *Service) submitTask(ctx context.Context, kind model.TaskKind, quoteId model.QuoteId, payloadCanonical string) {
	if s.ExecQueue == nil {
		return
	}
	if _, _, err := s.ExecQueue.Submit(ctx, kind, quoteId, payloadCanonical); err != nil {
		s.emit(ctx, "task_submit_failed", "system", map[string]interface{}{
			"quoteId": quoteId, "kind": string(kind), "error": err.Error(),
		})
	}
}

func (s *Service) emit(ctx context.Context, eventType, actor string, detail map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	_ = audit.Emit(ctx, s.Audit, eventType, actor, detail, s.Clock)
}

func appliedRuleIds(decision model.PolicyDecision) []string {
	ids := make([]string, 0, len(decision.Violations))
	for _, v := range decision.Violations {
		ids = append(ids, v.PolicyId)
	}
	return ids
}

func violationMessages(decision model.PolicyDecision) []string {
	messages := make([]string, 0, len(decision.Violations))
	for _, v := range decision.Violations {
		messages = append(messages, v.Message)
	}
	return messages
}

// FindSimilar returns the quotes whose current configuration fingerprint is
// similar to quoteId's, ordered closest first.
func (s *Service) FindSimilar(ctx context.Context, quoteId model.QuoteId) ([]model.SimilarQuoteMatch, error) {
	target, err := s.Fingerprints.Get(ctx, quoteId)
	if err != nil {
		return nil, apperr.NewApplicationError(apperr.CodePersistence, "fingerprint-store", "failed to load target fingerprint", "", err)
	}
	if target == nil {
		return nil, apperr.NewDomainError(apperr.CodeNotFound, "quote has no recorded fingerprint", map[string]interface{}{"quoteId": quoteId})
	}

	candidates, err := s.Fingerprints.All(ctx)
	if err != nil {
		return nil, apperr.NewApplicationError(apperr.CodePersistence, "fingerprint-store", "failed to load candidate fingerprints", "", err)
	}

	return fingerprint.FindSimilar(*target, candidates, s.SimilarityThreshold, s.SimilarityLimit), nil
}

// Explain answers "why is this number what it is" for one quote version,
// delegating entirely to the explanation assembler.
func (s *Service) Explain(ctx context.Context, quoteId model.QuoteId, version int, selector model.NumberSelector) (model.ExplanationResponse, error) {
	return s.Explainer.Explain(ctx, quoteId, version, selector)
}
