// Package flowengine implements the quote lifecycle state machine: a pure
// transition function from (current state, event) to a new state and the
// follow-on actions the caller must perform. Rejections carry a stable,
// machine-readable tag; downstream test suites depend on these tags being
// unchanged across releases.
package flowengine

import "cpq-engine-api/internal/model"

// Event is a quote lifecycle trigger.
type Event string

const (
	EventRequiredFieldsCollected Event = "RequiredFieldsCollected"
	EventPricingCalculated       Event = "PricingCalculated"
	EventPolicyClear             Event = "PolicyClear"
	EventPolicyViolationDetected Event = "PolicyViolationDetected"
	EventApprovalGranted         Event = "ApprovalGranted"
	EventApprovalDenied          Event = "ApprovalDenied"
	EventQuoteFinalized          Event = "QuoteFinalized"
	EventQuoteDelivered          Event = "QuoteDelivered"
	EventRevisionRequested       Event = "RevisionRequested"
)

// Action is a follow-on side-effecting instruction the caller must carry
// out after a successful transition. The flow engine itself never performs
// these; it only names them.
type Action string

const (
	ActionEvaluatePricing Action = "EvaluatePricing"
	ActionEvaluatePolicy  Action = "EvaluatePolicy"
	ActionRouteApproval   Action = "RouteApproval"
	ActionFinalizeQuote   Action = "FinalizeQuote"
)

// TransitionOutcome is the successful result of a transition: the new state
// and the actions the caller must now perform, in order.
type TransitionOutcome struct {
	NewState model.QuoteStatus
	Actions  []Action
}

// FlowTransitionErrorKind is a stable, machine-readable rejection tag.
// Downstream test suites depend on these values being unchanged across
// releases.
type FlowTransitionErrorKind string

const (
	KindIllegalEvent  FlowTransitionErrorKind = "IllegalEvent"
	KindGuardFailed   FlowTransitionErrorKind = "GuardFailed"
	KindTerminalState FlowTransitionErrorKind = "TerminalState"
)

// FlowTransitionError is returned when a transition is rejected.
type FlowTransitionError struct {
	Kind    FlowTransitionErrorKind
	Current model.QuoteStatus
	Event   Event
}

func (e *FlowTransitionError) Error() string {
	return string(e.Kind) + ": event " + string(e.Event) + " is not valid from state " + string(e.Current)
}

// transitionKey identifies one (state, event) edge in the table.
type transitionKey struct {
	state model.QuoteStatus
	event Event
}

type transitionDef struct {
	newState model.QuoteStatus
	actions  []Action
}

// table encodes the Net-New flow exactly as specified. Terminal states not
// present here as a source reject with KindTerminalState rather than
// KindIllegalEvent, except where RevisionRequested explicitly reopens them.
var table = map[transitionKey]transitionDef{
	{model.QuoteStatusDraft, EventRequiredFieldsCollected}: {
		newState: model.QuoteStatusValidated,
		actions:  []Action{ActionEvaluatePricing},
	},
	{model.QuoteStatusValidated, EventPricingCalculated}: {
		newState: model.QuoteStatusPriced,
		actions:  []Action{ActionEvaluatePolicy},
	},
	{model.QuoteStatusPriced, EventPolicyClear}: {
		newState: model.QuoteStatusFinalized,
	},
	{model.QuoteStatusPriced, EventPolicyViolationDetected}: {
		newState: model.QuoteStatusPendingApproval,
		actions:  []Action{ActionRouteApproval},
	},
	{model.QuoteStatusPendingApproval, EventApprovalGranted}: {
		newState: model.QuoteStatusApproved,
		actions:  []Action{ActionFinalizeQuote},
	},
	{model.QuoteStatusPendingApproval, EventApprovalDenied}: {
		newState: model.QuoteStatusRejected,
	},
	{model.QuoteStatusApproved, EventQuoteFinalized}: {
		newState: model.QuoteStatusFinalized,
	},
	{model.QuoteStatusFinalized, EventQuoteDelivered}: {
		newState: model.QuoteStatusSent,
	},
	{model.QuoteStatusRejected, EventRevisionRequested}: {
		newState: model.QuoteStatusRevised,
	},
	{model.QuoteStatusCancelled, EventRevisionRequested}: {
		newState: model.QuoteStatusRevised,
	},
}

// terminalStates freeze the quote from further mutation except Revised,
// which forks a new version. Sent and Expired have no outgoing edges at
// all, including RevisionRequested.
var terminalStates = map[model.QuoteStatus]bool{
	model.QuoteStatusSent:    true,
	model.QuoteStatusExpired: true,
}

// Engine is the capability this package implements.
type Engine interface {
	Transition(current model.QuoteStatus, event Event) (TransitionOutcome, error)
}

// DefaultEngine is the production flow engine. It holds no state; the same
// (state, event) pair always yields the same outcome.
type DefaultEngine struct{}

// NewDefaultEngine constructs the production flow engine.
func NewDefaultEngine() *DefaultEngine { return &DefaultEngine{} }

// Transition evaluates event against current and returns the resulting
// outcome, or a FlowTransitionError with a stable Kind tag.
func (e *DefaultEngine) Transition(current model.QuoteStatus, event Event) (TransitionOutcome, error) {
	if terminalStates[current] {
		return TransitionOutcome{}, &FlowTransitionError{Kind: KindTerminalState, Current: current, Event: event}
	}

	def, ok := table[transitionKey{current, event}]
	if !ok {
		return TransitionOutcome{}, &FlowTransitionError{Kind: KindIllegalEvent, Current: current, Event: event}
	}

	return TransitionOutcome{NewState: def.newState, Actions: def.actions}, nil
}
