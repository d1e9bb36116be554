package flowengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/model"
)

func TestTransition_S1_DraftToFinalizedHappyPath(t *testing.T) {
	engine := NewDefaultEngine()

	out, err := engine.Transition(model.QuoteStatusDraft, EventRequiredFieldsCollected)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusValidated, out.NewState)
	assert.Equal(t, []Action{ActionEvaluatePricing}, out.Actions)

	out, err = engine.Transition(model.QuoteStatusValidated, EventPricingCalculated)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusPriced, out.NewState)
	assert.Equal(t, []Action{ActionEvaluatePolicy}, out.Actions)

	out, err = engine.Transition(model.QuoteStatusPriced, EventPolicyClear)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusFinalized, out.NewState)
}

func TestTransition_S2_PolicyViolationRoutesToPendingApproval(t *testing.T) {
	engine := NewDefaultEngine()
	out, err := engine.Transition(model.QuoteStatusPriced, EventPolicyViolationDetected)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusPendingApproval, out.NewState)
	assert.Equal(t, []Action{ActionRouteApproval}, out.Actions)
}

func TestTransition_ApprovalGrantedFinalizesQuote(t *testing.T) {
	engine := NewDefaultEngine()
	out, err := engine.Transition(model.QuoteStatusPendingApproval, EventApprovalGranted)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusApproved, out.NewState)
	assert.Equal(t, []Action{ActionFinalizeQuote}, out.Actions)
}

func TestTransition_RevisionFromRejectedCreatesRevisedVersion(t *testing.T) {
	engine := NewDefaultEngine()
	out, err := engine.Transition(model.QuoteStatusRejected, EventRevisionRequested)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusRevised, out.NewState)
}

func TestTransition_IllegalEvent_StableTag(t *testing.T) {
	engine := NewDefaultEngine()
	_, err := engine.Transition(model.QuoteStatusDraft, EventPolicyClear)
	require.Error(t, err)
	ferr, ok := err.(*FlowTransitionError)
	require.True(t, ok)
	assert.Equal(t, KindIllegalEvent, ferr.Kind)
}

func TestTransition_TerminalStateRejectsEverything(t *testing.T) {
	engine := NewDefaultEngine()
	_, err := engine.Transition(model.QuoteStatusSent, EventRevisionRequested)
	require.Error(t, err)
	ferr, ok := err.(*FlowTransitionError)
	require.True(t, ok)
	assert.Equal(t, KindTerminalState, ferr.Kind)
}

func TestTransition_SameInputsAlwaysYieldSameOutcome(t *testing.T) {
	engine := NewDefaultEngine()
	out1, err1 := engine.Transition(model.QuoteStatusDraft, EventRequiredFieldsCollected)
	out2, err2 := engine.Transition(model.QuoteStatusDraft, EventRequiredFieldsCollected)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, out1, out2)
}
