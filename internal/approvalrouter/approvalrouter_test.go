package approvalrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/model"
)

type fakeActorLister struct {
	byRole map[string][]*model.Actor
}

func (f fakeActorLister) ListByRole(ctx context.Context, role string) ([]*model.Actor, error) {
	return f.byRole[role], nil
}

func TestRouteApproval_AssignsFirstActorInRequiredRole(t *testing.T) {
	lister := fakeActorLister{byRole: map[string][]*model.Actor{
		model.RoleManager: {{Email: "manager-a@example.com"}, {Email: "manager-b@example.com"}},
	}}
	router := NewRoleRouter(context.Background(), lister)

	assignee, err := router.RouteApproval(model.ApprovalRequest{RequiredTier: model.ApprovalTierManager})
	require.NoError(t, err)
	assert.Equal(t, "manager-a@example.com", assignee)
}

func TestRouteApproval_NoActorInRoleIsError(t *testing.T) {
	lister := fakeActorLister{byRole: map[string][]*model.Actor{}}
	router := NewRoleRouter(context.Background(), lister)

	_, err := router.RouteApproval(model.ApprovalRequest{RequiredTier: model.ApprovalTierVP})
	assert.Error(t, err)
}

func TestRouteApproval_UnmappedTierIsError(t *testing.T) {
	router := NewRoleRouter(context.Background(), fakeActorLister{})
	_, err := router.RouteApproval(model.ApprovalRequest{RequiredTier: model.ApprovalTierNone})
	assert.Error(t, err)
}
