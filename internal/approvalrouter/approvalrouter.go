// Package approvalrouter provides a minimal, concrete ApprovalRouter: it
// assigns an escalated approval request to the first active actor holding
// the role responsible for the request's tier. Org-specific routing (an
// on-call schedule, a directory lookup, load balancing across deciders) is
// expected to replace this in a real deployment; this implementation only
// satisfies the port so the flow engine's RouteApproval action has
// somewhere to go.
package approvalrouter

import (
	"context"
	"fmt"

	"cpq-engine-api/internal/model"
)

// ActorLister is the subset of the actor repository this router depends
// on.
type ActorLister interface {
	ListByRole(ctx context.Context, role string) ([]*model.Actor, error)
}

var tierToRole = map[model.ApprovalTier]string{
	model.ApprovalTierManager: model.RoleManager,
	model.ApprovalTierDesk:    model.RoleDesk,
	model.ApprovalTierVP:      model.RoleVP,
}

// RoleRouter is the production ApprovalRouter.
type RoleRouter struct {
	actors ActorLister
	ctx    context.Context
}

// NewRoleRouter constructs a RoleRouter. ctx bounds the actor lookup; the
// model.ApprovalRouter interface is synchronous and carries no context
// parameter of its own.
func NewRoleRouter(ctx context.Context, actors ActorLister) *RoleRouter {
	return &RoleRouter{actors: actors, ctx: ctx}
}

// RouteApproval assigns req to the first active actor in the role
// responsible for req.RequiredTier.
func (r *RoleRouter) RouteApproval(req model.ApprovalRequest) (string, error) {
	role, ok := tierToRole[req.RequiredTier]
	if !ok {
		return "", fmt.Errorf("approvalrouter: no role mapped for tier %q", req.RequiredTier)
	}

	actors, err := r.actors.ListByRole(r.ctx, role)
	if err != nil {
		return "", fmt.Errorf("approvalrouter: failed to list actors for role %q: %w", role, err)
	}
	if len(actors) == 0 {
		return "", fmt.Errorf("approvalrouter: no active actor holds role %q", role)
	}

	return actors[0].Email, nil
}
