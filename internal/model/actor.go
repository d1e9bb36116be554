package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor roles. Role determines both what an actor may request through the
// interface boundary and which ApprovalTier, if any, they may decide.
const (
	RoleRep     = "rep"
	RoleManager = "manager"
	RoleDesk    = "desk"
	RoleVP      = "vp"
	RoleAdmin   = "admin"
	RoleSystem  = "system" // internal service identity, e.g. the execution queue worker
)

// Actor is an authenticated identity that can create, transition, or decide
// quotes. It replaces the notion of an account holder with the set of roles
// the CPQ flow and policy engine actually reason about.
type Actor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	DisplayName  string             `bson:"display_name,omitempty" json:"displayName,omitempty"`
	Role         string             `bson:"role" json:"role"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

// IsAdmin reports whether the actor has the admin role.
func (a *Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanDecideTier reports whether the actor's role is authorized to decide an
// approval request requiring the given tier. Roles are additive by
// seniority: a VP may decide anything a Desk or Manager may, and Admin may
// decide anything.
func (a *Actor) CanDecideTier(tier ApprovalTier) bool {
	if a.Role == RoleAdmin {
		return true
	}
	switch tier {
	case ApprovalTierNone:
		return true
	case ApprovalTierManager:
		return a.Role == RoleManager || a.Role == RoleDesk || a.Role == RoleVP
	case ApprovalTierDesk:
		return a.Role == RoleDesk || a.Role == RoleVP
	case ApprovalTierVP:
		return a.Role == RoleVP
	default:
		return false
	}
}
