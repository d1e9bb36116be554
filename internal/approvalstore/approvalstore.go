// Package approvalstore persists ApprovalRequest rows raised by the policy
// engine's escalation path and their eventual disposition.
package approvalstore

import (
	"context"
	"errors"
	"time"

	"cpq-engine-api/internal/model"
)

// ErrNotFound is returned when no approval request exists for an id.
var ErrNotFound = errors.New("approvalstore: not found")

// Store is the persistence port for approval requests.
type Store interface {
	Insert(ctx context.Context, req model.ApprovalRequest) error
	Get(ctx context.Context, id model.ApprovalId) (model.ApprovalRequest, error)
	// Decide transitions a Pending request to Approved or Rejected,
	// conditional on it still being Pending; returns ErrAlreadyDecided
	// otherwise.
	Decide(ctx context.Context, id model.ApprovalId, status model.ApprovalStatus, decidedBy, note string, decidedAt time.Time) error
	PendingForQuote(ctx context.Context, quoteId model.QuoteId) ([]model.ApprovalRequest, error)
}

// ErrAlreadyDecided is returned by Decide when the request is no longer
// Pending.
var ErrAlreadyDecided = errors.New("approvalstore: approval already decided")
