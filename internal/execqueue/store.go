package execqueue

import (
	"context"
	"errors"
	"time"

	"cpq-engine-api/internal/model"
)

// ErrTaskNotFound is returned when a task lookup by id finds nothing.
var ErrTaskNotFound = errors.New("execqueue: task not found")

// ErrNoClaimableTask is returned by ClaimNext when no task is currently
// eligible (Queued with next_attempt_at <= now).
var ErrNoClaimableTask = errors.New("execqueue: no claimable task")

// ErrStateVersionConflict is returned when a conditional update's expected
// state_version no longer matches, meaning another worker already acted on
// the task.
var ErrStateVersionConflict = errors.New("execqueue: state version conflict")

// ErrIdempotencyConflict is returned when an operation_key is reused with a
// different payload hash than the one it was first recorded with.
var ErrIdempotencyConflict = errors.New("execqueue: idempotency key reused with different payload")

// Store is the persistence port for execution tasks.
type Store interface {
	Insert(ctx context.Context, task model.ExecutionTask) error
	Get(ctx context.Context, id model.ExecutionTaskId) (*model.ExecutionTask, error)
	// ClaimNext atomically selects one task in state Queued with
	// next_attempt_at <= now, transitions it to Running, assigns
	// claimedBy and claimExpiresAt, and increments both attempt and
	// state_version. Returns ErrNoClaimableTask if none qualify.
	ClaimNext(ctx context.Context, now time.Time, claimedBy string, claimExpiresAt time.Time) (*model.ExecutionTask, error)
	// UpdateConditional writes task back, succeeding only if the stored
	// document's current state_version equals expectedStateVersion; the
	// caller must have already bumped task.StateVersion past it.
	UpdateConditional(ctx context.Context, task model.ExecutionTask, expectedStateVersion int) error
	// FetchExpiredClaims returns Running tasks whose claim_expires_at is
	// before now, for the recovery sweep.
	FetchExpiredClaims(ctx context.Context, now time.Time) ([]model.ExecutionTask, error)
}

// IdempotencyStore is the persistence port for the idempotency ledger.
type IdempotencyStore interface {
	// Begin inserts a new InProgress record keyed by operationKey if none
	// exists, or returns the existing record unchanged. The unique
	// constraint on operation_key, not application logic, serializes
	// concurrent first-submitters.
	Begin(ctx context.Context, record model.IdempotencyRecord) (model.IdempotencyRecord, bool, error)
	Get(ctx context.Context, operationKey string) (*model.IdempotencyRecord, error)
	Complete(ctx context.Context, operationKey string, resultHash string, completedAt time.Time) error
	Fail(ctx context.Context, operationKey string) error
}

// AuditSink records execution transition audit rows. A nil sink is treated
// as a no-op by Queue.
type AuditSink interface {
	RecordTransition(ctx context.Context, entry model.ExecutionTransitionAudit) error
}
