// Package execqueue implements the durable, idempotent, at-least-once
// execution queue: claim, retry with deterministic backoff, crash recovery,
// and an idempotency ledger that makes re-delivery of the same operation a
// no-op from the outside world's perspective.
package execqueue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cpq-engine-api/internal/model"
)

// Queue is the production execution queue.
type Queue struct {
	store       Store
	idempotency IdempotencyStore
	audit       AuditSink
	clock       func() time.Time

	claimTTL     time.Duration
	backoffBase  time.Duration
	maxDelay     time.Duration
	defaultMaxAttempts int
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithClaimTTL overrides the default claim lease duration.
func WithClaimTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.claimTTL = ttl }
}

// WithBackoff overrides the default backoff base and cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(q *Queue) { q.backoffBase = base; q.maxDelay = maxDelay }
}

// WithAuditSink attaches a sink that records every observed state
// transition.
func WithAuditSink(sink AuditSink) Option {
	return func(q *Queue) { q.audit = sink }
}

// WithClock overrides the queue's time source. Production callers never
// need this; it exists for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// NewQueue constructs a Queue with the given stores and defaults: a 30s
// claim TTL, the package's default backoff base/cap, and max_attempts of 5.
func NewQueue(store Store, idempotency IdempotencyStore, opts ...Option) *Queue {
	q := &Queue{
		store:              store,
		idempotency:        idempotency,
		clock:              time.Now,
		claimTTL:           30 * time.Second,
		backoffBase:        DefaultBackoffBase,
		maxDelay:           DefaultMaxDelay,
		defaultMaxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit enqueues a task for kind against quoteId with payloadCanonical,
// deriving its operation_key from (kind, payload hash). A resubmission
// under the same operation_key with an identical payload returns the
// existing task rather than enqueuing a duplicate; alreadyCompleted is true
// when that existing task has already run to completion. A resubmission
// with a different payload under the same operation_key is a hard error.
func (q *Queue) Submit(ctx context.Context, kind model.TaskKind, quoteId model.QuoteId, payloadCanonical string) (task model.ExecutionTask, alreadyCompleted bool, err error) {
	payloadHash := PayloadHash(payloadCanonical)
	operationKey := string(kind) + ":" + payloadHash
	now := q.clock().UTC()

	candidate := model.ExecutionTask{
		ID:               model.ExecutionTaskId(uuid.NewString()),
		Kind:             kind,
		QuoteId:          quoteId,
		PayloadCanonical: payloadCanonical,
		OperationKey:     operationKey,
		State:            model.TaskStateQueued,
		StateVersion:     1,
		Attempt:          0,
		MaxAttempts:      q.defaultMaxAttempts,
		NextAttemptAt:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	record, created, err := q.idempotency.Begin(ctx, model.IdempotencyRecord{
		OperationKey: operationKey,
		TaskId:       candidate.ID,
		PayloadHash:  payloadHash,
		State:        model.IdempotencyStateInProgress,
		StartedAt:    now,
	})
	if err != nil {
		return model.ExecutionTask{}, false, err
	}

	if created {
		if err := q.store.Insert(ctx, candidate); err != nil {
			return model.ExecutionTask{}, false, err
		}
		return candidate, false, nil
	}

	if record.PayloadHash != payloadHash {
		return model.ExecutionTask{}, false, ErrIdempotencyConflict
	}

	existing, err := q.store.Get(ctx, record.TaskId)
	if err != nil {
		return model.ExecutionTask{}, false, err
	}
	if existing == nil {
		return model.ExecutionTask{}, false, ErrTaskNotFound
	}
	return *existing, record.State == model.IdempotencyStateCompleted, nil
}

// Claim atomically selects the next eligible task, transitions it to
// Running, and records the transition. It returns (nil, nil) when no task
// is currently claimable.
func (q *Queue) Claim(ctx context.Context, workerId string) (*model.ExecutionTask, error) {
	now := q.clock().UTC()
	task, err := q.store.ClaimNext(ctx, now, workerId, now.Add(q.claimTTL))
	if err == ErrNoClaimableTask {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	q.recordTransition(ctx, task.ID, model.TaskStateQueued, model.TaskStateRunning, task.Attempt, workerId, "claimed", now)
	return task, nil
}

// Complete transitions a Running task to Completed and writes through the
// idempotency ledger's result. resultHash is the canonical hash of the
// external effect's result, so future re-deliveries can short-circuit.
func (q *Queue) Complete(ctx context.Context, task model.ExecutionTask, resultHash string) error {
	now := q.clock().UTC()
	expected := task.StateVersion

	task.State = model.TaskStateCompleted
	task.StateVersion++
	task.UpdatedAt = now
	task.ClaimedBy = ""
	task.ClaimExpiresAt = nil

	if err := q.store.UpdateConditional(ctx, task, expected); err != nil {
		return err
	}
	if err := q.idempotency.Complete(ctx, task.OperationKey, resultHash, now); err != nil {
		return err
	}
	q.recordTransition(ctx, task.ID, model.TaskStateRunning, model.TaskStateCompleted, task.Attempt, task.ClaimedBy, "", now)
	return nil
}

// Fail reports that a Running task's side effect failed. Retryable
// failures return the task to Queued with a deterministic backoff delay;
// non-retryable ("poison") failures, or a retryable failure that has
// exhausted max_attempts, move the task to TerminallyFailed.
func (q *Queue) Fail(ctx context.Context, task model.ExecutionTask, cause error, retryable bool) (model.ExecutionTask, error) {
	now := q.clock().UTC()

	if !retryable || task.Attempt >= task.MaxAttempts {
		expected := task.StateVersion
		task.State = model.TaskStateTerminallyFailed
		task.LastError = cause.Error()
		task.StateVersion++
		task.UpdatedAt = now
		task.ClaimedBy = ""
		task.ClaimExpiresAt = nil

		if err := q.store.UpdateConditional(ctx, task, expected); err != nil {
			return task, err
		}
		_ = q.idempotency.Fail(ctx, task.OperationKey)
		q.recordTransition(ctx, task.ID, model.TaskStateRunning, model.TaskStateTerminallyFailed, task.Attempt, task.ClaimedBy, cause.Error(), now)
		return task, nil
	}

	expected := task.StateVersion
	task.State = model.TaskStateRetryableFailed
	task.LastError = cause.Error()
	task.StateVersion++
	task.UpdatedAt = now
	if err := q.store.UpdateConditional(ctx, task, expected); err != nil {
		return task, err
	}
	q.recordTransition(ctx, task.ID, model.TaskStateRunning, model.TaskStateRetryableFailed, task.Attempt, task.ClaimedBy, cause.Error(), now)

	expected = task.StateVersion
	task.State = model.TaskStateQueued
	task.NextAttemptAt = NextAttemptAt(now, task.Attempt, task.ID, q.backoffBase, q.maxDelay)
	task.ClaimedBy = ""
	task.ClaimExpiresAt = nil
	task.StateVersion++
	task.UpdatedAt = now
	if err := q.store.UpdateConditional(ctx, task, expected); err != nil {
		return task, err
	}
	q.recordTransition(ctx, task.ID, model.TaskStateRetryableFailed, model.TaskStateQueued, task.Attempt, "", "scheduled retry", now)

	return task, nil
}

// RecoverExpiredClaims returns every Running task whose claim has expired
// back to Queued, so a crashed worker never strands a task in Running
// forever. It returns the number of tasks recovered.
func (q *Queue) RecoverExpiredClaims(ctx context.Context) (int, error) {
	now := q.clock().UTC()
	expired, err := q.store.FetchExpiredClaims(ctx, now)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, task := range expired {
		expected := task.StateVersion
		recoveredTask := task
		recoveredTask.State = model.TaskStateQueued
		recoveredTask.NextAttemptAt = now
		recoveredTask.ClaimedBy = ""
		recoveredTask.ClaimExpiresAt = nil
		recoveredTask.StateVersion++
		recoveredTask.UpdatedAt = now

		if err := q.store.UpdateConditional(ctx, recoveredTask, expected); err != nil {
			if err == ErrStateVersionConflict {
				// Another worker already acted on this task; nothing to
				// recover.
				continue
			}
			return recovered, err
		}
		q.recordTransition(ctx, task.ID, model.TaskStateRunning, model.TaskStateQueued, task.Attempt, "", "claim_expired", now)
		recovered++
	}
	return recovered, nil
}

func (q *Queue) recordTransition(ctx context.Context, taskId model.ExecutionTaskId, from, to model.TaskState, attempt int, worker, reason string, at time.Time) {
	if q.audit == nil {
		return
	}
	_ = q.audit.RecordTransition(ctx, model.ExecutionTransitionAudit{
		TaskId:    taskId,
		FromState: from,
		ToState:   to,
		Attempt:   attempt,
		Worker:    worker,
		Reason:    reason,
		At:        at,
	})
}
