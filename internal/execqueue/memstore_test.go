package execqueue

import (
	"context"
	"sync"
	"time"

	"cpq-engine-api/internal/model"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[model.ExecutionTaskId]model.ExecutionTask
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[model.ExecutionTaskId]model.ExecutionTask)}
}

func (s *memStore) Insert(ctx context.Context, task model.ExecutionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *memStore) Get(ctx context.Context, id model.ExecutionTaskId) (*model.ExecutionTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *memStore) ClaimNext(ctx context.Context, now time.Time, claimedBy string, claimExpiresAt time.Time) (*model.ExecutionTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bestId model.ExecutionTaskId
	var best model.ExecutionTask
	found := false
	for id, task := range s.tasks {
		if task.State != model.TaskStateQueued || task.NextAttemptAt.After(now) {
			continue
		}
		if !found || task.NextAttemptAt.Before(best.NextAttemptAt) {
			bestId, best, found = id, task, true
		}
	}
	if !found {
		return nil, ErrNoClaimableTask
	}

	best.State = model.TaskStateRunning
	best.ClaimedBy = claimedBy
	best.ClaimExpiresAt = &claimExpiresAt
	best.Attempt++
	best.StateVersion++
	best.UpdatedAt = now
	s.tasks[bestId] = best
	result := best
	return &result, nil
}

func (s *memStore) UpdateConditional(ctx context.Context, task model.ExecutionTask, expectedStateVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok || current.StateVersion != expectedStateVersion {
		return ErrStateVersionConflict
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *memStore) FetchExpiredClaims(ctx context.Context, now time.Time) ([]model.ExecutionTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []model.ExecutionTask
	for _, task := range s.tasks {
		if task.State == model.TaskStateRunning && task.ClaimExpiresAt != nil && task.ClaimExpiresAt.Before(now) {
			expired = append(expired, task)
		}
	}
	return expired, nil
}

type memIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]model.IdempotencyRecord
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{records: make(map[string]model.IdempotencyRecord)}
}

func (s *memIdempotencyStore) Begin(ctx context.Context, record model.IdempotencyRecord) (model.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.OperationKey]; ok {
		return existing, false, nil
	}
	s.records[record.OperationKey] = record
	return record, true, nil
}

func (s *memIdempotencyStore) Get(ctx context.Context, operationKey string) (*model.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[operationKey]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *memIdempotencyStore) Complete(ctx context.Context, operationKey string, resultHash string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[operationKey]
	if !ok {
		return ErrTaskNotFound
	}
	record.State = model.IdempotencyStateCompleted
	record.ResultHash = resultHash
	record.CompletedAt = &completedAt
	s.records[operationKey] = record
	return nil
}

func (s *memIdempotencyStore) Fail(ctx context.Context, operationKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[operationKey]
	if !ok {
		return ErrTaskNotFound
	}
	record.State = model.IdempotencyStateFailed
	s.records[operationKey] = record
	return nil
}

type recordingAuditSink struct {
	mu      sync.Mutex
	entries []model.ExecutionTransitionAudit
}

func (r *recordingAuditSink) RecordTransition(ctx context.Context, entry model.ExecutionTransitionAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAuditSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeClock lets tests advance time deterministically past claim
// expiration without real sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
