package model

import "time"

// TaskState is the lifecycle state of a durable execution task.
type TaskState string

const (
	TaskStateQueued           TaskState = "Queued"
	TaskStateRunning          TaskState = "Running"
	TaskStateCompleted        TaskState = "Completed"
	TaskStateRetryableFailed  TaskState = "RetryableFailed"
	TaskStateTerminallyFailed TaskState = "TerminallyFailed"
)

// TaskKind identifies the unit of work an ExecutionTask performs.
type TaskKind string

const (
	TaskKindSendQuote      TaskKind = "SendQuote"
	TaskKindFinalizeQuote  TaskKind = "FinalizeQuote"
	TaskKindNotifyApprover TaskKind = "NotifyApprover"
	TaskKindExpireQuote    TaskKind = "ExpireQuote"
)

// IdempotencyState is the lifecycle state of an IdempotencyRecord.
type IdempotencyState string

const (
	IdempotencyStateInProgress IdempotencyState = "InProgress"
	IdempotencyStateCompleted  IdempotencyState = "Completed"
	IdempotencyStateFailed     IdempotencyState = "Failed"
)

// ExecutionTask is a single durable, idempotent unit of side-effecting work
// queued by the flow engine. Claiming, running, and completing a task all go
// through optimistic concurrency on StateVersion; no coarse lock ever guards
// the queue.
type ExecutionTask struct {
	ID               ExecutionTaskId `json:"id" bson:"_id"`
	Kind             TaskKind        `json:"kind" bson:"kind"`
	QuoteId          QuoteId         `json:"quoteId" bson:"quote_id"`
	PayloadCanonical string          `json:"payloadCanonical" bson:"payload_canonical"`
	OperationKey     string          `json:"operationKey" bson:"operation_key"`
	State          TaskState       `json:"state" bson:"state"`
	StateVersion   int             `json:"stateVersion" bson:"state_version"`
	Attempt        int             `json:"attempt" bson:"attempt"`
	MaxAttempts    int             `json:"maxAttempts" bson:"max_attempts"`
	NextAttemptAt  time.Time       `json:"nextAttemptAt" bson:"next_attempt_at"`
	ClaimedBy      string          `json:"claimedBy,omitempty" bson:"claimed_by,omitempty"`
	ClaimExpiresAt *time.Time      `json:"claimExpiresAt,omitempty" bson:"claim_expires_at,omitempty"`
	LastError      string          `json:"lastError,omitempty" bson:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updated_at"`
}

// IdempotencyRecord guarantees at-most-once side-effect execution for a
// given OperationKey even when the queue redelivers a task after a crash
// between work completion and state commit. A conflicting PayloadHash under
// the same OperationKey is a hard error, never silently overwritten.
type IdempotencyRecord struct {
	OperationKey string           `json:"operationKey" bson:"_id"`
	TaskId       ExecutionTaskId  `json:"taskId" bson:"task_id"`
	PayloadHash  string           `json:"payloadHash" bson:"payload_hash"`
	State        IdempotencyState `json:"state" bson:"state"`
	ResultHash   string           `json:"resultHash,omitempty" bson:"result_hash,omitempty"`
	StartedAt    time.Time        `json:"startedAt" bson:"started_at"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// ExecutionTransitionAudit records one observed state transition of an
// ExecutionTask, independent of the task document itself, so that the
// full claim/retry/completion history survives even if the task is later
// compacted.
type ExecutionTransitionAudit struct {
	TaskId    ExecutionTaskId `json:"taskId" bson:"task_id"`
	FromState TaskState       `json:"fromState" bson:"from_state"`
	ToState   TaskState       `json:"toState" bson:"to_state"`
	Attempt   int             `json:"attempt" bson:"attempt"`
	Worker    string          `json:"worker,omitempty" bson:"worker,omitempty"`
	Reason    string          `json:"reason,omitempty" bson:"reason,omitempty"`
	At        time.Time       `json:"at" bson:"at"`
}
