package execqueue

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"cpq-engine-api/internal/model"
)

// DefaultBackoffBase and DefaultMaxDelay are the default exponential backoff
// parameters: next_attempt_at = now + min(base*2^(attempt-1), maxDelay),
// plus a small deterministic jitter.
const (
	DefaultBackoffBase = 2 * time.Second
	DefaultMaxDelay    = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// NextAttemptAt computes the deterministic backoff delay for attempt,
// capped at maxDelay, with jitter derived from task_id's hash rather than
// an unbounded random source, so retries of the same task under the same
// attempt count always land at the same computed instant.
func NextAttemptAt(now time.Time, attempt int, taskId model.ExecutionTaskId, base, maxDelay time.Duration) time.Time {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	return now.Add(delay + jitterFor(taskId, base))
}

// jitterFor derives a small, deterministic jitter duration in
// [0, base/2) from the task id alone (it does not vary by attempt), so two
// colliding tasks don't always retry at the exact same instant while still
// staying fully reproducible.
func jitterFor(taskId model.ExecutionTaskId, base time.Duration) time.Duration {
	sum := sha256.Sum256([]byte(taskId))
	n := binary.BigEndian.Uint64(sum[:8])
	maxJitter := base / 2
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(n % uint64(maxJitter))
}

// PayloadHash returns the content hash used to derive a task's
// operation_key and to detect idempotency-key reuse with a conflicting
// payload.
func PayloadHash(payloadCanonical string) string {
	sum := sha256.Sum256([]byte(payloadCanonical))
	return hex.EncodeToString(sum[:])
}
