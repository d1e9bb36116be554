// Package quotestore persists the Quote aggregate: its current head (for
// fast reads) and an immutable per-version archive (so the canonical
// snapshot that produced a given ledger entry's content hash can always be
// recovered, even after the quote has moved on to later versions).
package quotestore

import (
	"context"
	"errors"

	"cpq-engine-api/internal/model"
)

// ErrVersionConflict is returned by Save when expectedVersion no longer
// matches the stored head version; the caller lost a race and must re-read
// before retrying.
var ErrVersionConflict = errors.New("quotestore: version conflict")

// ErrNotFound is returned when no quote (or no quote at the requested
// version) exists.
var ErrNotFound = errors.New("quotestore: not found")

// Store is the persistence port for the Quote aggregate.
type Store interface {
	// Save archives quote at quote.Version and advances the head, only if
	// the current head version equals expectedVersion (0 for a brand new
	// quote). Returns ErrVersionConflict on a stale expectedVersion.
	Save(ctx context.Context, quote model.Quote, expectedVersion int) error
	// Head returns the current version of quoteId.
	Head(ctx context.Context, quoteId model.QuoteId) (model.Quote, error)
	// AtVersion returns the archived snapshot of quoteId at version.
	AtVersion(ctx context.Context, quoteId model.QuoteId, version int) (model.Quote, error)
}
