package ledger

import (
	"context"
	"errors"

	"cpq-engine-api/internal/model"
)

// ErrNoSuchEntry is returned by Store.FetchLatest when a quote has no
// ledger entries at all.
var ErrNoSuchEntry = errors.New("ledger: no such entry")

// Store is the persistence port the ledger appends to and reads from.
// InsertIfVersionAbsent must fail with ErrVersionConflict (not just any
// error) when an entry already exists at entry.Version, so Append can tell
// a genuine optimistic conflict apart from any other storage failure.
type Store interface {
	InsertIfVersionAbsent(ctx context.Context, entry model.LedgerEntry) error
	FetchByVersion(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error)
	FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error)
	FetchAllOrdered(ctx context.Context, quoteId model.QuoteId) ([]model.LedgerEntry, error)
}

// ErrVersionConflict is returned by Store implementations when an insert
// targets a (quote_id, version) pair that already exists.
var ErrVersionConflict = errors.New("ledger: version conflict")
