// Package fingerprintstore persists each quote's current configuration
// fingerprint, exclusively owned by its quote: revising a quote replaces
// the fingerprint on file rather than adding a second row.
package fingerprintstore

import (
	"context"

	"cpq-engine-api/internal/model"
)

// Store is the persistence port for configuration fingerprints.
type Store interface {
	// Upsert replaces the fingerprint on file for record.QuoteId.
	Upsert(ctx context.Context, record model.ConfigurationFingerprint) error
	// Get returns the fingerprint on file for quoteId, or (nil, nil) if
	// none has been recorded.
	Get(ctx context.Context, quoteId model.QuoteId) (*model.ConfigurationFingerprint, error)
	// All returns every fingerprint on file, the candidate set a
	// similarity search scans.
	All(ctx context.Context) ([]model.ConfigurationFingerprint, error)
}
