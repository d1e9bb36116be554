// Package ledger implements the append-only, hash-chained audit trail for
// quote state changes. Every entry binds its content hash to the previous
// entry's hash and carries an HMAC signature, so that any external mutation
// of a persisted entry is detectable by re-walking the chain.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

// Ledger is the capability this package implements.
type Ledger interface {
	Append(ctx context.Context, quoteId model.QuoteId, action model.LedgerAction, snapshot model.CanonicalSnapshot, actor string) (model.LedgerEntry, error)
	Fetch(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error)
	FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error)
	VerifyChain(ctx context.Context, quoteId model.QuoteId) (model.ChainVerification, error)
}

// DefaultLedger is the production ledger, backed by a Store and signing
// entries with a LedgerSigner.
type DefaultLedger struct {
	store  Store
	signer *LedgerSigner
	clock  func() time.Time
	// maxAppendAttempts bounds the optimistic-retry loop in Append before
	// a repeated conflict is surfaced as OptimisticConflict.
	maxAppendAttempts uint64
}

// NewDefaultLedger constructs the production ledger.
func NewDefaultLedger(store Store, signer *LedgerSigner) *DefaultLedger {
	return &DefaultLedger{
		store:             store,
		signer:            signer,
		clock:             time.Now,
		maxAppendAttempts: 5,
	}
}

// Append computes the content hash of snapshot, looks up the current chain
// tip, and inserts the next entry. Under a race with another appender, the
// insert fails with ErrVersionConflict; Append re-reads the tip and retries
// with a fresh prev_hash up to maxAppendAttempts times before surfacing
// OptimisticConflict.
func (l *DefaultLedger) Append(ctx context.Context, quoteId model.QuoteId, action model.LedgerAction, snapshot model.CanonicalSnapshot, actor string) (model.LedgerEntry, error) {
	var result model.LedgerEntry

	contentHash, err := ContentHash(snapshot)
	if err != nil {
		return model.LedgerEntry{}, apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to compute content hash", "", err)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), l.maxAppendAttempts-1)
	attempt := 0
	op := func() error {
		attempt++
		version, prevHash, err := l.nextVersionAndPrevHash(ctx, quoteId)
		if err != nil {
			return backoff.Permanent(err)
		}

		now := l.clock().UTC()
		entryHash := EntryHash(version, action, contentHash, prevHash, now, actor)
		signature, keyId, err := l.signer.Sign(entryHash)
		if err != nil {
			return backoff.Permanent(apperr.NewApplicationError(apperr.CodeConfiguration, "ledger", "failed to sign entry", "", err))
		}

		entry := model.LedgerEntry{
			ID:           model.LedgerEntryId(fmt.Sprintf("%s-v%d", quoteId, version)),
			QuoteId:      quoteId,
			Version:      version,
			Action:       action,
			ContentHash:  contentHash,
			PrevHash:     prevHash,
			EntryHash:    entryHash,
			Signature:    signature,
			KeyId:        keyId,
			TimestampUTC: now,
			Actor:        actor,
		}

		if err := l.store.InsertIfVersionAbsent(ctx, entry); err != nil {
			if err == ErrVersionConflict {
				return err // retryable
			}
			return backoff.Permanent(apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to append entry", "", err))
		}

		result = entry
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if err == ErrVersionConflict {
			return model.LedgerEntry{}, apperr.NewDomainError(apperr.CodeOptimisticConflict,
				fmt.Sprintf("ledger append for quote %s conflicted after %d attempts", quoteId, attempt),
				map[string]interface{}{"quoteId": string(quoteId), "attempts": attempt})
		}
		return model.LedgerEntry{}, err
	}

	return result, nil
}

func (l *DefaultLedger) nextVersionAndPrevHash(ctx context.Context, quoteId model.QuoteId) (int, string, error) {
	latest, err := l.store.FetchLatest(ctx, quoteId)
	if err != nil {
		if err == ErrNoSuchEntry {
			return 1, model.GenesisPrevHash, nil
		}
		return 0, "", apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to fetch chain tip", "", err)
	}
	return latest.Version + 1, latest.EntryHash, nil
}

// Fetch returns the entry at quoteId/version, or nil if none exists.
func (l *DefaultLedger) Fetch(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error) {
	entry, err := l.store.FetchByVersion(ctx, quoteId, version)
	if err != nil {
		return nil, apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to fetch entry", "", err)
	}
	return entry, nil
}

// FetchLatest returns the chain tip for quoteId, or nil if the quote has no
// entries.
func (l *DefaultLedger) FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error) {
	entry, err := l.store.FetchLatest(ctx, quoteId)
	if err != nil {
		if err == ErrNoSuchEntry {
			return nil, nil
		}
		return nil, apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to fetch latest entry", "", err)
	}
	return entry, nil
}

// VerifyChain walks quoteId's entries in order, recomputing each entry
// hash, verifying its signature, and checking prev_hash linkage. It
// returns the version of the first entry that fails any of these checks.
func (l *DefaultLedger) VerifyChain(ctx context.Context, quoteId model.QuoteId) (model.ChainVerification, error) {
	entries, err := l.store.FetchAllOrdered(ctx, quoteId)
	if err != nil {
		return model.ChainVerification{}, apperr.NewApplicationError(apperr.CodePersistence, "ledger", "failed to fetch chain", "", err)
	}

	expectedPrevHash := model.GenesisPrevHash
	expectedVersion := 1
	for _, entry := range entries {
		if entry.Version != expectedVersion {
			return brokenAt(quoteId, entry.Version, len(entries), "version is not monotonic"), nil
		}
		if entry.PrevHash != expectedPrevHash {
			return brokenAt(quoteId, entry.Version, len(entries), "prev_hash does not link to prior entry"), nil
		}
		recomputed := EntryHash(entry.Version, entry.Action, entry.ContentHash, entry.PrevHash, entry.TimestampUTC, entry.Actor)
		if recomputed != entry.EntryHash {
			return brokenAt(quoteId, entry.Version, len(entries), "entry hash does not match recomputed hash"), nil
		}
		if !l.signer.Verify(entry.EntryHash, entry.Signature, entry.KeyId) {
			return brokenAt(quoteId, entry.Version, len(entries), "signature verification failed"), nil
		}
		expectedPrevHash = entry.EntryHash
		expectedVersion++
	}

	return model.ChainVerification{
		QuoteId:      quoteId,
		Valid:        true,
		EntriesCount: len(entries),
	}, nil
}

func brokenAt(quoteId model.QuoteId, version, count int, reason string) model.ChainVerification {
	return model.ChainVerification{
		QuoteId:         quoteId,
		Valid:           false,
		EntriesCount:    count,
		BrokenAtVersion: version,
		Reason:          reason,
	}
}
