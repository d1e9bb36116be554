// Package snapshotstore persists immutable pricing snapshots tied to
// ledger entries. A snapshot is never updated once written; re-pricing
// under a new policy or rule set version always produces a new snapshot
// tied to a new ledger entry, never an overwrite of history.
package snapshotstore

import (
	"context"
	"fmt"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/ledger"
	"cpq-engine-api/internal/model"
)

// Store is the persistence port snapshotstore reads from and writes to.
type Store interface {
	Insert(ctx context.Context, snapshot model.PricingSnapshot) error
	Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PricingSnapshot, error)
	LatestFor(ctx context.Context, quoteId model.QuoteId) (*model.PricingSnapshot, error)
}

// Rebuilder re-runs pricing to reconstruct a snapshot that was never
// written through, so a ledger entry that exists without a matching
// snapshot row can still be served.
type Rebuilder interface {
	Rebuild(ctx context.Context, quoteId model.QuoteId, version int) (model.PricingResult, error)
}

// SnapshotStore is the production implementation of the record/get
// contract.
type SnapshotStore struct {
	store         Store
	ledger        ledger.Ledger
	rebuilder     Rebuilder
	versionPolicy model.PolicyVersionPolicy
}

// NewSnapshotStore constructs a SnapshotStore. versionPolicy governs what
// happens when a snapshot is recorded against a rule set or policy version
// older than the one already on file for the quote.
func NewSnapshotStore(store Store, ledg ledger.Ledger, rebuilder Rebuilder, versionPolicy model.PolicyVersionPolicy) *SnapshotStore {
	return &SnapshotStore{store: store, ledger: ledg, rebuilder: rebuilder, versionPolicy: versionPolicy}
}

// Record writes a new, immutable snapshot tied to a ledger entry. It
// refuses to overwrite an existing (quote_id, version) row, and applies
// versionPolicy when ruleSetVersion or policyVersion is older than the
// version already on file for this quote.
func (s *SnapshotStore) Record(ctx context.Context, quoteId model.QuoteId, version int, ledgerEntryId model.LedgerEntryId, ledgerContentHash string, result model.PricingResult, ruleSetVersion, policyVersion string, actor string) (model.PricingSnapshot, error) {
	existing, err := s.store.Get(ctx, quoteId, version)
	if err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to check for existing snapshot", "", err)
	}
	if existing != nil {
		return model.PricingSnapshot{}, &model.SnapshotError{
			Code: model.SnapshotErrorImmutableConflict, QuoteId: quoteId,
			Message: fmt.Sprintf("a snapshot already exists for version %d", version),
		}
	}

	stale := false
	latest, err := s.store.LatestFor(ctx, quoteId)
	if err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to fetch latest snapshot", "", err)
	}
	if latest != nil && (ruleSetVersion < latest.RuleSetVersion || policyVersion < latest.PolicyVersion) {
		if s.versionPolicy == model.PolicyVersionPolicyReject {
			return model.PricingSnapshot{}, &model.SnapshotError{
				Code: model.SnapshotErrorStaleVersionRejected, QuoteId: quoteId,
				Message: fmt.Sprintf("rule set version %q / policy version %q is older than %q / %q already on file", ruleSetVersion, policyVersion, latest.RuleSetVersion, latest.PolicyVersion),
			}
		}
		stale = true
	}

	snapshot := model.PricingSnapshot{
		ID:                fmt.Sprintf("%s-v%d", quoteId, version),
		QuoteId:           quoteId,
		QuoteVersion:      version,
		RuleSetVersion:    ruleSetVersion,
		PolicyVersion:     policyVersion,
		PriceBookId:       result.PriceBookId,
		Result:            result,
		LedgerEntryId:     ledgerEntryId,
		LedgerContentHash: ledgerContentHash,
		StaleVersion:      stale,
	}

	if err := s.store.Insert(ctx, snapshot); err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to insert snapshot", "", err)
	}

	return snapshot, nil
}

// Get retrieves the snapshot for (quoteId, version), verifying its
// recorded ledger content hash against the live ledger entry for that
// version. A mismatch is a hard failure, never silently recomputed. If no
// snapshot row exists but a ledger entry does, the snapshot is rebuilt and
// written through.
func (s *SnapshotStore) Get(ctx context.Context, quoteId model.QuoteId, version int) (model.PricingSnapshot, error) {
	ledgerEntry, err := s.ledger.Fetch(ctx, quoteId, version)
	if err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to fetch ledger entry", "", err)
	}
	if ledgerEntry == nil {
		latest, err := s.ledger.FetchLatest(ctx, quoteId)
		if err != nil {
			return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to fetch ledger tip", "", err)
		}
		if latest == nil {
			return model.PricingSnapshot{}, &model.SnapshotError{Code: model.SnapshotErrorMissingQuote, QuoteId: quoteId, Message: "quote has no ledger entries"}
		}
		return model.PricingSnapshot{}, &model.SnapshotError{
			Code: model.SnapshotErrorVersionMismatch, QuoteId: quoteId,
			Message: fmt.Sprintf("version %d is not present in the ledger (latest is %d)", version, latest.Version),
		}
	}

	existing, err := s.store.Get(ctx, quoteId, version)
	if err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to fetch snapshot", "", err)
	}

	if existing != nil {
		if existing.LedgerContentHash != ledgerEntry.ContentHash {
			return model.PricingSnapshot{}, &model.SnapshotError{
				Code: model.SnapshotErrorLedgerMismatch, QuoteId: quoteId,
				Message: fmt.Sprintf("snapshot's recorded content hash does not match the ledger entry for version %d", version),
			}
		}
		return *existing, nil
	}

	if s.rebuilder == nil {
		return model.PricingSnapshot{}, &model.SnapshotError{
			Code: model.SnapshotErrorEvidenceGatheringFailed, QuoteId: quoteId,
			Message: "no snapshot on file and no rebuilder configured",
		}
	}

	result, err := s.rebuilder.Rebuild(ctx, quoteId, version)
	if err != nil {
		return model.PricingSnapshot{}, &model.SnapshotError{
			Code: model.SnapshotErrorEvidenceGatheringFailed, QuoteId: quoteId,
			Message: fmt.Sprintf("failed to rebuild snapshot: %v", err),
		}
	}

	rebuilt := model.PricingSnapshot{
		ID:                fmt.Sprintf("%s-v%d", quoteId, version),
		QuoteId:           quoteId,
		QuoteVersion:      version,
		Result:            result,
		LedgerEntryId:     ledgerEntry.ID,
		LedgerContentHash: ledgerEntry.ContentHash,
	}
	if err := s.store.Insert(ctx, rebuilt); err != nil {
		return model.PricingSnapshot{}, apperr.NewApplicationError(apperr.CodePersistence, "snapshot-store", "failed to write rebuilt snapshot", "", err)
	}
	return rebuilt, nil
}
