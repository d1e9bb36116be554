package model

import "time"

// PolicyVersionPolicy governs how the snapshot store reacts when a quote is
// re-priced under a policy or rule set version older than one it has
// already recorded a snapshot against.
type PolicyVersionPolicy string

const (
	// PolicyVersionPolicyReject refuses to record a snapshot computed
	// against a stale policy or rule set version.
	PolicyVersionPolicyReject PolicyVersionPolicy = "reject"
	// PolicyVersionPolicyAllowWithWarning records the snapshot anyway and
	// annotates it as computed against a stale version.
	PolicyVersionPolicyAllowWithWarning PolicyVersionPolicy = "allow_with_warning"
)

// PricingSnapshot is the immutable record of one pricing engine invocation
// for a quote at a specific version. Snapshots are never updated in place;
// a re-price produces a new snapshot tied to the new quote version.
type PricingSnapshot struct {
	ID                string        `json:"id" bson:"_id"`
	QuoteId           QuoteId       `json:"quoteId" bson:"quote_id"`
	QuoteVersion      int           `json:"quoteVersion" bson:"quote_version"`
	RuleSetVersion    string        `json:"ruleSetVersion" bson:"rule_set_version"`
	PolicyVersion     string        `json:"policyVersion" bson:"policy_version"`
	PriceBookId       string        `json:"priceBookId" bson:"price_book_id"`
	Result            PricingResult `json:"result" bson:"result"`
	LedgerEntryId     LedgerEntryId `json:"ledgerEntryId" bson:"ledger_entry_id"`
	LedgerContentHash string        `json:"ledgerContentHash" bson:"ledger_content_hash"`
	StaleVersion      bool          `json:"staleVersion,omitempty" bson:"stale_version,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" bson:"created_at"`
}

// SnapshotErrorCode enumerates the ways recording or fetching a snapshot
// can fail.
type SnapshotErrorCode string

const (
	// SnapshotErrorLedgerMismatch means the snapshot's recorded ledger
	// content hash does not match the current ledger entry's content
	// hash for that version; this is a hard failure, never silently
	// tolerated.
	SnapshotErrorLedgerMismatch SnapshotErrorCode = "ledger_mismatch"
	// SnapshotErrorStaleVersionRejected means the snapshot was computed
	// against an older rule set or policy version than one already on
	// file, and PolicyVersionPolicy is set to reject.
	SnapshotErrorStaleVersionRejected SnapshotErrorCode = "stale_version_rejected"
	// SnapshotErrorImmutableConflict means a snapshot already exists for
	// this exact (quote_id, quote_version) pair.
	SnapshotErrorImmutableConflict SnapshotErrorCode = "immutable_conflict"
	// SnapshotErrorMissingQuote means the quote has no ledger entries at
	// all.
	SnapshotErrorMissingQuote SnapshotErrorCode = "missing_quote"
	// SnapshotErrorVersionMismatch means the requested version is not
	// present in the quote's ledger.
	SnapshotErrorVersionMismatch SnapshotErrorCode = "version_mismatch"
	// SnapshotErrorEvidenceGatheringFailed means no snapshot exists and
	// rebuilding one by re-running pricing failed.
	SnapshotErrorEvidenceGatheringFailed SnapshotErrorCode = "evidence_gathering_failed"
)

// SnapshotError wraps a SnapshotErrorCode with context for the caller.
type SnapshotError struct {
	Code    SnapshotErrorCode
	QuoteId QuoteId
	Message string
}

func (e *SnapshotError) Error() string {
	return string(e.Code) + ": " + e.Message
}
