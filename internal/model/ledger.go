package model

import "time"

// LedgerAction names the kind of change a ledger entry records.
type LedgerAction string

const (
	LedgerActionCreated    LedgerAction = "Created"
	LedgerActionValidated  LedgerAction = "Validated"
	LedgerActionPriced     LedgerAction = "Priced"
	LedgerActionSubmitted  LedgerAction = "Submitted"
	LedgerActionApproved   LedgerAction = "Approved"
	LedgerActionRejected   LedgerAction = "Rejected"
	LedgerActionFinalized  LedgerAction = "Finalized"
	LedgerActionSent       LedgerAction = "Sent"
	LedgerActionExpired    LedgerAction = "Expired"
	LedgerActionCancelled  LedgerAction = "Cancelled"
	LedgerActionRevised    LedgerAction = "Revised"
)

// LedgerEntry is a single, immutable link in a quote's hash chain. Entries
// are appended, never updated or deleted. ContentHash is the SHA-256 of the
// quote's canonical snapshot at the time of this entry; EntryHash binds
// ContentHash to the entry's own metadata and the prior entry's EntryHash;
// Signature is an HMAC-SHA256 of EntryHash under the current signing key.
type LedgerEntry struct {
	ID          LedgerEntryId `json:"id" bson:"_id"`
	QuoteId     QuoteId       `json:"quoteId" bson:"quote_id"`
	Version     int           `json:"version" bson:"version"`
	Action      LedgerAction  `json:"action" bson:"action"`
	ContentHash string        `json:"contentHash" bson:"content_hash"`
	PrevHash    string        `json:"prevHash" bson:"prev_hash"`
	EntryHash   string        `json:"entryHash" bson:"entry_hash"`
	Signature   string        `json:"signature" bson:"signature"`
	KeyId       string        `json:"keyId" bson:"key_id"`
	TimestampUTC time.Time    `json:"timestampUtc" bson:"timestamp_utc"`
	Actor       string        `json:"actor" bson:"actor"`
}

// ChainVerification is the result of walking and re-verifying a quote's
// entire hash chain.
type ChainVerification struct {
	QuoteId      QuoteId `json:"quoteId"`
	Valid        bool    `json:"valid"`
	EntriesCount int     `json:"entriesCount"`
	// BrokenAtVersion is the version of the first entry found to fail
	// hash, signature, or linkage verification; zero when Valid is true.
	BrokenAtVersion int    `json:"brokenAtVersion,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// GenesisPrevHash is the PrevHash value recorded on a quote's first ledger
// entry, a fixed sentinel distinguishing "no predecessor" from a zero-value
// hash produced by a bug.
const GenesisPrevHash = "GENESIS"
