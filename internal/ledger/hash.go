package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cpq-engine-api/internal/canonicaljson"
	"cpq-engine-api/internal/model"
)

// fieldSeparator delimits the fields hashed into an entry hash. A unit
// separator is used rather than a printable character so that no legal
// field value can ever introduce ambiguity in the hashed byte sequence.
const fieldSeparator = "\x1f"

// ContentHash computes H(canonical_quote_state) for a quote snapshot.
func ContentHash(snapshot model.CanonicalSnapshot) (string, error) {
	canonical, err := canonicaljson.Canonicalize(snapshot)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// EntryHash computes H(version‖action‖content_hash‖prev_hash‖timestamp_utc‖actor).
func EntryHash(version int, action model.LedgerAction, contentHash, prevHash string, timestampUTC time.Time, actor string) string {
	parts := fmt.Sprintf(
		"%d%s%s%s%s%s%s%s%s%s%s",
		version, fieldSeparator,
		string(action), fieldSeparator,
		contentHash, fieldSeparator,
		prevHash, fieldSeparator,
		timestampUTC.UTC().Format(time.RFC3339Nano), fieldSeparator,
		actor,
	)
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}
