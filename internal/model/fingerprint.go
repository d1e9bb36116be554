package model

import "time"

// FingerprintBits is the width of the SimHash fingerprint used to locate
// structurally similar configurations.
const FingerprintBits = 128

// ConfigurationFingerprint is a weighted SimHash over a quote's canonical
// lines, used to find similar past configurations without an exact-match
// index. It is owned exclusively by its quote: recomputing a quote's
// fingerprint after a revision replaces the prior one rather than adding a
// second row, so (quote_id) is unique.
type ConfigurationFingerprint struct {
	QuoteId      QuoteId   `json:"quoteId" bson:"quote_id"`
	Version      int       `json:"version" bson:"version"`
	Hash         [2]uint64 `json:"hash" bson:"hash"`
	FeatureCount int       `json:"featureCount" bson:"feature_count"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// SimilarQuoteMatch is one result of a similarity search: the matched
// quote's id and the Hamming distance between fingerprints (0 = identical,
// FingerprintBits = maximally dissimilar).
type SimilarQuoteMatch struct {
	QuoteId        QuoteId `json:"quoteId"`
	HammingDistance int    `json:"hammingDistance"`
}

// HammingDistance128 counts the differing bits between two 128-bit
// fingerprints represented as two uint64 halves.
func HammingDistance128(a, b [2]uint64) int {
	return popcount64(a[0]^b[0]) + popcount64(a[1]^b[1])
}

func popcount64(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
