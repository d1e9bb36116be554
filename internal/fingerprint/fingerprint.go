// Package fingerprint computes a 128-bit weighted SimHash over a quote's
// canonical configuration and supports similarity search over it. Features
// are canonicalized (sorted) before hashing so that two logically
// equivalent configurations always produce the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"cpq-engine-api/internal/model"
)

// feature is one weighted token extracted from a quote snapshot.
type feature struct {
	token  string
	weight int
}

// defaultWeights assigns fixed per-category weights, matching the
// importance each feature category has in determining whether two
// configurations are meaningfully similar.
const (
	weightProductId      = 4
	weightValueTier      = 3
	weightDiscountBucket = 2
	weightSegment        = 2
	weightAttribute      = 1
)

// ValueTierBucket buckets a deal's total into a coarse value tier used as a
// SimHash feature. Boundaries are fixed constants so fingerprints are
// stable across releases.
func ValueTierBucket(total model.Money) string {
	switch {
	case total.Cmp(mustMoney("1000.00")) < 0:
		return "tier:small"
	case total.Cmp(mustMoney("10000.00")) < 0:
		return "tier:medium"
	case total.Cmp(mustMoney("100000.00")) < 0:
		return "tier:large"
	default:
		return "tier:strategic"
	}
}

// DiscountRangeBucket buckets a discount rate in bps into a coarse range
// used as a SimHash feature.
func DiscountRangeBucket(discountBps model.Bps) string {
	switch {
	case discountBps <= 0:
		return "discount:none"
	case discountBps < 1000:
		return "discount:low"
	case discountBps < 2500:
		return "discount:medium"
	default:
		return "discount:high"
	}
}

func mustMoney(s string) model.Money {
	m, err := model.MoneyFromString(s)
	if err != nil {
		panic(fmt.Sprintf("fingerprint: invalid constant %q: %v", s, err))
	}
	return m
}

// ExtractFeatures builds the canonical, sorted feature set for a quote
// snapshot, a total, a discount rate, and a customer segment.
func ExtractFeatures(snapshot model.CanonicalSnapshot, total model.Money, discountBps model.Bps, customerSegment string) []feature {
	var features []feature

	seenProducts := make(map[model.ProductId]struct{})
	for _, line := range snapshot.Lines {
		if _, ok := seenProducts[line.ProductId]; !ok {
			seenProducts[line.ProductId] = struct{}{}
			features = append(features, feature{token: "product:" + string(line.ProductId), weight: weightProductId})
		}
		attrKeys := make([]string, 0, len(line.Attributes))
		for k := range line.Attributes {
			attrKeys = append(attrKeys, k)
		}
		sort.Strings(attrKeys)
		for _, k := range attrKeys {
			features = append(features, feature{
				token:  fmt.Sprintf("attr:%s=%s", k, line.Attributes[k]),
				weight: weightAttribute,
			})
		}
	}

	features = append(features,
		feature{token: ValueTierBucket(total), weight: weightValueTier},
		feature{token: DiscountRangeBucket(discountBps), weight: weightDiscountBucket},
		feature{token: "segment:" + customerSegment, weight: weightSegment},
	)

	sort.Slice(features, func(i, j int) bool { return features[i].token < features[j].token })
	return features
}

// Compute builds a 128-bit weighted SimHash from features. For each of the
// 128 bit positions, every feature's hash contributes +weight or -weight to
// that position's running score depending on whether the feature's hash
// has that bit set; bits with a positive final score are set to 1.
func Compute(features []feature) [2]uint64 {
	var scores [128]int64

	for _, f := range features {
		sum := sha256.Sum256([]byte(f.token))
		for bit := 0; bit < 128; bit++ {
			byteIdx := bit / 8
			bitIdx := uint(bit % 8)
			if sum[byteIdx]&(1<<bitIdx) != 0 {
				scores[bit] += int64(f.weight)
			} else {
				scores[bit] -= int64(f.weight)
			}
		}
	}

	var out [2]uint64
	for bit := 0; bit < 128; bit++ {
		if scores[bit] > 0 {
			half := bit / 64
			pos := uint(bit % 64)
			out[half] |= 1 << pos
		}
	}
	return out
}

// ComputeFingerprint is the end-to-end entry point: extract features from a
// snapshot and its derived totals, then hash them.
func ComputeFingerprint(quoteId model.QuoteId, version int, snapshot model.CanonicalSnapshot, total model.Money, discountBps model.Bps, customerSegment string) model.ConfigurationFingerprint {
	features := ExtractFeatures(snapshot, total, discountBps, customerSegment)
	hash := Compute(features)
	return model.ConfigurationFingerprint{QuoteId: quoteId, Version: version, Hash: hash, FeatureCount: len(features)}
}

// DefaultSimilarityThreshold is the default similarity cutoff (0.80),
// equivalent to a Hamming distance of 25 or fewer out of 128 bits.
const DefaultSimilarityThreshold = 0.80

// Similarity computes 1 - hamming(a,b)/128.
func Similarity(a, b [2]uint64) float64 {
	return 1.0 - float64(model.HammingDistance128(a, b))/float64(model.FingerprintBits)
}

// FindSimilar scans candidates and returns those within threshold of
// target, ordered by similarity descending, ties broken by quote_id
// ascending. The result is truncated to limit.
func FindSimilar(target model.ConfigurationFingerprint, candidates []model.ConfigurationFingerprint, threshold float64, limit int) []model.SimilarQuoteMatch {
	var matches []model.SimilarQuoteMatch
	for _, c := range candidates {
		if c.QuoteId == target.QuoteId {
			continue
		}
		distance := model.HammingDistance128(target.Hash, c.Hash)
		if 1.0-float64(distance)/float64(model.FingerprintBits) < threshold {
			continue
		}
		matches = append(matches, model.SimilarQuoteMatch{QuoteId: c.QuoteId, HammingDistance: distance})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].HammingDistance != matches[j].HammingDistance {
			return matches[i].HammingDistance < matches[j].HammingDistance
		}
		return matches[i].QuoteId < matches[j].QuoteId
	})

	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
