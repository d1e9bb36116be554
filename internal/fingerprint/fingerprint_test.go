package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/model"
)

func snapshotWith(productIds ...model.ProductId) model.CanonicalSnapshot {
	lines := make([]model.QuoteLine, 0, len(productIds))
	for _, pid := range productIds {
		lines = append(lines, model.QuoteLine{ProductId: pid, ConfigurationKey: "default", Quantity: 1})
	}
	return model.CanonicalSnapshot{Lines: lines}
}

func mustMoneyT(t *testing.T, s string) model.Money {
	t.Helper()
	m, err := model.MoneyFromString(s)
	require.NoError(t, err)
	return m
}

func TestComputeFingerprint_DeterministicAcrossEqualInputs(t *testing.T) {
	snap := snapshotWith("P-1", "P-2")
	total := mustMoneyT(t, "5000.00")

	fp1 := ComputeFingerprint("Q-2026-0001", 1, snap, total, 500, "enterprise")
	fp2 := ComputeFingerprint("Q-2026-0002", 1, snap, total, 500, "enterprise")

	assert.Equal(t, fp1.Hash, fp2.Hash)
}

func TestComputeFingerprint_DifferentProductsProduceDifferentHashes(t *testing.T) {
	total := mustMoneyT(t, "5000.00")
	fpA := ComputeFingerprint("Q-2026-0001", 1, snapshotWith("P-1"), total, 500, "enterprise")
	fpB := ComputeFingerprint("Q-2026-0002", 1, snapshotWith("P-9"), total, 500, "enterprise")

	assert.NotEqual(t, fpA.Hash, fpB.Hash)
}

func TestValueTierBucket_Boundaries(t *testing.T) {
	assert.Equal(t, "tier:small", ValueTierBucket(mustMoneyT(t, "999.99")))
	assert.Equal(t, "tier:medium", ValueTierBucket(mustMoneyT(t, "1000.00")))
	assert.Equal(t, "tier:large", ValueTierBucket(mustMoneyT(t, "10000.00")))
	assert.Equal(t, "tier:strategic", ValueTierBucket(mustMoneyT(t, "100000.00")))
}

func TestDiscountRangeBucket_Boundaries(t *testing.T) {
	assert.Equal(t, "discount:none", DiscountRangeBucket(0))
	assert.Equal(t, "discount:low", DiscountRangeBucket(500))
	assert.Equal(t, "discount:medium", DiscountRangeBucket(1000))
	assert.Equal(t, "discount:high", DiscountRangeBucket(2500))
}

// TestFindSimilar_OrdersByDistanceThenQuoteId reproduces the scenario suite's
// similarity search case: five candidate fingerprints at varying Hamming
// distances from a target, with a 0.80 similarity threshold (<=25 bits of
// 128) and a result limit of 4. Only the four within threshold should be
// returned, closest first, ties broken by quote_id ascending.
func TestFindSimilar_OrdersByDistanceThenQuoteId(t *testing.T) {
	target := model.ConfigurationFingerprint{QuoteId: "Q-2026-0000", Hash: [2]uint64{0, 0}}

	flipBits := func(n int) [2]uint64 {
		var h [2]uint64
		for i := 0; i < n; i++ {
			half := i / 64
			pos := uint(i % 64)
			h[half] |= 1 << pos
		}
		return h
	}

	candidates := []model.ConfigurationFingerprint{
		{QuoteId: "Q-2026-0004", Hash: flipBits(20)}, // distance 20, similarity 0.84 -> within threshold but farther
		{QuoteId: "Q-2026-0002", Hash: flipBits(5)},  // distance 5
		{QuoteId: "Q-2026-0003", Hash: flipBits(5)},  // distance 5, tie with 0002, larger quote id
		{QuoteId: "Q-2026-0001", Hash: flipBits(2)},  // distance 2, closest
		{QuoteId: "Q-2026-0005", Hash: flipBits(40)}, // distance 40, similarity 0.6875 -> excluded
	}

	matches := FindSimilar(target, candidates, DefaultSimilarityThreshold, 4)

	require.Len(t, matches, 4)
	assert.Equal(t, model.QuoteId("Q-2026-0001"), matches[0].QuoteId)
	assert.Equal(t, model.QuoteId("Q-2026-0002"), matches[1].QuoteId)
	assert.Equal(t, model.QuoteId("Q-2026-0003"), matches[2].QuoteId)
	assert.Equal(t, model.QuoteId("Q-2026-0004"), matches[3].QuoteId)
}

func TestFindSimilar_ExcludesSelf(t *testing.T) {
	target := model.ConfigurationFingerprint{QuoteId: "Q-2026-0000", Hash: [2]uint64{0, 0}}
	candidates := []model.ConfigurationFingerprint{
		{QuoteId: "Q-2026-0000", Hash: [2]uint64{0, 0}},
	}

	matches := FindSimilar(target, candidates, DefaultSimilarityThreshold, 10)
	assert.Empty(t, matches)
}

func TestFindSimilar_RespectsLimit(t *testing.T) {
	target := model.ConfigurationFingerprint{QuoteId: "Q-2026-0000", Hash: [2]uint64{0, 0}}
	var candidates []model.ConfigurationFingerprint
	for i := 0; i < 5; i++ {
		candidates = append(candidates, model.ConfigurationFingerprint{
			QuoteId: model.QuoteId("Q-2026-000" + string(rune('1'+i))),
			Hash:    [2]uint64{0, 0},
		})
	}

	matches := FindSimilar(target, candidates, DefaultSimilarityThreshold, 2)
	assert.Len(t, matches, 2)
}

func TestSimilarity_IdenticalFingerprintsAreFullySimilar(t *testing.T) {
	h := [2]uint64{0xDEADBEEF, 0xCAFEBABE}
	assert.Equal(t, 1.0, Similarity(h, h))
}
