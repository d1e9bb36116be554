package pricingengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

func mustMoney(t *testing.T, s string) model.Money {
	t.Helper()
	m, err := model.MoneyFromString(s)
	require.NoError(t, err)
	return m
}

func basicBook(t *testing.T) model.PriceBook {
	return model.PriceBook{
		ID:              "book-a",
		CustomerSegment: "enterprise",
		Region:          "na",
		Currency:        "USD",
		Entries: []model.PriceBookEntry{
			{ProductId: "P1", ListPrice: mustMoney(t, "100.00")},
			{ProductId: "P2", ListPrice: mustMoney(t, "50.00")},
		},
	}
}

func baseInput(t *testing.T) PriceInput {
	return PriceInput{
		Snapshot: model.CanonicalSnapshot{
			QuoteId: "Q-2026-0001",
			Lines: []model.QuoteLine{
				{ID: "L1", ProductId: "P1", ConfigurationKey: "default", Quantity: 2},
			},
		},
		Currency:        "USD",
		CustomerSegment: "enterprise",
		Region:          "na",
		PriceBooks:      []model.PriceBook{basicBook(t)},
	}
}

func TestPrice_SimpleListPriceNoDiscounts(t *testing.T) {
	result, err := NewDefaultEngine().Price(baseInput(t))
	require.NoError(t, err)
	assert.Equal(t, mustMoney(t, "200.00"), result.Subtotal)
	assert.Equal(t, mustMoney(t, "200.00"), result.Total)
	assert.True(t, result.DiscountTotal.IsZero())
}

func TestPrice_VolumeDiscountTierApplies(t *testing.T) {
	input := baseInput(t)
	input.VolumeTiers = map[model.ProductId][]model.VolumeDiscountTier{
		"P1": {{MinQuantity: 1, DiscountBps: 0}, {MinQuantity: 2, DiscountBps: 1000}},
	}
	result, err := NewDefaultEngine().Price(input)
	require.NoError(t, err)
	// unit price 100 - 10% = 90, qty 2 => 180
	assert.Equal(t, mustMoney(t, "180.00"), result.Subtotal)
}

func TestPrice_BundleDiscountOnlyWhenAllMembersPresent(t *testing.T) {
	input := baseInput(t)
	input.Snapshot.Lines = append(input.Snapshot.Lines, model.QuoteLine{
		ID: "L2", ProductId: "P2", ConfigurationKey: "default", Quantity: 1,
	})
	input.Bundles = []model.BundleDefinition{
		{ID: "bundle-1", MemberIds: []model.ProductId{"P1", "P2"}, DiscountBps: 500},
	}
	result, err := NewDefaultEngine().Price(input)
	require.NoError(t, err)
	// P1: 100*0.95=95 * qty2 = 190; P2: 50*0.95=47.5 -> rounds to 47.50 * qty1 = 47.50
	assert.Equal(t, mustMoney(t, "237.50"), result.Subtotal)
}

func TestPrice_BundleDiscountSkippedWhenMemberMissing(t *testing.T) {
	input := baseInput(t)
	input.Bundles = []model.BundleDefinition{
		{ID: "bundle-1", MemberIds: []model.ProductId{"P1", "P2"}, DiscountBps: 500},
	}
	result, err := NewDefaultEngine().Price(input)
	require.NoError(t, err)
	assert.Equal(t, mustMoney(t, "200.00"), result.Subtotal)
}

func TestPrice_RequestedDiscountCappedByPolicyHint(t *testing.T) {
	input := baseInput(t)
	input.DiscountRequest = &model.DiscountRequest{RequestedBps: 2000}
	cap := model.Bps(1000)
	input.PolicyCapBps = &cap
	result, err := NewDefaultEngine().Price(input)
	require.NoError(t, err)
	assert.Equal(t, model.Bps(1000), result.DiscountBps)
	assert.True(t, result.ApprovalRequiredHint)
	assert.Equal(t, mustMoney(t, "180.00"), result.Subtotal)
}

func TestPrice_MissingPriceBook_ReturnsNotFoundDomainError(t *testing.T) {
	input := baseInput(t)
	input.Region = "emea"
	_, err := NewDefaultEngine().Price(input)
	require.Error(t, err)
	assert.True(t, apperr.IsDomainCode(err, apperr.CodeNotFound))
}

func TestPrice_MissingProductInBook_ReturnsNotFoundDomainError(t *testing.T) {
	input := baseInput(t)
	input.Snapshot.Lines = append(input.Snapshot.Lines, model.QuoteLine{
		ID: "L3", ProductId: "P99", ConfigurationKey: "default", Quantity: 1,
	})
	_, err := NewDefaultEngine().Price(input)
	require.Error(t, err)
	assert.True(t, apperr.IsDomainCode(err, apperr.CodeNotFound))
}

func TestPrice_TaxEngineInvoked(t *testing.T) {
	input := baseInput(t)
	input.TaxEngine = flatRateTax{rateBps: 500}
	result, err := NewDefaultEngine().Price(input)
	require.NoError(t, err)
	assert.Equal(t, mustMoney(t, "10.00"), result.TaxTotal)
	assert.Equal(t, mustMoney(t, "210.00"), result.Total)
}

type flatRateTax struct{ rateBps model.Bps }

func (f flatRateTax) ComputeTax(subtotal model.Money, currency string, customerId model.CustomerId) (model.Money, error) {
	return subtotal.MulBps(f.rateBps), nil
}
