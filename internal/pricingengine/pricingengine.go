// Package pricingengine implements the pure pricing pipeline: from a
// quote's canonical snapshot, applicable price books, and an optional
// requested discount, it produces a PricingResult carrying the final
// totals and a full, ordered, replayable trace. All arithmetic uses
// fixed-point decimals with banker's rounding at every scale-reducing
// step; summation always follows the quote's canonical line order.
package pricingengine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/model"
)

// Engine is the capability this package implements.
type Engine interface {
	Price(input PriceInput) (model.PricingResult, error)
}

// PriceInput bundles everything the pricing pipeline needs. PolicyCapBps,
// when non-nil, is the policy engine's visible discount cap hint; the
// pricing engine reports any capping it applies in the trace, but the
// policy engine always has final say over approval.
type PriceInput struct {
	Snapshot        model.CanonicalSnapshot
	Currency        string
	CustomerSegment string
	Region          string
	PriceBooks      []model.PriceBook
	VolumeTiers     map[model.ProductId][]model.VolumeDiscountTier
	Bundles         []model.BundleDefinition
	DiscountRequest *model.DiscountRequest
	PolicyCapBps    *model.Bps
	TaxEngine       model.TaxEngine
}

// DefaultEngine is the production pricing engine.
type DefaultEngine struct{}

// NewDefaultEngine constructs the production pricing engine.
func NewDefaultEngine() *DefaultEngine { return &DefaultEngine{} }

func (e *DefaultEngine) Price(input PriceInput) (model.PricingResult, error) {
	var trace []model.PricingStep

	book, err := selectPriceBook(input.PriceBooks, input.CustomerSegment, input.Region, input.Currency)
	if err != nil {
		return model.PricingResult{}, err
	}

	lines := input.Snapshot.Lines // already canonical order per contract
	listPrices := make(map[model.QuoteLineId]model.Money, len(lines))
	for _, line := range lines {
		entry, ok := findPriceBookEntry(book, line.ProductId)
		if !ok {
			return model.PricingResult{}, apperr.NewDomainError(apperr.CodeNotFound,
				fmt.Sprintf("no list price for product %s in price book %s", line.ProductId, book.ID),
				map[string]interface{}{"productId": string(line.ProductId), "priceBookId": book.ID})
		}
		listPrices[line.ID] = entry.ListPrice
		trace = append(trace, model.PricingStep{
			Step:        model.PricingStepListPrice,
			LineId:      line.ID,
			Description: fmt.Sprintf("resolved list price from book %s", book.ID),
			Amount:      entry.ListPrice,
		})
	}

	runningUnitPrice := make(map[model.QuoteLineId]model.Money, len(lines))
	for _, line := range lines {
		price := listPrices[line.ID]
		if tiers, ok := input.VolumeTiers[line.ProductId]; ok {
			rate := applicableVolumeTier(tiers, line.Quantity)
			if rate != 0 {
				price = price.Sub(price.MulBps(rate))
			}
		}
		runningUnitPrice[line.ID] = price
		trace = append(trace, model.PricingStep{
			Step:        model.PricingStepVolumeDiscount,
			LineId:      line.ID,
			Description: "applied volume discount tier",
			Amount:      price,
		})
	}

	// Line-level pricing formulas (v1: identity; the step exists so
	// deterministic per-line adjustments have a defined slot in the trace
	// without requiring every caller to populate one).
	for _, line := range lines {
		trace = append(trace, model.PricingStep{
			Step:        model.PricingStepLineDiscount,
			LineId:      line.ID,
			Description: "no line-level formula configured",
			Amount:      runningUnitPrice[line.ID],
		})
	}

	presentProducts := make(map[model.ProductId]struct{}, len(lines))
	for _, line := range lines {
		presentProducts[line.ProductId] = struct{}{}
	}
	for _, bundle := range sortedBundles(input.Bundles) {
		if !allMembersPresent(bundle, presentProducts) {
			continue
		}
		for _, line := range lines {
			if !productInBundle(bundle, line.ProductId) {
				continue
			}
			price := runningUnitPrice[line.ID]
			adjusted := price.Sub(price.MulBps(bundle.DiscountBps))
			runningUnitPrice[line.ID] = adjusted
			trace = append(trace, model.PricingStep{
				Step:        model.PricingStepBundleAdjust,
				LineId:      line.ID,
				Description: fmt.Sprintf("applied bundle %s discount", bundle.ID),
				Amount:      adjusted,
			})
		}
	}

	preDiscountLineTotals := make([]model.Money, len(lines))
	for i, line := range lines {
		preDiscountLineTotals[i] = runningUnitPrice[line.ID].MulInt(line.Quantity)
	}
	preDiscountSubtotal := model.SumMoney(preDiscountLineTotals)

	appliedDiscountBps := model.Bps(0)
	cappedFromRequest := false
	if input.DiscountRequest != nil {
		appliedDiscountBps = input.DiscountRequest.RequestedBps
		if input.PolicyCapBps != nil && appliedDiscountBps > *input.PolicyCapBps {
			appliedDiscountBps = *input.PolicyCapBps
			cappedFromRequest = true
		}
		for _, line := range lines {
			price := runningUnitPrice[line.ID]
			adjusted := price.Sub(price.MulBps(appliedDiscountBps))
			runningUnitPrice[line.ID] = adjusted
		}
		desc := "applied requested deal discount"
		if cappedFromRequest {
			desc = fmt.Sprintf("requested discount capped at policy hint of %d bps", *input.PolicyCapBps)
		}
		trace = append(trace, model.PricingStep{
			Step:        model.PricingStepDealDiscount,
			Description: desc,
			Amount:      model.ZeroMoney(),
		})
	}

	lineResults := make([]model.PricingLineResult, len(lines))
	lineTotals := make([]model.Money, len(lines))
	for i, line := range lines {
		total := runningUnitPrice[line.ID].MulInt(line.Quantity)
		lineResults[i] = model.PricingLineResult{
			LineId:    line.ID,
			UnitPrice: runningUnitPrice[line.ID],
			LineTotal: total,
		}
		lineTotals[i] = total
	}
	subtotal := model.SumMoney(lineTotals)
	discountTotal := preDiscountSubtotal.Sub(subtotal)
	trace = append(trace, model.PricingStep{
		Step:        model.PricingStepSubtotal,
		Description: "computed subtotal from final per-line totals",
		Amount:      subtotal,
	})

	taxAmount := model.ZeroMoney()
	if input.TaxEngine != nil {
		taxAmount, err = input.TaxEngine.ComputeTax(subtotal, input.Currency, input.Snapshot.CustomerId)
		if err != nil {
			return model.PricingResult{}, apperr.NewApplicationError(apperr.CodeIntegrationTimeout,
				"tax-engine", "tax computation failed", "", err)
		}
	}
	trace = append(trace, model.PricingStep{
		Step:        model.PricingStepTax,
		Description: "computed tax on subtotal",
		Amount:      taxAmount,
	})

	total := subtotal.Add(taxAmount)
	trace = append(trace, model.PricingStep{
		Step:        model.PricingStepRounding,
		Description: "final rounding applied at every prior scale-reducing step",
		Amount:      total,
	})
	trace = append(trace, model.PricingStep{
		Step:        model.PricingStepTotal,
		Description: "final total",
		Amount:      total,
	})

	marginBps := model.Bps(0)
	if !preDiscountSubtotal.IsZero() {
		ratio := discountTotal.Decimal().Div(preDiscountSubtotal.Decimal())
		marginBps = model.Bps(ratio.Mul(decimal.NewFromInt(model.BpsDenominator)).IntPart())
	}

	return model.PricingResult{
		QuoteId:              input.Snapshot.QuoteId,
		Currency:             input.Currency,
		PriceBookId:          book.ID,
		Lines:                lineResults,
		Subtotal:             subtotal,
		DiscountTotal:        discountTotal,
		TaxTotal:             taxAmount,
		Total:                total,
		DiscountBps:          appliedDiscountBps,
		MarginBps:            marginBps,
		ApprovalRequiredHint: cappedFromRequest,
		Trace:                trace,
	}, nil
}

func selectPriceBook(books []model.PriceBook, segment, region, currency string) (model.PriceBook, error) {
	var candidates []model.PriceBook
	for _, b := range books {
		if b.CustomerSegment == segment && b.Region == region && b.Currency == currency {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return model.PriceBook{}, apperr.NewDomainError(apperr.CodeNotFound,
			fmt.Sprintf("no price book found for segment=%s region=%s currency=%s", segment, region, currency),
			map[string]interface{}{"segment": segment, "region": region, "currency": currency})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0], nil
}

func findPriceBookEntry(book model.PriceBook, productId model.ProductId) (model.PriceBookEntry, bool) {
	for _, e := range book.Entries {
		if e.ProductId == productId {
			return e, true
		}
	}
	return model.PriceBookEntry{}, false
}

func applicableVolumeTier(tiers []model.VolumeDiscountTier, quantity int) model.Bps {
	best := model.Bps(0)
	bestMin := -1
	for _, t := range tiers {
		if quantity >= t.MinQuantity && t.MinQuantity > bestMin {
			bestMin = t.MinQuantity
			best = t.DiscountBps
		}
	}
	return best
}

func sortedBundles(bundles []model.BundleDefinition) []model.BundleDefinition {
	out := make([]model.BundleDefinition, len(bundles))
	copy(out, bundles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func allMembersPresent(bundle model.BundleDefinition, present map[model.ProductId]struct{}) bool {
	for _, member := range bundle.MemberIds {
		if _, ok := present[member]; !ok {
			return false
		}
	}
	return len(bundle.MemberIds) > 0
}

func productInBundle(bundle model.BundleDefinition, productId model.ProductId) bool {
	for _, member := range bundle.MemberIds {
		if member == productId {
			return true
		}
	}
	return false
}
