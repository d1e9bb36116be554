package model

import (
	"sort"
	"time"
)

// QuoteStatus is the lifecycle state of a quote, driven exclusively by the
// flow engine.
type QuoteStatus string

const (
	QuoteStatusDraft           QuoteStatus = "Draft"
	QuoteStatusValidated       QuoteStatus = "Validated"
	QuoteStatusPriced          QuoteStatus = "Priced"
	QuoteStatusPendingApproval QuoteStatus = "PendingApproval"
	QuoteStatusApproved        QuoteStatus = "Approved"
	QuoteStatusRejected        QuoteStatus = "Rejected"
	QuoteStatusFinalized       QuoteStatus = "Finalized"
	QuoteStatusSent            QuoteStatus = "Sent"
	QuoteStatusExpired         QuoteStatus = "Expired"
	QuoteStatusCancelled       QuoteStatus = "Cancelled"
	QuoteStatusRevised         QuoteStatus = "Revised"
)

// QuoteLine is a single configured product line within a quote.
type QuoteLine struct {
	ID              QuoteLineId       `json:"id" bson:"id"`
	ProductId       ProductId         `json:"productId" bson:"product_id"`
	ConfigurationKey string           `json:"configurationKey" bson:"configuration_key"`
	Quantity        int               `json:"quantity" bson:"quantity"`
	Attributes      map[string]string `json:"attributes" bson:"attributes"`
	UnitPrice       *Money            `json:"unitPrice,omitempty" bson:"unit_price,omitempty"`
	LineTotal       *Money            `json:"lineTotal,omitempty" bson:"line_total,omitempty"`
}

// Quote is the aggregate root: a customer's configured, priced, and
// policy-checked request for a deal. The core never mutates a Quote in
// place outside of the flow engine's transitions; every persisted change
// produces a new ledger entry.
type Quote struct {
	ID         QuoteId     `json:"id" bson:"_id"`
	CustomerId CustomerId  `json:"customerId" bson:"customer_id"`
	Status     QuoteStatus `json:"status" bson:"status"`
	Currency   string      `json:"currency" bson:"currency"`
	Lines      []QuoteLine `json:"lines" bson:"lines"`
	ValidUntil *time.Time  `json:"validUntil,omitempty" bson:"valid_until,omitempty"`
	Version    int         `json:"version" bson:"version"`
	CreatedAt  time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time   `json:"updatedAt" bson:"updated_at"`
	Actor      string      `json:"actor" bson:"actor"`
}

// Product is cataloged, read-only product metadata from the core's
// perspective; it is owned by an external catalog system.
type Product struct {
	ID     ProductId `json:"id" bson:"_id"`
	SKU    string    `json:"sku" bson:"sku"`
	Name   string    `json:"name" bson:"name"`
	Active bool      `json:"active" bson:"active"`
}

// CanonicalLines returns a copy of q.Lines sorted by (product_id,
// configuration_key), the canonical order required by the constraint engine
// and by hashing. The original slice is not mutated.
func (q Quote) CanonicalLines() []QuoteLine {
	lines := make([]QuoteLine, len(q.Lines))
	copy(lines, q.Lines)
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].ProductId != lines[j].ProductId {
			return lines[i].ProductId < lines[j].ProductId
		}
		return lines[i].ConfigurationKey < lines[j].ConfigurationKey
	})
	return lines
}

// HasDuplicateLine reports whether q has two lines sharing the same
// (product_id, configuration_key) pair, which violates the Quote invariant.
func (q Quote) HasDuplicateLine() bool {
	seen := make(map[string]struct{}, len(q.Lines))
	for _, l := range q.Lines {
		key := string(l.ProductId) + "\x1f" + l.ConfigurationKey
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

// CanonicalSnapshot is the deterministic, hashable view of a quote's state
// at a point in time, used by the constraint engine, the pricing engine,
// and the ledger's content hash. Field order, line order, and map key order
// are all normalized here so that CanonicalSnapshot values produced from
// equal logical states are byte-identical once canonicalized.
type CanonicalSnapshot struct {
	QuoteId    QuoteId     `json:"quoteId"`
	CustomerId CustomerId  `json:"customerId"`
	Status     QuoteStatus `json:"status"`
	Currency   string      `json:"currency"`
	Lines      []QuoteLine `json:"lines"`
	Version    int         `json:"version"`
}

// Snapshot produces the CanonicalSnapshot for q, with lines in canonical
// order.
func (q Quote) Snapshot() CanonicalSnapshot {
	return CanonicalSnapshot{
		QuoteId:    q.ID,
		CustomerId: q.CustomerId,
		Status:     q.Status,
		Currency:   q.Currency,
		Lines:      q.CanonicalLines(),
		Version:    q.Version,
	}
}
