package model

import (
	"fmt"
	"regexp"
)

// QuoteId uniquely identifies a quote. Quote ids minted by
// quoteservice.CreateQuote have the form Q-<uuid>, not Q-YYYY-NNNN, and no
// code path in this repository calls ValidateQuoteId on them.
type QuoteId string

// ProductId uniquely identifies a cataloged product.
type ProductId string

// CustomerId uniquely identifies a customer.
type CustomerId string

// ApprovalId uniquely identifies an approval request.
type ApprovalId string

// ExecutionTaskId uniquely identifies a durable execution task.
type ExecutionTaskId string

// LedgerEntryId uniquely identifies an append-only ledger entry.
type LedgerEntryId string

// QuoteLineId uniquely identifies a line within a quote.
type QuoteLineId string

var quoteIdPattern = regexp.MustCompile(`^Q-[0-9]{4}-[0-9]{4}$`)

// ValidateQuoteId checks that id follows the Q-YYYY-NNNN format. The core
// does not otherwise attach meaning to the format.
func ValidateQuoteId(id QuoteId) error {
	if !quoteIdPattern.MatchString(string(id)) {
		return fmt.Errorf("invalid quote id %q: must match Q-YYYY-NNNN", id)
	}
	return nil
}
