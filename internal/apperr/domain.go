// Package apperr implements the three-layer error taxonomy used throughout
// the core: domain errors describe what went wrong in terms the business
// rules understand, application errors wrap domain errors (or
// infrastructure failures) with operational context, and interface errors
// are the only errors ever rendered to an external caller. Each layer maps
// explicitly onto the one below it; nothing is ever silently swallowed.
package apperr

import "fmt"

// DomainCode enumerates the kinds of business-rule failure the core can
// produce. These never leak their Go type across a package boundary
// uninspected; callers match on Code.
type DomainCode string

const (
	CodeInvalidQuoteTransition DomainCode = "invalid_quote_transition"
	CodeConstraintViolation    DomainCode = "constraint_violation"
	CodePolicyViolation        DomainCode = "policy_violation"
	CodeOptimisticConflict     DomainCode = "optimistic_conflict"
	CodeInvariantViolation     DomainCode = "invariant_violation"
	CodeVersionMismatch        DomainCode = "version_mismatch"
	CodeLedgerMismatch         DomainCode = "ledger_mismatch"
	CodeDuplicateOperation     DomainCode = "duplicate_operation"
	CodeNotFound               DomainCode = "not_found"
	CodeBadInput               DomainCode = "bad_input"
	CodeUnauthenticated        DomainCode = "unauthenticated"
	CodeForbiddenAction        DomainCode = "forbidden_action"
)

// DomainError is a business-rule failure raised by an engine or the flow
// state machine. It carries no transport concerns; handlers translate it
// into an InterfaceError at the boundary.
type DomainError struct {
	Code    DomainCode
	Message string
	// Details carries structured context specific to Code, e.g. the
	// offending quote id and version for a VersionMismatch.
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDomainError constructs a DomainError with optional structured details.
func NewDomainError(code DomainCode, message string, details map[string]interface{}) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

// IsDomainCode reports whether err is a *DomainError with the given code.
func IsDomainCode(err error, code DomainCode) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}
