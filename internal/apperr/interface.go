package apperr

import "net/http"

// InterfaceCode enumerates the error shapes ever rendered across an
// external boundary. No DomainError or ApplicationError is ever serialized
// directly; MapToInterface always produces one of these first.
type InterfaceCode string

const (
	CodeBadRequest         InterfaceCode = "bad_request"
	CodeConflict           InterfaceCode = "conflict"
	CodeNotFoundInterface  InterfaceCode = "not_found"
	CodeForbidden          InterfaceCode = "forbidden"
	CodeServiceUnavailable InterfaceCode = "service_unavailable"
	CodeInternal           InterfaceCode = "internal"
)

// InterfaceError is the only error type a handler ever writes to a
// response. Message is safe to show to the caller; internal details stay in
// the wrapped Application/Domain error, logged but not rendered.
type InterfaceError struct {
	Code          InterfaceCode `json:"code"`
	Message       string        `json:"message"`
	CorrelationId string        `json:"correlationId,omitempty"`
	HTTPStatus    int           `json:"-"`
}

func (e *InterfaceError) Error() string { return e.Message }

func httpStatusFor(code InterfaceCode) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFoundInterface:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewInterfaceError constructs an InterfaceError, filling in HTTPStatus from
// Code.
func NewInterfaceError(code InterfaceCode, message, correlationId string) *InterfaceError {
	return &InterfaceError{
		Code:          code,
		Message:       message,
		CorrelationId: correlationId,
		HTTPStatus:    httpStatusFor(code),
	}
}

// MapToInterface translates a domain or application error into the
// InterfaceError a handler is allowed to render, attaching correlationId for
// cross-referencing against audit and log records. Unrecognized errors map
// to CodeInternal with a generic message; their detail never reaches the
// caller.
func MapToInterface(err error, correlationId string) *InterfaceError {
	if ierr, ok := err.(*InterfaceError); ok {
		return ierr
	}
	if de := DomainCause(err); de != nil {
		return mapDomainToInterface(de, correlationId)
	}
	if aerr, ok := err.(*ApplicationError); ok {
		return mapApplicationToInterface(aerr, correlationId)
	}
	return NewInterfaceError(CodeInternal, "an unexpected error occurred", correlationId)
}

func mapDomainToInterface(de *DomainError, correlationId string) *InterfaceError {
	switch de.Code {
	case CodeInvalidQuoteTransition, CodeConstraintViolation, CodePolicyViolation, CodeBadInput:
		return NewInterfaceError(CodeBadRequest, de.Message, correlationId)
	case CodeOptimisticConflict, CodeVersionMismatch, CodeDuplicateOperation:
		return NewInterfaceError(CodeConflict, de.Message, correlationId)
	case CodeNotFound:
		return NewInterfaceError(CodeNotFoundInterface, de.Message, correlationId)
	case CodeUnauthenticated, CodeForbiddenAction:
		return NewInterfaceError(CodeForbidden, de.Message, correlationId)
	case CodeInvariantViolation, CodeLedgerMismatch:
		// These indicate data corruption or a core bug, never the
		// caller's fault; the caller gets no detail.
		return NewInterfaceError(CodeInternal, "an internal consistency error occurred", correlationId)
	default:
		return NewInterfaceError(CodeInternal, "an unexpected error occurred", correlationId)
	}
}

func mapApplicationToInterface(aerr *ApplicationError, correlationId string) *InterfaceError {
	switch aerr.Code {
	case CodeIntegrationTimeout, CodeCircuitOpen, CodePersistence:
		return NewInterfaceError(CodeServiceUnavailable, "a downstream dependency is unavailable", correlationId)
	case CodeConfiguration:
		return NewInterfaceError(CodeInternal, "the service is misconfigured", correlationId)
	default:
		return NewInterfaceError(CodeInternal, "an unexpected error occurred", correlationId)
	}
}
