package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so controllers and the orchestrator can decide
// whether the caller can self-correct, whether to compensate, and which HTTP
// status to answer with.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInvalidState
	KindPriceMismatch
	KindProvider
	KindPersistence
	KindInvalidCallback
	KindAmountExceedsOrder
	KindPreconditionFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindPriceMismatch:
		return "price_mismatch"
	case KindProvider:
		return "provider"
	case KindPersistence:
		return "persistence"
	case KindInvalidCallback:
		return "invalid_callback"
	case KindAmountExceedsOrder:
		return "amount_exceeds_order"
	case KindPreconditionFailed:
		return "precondition_failed"
	default:
		return "unknown"
	}
}

// Error carries a kind, a caller-facing message, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func PriceMismatch(format string, args ...any) *Error {
	return New(KindPriceMismatch, format, args...)
}

func Provider(err error, format string, args ...any) *Error {
	return Wrap(KindProvider, err, format, args...)
}

func Persistence(err error, format string, args ...any) *Error {
	return Wrap(KindPersistence, err, format, args...)
}

func InvalidCallback(format string, args ...any) *Error {
	return New(KindInvalidCallback, format, args...)
}

func AmountExceedsOrder(format string, args ...any) *Error {
	return New(KindAmountExceedsOrder, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return New(KindPreconditionFailed, format, args...)
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API answers with.
// Provider failures deliberately surface as 502 with a generic message so the
// gateway's internals never leak to the customer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPriceMismatch, KindAmountExceedsOrder, KindInvalidCallback:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
