package types

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrValidation             ErrorCode = "validation_error"
	ErrNotFound               ErrorCode = "not_found"
	ErrNotAvailable           ErrorCode = "not_available"
	ErrExceedsCapacity        ErrorCode = "exceeds_capacity"
	ErrExceedsMaxPerOrder     ErrorCode = "exceeds_max_per_order"
	ErrSalesEnded             ErrorCode = "sales_ended"
	ErrEventEnded             ErrorCode = "event_ended"
	ErrInvalidStatus          ErrorCode = "invalid_status"
	ErrIllegalTransition      ErrorCode = "illegal_transition"
	ErrAlreadyCheckedIn       ErrorCode = "already_checked_in"
	ErrNotCheckedIn           ErrorCode = "not_checked_in"
	ErrCancellationNotAllowed ErrorCode = "cancellation_not_allowed"
	ErrCheckInNotAllowed      ErrorCode = "check_in_not_allowed"
	ErrTransferNotAllowed     ErrorCode = "transfer_not_allowed"
	ErrRefundNotAllowed       ErrorCode = "refund_not_allowed"
	ErrInvalidRefundAmount    ErrorCode = "invalid_refund_amount"
	ErrConcurrencyConflict    ErrorCode = "concurrency_conflict"
	ErrProviderError          ErrorCode = "provider_error"
	ErrServiceUnavailable     ErrorCode = "service_unavailable"
	ErrInternal               ErrorCode = "internal_error"
)

// Error is the structured error surfaced to the application layer: a
// machine-readable code plus a human message. The API layer (out of scope
// here) maps codes to HTTP statuses via HTTPStatus.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the error's code, or ErrInternal for plain errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrNotAvailable, ErrExceedsCapacity, ErrExceedsMaxPerOrder, ErrSalesEnded,
		ErrEventEnded, ErrAlreadyCheckedIn, ErrNotCheckedIn, ErrCancellationNotAllowed,
		ErrCheckInNotAllowed, ErrTransferNotAllowed, ErrRefundNotAllowed,
		ErrInvalidRefundAmount, ErrInvalidStatus, ErrIllegalTransition:
		return http.StatusBadRequest
	case ErrConcurrencyConflict, ErrProviderError, ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
