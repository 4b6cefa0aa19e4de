package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error so callers can choose between "fix input",
// "reselect seats" and "retry".
type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeInvalidCart  Code = "INVALID_CART"
	CodeConflict     Code = "SEAT_CONFLICT"
	CodeHoldExpired  Code = "HOLD_EXPIRED"
	CodeNetwork      Code = "NETWORK"
	CodeServer       Code = "SERVER"
	CodeAuth         Code = "AUTH"
	CodeInvalidState Code = "INVALID_STATE"
	CodeInFlight     Code = "IN_FLIGHT"
	CodeNotFound     Code = "NOT_FOUND"
)

// Error is the error type surfaced by the reservation and checkout core.
type Error struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	SeatIDs []string `json:"seatIds,omitempty"`
	Err     error    `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code, so errors.Is(err, apperr.ErrConflict) works for any
// conflict regardless of message or seats.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with the given code around a cause
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Conflict creates a seat conflict error naming the unavailable seats
func Conflict(message string, seatIDs []string) *Error {
	return &Error{Code: CodeConflict, Message: message, SeatIDs: append([]string(nil), seatIDs...)}
}

// Common errors
var (
	ErrValidation   = New(CodeValidation, "validation failed")
	ErrInvalidCart  = New(CodeInvalidCart, "cart has no submittable items")
	ErrConflict     = New(CodeConflict, "one or more seats are no longer available")
	ErrHoldExpired  = New(CodeHoldExpired, "seat hold expired or not found")
	ErrNetwork      = New(CodeNetwork, "network error")
	ErrServer       = New(CodeServer, "server error, try again")
	ErrAuth         = New(CodeAuth, "credential invalid or expired")
	ErrInvalidState = New(CodeInvalidState, "operation not allowed in current state")
	ErrInFlight     = New(CodeInFlight, "a submission is already in progress")
	ErrNotFound     = New(CodeNotFound, "resource not found")
)

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ConflictingSeats returns the seat ids carried by a conflict error.
func ConflictingSeats(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeConflict {
		return e.SeatIDs
	}
	return nil
}

// IsRetryable reports whether repeating the same request may succeed.
// Only transient transport failures and 5xx responses qualify.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeServer:
		return true
	}
	return false
}
