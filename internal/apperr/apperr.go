// Package apperr defines the single structured error type used across the
// wager engine. Every failure carries a machine-readable code and a human
// message; callers branch on the code, not the message.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure classification.
type Code string

const (
	CodeInvalidConfig       Code = "INVALID_CONFIG"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeMarketNotFound      Code = "MARKET_NOT_FOUND"
	CodeBetNotFound         Code = "BET_NOT_FOUND"
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeOutcomeNotFound     Code = "OUTCOME_NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeStorage             Code = "STORAGE"
)

// Error is the structured error surface. It optionally wraps an underlying
// cause (storage failures, decode errors).
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the Code from err, or CodeStorage if err is not an *Error.
// Returns an empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeStorage
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
