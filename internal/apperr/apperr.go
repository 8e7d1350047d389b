// Package apperr defines the error taxonomy shared by the engines and the
// HTTP layer. Every error that leaves an engine operation carries one Code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInvalidSignature     Code = "INVALID_SIGNATURE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInsufficientEnergy   Code = "INSUFFICIENT_ENERGY"
	CodeInsufficientBalance  Code = "INSUFFICIENT_BALANCE"
	CodeCooldownActive       Code = "COOLDOWN_ACTIVE"
	CodeClaimInProgress      Code = "CLAIM_IN_PROGRESS"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeExternalPayoutFailed Code = "EXTERNAL_PAYOUT_FAILED"
	CodeStoreUnavailable     Code = "STORE_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err holds the underlying cause and is only surfaced outside production.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput         = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidAmount        = &Error{Code: CodeInvalidAmount, Message: "invalid amount"}
	ErrUnauthorized         = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrInvalidSignature     = &Error{Code: CodeInvalidSignature, Message: "invalid signature"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInsufficientEnergy   = &Error{Code: CodeInsufficientEnergy, Message: "insufficient energy"}
	ErrInsufficientBalance  = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrCooldownActive       = &Error{Code: CodeCooldownActive, Message: "cooldown active"}
	ErrClaimInProgress      = &Error{Code: CodeClaimInProgress, Message: "claim in progress"}
	ErrRateLimited          = &Error{Code: CodeRateLimited, Message: "rate limit exceeded"}
	ErrExternalPayoutFailed = &Error{Code: CodeExternalPayoutFailed, Message: "external payout failed"}
	ErrStoreUnavailable     = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
)

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Store converts a persistence failure into STORE_UNAVAILABLE unless it is
// already classified.
func Store(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(CodeStoreUnavailable, err, "%s failed", op)
}

// CodeOf returns the classification of err, INTERNAL for unclassified errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeInvalidAmount, CodeInsufficientEnergy, CodeInsufficientBalance:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidSignature:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCooldownActive, CodeClaimInProgress:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeExternalPayoutFailed:
		return http.StatusBadGateway
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON shape of every error response.
type Body struct {
	Code   Code   `json:"code"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Response returns the status and body for err. The wrapped cause is only
// included when withDetail is set (non-production).
func Response(err error, withDetail bool) (int, Body) {
	code := CodeOf(err)
	b := Body{Code: code, Error: MessageOf(err)}
	if withDetail {
		b.Detail = err.Error()
	}
	return HTTPStatus(code), b
}
