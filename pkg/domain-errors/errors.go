// Package domainerrors defines coded errors that cross the service boundary.
//
// Services translate store sentinels (pkg/platform/sentinel) into these codes;
// transports translate codes into protocol statuses. A code is the only thing
// callers should branch on: messages are for humans.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a failure.
type Code string

// Infrastructure and request-shape codes.
const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
)

// Registry failure kinds. Every check failure aborts the whole operation.
const (
	CodeInvalidName       Code = "invalid_name"
	CodeNameTaken         Code = "name_taken"
	CodeNameNotFound      Code = "name_not_found"
	CodeUnauthorized      Code = "unauthorized"
	CodeWrongFee          Code = "wrong_fee"
	CodeAssetNotAllowed   Code = "asset_not_allowed"
	CodeDeadlineExpired   Code = "deadline_expired"
	CodeBadNonce          Code = "bad_nonce"
	CodeBadSignature      Code = "bad_signature"
	CodeWrongSponsor      Code = "wrong_sponsor"
	CodeRelayerNotAllowed Code = "relayer_not_allowed"
	CodeInvalidBps        Code = "invalid_bps"
	CodeZeroTreasury      Code = "zero_treasury"
	CodeTransferFailed    Code = "transfer_failed"
)

// Error is a coded domain error. The wrapped cause, if any, is kept for logs
// and errors.Is/As but never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain, or CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidName, CodeInvalidBps,
		CodeZeroTreasury, CodeWrongFee:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeWrongSponsor, CodeRelayerNotAllowed, CodeBadSignature, CodeAssetNotAllowed:
		return http.StatusForbidden
	case CodeNotFound, CodeNameNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeNameTaken, CodeBadNonce, CodeInvariantViolation:
		return http.StatusConflict
	case CodeDeadlineExpired:
		return http.StatusGone
	case CodeTransferFailed:
		return http.StatusPaymentRequired
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
