// Package common defines the error taxonomy and small shared helpers used
// across the keyvault server. API errors carry a stable machine-readable
// code; callers match them with errors.Is against the exported sentinels.
package common

import "fmt"

// ErrorCode is a stable, client-visible error identifier.
type ErrorCode string

const (
	CodeNotFound                       ErrorCode = "NOT_FOUND"
	CodeBadRequest                     ErrorCode = "BAD_REQUEST"
	CodeInvalidCredentials             ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidSession                 ErrorCode = "INVALID_SESSION"
	CodeSessionExpired                 ErrorCode = "SESSION_EXPIRED"
	CodeInvalidRequest                 ErrorCode = "INVALID_REQUEST"
	CodeEmailVerificationRequired      ErrorCode = "EMAIL_VERIFICATION_REQUIRED"
	CodeEmailVerificationFailed        ErrorCode = "EMAIL_VERIFICATION_FAILED"
	CodeEmailVerificationTriesExceeded ErrorCode = "EMAIL_VERIFICATION_TRIES_EXCEEDED"
	CodeAccountExists                  ErrorCode = "ACCOUNT_EXISTS"
	CodeOutdatedRevision               ErrorCode = "OUTDATED_REVISION"
	CodeInsufficientPermissions        ErrorCode = "INSUFFICIENT_PERMISSIONS"
	CodeQuotaExceeded                  ErrorCode = "QUOTA_EXCEEDED"
	CodeNotSupported                   ErrorCode = "NOT_SUPPORTED"
	CodeServerError                    ErrorCode = "SERVER_ERROR"
)

// Error is an API-level error with a stable code and a human message.
// Two Errors are considered equivalent by errors.Is when their codes match,
// so `errors.Is(err, common.ErrorNotFound)` matches any NOT_FOUND error
// regardless of message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError returns an Error with the given code and formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for the common conditions. Components raise these directly when
// no extra context is useful, or via NewError when it is.
var (
	ErrorNotFound                       = &Error{CodeNotFound, "not found"}
	ErrorBadRequest                     = &Error{CodeBadRequest, "bad request"}
	ErrorInvalidCredentials             = &Error{CodeInvalidCredentials, "invalid credentials"}
	ErrorInvalidSession                 = &Error{CodeInvalidSession, "invalid session"}
	ErrorSessionExpired                 = &Error{CodeSessionExpired, "session expired"}
	ErrorInvalidRequest                 = &Error{CodeInvalidRequest, "invalid request"}
	ErrorEmailVerificationRequired      = &Error{CodeEmailVerificationRequired, "email verification required"}
	ErrorEmailVerificationFailed        = &Error{CodeEmailVerificationFailed, "email verification failed"}
	ErrorEmailVerificationTriesExceeded = &Error{CodeEmailVerificationTriesExceeded, "too many failed verification attempts"}
	ErrorAccountExists                  = &Error{CodeAccountExists, "account already exists"}
	ErrorOutdatedRevision               = &Error{CodeOutdatedRevision, "outdated revision"}
	ErrorInsufficientPermissions        = &Error{CodeInsufficientPermissions, "insufficient permissions"}
	ErrorQuotaExceeded                  = &Error{CodeQuotaExceeded, "quota exceeded"}
	ErrorNotSupported                   = &Error{CodeNotSupported, "not supported"}
	ErrorInternal                       = &Error{CodeServerError, "internal error"}
)
