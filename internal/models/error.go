package models

import "errors"

// Externally visible failure kinds. Handlers map these to status codes.
var (
	ErrRateLimited    = errors.New("too many failed attempts")
	ErrNotAllowed     = errors.New("email address is not allowed")
	ErrDeliveryFailed = errors.New("login code delivery failed")
	ErrInvalidCode    = errors.New("invalid login code")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Internal failure kinds. They are logged and audited but always collapsed
// into ErrInvalidCode or ErrUnauthorized before reaching a client.
var (
	ErrNoActiveCode      = errors.New("no active login code")
	ErrCodeExpired       = errors.New("login code expired")
	ErrCodeMismatch      = errors.New("login code mismatch")
	ErrTokenMalformed    = errors.New("session token malformed")
	ErrTokenBadSignature = errors.New("session token signature invalid")
	ErrTokenExpired      = errors.New("session token expired")
)

// FailureReason returns a short machine-readable reason for an internal
// error, used in audit records.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoActiveCode):
		return "no_active_code"
	case errors.Is(err, ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotAllowed):
		return "not_allowed"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, ErrTokenBadSignature):
		return "token_bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	default:
		return "internal_error"
	}
}
