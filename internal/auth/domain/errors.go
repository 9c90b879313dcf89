package domain

import "errors"

// Kind is the closed set of failure categories surfaced to API callers.
type Kind string

const (
	KindDuplicateEmail       Kind = "duplicate_email"
	KindInvalidCredentials   Kind = "invalid_credentials"
	KindInactiveAccount      Kind = "inactive_account"
	KindTokenMalformed       Kind = "token_malformed"
	KindTokenExpired         Kind = "token_expired"
	KindTokenPurposeMismatch Kind = "token_purpose_mismatch"
	KindAlreadyEnrolled      Kind = "already_enrolled"
	KindMFANotEnabled        Kind = "mfa_not_enabled"
	KindInvalidCode          Kind = "invalid_code"
	KindAccountConflict      Kind = "account_conflict"
	KindUnsupportedProvider  Kind = "unsupported_provider"
	KindRateLimited          Kind = "rate_limited"

	// Raised by the transport-facing parts of the core.
	KindUnauthenticated Kind = "unauthenticated"
	KindMFARequired     Kind = "mfa_required"
	KindProviderError   Kind = "provider_error"
	KindInvalidRequest  Kind = "invalid_request"
)

// Error is a classified failure. Two Errors match under errors.Is when their
// kinds are equal, so callers can compare against the sentinels below even
// when the message was specialised.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e that also wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrDuplicateEmail       = &Error{Kind: KindDuplicateEmail, Message: "email already registered"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, Message: "incorrect email or password"}
	ErrInactiveAccount      = &Error{Kind: KindInactiveAccount, Message: "account is inactive"}
	ErrTokenMalformed       = &Error{Kind: KindTokenMalformed, Message: "token is malformed or its signature is invalid"}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired, Message: "token has expired"}
	ErrTokenPurposeMismatch = &Error{Kind: KindTokenPurposeMismatch, Message: "token cannot be used for this operation"}
	ErrAlreadyEnrolled      = &Error{Kind: KindAlreadyEnrolled, Message: "MFA enrollment already started or enabled"}
	ErrMFANotEnabled        = &Error{Kind: KindMFANotEnabled, Message: "MFA is not enabled"}
	ErrInvalidCode          = &Error{Kind: KindInvalidCode, Message: "invalid one-time code"}
	ErrAccountConflict      = &Error{Kind: KindAccountConflict, Message: "account is already linked to another identity"}
	ErrUnsupportedProvider  = &Error{Kind: KindUnsupportedProvider, Message: "unsupported OAuth provider"}
	ErrRateLimited          = &Error{Kind: KindRateLimited, Message: "too many requests, try again later"}

	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "could not validate credentials"}
	ErrMFARequired     = &Error{Kind: KindMFARequired, Message: "a verified one-time code is required"}
	ErrProviderError   = &Error{Kind: KindProviderError, Message: "OAuth provider error"}
	ErrInvalidRequest  = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
)

// KindOf extracts the Kind from err, returning "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
