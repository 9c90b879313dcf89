package domain

import "time"

// Purpose discriminates which operation may consume a token.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposePasswordReset Purpose = "password_reset"
)

// TokenClaims is the validated content of a token.
type TokenClaims struct {
	Subject   string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time

	// AMR lists the authentication methods behind an access token.
	AMR []string

	// PasswordFingerprint ties a reset token to the password hash it replaces.
	PasswordFingerprint string
}

// IssuedToken is a freshly signed token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}
