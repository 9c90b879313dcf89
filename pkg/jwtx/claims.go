package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication method references carried in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMROAuth    = "oauth"
	AMRMFA      = "mfa"
)

// Claims is the payload of every token this service signs.
type Claims struct {
	jwt.RegisteredClaims

	// Purpose restricts which operation may consume the token.
	Purpose string `json:"purpose"`

	AMR []string `json:"amr,omitempty"`

	// PasswordFingerprint binds a password-reset token to the hash it is
	// allowed to replace.
	PasswordFingerprint string `json:"pfp,omitempty"`
}

// NewClaims builds claims for subject valid from now until now+ttl.
func NewClaims(issuer, subject, purpose string, ttl time.Duration, now time.Time) Claims {
	now = now.UTC()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
	}
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func (c Claims) HasAMR(method string) bool {
	return slices.Contains(c.AMR, method)
}

// IssuedAtTime and ExpiresAtTime return zero times when the claim is absent.
func (c Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
