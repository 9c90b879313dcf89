package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
)

const (
	DefaultAccessTTL = 30 * time.Minute
	DefaultResetTTL  = time.Hour
)

// TokenService issues and validates stateless, purpose-tagged tokens. The
// subject is the principal's email.
type TokenService struct {
	Signer    jwtx.Signer
	Verifier  jwtx.Verifier
	Issuer    string
	AccessTTL time.Duration
	ResetTTL  time.Duration
	Clock     Clock
}

// Issue signs a token for subject valid for ttl from now.
func (s *TokenService) Issue(subject string, purpose domain.Purpose, ttl time.Duration) (domain.IssuedToken, error) {
	return s.sign(s.claims(subject, purpose, ttl))
}

// IssueAccess signs an access token recording how the principal proved
// its identity.
func (s *TokenService) IssueAccess(subject string, amr ...string) (domain.IssuedToken, error) {
	c := s.claims(subject, domain.PurposeAccess, s.accessTTL())
	c.AMR = amr
	return s.sign(c)
}

// IssueReset signs a password-reset token bound to p's current password.
func (s *TokenService) IssueReset(p domain.Principal) (domain.IssuedToken, error) {
	c := s.claims(p.Email, domain.PurposePasswordReset, s.resetTTL())
	c.PasswordFingerprint = passwordFingerprint(p)
	return s.sign(c)
}

// Validate checks signature, expiry and purpose, in that order.
func (s *TokenService) Validate(raw string, expected domain.Purpose) (domain.TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.TokenClaims{}, domain.ErrTokenMalformed
	}

	c, err := s.Verifier.Verify(raw)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.TokenClaims{}, domain.ErrTokenExpired.Wrap(err)
		}
		return domain.TokenClaims{}, domain.ErrTokenMalformed.Wrap(err)
	}

	if c.Subject == "" {
		return domain.TokenClaims{}, domain.ErrTokenMalformed.WithMessage("token has no subject")
	}
	if domain.Purpose(c.Purpose) != expected {
		return domain.TokenClaims{}, domain.ErrTokenPurposeMismatch
	}

	return domain.TokenClaims{
		Subject:             c.Subject,
		Purpose:             domain.Purpose(c.Purpose),
		IssuedAt:            c.IssuedAtTime().UTC(),
		ExpiresAt:           c.ExpiresAtTime().UTC(),
		AMR:                 c.AMR,
		PasswordFingerprint: c.PasswordFingerprint,
	}, nil
}

func (s *TokenService) claims(subject string, purpose domain.Purpose, ttl time.Duration) jwtx.Claims {
	return jwtx.NewClaims(s.Issuer, subject, string(purpose), ttl, s.Clock.Now())
}

func (s *TokenService) sign(c jwtx.Claims) (domain.IssuedToken, error) {
	if c.Subject == "" {
		return domain.IssuedToken{}, errors.New("token subject is empty")
	}
	if !c.ExpiresAtTime().After(c.IssuedAtTime()) {
		return domain.IssuedToken{}, errors.New("token ttl must be positive")
	}

	tok, err := s.Signer.Sign(c)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", c.Purpose, err)
	}
	return domain.IssuedToken{Token: tok, ExpiresAt: c.ExpiresAtTime()}, nil
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return DefaultAccessTTL
}

func (s *TokenService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}

// passwordFingerprint changes whenever the password hash does, so a reset
// token stops working once any reset completes.
func passwordFingerprint(p domain.Principal) string {
	if p.PasswordHash == nil {
		return cryptox.Fingerprint("")
	}
	return cryptox.Fingerprint(*p.PasswordHash)
}
