package service

import (
	"context"
	"slices"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
)

// LoginService turns verified credentials into access tokens, stepping up
// to an MFA-bearing token when a one-time code is supplied.
type LoginService struct {
	Credentials *CredentialService
	MFA         *MFAService
	Tokens      *TokenService
}

type LoginResult struct {
	Principal domain.Principal
	Token     domain.IssuedToken

	// MFARequired is set when the principal has MFA enabled and no code
	// was given. The token then only reaches routes that do not demand MFA.
	MFARequired bool
}

// Login authenticates with a password and an optional TOTP code. A wrong
// code fails the whole login.
func (s *LoginService) Login(ctx context.Context, email, password, code string) (LoginResult, error) {
	p, err := s.Credentials.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	amr := []string{jwtx.AMRPassword}
	res := LoginResult{Principal: p}

	if p.MFAState() == domain.MFAEnabled {
		if strings.TrimSpace(code) == "" {
			res.MFARequired = true
		} else {
			if err := s.MFA.Verify(ctx, p.ID, code); err != nil {
				return LoginResult{}, err
			}
			amr = append(amr, jwtx.AMRMFA)
		}
	}

	res.Token, err = s.Tokens.IssueAccess(p.Email, amr...)
	if err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// VerifyMFA checks code for the session's principal and returns an access
// token that also carries the mfa method. A pending enrollment is confirmed
// by the same call.
func (s *LoginService) VerifyMFA(ctx context.Context, sess Session, code string) (domain.IssuedToken, error) {
	switch sess.Principal.MFAState() {
	case domain.MFAPendingEnrollment:
		if err := s.MFA.ConfirmEnroll(ctx, sess.Principal.ID, code); err != nil {
			return domain.IssuedToken{}, err
		}
	default:
		if err := s.MFA.Verify(ctx, sess.Principal.ID, code); err != nil {
			return domain.IssuedToken{}, err
		}
	}

	amr := slices.Clone(sess.Claims.AMR)
	if !slices.Contains(amr, jwtx.AMRMFA) {
		amr = append(amr, jwtx.AMRMFA)
	}
	return s.Tokens.IssueAccess(sess.Principal.Email, amr...)
}
