package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
)

// Session is an authenticated request's principal and token claims.
type Session struct {
	Principal domain.Principal
	Claims    domain.TokenClaims
}

func (s Session) HasMFA() bool {
	for _, m := range s.Claims.AMR {
		if m == jwtx.AMRMFA {
			return true
		}
	}
	return false
}

// Gate resolves a bearer token to an active principal. Principals are
// reloaded on every call so deactivation takes effect before tokens expire.
type Gate struct {
	Tokens *TokenService
	Store  store.Store
}

// Authenticate validates bearer as an access token. With requireMFA set, a
// principal that has MFA enabled must present a token that carries it.
func (g *Gate) Authenticate(ctx context.Context, bearer string, requireMFA bool) (Session, error) {
	if strings.TrimSpace(bearer) == "" {
		return Session{}, domain.ErrUnauthenticated
	}

	claims, err := g.Tokens.Validate(bearer, domain.PurposeAccess)
	if err != nil {
		return Session{}, domain.ErrUnauthenticated.Wrap(err)
	}

	p, err := g.Store.Principals().GetPrincipalByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, domain.ErrUnauthenticated
		}
		return Session{}, fmt.Errorf("load principal: %w", err)
	}
	if !p.Active {
		return Session{}, domain.ErrInactiveAccount
	}

	sess := Session{Principal: p, Claims: claims}
	if requireMFA && p.MFAState() == domain.MFAEnabled && !sess.HasMFA() {
		return Session{}, domain.ErrMFARequired
	}
	return sess, nil
}
