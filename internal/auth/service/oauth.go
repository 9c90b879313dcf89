package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/idx"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// OAuthService maps identities asserted by an external provider onto local
// principals.
type OAuthService struct {
	Store  store.Store
	Tokens *TokenService

	// MergeByEmail attaches a new external identity to an existing
	// principal with the same email. When false that case is a conflict.
	MergeByEmail bool
	Clock        Clock
}

// Resolve returns the principal owning (provider, accountID), linking it to
// the principal registered under email or creating a verified one when no
// owner exists yet. Repeated calls return the same principal.
func (s *OAuthService) Resolve(ctx context.Context, provider, accountID, email string) (p domain.Principal, err error) {
	defer func() { observe("oauth_resolve", err) }()

	provider = strings.ToLower(strings.TrimSpace(provider))
	accountID = strings.TrimSpace(accountID)
	email = domain.NormalizeEmail(email)

	if provider == "" || accountID == "" {
		return domain.Principal{}, domain.ErrProviderError.WithMessage("provider did not return an account id")
	}
	now := s.Clock.Now()
	l := slogx.FromContext(ctx).With(slog.String("provider", provider))

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		owner, err := tx.Principals().GetPrincipalByOAuth(ctx, provider, accountID)
		if err == nil {
			p = owner
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup oauth identity: %w", err)
		}

		// Linking and creating both key on the email; a known identity does not.
		if email == "" {
			return domain.ErrProviderError.WithMessage("provider did not share an email address")
		}

		existing, err := tx.Principals().GetPrincipalByEmail(ctx, email)
		switch {
		case err == nil:
			if !s.MergeByEmail {
				return domain.ErrAccountConflict.WithMessage("an account with this email already exists")
			}
			if existing.IsLinked() {
				return domain.ErrAccountConflict
			}
			if err := tx.Principals().LinkOAuth(ctx, existing.ID, provider, accountID); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return domain.ErrAccountConflict
				}
				return err
			}
			existing.OAuthProvider = &provider
			existing.OAuthAccountID = &accountID
			p = existing
			l.Info("oauth identity linked", slog.String("principal_id", p.ID))
			return appendAudit(ctx, tx, p.ID, domain.AuditOAuthLinked, provider, now)

		case errors.Is(err, store.ErrNotFound):
			p = domain.Principal{
				ID:             idx.NewAt(now).String(),
				Email:          email,
				Active:         true,
				Verified:       true,
				OAuthProvider:  &provider,
				OAuthAccountID: &accountID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Principals().CreatePrincipal(ctx, p); err != nil {
				return err
			}
			l.Info("principal created from oauth identity", slog.String("principal_id", p.ID))
			return appendAudit(ctx, tx, p.ID, domain.AuditOAuthCreated, provider, now)

		default:
			return fmt.Errorf("lookup principal by email: %w", err)
		}
	})

	if errors.Is(err, store.ErrAlreadyExists) {
		// A concurrent callback for the same identity won the race.
		owner, lerr := s.Store.Principals().GetPrincipalByOAuth(ctx, provider, accountID)
		if lerr == nil {
			return owner, nil
		}
		return domain.Principal{}, domain.ErrAccountConflict.Wrap(err)
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// SignIn resolves the identity and issues an access token for it.
func (s *OAuthService) SignIn(ctx context.Context, provider, accountID, email string) (domain.IssuedToken, error) {
	p, err := s.Resolve(ctx, provider, accountID, email)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if !p.Active {
		return domain.IssuedToken{}, domain.ErrInactiveAccount
	}
	return s.Tokens.IssueAccess(p.Email, jwtx.AMROAuth)
}
