package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// Mailer delivers password-reset tokens out of band.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email string, token domain.IssuedToken) error
}

// LogMailer stands in for a real mail transport. It records that a reset was
// issued but never the token itself.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, email string, token domain.IssuedToken) error {
	l := m.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	l.Warn("password reset issued but no mail transport is configured",
		slog.String("email", email),
		slog.Time("expires_at", token.ExpiresAt))
	return nil
}

// PasswordResetService runs the request, verify and complete steps of a
// password reset.
type PasswordResetService struct {
	Store  store.Store
	Tokens *TokenService
	Hasher *cryptox.Hasher
	Mailer Mailer
	Clock  Clock
}

// Request sends a reset token when email belongs to an active principal.
// The result does not reveal whether it does.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	p, err := s.Store.Principals().GetPrincipalByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			observe("password_reset_request", nil)
			return nil
		}
		return fmt.Errorf("lookup principal: %w", err)
	}
	if !p.Active {
		observe("password_reset_request", nil)
		return nil
	}

	tok, err := s.Tokens.IssueReset(p)
	if err != nil {
		return err
	}

	// Delivery failures would only happen for registered emails, so they
	// are logged rather than returned.
	if err := s.Mailer.SendPasswordReset(ctx, p.Email, tok); err != nil {
		l.Error("password reset delivery failed", slog.String("principal_id", p.ID), slog.Any("error", err))
	}
	observe("password_reset_request", nil)
	return nil
}

// Verify validates a reset token without consuming it.
func (s *PasswordResetService) Verify(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.Tokens.Validate(token, domain.PurposePasswordReset)
	if err != nil {
		return domain.Principal{}, err
	}

	p, err := s.Store.Principals().GetPrincipalByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.ErrTokenMalformed.WithMessage("reset token subject is unknown")
		}
		return domain.Principal{}, fmt.Errorf("lookup principal: %w", err)
	}
	if err := checkResetBinding(p, claims); err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// Complete consumes a reset token and replaces the password. The new hash
// changes the fingerprint, which retires every outstanding reset token.
func (s *PasswordResetService) Complete(ctx context.Context, token, newPassword string) (err error) {
	defer func() { observe("password_reset", err) }()

	claims, err := s.Tokens.Validate(token, domain.PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.Clock.Now()
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Principals().GetPrincipalByEmail(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrTokenMalformed.WithMessage("reset token subject is unknown")
			}
			return fmt.Errorf("lookup principal: %w", err)
		}
		if err := checkResetBinding(p, claims); err != nil {
			return err
		}

		if err := tx.Principals().UpdatePasswordHash(ctx, p.ID, p.PasswordHash, hash); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// another reset committed after the binding check
				return domain.ErrTokenExpired.WithMessage("reset token has already been used")
			}
			return fmt.Errorf("update password: %w", err)
		}

		slogx.FromContext(ctx).Info("password reset completed", slog.String("principal_id", p.ID))
		return appendAudit(ctx, tx, p.ID, domain.AuditPasswordReset, "", now)
	})
}

func checkResetBinding(p domain.Principal, claims domain.TokenClaims) error {
	if claims.PasswordFingerprint != passwordFingerprint(p) {
		return domain.ErrTokenExpired.WithMessage("reset token has already been used")
	}
	if !p.Active {
		return domain.ErrInactiveAccount
	}
	return nil
}
