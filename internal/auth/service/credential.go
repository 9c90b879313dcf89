package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"unicode/utf8"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/idx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	maxEmailLength    = 254
)

// CredentialService owns password principals: registration, lookup and
// password login.
type CredentialService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Clock  Clock

	dummyOnce sync.Once
	dummyHash string
}

// CreatePrincipal registers an active, unverified principal with a password.
func (s *CredentialService) CreatePrincipal(ctx context.Context, email, password string, profile domain.Profile) (p domain.Principal, err error) {
	defer func() { observe("register", err) }()

	email = domain.NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return domain.Principal{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.Principal{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Clock.Now()
	p = domain.Principal{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: &hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, p); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("create principal: %w", err)
		}
		return appendAudit(ctx, tx, p.ID, domain.AuditRegister, "", now)
	})
	if err != nil {
		return domain.Principal{}, err
	}

	slogx.FromContext(ctx).Info("principal registered", slog.String("principal_id", p.ID))
	return p, nil
}

// VerifyPassword reports whether plaintext matches storedHash. A malformed
// hash never matches.
func (s *CredentialService) VerifyPassword(plaintext, storedHash string) bool {
	return s.Hasher.Verify(plaintext, storedHash)
}

// FindByEmail looks a principal up by email in any letter case.
func (s *CredentialService) FindByEmail(ctx context.Context, email string) (domain.Principal, bool, error) {
	p, err := s.Store.Principals().GetPrincipalByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Principal{}, false, nil
	case err != nil:
		return domain.Principal{}, false, fmt.Errorf("find principal: %w", err)
	}
	return p, true, nil
}

// Authenticate checks an email and password pair. Unknown emails and
// OAuth-only principals cost one hash verification like any other miss.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (p domain.Principal, err error) {
	defer func() { observe("login", err) }()

	p, found, err := s.FindByEmail(ctx, email)
	if err != nil {
		return domain.Principal{}, err
	}

	now := s.Clock.Now()
	if !found || !p.HasPassword() {
		s.Hasher.Verify(password, s.dummy())
		if found {
			auditBestEffort(ctx, s.Store, p.ID, domain.AuditLoginFailed, "no password", now)
		}
		return domain.Principal{}, domain.ErrInvalidCredentials
	}

	if !s.Hasher.Verify(password, *p.PasswordHash) {
		auditBestEffort(ctx, s.Store, p.ID, domain.AuditLoginFailed, "bad password", now)
		return domain.Principal{}, domain.ErrInvalidCredentials
	}

	if !p.Active {
		return domain.Principal{}, domain.ErrInactiveAccount
	}

	auditBestEffort(ctx, s.Store, p.ID, domain.AuditLogin, "password", now)
	return p, nil
}

func (s *CredentialService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("budg-timing-equalizer")
	})
	return s.dummyHash
}

// ValidateEmail expects a normalized address.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidRequest.WithMessage("a valid email address is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ErrInvalidRequest.WithMessage("a valid email address is required")
	}
	return nil
}

func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return domain.ErrInvalidRequest.WithMessage(
			fmt.Sprintf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}
