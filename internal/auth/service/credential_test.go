package service

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestCreatePrincipalThenVerifyPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.creds.CreatePrincipal(ctx, "  Alice@Example.com ", "pw12345678", domain.Profile{FirstName: "Alice"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", p.Email)
	require.True(t, p.Active)
	require.False(t, p.Verified)
	require.False(t, p.MFAEnabled)
	require.Equal(t, domain.MFADisabled, p.MFAState())
	require.NotNil(t, p.PasswordHash)
	require.NotContains(t, *p.PasswordHash, "pw12345678")

	stored, found, err := h.creds.FindByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, p.ID, stored.ID)
	require.Equal(t, "Alice", stored.FirstName)

	require.True(t, h.creds.VerifyPassword("pw12345678", *stored.PasswordHash))
	require.False(t, h.creds.VerifyPassword("pw12345679", *stored.PasswordHash))
	require.False(t, h.creds.VerifyPassword("pw12345678", "not-a-hash"))

	require.Equal(t, []domain.AuditAction{domain.AuditRegister}, h.auditActions(t, p.ID))
}

func TestCreatePrincipalRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice@example.com", "pw12345678")

	_, err := h.creds.CreatePrincipal(context.Background(), "ALICE@example.com", "another-password", domain.Profile{})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestCreatePrincipalValidatesInput(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "pw12345678"},
		{"no at sign", "alice.example.com", "pw12345678"},
		{"display name", "Alice <alice@example.com>", "pw12345678"},
		{"short password", "alice@example.com", "short"},
		{"long password", "alice@example.com", strings.Repeat("x", MaxPasswordLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.creds.CreatePrincipal(context.Background(), tt.email, tt.password, domain.Profile{})
			require.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestFindByEmailMissing(t *testing.T) {
	h := newHarness(t)
	_, found, err := h.creds.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.False(t, found)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.register(t, "alice@example.com", "pw12345678")

	t.Run("success", func(t *testing.T) {
		got, err := h.creds.Authenticate(ctx, "Alice@Example.com", "pw12345678")
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.creds.Authenticate(ctx, "alice@example.com", "wrong-password")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := h.creds.Authenticate(ctx, "bob@example.com", "pw12345678")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("inactive", func(t *testing.T) {
		require.NoError(t, h.store.Principals().SetActive(ctx, p.ID, false))
		t.Cleanup(func() { _ = h.store.Principals().SetActive(ctx, p.ID, true) })

		_, err := h.creds.Authenticate(ctx, "alice@example.com", "pw12345678")
		require.ErrorIs(t, err, domain.ErrInactiveAccount)
	})

	actions := h.auditActions(t, p.ID)
	require.Contains(t, actions, domain.AuditLogin)
	require.Contains(t, actions, domain.AuditLoginFailed)
}

func TestAuthenticateOAuthOnlyPrincipal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.oauth.Resolve(ctx, "google", "g-1", "carol@example.com")
	require.NoError(t, err)

	_, err = h.creds.Authenticate(ctx, "carol@example.com", "anything-at-all")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
