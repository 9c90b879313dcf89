package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/budg/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "budg",
				"POSTGRES_PASSWORD": "budg",
				"POSTGRES_DB":       "budg",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://budg:budg@%s:%s/budg?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := postgres.NewStore(ctx, dsn, postgres.DefaultPool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.ApplyMigrations())

	now := time.Now().UTC()
	hash := "$argon2id$fake"
	p := domain.Principal{
		ID:           idx.New().String(),
		Email:        "pg@example.com",
		PasswordHash: &hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Principals().CreatePrincipal(ctx, p)
	}))
	require.ErrorIs(t, s.Principals().CreatePrincipal(ctx, p), store.ErrAlreadyExists)

	got, err := s.Principals().GetPrincipalByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	require.NoError(t, s.Principals().BeginMFAEnrollment(ctx, p.ID, "sealed", now, now.Add(-time.Minute)))
	require.ErrorIs(t, s.Principals().BeginMFAEnrollment(ctx, p.ID, "sealed", now, now.Add(-time.Minute)), store.ErrConflict)
	require.NoError(t, s.Principals().EnableMFA(ctx, p.ID, "sealed"))

	require.NoError(t, s.Principals().LinkOAuth(ctx, p.ID, "google", "g-1"))
	linked, err := s.Principals().GetPrincipalByOAuth(ctx, "google", "g-1")
	require.NoError(t, err)
	require.Equal(t, domain.MFAEnabled, linked.MFAState())

	require.NoError(t, s.Audit().AppendAuditEvent(ctx, domain.AuditEvent{
		ID: idx.New().String(), PrincipalID: p.ID, Action: domain.AuditLogin, CreatedAt: now,
	}))
	n, err := s.Audit().PruneAuditEvents(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
