package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict means a conditional write matched no row because the
	// record was not in the expected state.
	ErrConflict = errors.New("store: state conflict")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories hang off it so a Tx exposes the same API.
type Store interface {
	Principals() Principals
	Audit() AuditLog

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back on error or panic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Principals interface {
	GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// GetPrincipalByEmail expects a normalized email.
	GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error)

	GetPrincipalByOAuth(ctx context.Context, provider, accountID string) (domain.Principal, error)

	// CreatePrincipal returns ErrAlreadyExists when the email or OAuth
	// identity is taken.
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// UpdatePasswordHash replaces the password hash provided it is still
	// previous, nil meaning the principal has none. Otherwise it returns
	// ErrConflict.
	UpdatePasswordHash(ctx context.Context, id string, previous *string, hash string) error
	SetActive(ctx context.Context, id string, active bool) error

	// LinkOAuth attaches an external identity to a principal that has none.
	// It returns ErrAlreadyExists when another principal owns the identity
	// and ErrConflict when the principal is already linked.
	LinkOAuth(ctx context.Context, id, provider, accountID string) error

	// BeginMFAEnrollment stores a sealed secret for a principal whose MFA is
	// disabled, or whose pending enrollment started before staleBefore.
	// Otherwise it returns ErrConflict.
	BeginMFAEnrollment(ctx context.Context, id, sealedSecret string, now, staleBefore time.Time) error

	// EnableMFA flips a pending enrollment to enabled, provided the stored
	// secret is still sealedSecret. Otherwise it returns ErrConflict.
	EnableMFA(ctx context.Context, id, sealedSecret string) error

	// DisableMFA clears the secret of an enabled principal, or returns
	// ErrConflict.
	DisableMFA(ctx context.Context, id string) error
}

type AuditLog interface {
	AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEvents returns the newest events first.
	ListAuditEvents(ctx context.Context, principalID string, limit int) ([]domain.AuditEvent, error)

	// PruneAuditEvents deletes events created before cutoff.
	PruneAuditEvents(ctx context.Context, cutoff time.Time) (int64, error)
}
