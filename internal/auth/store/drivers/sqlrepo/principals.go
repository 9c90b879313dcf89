package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/jmoiron/sqlx"
)

const principalColumns = `id, email, password_hash, first_name, last_name,
	is_active, is_verified, mfa_enabled, mfa_secret, mfa_pending_since,
	oauth_provider, oauth_account_id, created_at, updated_at`

type principalRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    sql.NullString `db:"password_hash"`
	FirstName       string         `db:"first_name"`
	LastName        string         `db:"last_name"`
	IsActive        bool           `db:"is_active"`
	IsVerified      bool           `db:"is_verified"`
	MFAEnabled      bool           `db:"mfa_enabled"`
	MFASecret       sql.NullString `db:"mfa_secret"`
	MFAPendingSince sql.NullTime   `db:"mfa_pending_since"`
	OAuthProvider   sql.NullString `db:"oauth_provider"`
	OAuthAccountID  sql.NullString `db:"oauth_account_id"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type principalsRepo struct {
	db      sqlx.ExtContext
	dialect Dialect
}

func (r *principalsRepo) get(ctx context.Context, where string, args ...any) (domain.Principal, error) {
	var row principalRow
	q := r.db.Rebind(`SELECT ` + principalColumns + ` FROM principals WHERE ` + where)
	if err := sqlx.GetContext(ctx, r.db, &row, q, args...); err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return mapPrincipal(row), nil
}

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r *principalsRepo) GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error) {
	return r.get(ctx, `email = ?`, email)
}

func (r *principalsRepo) GetPrincipalByOAuth(
	ctx context.Context,
	provider, accountID string,
) (domain.Principal, error) {
	return r.get(ctx, `oauth_provider = ? AND oauth_account_id = ?`, provider, accountID)
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	q := r.db.Rebind(`INSERT INTO principals (` + principalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, q,
		p.ID,
		p.Email,
		nullString(p.PasswordHash),
		p.FirstName,
		p.LastName,
		p.Active,
		p.Verified,
		p.MFAEnabled,
		nullString(p.MFASecret),
		nullTime(p.MFAPendingSince),
		nullString(p.OAuthProvider),
		nullString(p.OAuthAccountID),
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("sqlrepo: insert principal: %w", err)
	}
	return nil
}

func (r *principalsRepo) UpdatePasswordHash(ctx context.Context, id string, previous *string, hash string) error {
	if previous == nil {
		return r.exec(ctx, store.ErrConflict,
			`UPDATE principals SET password_hash = ?, updated_at = ?
			WHERE id = ? AND password_hash IS NULL`,
			hash, now(), id)
	}
	return r.exec(ctx, store.ErrConflict,
		`UPDATE principals SET password_hash = ?, updated_at = ?
		WHERE id = ? AND password_hash = ?`,
		hash, now(), id, *previous)
}

func (r *principalsRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, store.ErrNotFound,
		`UPDATE principals SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, now(), id)
}

func (r *principalsRepo) LinkOAuth(ctx context.Context, id, provider, accountID string) error {
	err := r.exec(ctx, store.ErrConflict,
		`UPDATE principals SET oauth_provider = ?, oauth_account_id = ?, updated_at = ?
		WHERE id = ? AND oauth_provider IS NULL`,
		provider, accountID, now(), id)
	if err != nil && r.dialect.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *principalsRepo) BeginMFAEnrollment(
	ctx context.Context,
	id, sealedSecret string,
	at, staleBefore time.Time,
) error {
	return r.exec(ctx, store.ErrConflict,
		`UPDATE principals SET mfa_secret = ?, mfa_pending_since = ?, updated_at = ?
		WHERE id = ? AND mfa_enabled = ?
		AND (mfa_secret IS NULL OR mfa_pending_since < ?)`,
		sealedSecret, at.UTC(), now(), id, false, staleBefore.UTC())
}

func (r *principalsRepo) EnableMFA(ctx context.Context, id, sealedSecret string) error {
	return r.exec(ctx, store.ErrConflict,
		`UPDATE principals SET mfa_enabled = ?, mfa_pending_since = NULL, updated_at = ?
		WHERE id = ? AND mfa_enabled = ? AND mfa_secret = ?`,
		true, now(), id, false, sealedSecret)
}

func (r *principalsRepo) DisableMFA(ctx context.Context, id string) error {
	return r.exec(ctx, store.ErrConflict,
		`UPDATE principals SET mfa_enabled = ?, mfa_secret = NULL, mfa_pending_since = NULL, updated_at = ?
		WHERE id = ? AND mfa_enabled = ?`,
		false, now(), id, true)
}

// exec runs a single-row update and returns noRows when nothing matched.
func (r *principalsRepo) exec(ctx context.Context, noRows error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return noRows
	}
	return nil
}

func mapPrincipal(row principalRow) domain.Principal {
	return domain.Principal{
		ID:              row.ID,
		Email:           row.Email,
		PasswordHash:    stringPtr(row.PasswordHash),
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		Active:          row.IsActive,
		Verified:        row.IsVerified,
		MFAEnabled:      row.MFAEnabled,
		MFASecret:       stringPtr(row.MFASecret),
		MFAPendingSince: timePtr(row.MFAPendingSince),
		OAuthProvider:   stringPtr(row.OAuthProvider),
		OAuthAccountID:  stringPtr(row.OAuthAccountID),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}
