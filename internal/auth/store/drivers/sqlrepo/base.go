// Package sqlrepo implements the store repositories on top of sqlx. Drivers
// supply the connection, a dialect and their migrations.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/jmoiron/sqlx"
)

// Dialect captures the few behaviours that differ between engines.
type Dialect struct {
	Name string

	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(error) bool
}

// Base is the non-transactional half of a driver Store.
type Base struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewBase(db *sqlx.DB, d Dialect) *Base {
	return &Base{db: db, dialect: d}
}

// DB exposes the raw handle for migration drivers.
func (b *Base) DB() *sql.DB { return b.db.DB }

func (b *Base) Close() error { return b.db.Close() }

func (b *Base) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *Base) Principals() store.Principals {
	return &principalsRepo{db: b.db, dialect: b.dialect}
}

func (b *Base) Audit() store.AuditLog {
	return &auditRepo{db: b.db}
}

// BeginTx starts a read/write transaction.
func (b *Base) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: begin: %w", err)
	}
	return &txStore{tx: tx, dialect: b.dialect}, nil
}

// RunInTx executes fn inside a transaction opened with begin.
func RunInTx(ctx context.Context, begin func(context.Context) (store.Tx, error), fn func(store.Tx) error) (err error) {
	tx, err := begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
