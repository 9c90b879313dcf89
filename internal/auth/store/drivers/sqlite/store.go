package sqlite

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/sqlrepo"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the embedded SQLite implementation of store.Store.
type Store struct {
	*sqlrepo.Base
}

var _ store.Store = (*Store)(nil)

// NewStore opens dsn with the pure-Go modernc driver.
func NewStore(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer, and every ":memory:" connection is its own
	// database, so all work goes through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{Base: sqlrepo.NewBase(db, sqlrepo.Dialect{
		Name:              "sqlite",
		IsUniqueViolation: isUniqueViolation,
	})}, nil
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) { return s.BeginTx(ctx) }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sqlrepo.RunInTx(ctx, s.BeginTx, fn)
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
