// Package postgres is the server-grade store.Store driver, built on lib/pq.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/sqlrepo"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Store struct {
	*sqlrepo.Base
}

var _ store.Store = (*Store)(nil)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var DefaultPool = PoolConfig{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
}

// NewStore connects to dsn (a postgres:// URL or key=value string) and
// verifies the connection.
func NewStore(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return &Store{Base: sqlrepo.NewBase(db, sqlrepo.Dialect{
		Name:              "postgres",
		IsUniqueViolation: isUniqueViolation,
	})}, nil
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) { return s.BeginTx(ctx) }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sqlrepo.RunInTx(ctx, s.BeginTx, fn)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
