package storage

import (
	"context"
	"errors"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is a minimal abstraction over a Postgres connection pool.
// It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// Close shuts down the pool and frees resources.
	Close()
}

// Postgres stores keys in the kv_store table, partitioned by namespace
// so several local profiles can share one database.
type Postgres struct {
	pool      PgxPool
	namespace string
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool PgxPool, namespace string) *Postgres {
	return &Postgres{pool: pool, namespace: namespace}
}

// OpenPostgres creates a connection pool for the given DSN.
func OpenPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, namespace: namespace}, nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() { p.pool.Close() }

// Get selects the value under key.
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	const q = `
SELECT value FROM kv_store WHERE namespace=$1 AND key=$2`
	var v string
	if err := p.pool.QueryRow(ctx, q, p.namespace, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set upserts the value under key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO kv_store (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := p.pool.Exec(ctx, q, p.namespace, key, value)
	return err
}

// Remove deletes key.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	const q = `
DELETE FROM kv_store WHERE namespace=$1 AND key=$2`
	_, err := p.pool.Exec(ctx, q, p.namespace, key)
	return err
}

// Clear deletes every key of the namespace.
func (p *Postgres) Clear(ctx context.Context) error {
	const q = `
DELETE FROM kv_store WHERE namespace=$1`
	_, err := p.pool.Exec(ctx, q, p.namespace)
	return err
}
