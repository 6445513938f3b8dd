// Package postgres implements storage.Substrate backed by PostgreSQL.
//
// The kv_entries table uses a composite primary key (namespace, key) that
// mirrors the bucket/key space of the BBolt and in-memory backends. Values are
// the codec's opaque ciphertext strings.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meatandeat/shopguard/storage"
)

// Store implements storage.Substrate backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Substrate = (*Store)(nil)

// New returns a Substrate backed by the given pgx connection pool. The caller
// is responsible for calling EnsureSchema.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewFromDSN creates a connection pool from a DSN string, ensures the schema
// exists, and returns a new Substrate.
func NewFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return New(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	if err := storage.CheckKey(namespace, key); err != nil {
		return "", err
	}
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, namespace, key, value string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		namespace, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key)
	return err
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	if namespace == "" {
		return storage.ErrInvalidKey
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1`, namespace)
	return err
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE namespace = $1`, namespace)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
