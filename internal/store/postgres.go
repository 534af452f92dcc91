package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

const (
	dbTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

// Schema creates the documents table used by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	doc        JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, key)
)`

// PostgresStore is a PostgreSQL-backed Store keeping each document in a
// JSONB column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed document store and ensures
// its schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(collection, key)
		}
		return nil, apperr.Storage("get "+singular(collection), err)
	}
	return doc, nil
}

func (s *PostgresStore) Scan(ctx context.Context, collection string, conds ...Cond) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query, args := scanQuery(collection, conds)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("scan "+collection, err)
	}
	defer rows.Close()

	out := [][]byte{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, apperr.Storage("scan "+collection, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate "+collection, err)
	}
	return out, nil
}

// scanQuery builds the filtered scan statement. Field names are passed as
// parameters, never interpolated.
func scanQuery(collection string, conds []Cond) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT doc FROM documents WHERE collection = $1`)

	for _, c := range conds {
		if c.Elem == "" {
			args = append(args, c.Field, c.Value)
			fmt.Fprintf(&b, ` AND doc->>$%d::text = $%d::text`, len(args)-1, len(args))
			continue
		}
		args = append(args, c.Field, c.Elem, c.Value)
		fmt.Fprintf(&b, ` AND doc->$%d::text @> jsonb_build_array(jsonb_build_object($%d::text, $%d::text))`,
			len(args)-2, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY created_at ASC, key ASC`)
	return b.String(), args
}

func (s *PostgresStore) Insert(ctx context.Context, collection, key string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, doc) VALUES ($1, $2, $3::jsonb)`,
		collection, key, string(doc),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return conflict(collection, key)
		}
		return apperr.Storage("insert "+singular(collection), err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, doc) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		collection, key, string(doc),
	)
	if err != nil {
		return apperr.Storage("put "+singular(collection), err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin update "+singular(collection), err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var doc []byte
	err = tx.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND key = $2 FOR UPDATE`,
		collection, key,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(collection, key)
		}
		return nil, apperr.Storage("lock "+singular(collection), err)
	}

	updated, err := fn(doc)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE documents SET doc = $3::jsonb, updated_at = NOW() WHERE collection = $1 AND key = $2`,
		collection, key, string(updated),
	); err != nil {
		return nil, apperr.Storage("update "+singular(collection), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("commit "+singular(collection), err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	)
	if err != nil {
		return apperr.Storage("delete "+singular(collection), err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound(collection, key)
	}
	return nil
}
