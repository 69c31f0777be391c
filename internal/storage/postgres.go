package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errDSNEmpty = errors.New("postgres dsn is empty")

const blobsTablePostgres = `CREATE TABLE IF NOT EXISTS billr_blobs (
	name       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps blobs in a Postgres table, for deployments where several
// hosts share one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// OpenPostgres connects a pool to dsn and creates the blobs table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errDSNEmpty
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, blobsTablePostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create blobs table: %w", err)
	}
	return &PostgresStore{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	sqlStr, args, err := s.sb.Select("data").From("billr_blobs").Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	sqlStr, args, err := s.sb.Insert("billr_blobs").
		Columns("name", "data", "updated_at").
		Values(key, data, time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	sqlStr, args, err := s.sb.Delete("billr_blobs").Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}
