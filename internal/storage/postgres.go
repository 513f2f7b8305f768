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

// PostgresStore implements Store on a pgx connection pool. Document data is JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url and creates the schema if needed.
func NewPostgresStore(ctx context.Context, url string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storeError("connect", "postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeError("connect", "postgres", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	geohash TEXT,
	start_at BIGINT,
	data JSONB NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_geohash ON documents(collection, geohash);
CREATE INDEX IF NOT EXISTS idx_documents_start_at ON documents(collection, start_at);
`

// Insert stores doc under a new id.
func (s *PostgresStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Put creates or replaces the document with id.
func (s *PostgresStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	query, args, err := upsert(sq.Dollar, collection, id, doc, time.Now())
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return storeError("put", collection, err)
}

// Query returns documents whose filter field lies in range.
func (s *PostgresStore) Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	query, args, err := rangeSelect(sq.Dollar, collection, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("query", collection, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, storeError("query", collection, err)
		}
		snap, err := decodeRow(id, raw)
		if err != nil {
			return nil, storeError("query", collection, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("query", collection, err)
	}
	return out, nil
}

// GetByID returns the document with id, or found=false.
func (s *PostgresStore) GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	query, args, err := getByIDSelect(sq.Dollar, collection, id)
	if err != nil {
		return nil, false, err
	}
	var raw []byte
	err = s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeError("get", collection, err)
	}
	snap, err := decodeRow(id, raw)
	if err != nil {
		return nil, false, storeError("get", collection, err)
	}
	return &snap, true, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
