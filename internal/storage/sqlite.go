package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		geohash TEXT,
		start_at INTEGER,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_geohash ON documents(collection, geohash);
	CREATE INDEX IF NOT EXISTS idx_documents_start_at ON documents(collection, start_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert stores doc under a new id.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Put creates or replaces the document with id.
func (s *SQLiteStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	query, args, err := upsert(sq.Question, collection, id, doc, time.Now())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return storeError("put", collection, err)
}

// Query returns documents whose filter field lies in range.
func (s *SQLiteStore) Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	query, args, err := rangeSelect(sq.Question, collection, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	query, args, err := getByIDSelect(sq.Question, collection, id)
	if err != nil {
		return nil, false, err
	}
	var raw []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
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

// Count returns the number of documents in collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	query, args, err := sq.Select("COUNT(*)").From(documentsTable).Where(sq.Eq{"collection": collection}).ToSql()
	if err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storeError("count", collection, err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
