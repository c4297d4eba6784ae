package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every collection as one row of the blobs table.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ KV          = (*SQLiteStore)(nil)
	_ BatchWriter = (*SQLiteStore)(nil)
	_ Versioner   = (*SQLiteStore)(nil)
)

const upsertBlob = `
INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, timeoutErr(ctx, fmt.Errorf("get blob %s: %w", key, err))
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertBlob, key, value); err != nil {
		return timeoutErr(ctx, fmt.Errorf("set blob %s: %w", key, err))
	}
	slog.DebugContext(ctx, "Blob saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return timeoutErr(ctx, fmt.Errorf("remove blob %s: %w", key, err))
	}
	return nil
}

// SetMany writes all blobs in a single transaction.
func (s *SQLiteStore) SetMany(ctx context.Context, blobs map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return timeoutErr(ctx, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertBlob)
	if err != nil {
		return timeoutErr(ctx, fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	for key, value := range blobs {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return timeoutErr(ctx, fmt.Errorf("set blob %s: %w", key, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return timeoutErr(ctx, fmt.Errorf("commit transaction: %w", err))
	}

	slog.DebugContext(ctx, "Blobs committed to SQLite", "keys", len(blobs))
	return nil
}

// DataVersion reports SQLite's data_version, which changes when another
// connection commits. The pool holds a single connection, so the value is
// stable across calls until someone else writes.
func (s *SQLiteStore) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, timeoutErr(ctx, fmt.Errorf("read data version: %w", err))
	}
	return v, nil
}

// Keys lists the stored collection keys.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM blobs ORDER BY key`)
	if err != nil {
		return nil, timeoutErr(ctx, fmt.Errorf("list keys: %w", err))
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
