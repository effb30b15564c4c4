package storage

// sqlite.go — default snapshot backend.
//
//   - `wallet_snapshots`: one row per identity hash (UPSERT, last write wins).
//   - Pure Go driver, no CGo; a single connection since SQLite is single-writer.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS wallet_snapshots (
    key        TEXT PRIMARY KEY,  -- sha256(identity), hex
    blob       BLOB NOT NULL,
    saved_at   DATETIME NOT NULL
);
`

// SQLiteSnapshots implements ports.SnapshotBackend on SQLite.
type SQLiteSnapshots struct {
	db *sql.DB
}

// NewSQLiteSnapshots opens (or creates) the database at path and applies
// the schema. ":memory:" is accepted for tests.
func NewSQLiteSnapshots(path string) (*SQLiteSnapshots, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteSnapshots: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteSnapshots: apply schema: %w", err)
	}
	return &SQLiteSnapshots{db: db}, nil
}

// Put upserts the blob for key.
func (s *SQLiteSnapshots) Put(ctx context.Context, key string, blob []byte) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_snapshots (key, blob, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			blob     = excluded.blob,
			saved_at = excluded.saved_at
	`, key, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("storage.SQLiteSnapshots.Put: %w", err)
	}
	return nil
}

// Get returns the blob stored for key.
func (s *SQLiteSnapshots) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM wallet_snapshots WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.SQLiteSnapshots.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteSnapshots.Get: %w", err)
	}
	return blob, nil
}

// Keys lists stored identity hashes, most recently saved first.
func (s *SQLiteSnapshots) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM wallet_snapshots ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteSnapshots.Keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("storage.SQLiteSnapshots.Keys: scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLiteSnapshots) Close() error {
	return s.db.Close()
}
