package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS wallet_snapshots (
    key        TEXT PRIMARY KEY,
    blob       BYTEA NOT NULL,
    saved_at   TIMESTAMPTZ NOT NULL
);
`

// PostgresSnapshots implements ports.SnapshotBackend on Postgres.
type PostgresSnapshots struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshots connects, pings and applies the schema.
func NewPostgresSnapshots(ctx context.Context, dsn string) (*PostgresSnapshots, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresSnapshots: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresSnapshots: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresSnapshots: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresSnapshots: apply schema: %w", err)
	}
	return &PostgresSnapshots{pool: pool}, nil
}

// Put upserts the blob for key.
func (p *PostgresSnapshots) Put(ctx context.Context, key string, blob []byte) error {
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO wallet_snapshots (key, blob, saved_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			blob     = EXCLUDED.blob,
			saved_at = EXCLUDED.saved_at
	`, key, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("storage.PostgresSnapshots.Put: %w", err)
	}
	return nil
}

// Get returns the blob stored for key.
func (p *PostgresSnapshots) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx, `SELECT blob FROM wallet_snapshots WHERE key = $1`, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("storage.PostgresSnapshots.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.PostgresSnapshots.Get: %w", err)
	}
	return blob, nil
}

// Close closes the pool.
func (p *PostgresSnapshots) Close() error {
	p.pool.Close()
	return nil
}
