// Package storage holds the snapshot backends: file, SQLite and Postgres.
package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/dexpilot/internal/ports"
)

// Backend drivers accepted by Open.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the backend named by driver. dsn is a directory for the
// file driver, a path for SQLite and a connection string for Postgres.
func Open(ctx context.Context, driver, dsn string) (ports.SnapshotBackend, error) {
	var (
		backend ports.SnapshotBackend
		err     error
	)
	switch driver {
	case DriverFile:
		backend, err = NewFileSnapshots(dsn)
	case DriverSQLite, "":
		backend, err = NewSQLiteSnapshots(dsn)
	case DriverPostgres:
		backend, err = NewPostgresSnapshots(ctx, dsn)
	default:
		return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}
