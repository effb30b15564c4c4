package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

var validKey = regexp.MustCompile(`^[0-9a-f]{16,128}$`)

// FileSnapshots stores one <key>.json file per identity hash in a
// directory. Writes go to a temp file and are renamed into place.
type FileSnapshots struct {
	dir string
}

// NewFileSnapshots creates dir if needed.
func NewFileSnapshots(dir string) (*FileSnapshots, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage.NewFileSnapshots: mkdir %q: %w", dir, err)
	}
	return &FileSnapshots{dir: dir}, nil
}

// Put atomically replaces the file for key.
func (f *FileSnapshots) Put(ctx context.Context, key string, blob []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage.FileSnapshots.Put: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage.FileSnapshots.Put: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileSnapshots.Put: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileSnapshots.Put: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.FileSnapshots.Put: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage.FileSnapshots.Put: rename: %w", err)
	}
	return nil
}

// Get reads the file for key.
func (f *FileSnapshots) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage.FileSnapshots.Get: %w", err)
	}
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage.FileSnapshots.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileSnapshots.Get: %w", err)
	}
	return blob, nil
}

// Close is a no-op.
func (f *FileSnapshots) Close() error { return nil }

func (f *FileSnapshots) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("storage.FileSnapshots: key %q is not a hex hash: %w", key, domain.ErrValidation)
	}
	return filepath.Join(f.dir, key+".json"), nil
}
