package ports

import "context"

// SnapshotBackend stores opaque snapshot blobs by key. Keys are identity
// hashes; backends never see the identity itself.
type SnapshotBackend interface {
	// Put stores the blob, replacing any previous value (last write wins).
	Put(ctx context.Context, key string, blob []byte) error

	// Get returns the blob or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	Close() error
}
