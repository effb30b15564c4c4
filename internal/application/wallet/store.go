// Package wallet persists live-session snapshots keyed by a one-way hash
// of the identity. Backends only ever see the hash.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/observability"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

// Store saves and loads WalletSnapshots.
type Store struct {
	backend ports.SnapshotBackend
	metrics *observability.Metrics
	now     func() time.Time
}

// NewStore wraps a backend. metrics may be nil.
func NewStore(backend ports.SnapshotBackend, metrics *observability.Metrics) *Store {
	return &Store{backend: backend, metrics: metrics, now: time.Now}
}

// Key returns the storage key for an identity: hex(sha256(identity)).
func Key(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// Save writes the snapshot for identity, stamping version and savedAt.
// Errors wrap domain.ErrPersistence.
func (s *Store) Save(ctx context.Context, identity string, snap domain.WalletSnapshot) (err error) {
	defer func() { s.metrics.SnapshotOp("save", err) }()

	if identity == "" {
		return fmt.Errorf("wallet.Save: empty identity: %w", domain.ErrValidation)
	}
	snap.Version = domain.SnapshotVersion
	snap.SavedAt = s.now().UTC()

	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("wallet.Save: encode: %v: %w", err, domain.ErrPersistence)
	}
	if err := s.backend.Put(ctx, Key(identity), blob); err != nil {
		return fmt.Errorf("wallet.Save: %v: %w", err, domain.ErrPersistence)
	}
	slog.Debug("wallet: snapshot saved", "key", Key(identity)[:12], "trades", len(snap.Trades), "bytes", len(blob))
	return nil
}

// Load reads the snapshot for identity. A missing snapshot wraps
// domain.ErrNotFound; any other failure, including an unsupported
// version, wraps domain.ErrPersistence.
func (s *Store) Load(ctx context.Context, identity string) (snap domain.WalletSnapshot, err error) {
	defer func() {
		if !errors.Is(err, domain.ErrNotFound) {
			s.metrics.SnapshotOp("load", err)
		}
	}()

	if identity == "" {
		return domain.WalletSnapshot{}, fmt.Errorf("wallet.Load: empty identity: %w", domain.ErrValidation)
	}
	blob, err := s.backend.Get(ctx, Key(identity))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.WalletSnapshot{}, fmt.Errorf("wallet.Load: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.WalletSnapshot{}, fmt.Errorf("wallet.Load: %v: %w", err, domain.ErrPersistence)
	}

	if err := json.Unmarshal(blob, &snap); err != nil {
		return domain.WalletSnapshot{}, fmt.Errorf("wallet.Load: decode: %v: %w", err, domain.ErrPersistence)
	}
	// Snapshots written before versioning have no version field.
	if snap.Version == 0 {
		snap.Version = domain.SnapshotVersion
	}
	if snap.Version > domain.SnapshotVersion {
		slog.Warn("wallet: snapshot from a newer version", "version", snap.Version, "supported", domain.SnapshotVersion)
		return domain.WalletSnapshot{}, fmt.Errorf("wallet.Load: unsupported version %d: %w", snap.Version, domain.ErrPersistence)
	}
	return snap, nil
}
