package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/dexpilot/internal/application/wallet"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

type memBackend struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	putErr error
}

func newMem() *memBackend { return &memBackend{blobs: map[string][]byte{}} }

func (m *memBackend) Put(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBackend) Close() error { return nil }

const identity = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func TestKey_IsHexSHA256(t *testing.T) {
	k := wallet.Key(identity)
	assert.Len(t, k, 64)
	assert.NotContains(t, k, identity)
	assert.Equal(t, k, wallet.Key(identity))
	assert.NotEqual(t, k, wallet.Key(identity+"x"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	mem := newMem()
	s := wallet.NewStore(mem, nil)

	snap := domain.WalletSnapshot{
		Portfolio: domain.PortfolioState{
			Balance:       decimal.RequireFromString("12.34"),
			LockedBalance: decimal.RequireFromString("0.5"),
			TotalLocked:   decimal.RequireFromString("0.5"),
		},
		Trades:      []domain.Trade{{ID: "a", Profit: 1.5, Succeeded: true}},
		ProfitLock:  domain.ProfitLockConfig{Enabled: true, PercentagePoints: 10},
		ScorerStats: domain.ScorerStats{TotalPredictions: 3, Weights: map[string]float64{"rsi": 0.1}},
	}
	require.NoError(t, s.Save(context.Background(), identity, snap))

	// The identity never reaches the backend.
	for k, blob := range mem.blobs {
		assert.NotContains(t, k, identity)
		assert.NotContains(t, string(blob), identity)
	}

	got, err := s.Load(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotVersion, got.Version)
	assert.False(t, got.SavedAt.IsZero())
	assert.True(t, snap.Portfolio.Balance.Equal(got.Portfolio.Balance))
	assert.True(t, snap.Portfolio.LockedBalance.Equal(got.Portfolio.LockedBalance))
	assert.Len(t, got.Trades, 1)
	assert.Equal(t, snap.ProfitLock, got.ProfitLock)
	assert.Equal(t, 3, got.ScorerStats.TotalPredictions)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := wallet.NewStore(newMem(), nil).Load(context.Background(), identity)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestLoad_AbsentFieldsDefault(t *testing.T) {
	mem := newMem()
	mem.blobs[wallet.Key(identity)] = []byte(`{"portfolio":{"balance":"3"}}`)

	got, err := wallet.NewStore(mem, nil).Load(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotVersion, got.Version)
	assert.True(t, decimal.NewFromInt(3).Equal(got.Portfolio.Balance))
	assert.Empty(t, got.Trades)
	assert.False(t, got.ProfitLock.Enabled)
}

func TestLoad_NewerVersionIsPersistenceFailure(t *testing.T) {
	mem := newMem()
	mem.blobs[wallet.Key(identity)] = []byte(`{"version":99}`)
	_, err := wallet.NewStore(mem, nil).Load(context.Background(), identity)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestLoad_CorruptBlob(t *testing.T) {
	mem := newMem()
	mem.blobs[wallet.Key(identity)] = []byte(`{not json`)
	_, err := wallet.NewStore(mem, nil).Load(context.Background(), identity)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestSave_BackendFailure(t *testing.T) {
	mem := newMem()
	mem.putErr = errors.New("disk full")
	err := wallet.NewStore(mem, nil).Save(context.Background(), identity, domain.WalletSnapshot{})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestEmptyIdentityRejected(t *testing.T) {
	s := wallet.NewStore(newMem(), nil)
	assert.ErrorIs(t, s.Save(context.Background(), "", domain.WalletSnapshot{}), domain.ErrValidation)
	_, err := s.Load(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
