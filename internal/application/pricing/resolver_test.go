package pricing_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/dexpilot/internal/application/pricing"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// --- fakes ---

type fakeSource struct {
	name  domain.PriceSourceName
	price float64
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() domain.PriceSourceName { return f.name }

func (f *fakeSource) FetchPrice(_ context.Context, _ domain.Asset) (float64, error) {
	f.calls.Add(1)
	return f.price, f.err
}

// fakeQuotes answers quotes from a function so tests can model pools.
type fakeQuotes struct {
	fn    func(req domain.QuoteRequest) (domain.Quote, error)
	calls atomic.Int32
}

func (f *fakeQuotes) FetchQuote(_ context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	f.calls.Add(1)
	return f.fn(req)
}

var errDown = errors.New("down")

func mustAsset(t *testing.T, mint, symbol string, decimals int) domain.Asset {
	t.Helper()
	a, err := domain.NewAsset(mint, symbol, decimals)
	require.NoError(t, err)
	return a
}

func sol(t *testing.T) domain.Asset  { return mustAsset(t, domain.MintSOL, "SOL", 9) }
func usdc(t *testing.T) domain.Asset { return mustAsset(t, domain.MintUSDC, "USDC", 6) }

const mintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func bonk(t *testing.T) domain.Asset { return mustAsset(t, mintBONK, "BONK", 5) }

// --- Price ---

func TestPrice_FirstSourceWins(t *testing.T) {
	oracle := &fakeSource{name: domain.SourceOracle, price: 150}
	static := &fakeSource{name: domain.SourceStatic, price: 100}
	r := pricing.NewResolver(pricing.Config{}, nil, nil, oracle, static)

	entry, err := r.Price(context.Background(), sol(t))
	require.NoError(t, err)
	assert.Equal(t, 150.0, entry.Price)
	assert.Equal(t, domain.SourceOracle, entry.Source)
	assert.Equal(t, int32(0), static.calls.Load())
}

func TestPrice_FallsBackInOrder(t *testing.T) {
	oracle := &fakeSource{name: domain.SourceOracle, err: errDown}
	quote := &fakeSource{name: domain.SourceQuote, price: 0} // non-positive counts as failure
	static := &fakeSource{name: domain.SourceStatic, price: 99}
	r := pricing.NewResolver(pricing.Config{}, nil, nil, oracle, quote, static)

	entry, err := r.Price(context.Background(), sol(t))
	require.NoError(t, err)
	assert.Equal(t, 99.0, entry.Price)
	assert.Equal(t, domain.SourceStatic, entry.Source)
	assert.Equal(t, int32(1), oracle.calls.Load())
	assert.Equal(t, int32(1), quote.calls.Load())
}

func TestPrice_CachedWithinTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	oracle := &fakeSource{name: domain.SourceOracle, price: 150}
	r := pricing.NewResolver(pricing.Config{TTL: time.Minute}, nil, nil, oracle)
	r.SetClock(func() time.Time { return now })

	_, err := r.Price(context.Background(), sol(t))
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	oracle.price = 160
	entry, err := r.Price(context.Background(), sol(t))
	require.NoError(t, err)
	assert.Equal(t, 150.0, entry.Price, "cached value within TTL")
	assert.Equal(t, int32(1), oracle.calls.Load())

	now = now.Add(2 * time.Second)
	entry, err = r.Price(context.Background(), sol(t))
	require.NoError(t, err)
	assert.Equal(t, 160.0, entry.Price, "expired entry refetched")
	assert.Equal(t, int32(2), oracle.calls.Load())
}

func TestPrice_AllFailNotFoundAndNotCached(t *testing.T) {
	oracle := &fakeSource{name: domain.SourceOracle, err: errDown}
	static := &fakeSource{name: domain.SourceStatic, err: errDown}
	r := pricing.NewResolver(pricing.Config{}, nil, nil, oracle, static)

	_, err := r.Price(context.Background(), sol(t))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Failure is not cached: a recovered source is used on the next call.
	oracle.err = nil
	oracle.price = 140
	entry, err := r.Price(context.Background(), sol(t))
	require.NoError(t, err)
	assert.Equal(t, 140.0, entry.Price)
	assert.Equal(t, int32(2), oracle.calls.Load())
}

func TestPrice_Invalidate(t *testing.T) {
	oracle := &fakeSource{name: domain.SourceOracle, price: 1}
	r := pricing.NewResolver(pricing.Config{}, nil, nil, oracle)

	_, _ = r.Price(context.Background(), sol(t))
	assert.Len(t, r.Cached(), 1)
	r.Invalidate(domain.MintSOL)
	assert.Empty(t, r.Cached())
	_, _ = r.Price(context.Background(), sol(t))
	assert.Equal(t, int32(2), oracle.calls.Load())
}

// --- Quote ---

func TestQuote_FailureMapsToNotFound(t *testing.T) {
	q := &fakeQuotes{fn: func(domain.QuoteRequest) (domain.Quote, error) {
		return domain.Quote{}, errDown
	}}
	r := pricing.NewResolver(pricing.Config{}, q, nil)
	_, err := r.Quote(context.Background(), sol(t), usdc(t), 1_000_000_000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuote_ZeroOutputIsNotFound(t *testing.T) {
	q := &fakeQuotes{fn: func(req domain.QuoteRequest) (domain.Quote, error) {
		return domain.Quote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: req.Amount}, nil
	}}
	r := pricing.NewResolver(pricing.Config{}, q, nil)
	_, err := r.Quote(context.Background(), sol(t), usdc(t), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuote_NoProvider(t *testing.T) {
	r := pricing.NewResolver(pricing.Config{}, nil, nil)
	_, err := r.Quote(context.Background(), sol(t), usdc(t), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuoteSource_PricesOneUnit(t *testing.T) {
	q := &fakeQuotes{fn: func(req domain.QuoteRequest) (domain.Quote, error) {
		// 1 SOL → 150.25 USDC
		return domain.Quote{InAmount: req.Amount, OutAmount: 150_250_000}, nil
	}}
	src := pricing.NewQuoteSource(q, usdc(t))
	assert.Equal(t, domain.SourceQuote, src.Name())

	price, err := src.FetchPrice(context.Background(), sol(t))
	require.NoError(t, err)
	assert.InDelta(t, 150.25, price, 1e-9)

	price, err = src.FetchPrice(context.Background(), usdc(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)
	assert.Equal(t, int32(1), q.calls.Load(), "stablecoin priced without a quote")
}
