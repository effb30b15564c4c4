package demo_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/dexpilot/internal/application/engine/demo"
	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const mintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) Price(_ context.Context, a domain.Asset) (domain.PriceCacheEntry, error) {
	p, ok := f.prices[a.Mint]
	if !ok {
		return domain.PriceCacheEntry{}, domain.ErrNotFound
	}
	return domain.PriceCacheEntry{Asset: a, Price: p, Source: domain.SourceStatic}, nil
}

func (f *fakePrices) Quote(context.Context, domain.Asset, domain.Asset, uint64) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

type fakeChecker struct {
	tradeable bool
	slippage  float64
}

func (f *fakeChecker) Verify(_ context.Context, a domain.Asset) domain.Tradeability {
	r := domain.Tradeability{Asset: a, Tradeable: f.tradeable, ImpliedSlippagePercent: f.slippage}
	if !f.tradeable {
		r.Reason = domain.ReasonExcessiveSlippage
	}
	return r
}

func (f *fakeChecker) VerifyAll(ctx context.Context, assets []domain.Asset, _ int) []domain.Tradeability {
	out := make([]domain.Tradeability, len(assets))
	for i, a := range assets {
		out[i] = f.Verify(ctx, a)
	}
	return out
}

func universe(t *testing.T) *domain.Universe {
	t.Helper()
	sol, err := domain.NewAsset(domain.MintSOL, "SOL", 9)
	require.NoError(t, err)
	usdc, err := domain.NewAsset(domain.MintUSDC, "USDC", 6)
	require.NoError(t, err)
	bonk, err := domain.NewAsset(mintBONK, "BONK", 5)
	require.NoError(t, err)
	return domain.NewUniverse(sol, []domain.Asset{usdc, bonk})
}

func allPriced() *fakePrices {
	return &fakePrices{prices: map[string]float64{
		domain.MintSOL:  150,
		domain.MintUSDC: 1,
		mintBONK:        0.00002,
	}}
}

func newEngine(t *testing.T, prices *fakePrices, checker *fakeChecker, check bool) *demo.Engine {
	cfg := demo.Config{CheckTradeability: check}
	rng := rand.New(rand.NewPCG(7, 11))
	if checker == nil {
		return demo.New(universe(t), prices, nil, cfg, rng)
	}
	return demo.New(universe(t), prices, checker, cfg, rng)
}

func TestDraft_BuildsPlausibleTrade(t *testing.T) {
	e := newEngine(t, allPriced(), nil, false)
	in := domain.DraftInput{Balance: 50}

	for i := 0; i < 50; i++ {
		d, err := e.Draft(context.Background(), in)
		require.NoError(t, err)

		assert.NotEqual(t, d.From.Mint, d.To.Mint)
		assert.GreaterOrEqual(t, d.USDValue, 50*0.05-0.01)
		assert.LessOrEqual(t, d.USDValue, 50*0.20+0.01)
		assert.InDelta(t, d.USDValue/d.FromPrice, d.InputAmount, 1e-9)
		assert.Equal(t, d.ProfitPercent > 0, d.Succeeded)
		assert.Contains(t, d.Features, scorer.FeatureProfitPercent)
		assert.Contains(t, d.Features, scorer.FeatureRSI)
	}
}

func TestDraft_MinimumStakeWhenBalanceExhausted(t *testing.T) {
	e := newEngine(t, allPriced(), nil, false)
	d, err := e.Draft(context.Background(), domain.DraftInput{Balance: -5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.USDValue)
}

func TestDraft_MissingPriceSkipsTick(t *testing.T) {
	prices := &fakePrices{prices: map[string]float64{domain.MintSOL: 150}}
	e := newEngine(t, prices, nil, false)
	_, err := e.Draft(context.Background(), domain.DraftInput{Balance: 50})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDraft_NotTradeableSkipsTick(t *testing.T) {
	e := newEngine(t, allPriced(), &fakeChecker{tradeable: false}, true)
	_, err := e.Draft(context.Background(), domain.DraftInput{Balance: 50})
	assert.ErrorIs(t, err, demo.ErrSkipped)
}

func TestDraft_UsesHistoryForFeatures(t *testing.T) {
	hist := make([]float64, 30)
	for i := range hist {
		hist[i] = 100 + float64(i)
	}
	history := map[string][]float64{
		domain.MintSOL:  hist,
		domain.MintUSDC: hist,
		mintBONK:        hist,
	}
	e := newEngine(t, allPriced(), &fakeChecker{tradeable: true, slippage: 0.004}, true)
	d, err := e.Draft(context.Background(), domain.DraftInput{Balance: 50, History: history})
	require.NoError(t, err)
	assert.NotEqual(t, 50.0, d.Features[scorer.FeatureRSI])
	assert.InDelta(t, 0.4, d.Features[scorer.FeatureSlippage], 1e-9, "fractional loss becomes a percent feature")
	assert.Len(t, history[mintBONK], 30, "caller history untouched")
}

func TestVerifyUniverse(t *testing.T) {
	e := newEngine(t, allPriced(), &fakeChecker{tradeable: true}, true)
	res := e.VerifyUniverse(context.Background())
	assert.Len(t, res, 3)

	assert.Nil(t, newEngine(t, allPriced(), nil, false).VerifyUniverse(context.Background()))
}
