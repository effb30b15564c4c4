package demo

// engine.go — demo trade synthesis.
//
// Each tick:
//  1. Pick a random pair from the universe.
//  2. Resolve both prices (either missing → tick skipped).
//  3. Optionally require the target to pass the round-trip check.
//  4. Size the trade as a random fraction of balance.
//  5. Engineer features from the target's price history.
//  6. Draw a realised edge around the expected one.
//
// Nothing here mutates session state; the result is a Draft that the
// session controller applies on its own goroutine.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/application/engine"
	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	defaultMinFraction = 0.05
	defaultMaxFraction = 0.20
	defaultMinTradeUSD = 1.0
	defaultEdgeMean    = 0.4 // percent
	defaultEdgeStdDev  = 1.0
	defaultNoiseStdDev = 1.5
)

// ErrSkipped marks a tick that produced no trade for a benign reason.
var ErrSkipped = errors.New("tick skipped")

// Config holds demo synthesis settings.
type Config struct {
	MinFraction       float64
	MaxFraction       float64
	MinTradeUSD       float64
	EdgeMean          float64
	EdgeStdDev        float64
	NoiseStdDev       float64
	CheckTradeability bool
	Workers           int
}

// Engine synthesizes plausible trades from real prices.
type Engine struct {
	universe *domain.Universe
	prices   engine.PriceResolver
	checker  engine.TradeabilityVerifier
	cfg      Config
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a demo engine. checker may be nil when the tradeability
// check is disabled.
func New(universe *domain.Universe, prices engine.PriceResolver, checker engine.TradeabilityVerifier, cfg Config, rng *rand.Rand) *Engine {
	if cfg.MinFraction <= 0 {
		cfg.MinFraction = defaultMinFraction
	}
	if cfg.MaxFraction < cfg.MinFraction {
		cfg.MaxFraction = math.Max(defaultMaxFraction, cfg.MinFraction)
	}
	if cfg.MinTradeUSD <= 0 {
		cfg.MinTradeUSD = defaultMinTradeUSD
	}
	if cfg.EdgeMean == 0 {
		cfg.EdgeMean = defaultEdgeMean
	}
	if cfg.EdgeStdDev <= 0 {
		cfg.EdgeStdDev = defaultEdgeStdDev
	}
	if cfg.NoiseStdDev <= 0 {
		cfg.NoiseStdDev = defaultNoiseStdDev
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Engine{
		universe: universe,
		prices:   prices,
		checker:  checker,
		cfg:      cfg,
		now:      time.Now,
		rng:      rng,
	}
}

// Draft builds one candidate trade.
func (e *Engine) Draft(ctx context.Context, in domain.DraftInput) (domain.TradeDraft, error) {
	from, to, err := e.pickPair()
	if err != nil {
		return domain.TradeDraft{}, err
	}

	fromPrice, err := e.prices.Price(ctx, from)
	if err != nil {
		return domain.TradeDraft{}, fmt.Errorf("demo.Draft: price %s: %w", from.Symbol, err)
	}
	toPrice, err := e.prices.Price(ctx, to)
	if err != nil {
		return domain.TradeDraft{}, fmt.Errorf("demo.Draft: price %s: %w", to.Symbol, err)
	}

	slippage := 0.0
	if e.cfg.CheckTradeability && e.checker != nil {
		check := e.checker.Verify(ctx, to)
		if !check.Tradeable {
			return domain.TradeDraft{}, fmt.Errorf("demo.Draft: %s not tradeable (%s): %w", to.Symbol, check.Reason, ErrSkipped)
		}
		slippage = math.Max(0, check.ImpliedSlippagePercent*100)
	}

	e.mu.Lock()
	fraction := e.cfg.MinFraction + e.rng.Float64()*(e.cfg.MaxFraction-e.cfg.MinFraction)
	expected := e.cfg.EdgeMean + e.rng.NormFloat64()*e.cfg.EdgeStdDev
	noise := e.rng.NormFloat64() * e.cfg.NoiseStdDev
	e.mu.Unlock()

	usd := math.Max(e.cfg.MinTradeUSD, in.Balance*fraction)
	usd = engine.RoundCents(usd)
	realised := expected + noise - slippage/2

	features := scorer.EngineerFeatures(domain.FeatureInput{
		Timestamp:       e.now(),
		ExpectedProfit:  expected,
		SlippagePercent: slippage,
		PriceHistory:    engine.WithCurrent(in.History[to.Mint], toPrice.Price),
	})

	draft := domain.TradeDraft{
		From:          from,
		To:            to,
		FromPrice:     fromPrice.Price,
		ToPrice:       toPrice.Price,
		InputAmount:   usd / fromPrice.Price,
		USDValue:      usd,
		ProfitPercent: realised,
		Succeeded:     realised > 0,
		Features:      features,
	}

	slog.Debug("demo: draft",
		"pair", from.Symbol+"→"+to.Symbol,
		"usd", fmt.Sprintf("$%.2f", usd),
		"expected_pct", fmt.Sprintf("%.2f", expected),
		"realised_pct", fmt.Sprintf("%.2f", realised),
		"source", toPrice.Source,
	)
	return draft, nil
}

// VerifyUniverse runs the round-trip check over every asset in parallel
// and logs the ones that fail. Returns nil without a checker.
func (e *Engine) VerifyUniverse(ctx context.Context) []domain.Tradeability {
	if e.checker == nil {
		return nil
	}
	results := e.checker.VerifyAll(ctx, e.universe.Assets, e.cfg.Workers)
	for _, r := range results {
		if !r.Tradeable {
			slog.Warn("demo: asset not tradeable",
				"asset", r.Asset.Symbol,
				"reason", r.Reason,
				"slippage_pct", fmt.Sprintf("%.2f", r.ImpliedSlippagePercent*100),
			)
		}
	}
	return results
}

func (e *Engine) pickPair() (domain.Asset, domain.Asset, error) {
	assets := e.universe.Assets
	if len(assets) < 2 {
		return domain.Asset{}, domain.Asset{}, fmt.Errorf("demo.Draft: universe needs at least two assets: %w", ErrSkipped)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.rng.IntN(len(assets))
	j := e.rng.IntN(len(assets) - 1)
	if j >= i {
		j++
	}
	return assets[i], assets[j], nil
}
