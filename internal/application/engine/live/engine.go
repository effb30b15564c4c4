package live

// engine.go — live trade ingestion.
//
// Prepare resolves prices and a quote off the session actor, then registers
// a pending trade (the session attaches the prediction). Execute hands the
// quote to the external signer and reports the outcome back to the session.
// The signer, not this package, builds and signs the transaction.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/application/engine"
	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

// Session is the part of the session controller the live engine drives.
type Session interface {
	View() domain.SessionView
	DraftInput(ctx context.Context) (domain.DraftInput, error)
	RegisterPending(ctx context.Context, draft domain.TradeDraft, quote domain.Quote) (domain.PendingTrade, error)
	ClaimPending(ctx context.Context, tradeID string) (domain.PendingTrade, string, error)
	IngestTradeResult(ctx context.Context, tradeID string, outcome domain.TradeOutcome) (domain.Trade, error)
}

// Config holds live engine settings.
type Config struct {
	MinTradeUSD       float64
	MaxTradeUSD       float64
	CheckTradeability bool
	ExecuteTimeout    time.Duration
}

// Engine prepares and executes live trades.
type Engine struct {
	universe *domain.Universe
	prices   engine.PriceResolver
	checker  engine.TradeabilityVerifier
	executor ports.TxExecutor
	session  Session
	cfg      Config
	now      func() time.Time
}

// New creates a live engine. checker may be nil.
func New(
	universe *domain.Universe,
	prices engine.PriceResolver,
	checker engine.TradeabilityVerifier,
	executor ports.TxExecutor,
	session Session,
	cfg Config,
) *Engine {
	if cfg.MinTradeUSD <= 0 {
		cfg.MinTradeUSD = 1
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 60 * time.Second
	}
	return &Engine{
		universe: universe,
		prices:   prices,
		checker:  checker,
		executor: executor,
		session:  session,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Prepare quotes a swap of usdValue worth of from into to and registers it
// as a pending trade. Assets are looked up by mint or symbol.
func (e *Engine) Prepare(ctx context.Context, fromKey, toKey string, usdValue float64) (domain.PendingTrade, error) {
	from, ok := e.universe.Lookup(fromKey)
	if !ok {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: unknown asset %q: %w", fromKey, domain.ErrValidation)
	}
	to, ok := e.universe.Lookup(toKey)
	if !ok {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: unknown asset %q: %w", toKey, domain.ErrValidation)
	}
	if from.Mint == to.Mint {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: %s→%s is not a swap: %w", from.Symbol, to.Symbol, domain.ErrValidation)
	}
	if usdValue < e.cfg.MinTradeUSD || (e.cfg.MaxTradeUSD > 0 && usdValue > e.cfg.MaxTradeUSD) {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: trade size $%.2f out of bounds: %w", usdValue, domain.ErrValidation)
	}
	if mode := e.session.View().Session.Mode; mode != domain.ModeLive {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: session is %s: %w", mode, domain.ErrInvalidStateTransition)
	}

	fromPrice, err := e.prices.Price(ctx, from)
	if err != nil {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: price %s: %w", from.Symbol, err)
	}
	toPrice, err := e.prices.Price(ctx, to)
	if err != nil {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: price %s: %w", to.Symbol, err)
	}

	slippage := 0.0
	if e.cfg.CheckTradeability && e.checker != nil {
		check := e.checker.Verify(ctx, to)
		if !check.Tradeable {
			return domain.PendingTrade{}, fmt.Errorf("live.Prepare: %s not tradeable (%s): %w", to.Symbol, check.Reason, domain.ErrValidation)
		}
		slippage = math.Max(0, check.ImpliedSlippagePercent*100)
	}

	inputAmount := usdValue / fromPrice.Price
	quote, err := e.prices.Quote(ctx, from, to, from.ToAtomic(inputAmount))
	if err != nil {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: %w", err)
	}

	in, err := e.session.DraftInput(ctx)
	if err != nil {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: %w", err)
	}

	outUSD := to.FromAtomic(quote.OutAmount) * toPrice.Price
	expected := (outUSD - usdValue) / usdValue * 100
	features := scorer.EngineerFeatures(domain.FeatureInput{
		Timestamp:       e.now(),
		ExpectedProfit:  expected,
		SlippagePercent: slippage + quote.PriceImpactPct,
		PriceHistory:    engine.WithCurrent(in.History[to.Mint], toPrice.Price),
	})

	pending, err := e.session.RegisterPending(ctx, domain.TradeDraft{
		From:        from,
		To:          to,
		FromPrice:   fromPrice.Price,
		ToPrice:     toPrice.Price,
		InputAmount: from.FromAtomic(quote.InAmount),
		USDValue:    usdValue,
		Features:    features,
	}, quote)
	if err != nil {
		return domain.PendingTrade{}, fmt.Errorf("live.Prepare: %w", err)
	}

	slog.Info("live: trade prepared",
		"id", pending.ID,
		"pair", from.Symbol+"→"+to.Symbol,
		"usd", fmt.Sprintf("$%.2f", usdValue),
		"quoted_usd", fmt.Sprintf("$%.2f", outUSD),
		"impact_pct", quote.PriceImpactPct,
	)
	return pending, nil
}

// Execute sends a pending trade to the signer and ingests the outcome.
// The trade is claimed first, so concurrent calls for one ID reach the
// signer once. A signer transport failure is ingested as a failed trade so
// the pending entry never dangles.
func (e *Engine) Execute(ctx context.Context, tradeID string) (domain.Trade, error) {
	pending, identity, err := e.session.ClaimPending(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("live.Execute: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecuteTimeout)
	res, err := e.executor.Execute(execCtx, identity, pending.Quote)
	cancel()

	outcome := domain.TradeOutcome{Succeeded: err == nil && res.Success, Signature: res.Signature}
	switch {
	case err != nil:
		outcome.Error = err.Error()
		slog.Warn("live: signer failed", "id", tradeID, "err", err)
	case !res.Success:
		outcome.Error = res.Error
	default:
		outcome.Profit = e.realisedProfit(ctx, pending)
	}

	// The claim must be released even when the caller has gone away.
	trade, err := e.session.IngestTradeResult(context.WithoutCancel(ctx), tradeID, outcome)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("live.Execute: %w", err)
	}
	return trade, nil
}

// realisedProfit values the quoted output at the current price. If the
// price is gone the quote-time valuation is unknown, so profit is zero.
func (e *Engine) realisedProfit(ctx context.Context, p domain.PendingTrade) float64 {
	price, err := e.prices.Price(ctx, p.To)
	if err != nil {
		slog.Warn("live: no price to value trade", "id", p.ID, "asset", p.To.Symbol)
		return 0
	}
	return engine.RoundCents(p.To.FromAtomic(p.Quote.OutAmount)*price.Price - p.USDValue)
}
