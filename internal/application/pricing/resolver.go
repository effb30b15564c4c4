package pricing

// resolver.go — price resolution with a TTL cache and an ordered fallback
// chain of sources.
//
//   - Cache: one entry per mint, last write wins, valid for TTL.
//   - Chain: sources are tried in the order given (oracle → quote → static);
//     the first positive price wins and is cached.
//   - Failures are never cached: the next call retries the whole chain.
//   - Every upstream call runs under its own timeout; no lock is held while
//     waiting on the network.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/observability"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

const (
	DefaultTTL         = 60 * time.Second
	DefaultCallTimeout = 4 * time.Second
)

// Config holds resolver settings.
type Config struct {
	TTL         time.Duration
	CallTimeout time.Duration
	SlippageBps int
}

// Resolver resolves prices and quotes. Safe for concurrent use.
type Resolver struct {
	sources []ports.PriceSource
	quotes  ports.QuoteProvider
	cfg     Config
	metrics *observability.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.PriceCacheEntry
}

// NewResolver creates a resolver over the given sources, in priority order.
// quotes may be nil, in which case Quote always reports ErrNotFound.
func NewResolver(cfg Config, quotes ports.QuoteProvider, metrics *observability.Metrics, sources ...ports.PriceSource) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Resolver{
		sources: sources,
		quotes:  quotes,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		cache:   make(map[string]domain.PriceCacheEntry),
	}
}

// SetClock replaces the resolver's clock. Tests only.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Price returns the asset's USD price. Callers must treat ErrNotFound as
// "currently untradeable", never as a zero price.
func (r *Resolver) Price(ctx context.Context, asset domain.Asset) (domain.PriceCacheEntry, error) {
	if entry, ok := r.cached(asset.Mint); ok {
		r.metrics.CacheHit()
		return entry, nil
	}

	var errs []error
	for _, src := range r.sources {
		price, err := r.fetch(ctx, src, asset)
		if err == nil && price <= 0 {
			err = fmt.Errorf("non-positive price %v: %w", price, domain.ErrUpstreamUnavailable)
		}
		r.metrics.PriceResolved(string(src.Name()), err == nil)
		if err != nil {
			slog.Debug("pricing: source failed", "asset", asset.Symbol, "source", src.Name(), "err", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		entry := domain.PriceCacheEntry{
			Asset:      asset,
			Price:      price,
			ResolvedAt: r.now(),
			Source:     src.Name(),
		}
		r.store(entry)
		return entry, nil
	}

	slog.Warn("pricing: all sources failed", "asset", asset.Symbol, "sources", len(r.sources))
	return domain.PriceCacheEntry{}, fmt.Errorf("pricing.Price %s: %w (%v)", asset.Symbol, domain.ErrNotFound, errors.Join(errs...))
}

// Quote returns a swap quote for amount atomic units of from into to. Any
// upstream failure, including a malformed quote, is reported as ErrNotFound.
func (r *Resolver) Quote(ctx context.Context, from, to domain.Asset, amount uint64) (domain.Quote, error) {
	if r.quotes == nil {
		return domain.Quote{}, fmt.Errorf("pricing.Quote: no quote provider: %w", domain.ErrNotFound)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	started := time.Now()
	q, err := r.quotes.FetchQuote(callCtx, domain.QuoteRequest{
		InputMint:   from.Mint,
		OutputMint:  to.Mint,
		Amount:      amount,
		SlippageBps: r.cfg.SlippageBps,
	})
	r.metrics.ObserveUpstream("quote", started)
	if err == nil && q.OutAmount == 0 {
		err = fmt.Errorf("quote without output amount: %w", domain.ErrUpstreamUnavailable)
	}
	if err != nil {
		slog.Debug("pricing: quote failed", "from", from.Symbol, "to", to.Symbol, "amount", amount, "err", err)
		return domain.Quote{}, fmt.Errorf("pricing.Quote %s→%s: %w (%v)", from.Symbol, to.Symbol, domain.ErrNotFound, err)
	}
	return q, nil
}

// Invalidate drops a cached entry.
func (r *Resolver) Invalidate(mint string) {
	r.mu.Lock()
	delete(r.cache, mint)
	r.mu.Unlock()
}

// Cached returns every live cache entry (diagnostics).
func (r *Resolver) Cached() []domain.PriceCacheEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PriceCacheEntry, 0, len(r.cache))
	now := r.now()
	for _, e := range r.cache {
		if now.Sub(e.ResolvedAt) < r.cfg.TTL {
			out = append(out, e)
		}
	}
	return out
}

func (r *Resolver) fetch(ctx context.Context, src ports.PriceSource, asset domain.Asset) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	started := time.Now()
	defer r.metrics.ObserveUpstream(string(src.Name()), started)
	return src.FetchPrice(callCtx, asset)
}

func (r *Resolver) cached(mint string) (domain.PriceCacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[mint]
	if !ok || r.now().Sub(e.ResolvedAt) >= r.cfg.TTL {
		return domain.PriceCacheEntry{}, false
	}
	return e, true
}

func (r *Resolver) store(e domain.PriceCacheEntry) {
	r.mu.Lock()
	r.cache[e.Asset.Mint] = e
	r.mu.Unlock()
}
