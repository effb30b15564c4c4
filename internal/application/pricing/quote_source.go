package pricing

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

// QuoteSource derives a USD price by quoting one whole unit of the asset
// into a USD stablecoin. It is the second link in the resolver chain.
type QuoteSource struct {
	quotes ports.QuoteProvider
	usd    domain.Asset
}

// NewQuoteSource prices assets against usd (normally USDC).
func NewQuoteSource(quotes ports.QuoteProvider, usd domain.Asset) *QuoteSource {
	return &QuoteSource{quotes: quotes, usd: usd}
}

func (s *QuoteSource) Name() domain.PriceSourceName {
	return domain.SourceQuote
}

// FetchPrice quotes asset → usd for one whole unit.
func (s *QuoteSource) FetchPrice(ctx context.Context, asset domain.Asset) (float64, error) {
	if asset.Mint == s.usd.Mint {
		return 1.0, nil
	}
	q, err := s.quotes.FetchQuote(ctx, domain.QuoteRequest{
		InputMint:  asset.Mint,
		OutputMint: s.usd.Mint,
		Amount:     asset.UnitAmount(),
	})
	if err != nil {
		return 0, fmt.Errorf("pricing.QuoteSource %s: %w", asset.Symbol, err)
	}
	if q.OutAmount == 0 || q.InAmount == 0 {
		return 0, fmt.Errorf("pricing.QuoteSource %s: empty quote: %w", asset.Symbol, domain.ErrUpstreamUnavailable)
	}
	return s.usd.FromAtomic(q.OutAmount) / asset.FromAtomic(q.InAmount), nil
}
