package ports

import (
	"context"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// PriceSource returns the USD price of one whole unit of an asset.
// Implementations return an error wrapping domain.ErrUpstreamUnavailable on
// any failure; a non-positive price is also treated as a failure by callers.
type PriceSource interface {
	Name() domain.PriceSourceName
	FetchPrice(ctx context.Context, asset domain.Asset) (float64, error)
}

// QuoteProvider asks the swap aggregator for a quote.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error)
}
