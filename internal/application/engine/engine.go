package engine

import (
	"context"
	"math"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// PriceResolver is the minimal pricing surface the engines need.
// Decouples the demo and live engines from *pricing.Resolver.
type PriceResolver interface {
	Price(ctx context.Context, asset domain.Asset) (domain.PriceCacheEntry, error)
	Quote(ctx context.Context, from, to domain.Asset, amount uint64) (domain.Quote, error)
}

// TradeabilityVerifier runs the round-trip check on one asset or many.
type TradeabilityVerifier interface {
	Verify(ctx context.Context, asset domain.Asset) domain.Tradeability
	VerifyAll(ctx context.Context, assets []domain.Asset, workers int) []domain.Tradeability
}

// WithCurrent returns the history with price appended, without touching
// the caller's slice.
func WithCurrent(history []float64, price float64) []float64 {
	out := make([]float64, 0, len(history)+1)
	out = append(out, history...)
	return append(out, price)
}

// RoundCents rounds a USD amount to cents.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
