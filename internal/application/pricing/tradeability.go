package pricing

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// DefaultMaxRoundTripLoss is the highest acceptable buy-then-sell cost.
const DefaultMaxRoundTripLoss = 0.10

// Checker verifies that an asset can be round-tripped against the base
// asset at an acceptable cost. No state is rolled back if only the second
// quote fails; the asset is simply reported as not tradeable.
type Checker struct {
	resolver      *Resolver
	base          domain.Asset
	forwardAmount uint64 // atomic units of base
	maxLoss       float64
}

// NewChecker builds a checker that quotes forwardAmount atomic units
// of base. maxLoss <= 0 uses DefaultMaxRoundTripLoss.
func NewChecker(resolver *Resolver, base domain.Asset, forwardAmount uint64, maxLoss float64) *Checker {
	if maxLoss <= 0 {
		maxLoss = DefaultMaxRoundTripLoss
	}
	if forwardAmount == 0 {
		forwardAmount = base.UnitAmount() / 100
	}
	return &Checker{resolver: resolver, base: base, forwardAmount: forwardAmount, maxLoss: maxLoss}
}

// Verify runs the round-trip check. It never returns an error: every
// failure maps to Tradeable=false with a reason.
func (c *Checker) Verify(ctx context.Context, asset domain.Asset) domain.Tradeability {
	result := domain.Tradeability{Asset: asset}

	if _, err := c.resolver.Price(ctx, asset); err != nil {
		result.Reason = domain.ReasonNoPrice
		return result
	}

	// The base asset trivially round-trips with itself.
	if asset.Mint == c.base.Mint {
		result.Tradeable = true
		return result
	}

	forward, err := c.resolver.Quote(ctx, c.base, asset, c.forwardAmount)
	if err != nil {
		result.Reason = domain.ReasonNoForwardQuote
		return result
	}

	// Sell back exactly what the forward leg would deliver.
	reverse, err := c.resolver.Quote(ctx, asset, c.base, forward.OutAmount)
	if err != nil {
		result.Reason = domain.ReasonNoReverseQuote
		return result
	}

	loss := RoundTripLoss(c.forwardAmount, reverse.OutAmount)
	result.ImpliedSlippagePercent = loss
	result.Tradeable = loss <= c.maxLoss
	if !result.Tradeable {
		result.Reason = domain.ReasonExcessiveSlippage
		slog.Info("pricing: asset failed round trip",
			"asset", asset.Symbol,
			"loss", loss,
			"forward_in", c.forwardAmount,
			"forward_out", forward.OutAmount,
			"reverse_out", reverse.OutAmount,
		)
	}
	return result
}

// RoundTripLoss is 1 − reverseOutput/forwardInput.
func RoundTripLoss(forwardIn, reverseOut uint64) float64 {
	if forwardIn == 0 {
		return 1
	}
	return 1 - float64(reverseOut)/float64(forwardIn)
}
