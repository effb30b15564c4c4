package pricing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/dexpilot/internal/application/pricing"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// poolQuotes models a pool where the forward leg pays forwardRate out per
// unit in and the reverse leg returns a (1-loss) fraction of the original.
func poolQuotes(forwardRate, loss float64, failForward, failReverse bool) *fakeQuotes {
	return &fakeQuotes{fn: func(req domain.QuoteRequest) (domain.Quote, error) {
		if req.InputMint == domain.MintSOL {
			if failForward {
				return domain.Quote{}, errDown
			}
			return domain.Quote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: req.Amount, OutAmount: uint64(float64(req.Amount) * forwardRate)}, nil
		}
		if failReverse {
			return domain.Quote{}, errDown
		}
		back := float64(req.Amount) / forwardRate * (1 - loss)
		return domain.Quote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: req.Amount, OutAmount: uint64(back)}, nil
	}}
}

func newChecker(t *testing.T, q *fakeQuotes, priced bool) *pricing.Checker {
	t.Helper()
	src := &fakeSource{name: domain.SourceStatic, price: 0.00002}
	if !priced {
		src.err = errDown
	}
	r := pricing.NewResolver(pricing.Config{}, q, nil, src)
	return pricing.NewChecker(r, sol(t), 10_000_000, 0)
}

func TestVerify_Tradeable(t *testing.T) {
	c := newChecker(t, poolQuotes(2000, 0.02, false, false), true)
	res := c.Verify(context.Background(), bonk(t))
	assert.True(t, res.Tradeable)
	assert.Equal(t, domain.ReasonNone, res.Reason)
	assert.InDelta(t, 0.02, res.ImpliedSlippagePercent, 1e-6)
}

func TestVerify_ExcessiveSlippage(t *testing.T) {
	c := newChecker(t, poolQuotes(2000, 0.25, false, false), true)
	res := c.Verify(context.Background(), bonk(t))
	assert.False(t, res.Tradeable)
	assert.Equal(t, domain.ReasonExcessiveSlippage, res.Reason)
	assert.InDelta(t, 0.25, res.ImpliedSlippagePercent, 1e-6)
}

func TestVerify_NoPrice(t *testing.T) {
	q := poolQuotes(2000, 0.01, false, false)
	c := newChecker(t, q, false)
	res := c.Verify(context.Background(), bonk(t))
	assert.False(t, res.Tradeable)
	assert.Equal(t, domain.ReasonNoPrice, res.Reason)
	assert.Equal(t, int32(0), q.calls.Load(), "no quotes attempted without a price")
}

func TestVerify_NoForwardQuote(t *testing.T) {
	c := newChecker(t, poolQuotes(2000, 0.01, true, false), true)
	res := c.Verify(context.Background(), bonk(t))
	assert.False(t, res.Tradeable)
	assert.Equal(t, domain.ReasonNoForwardQuote, res.Reason)
}

func TestVerify_NoReverseQuote(t *testing.T) {
	c := newChecker(t, poolQuotes(2000, 0.01, false, true), true)
	res := c.Verify(context.Background(), bonk(t))
	assert.False(t, res.Tradeable)
	assert.Equal(t, domain.ReasonNoReverseQuote, res.Reason)
}

func TestVerify_AllSourcesFailing(t *testing.T) {
	oracle := &fakeSource{name: domain.SourceOracle, err: errDown}
	quote := &fakeSource{name: domain.SourceQuote, err: errDown}
	static := &fakeSource{name: domain.SourceStatic, err: errDown}
	r := pricing.NewResolver(pricing.Config{}, poolQuotes(1, 0, false, false), nil, oracle, quote, static)

	_, err := r.Price(context.Background(), bonk(t))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res := pricing.NewChecker(r, sol(t), 0, 0).Verify(context.Background(), bonk(t))
	assert.False(t, res.Tradeable)
	assert.Equal(t, domain.ReasonNoPrice, res.Reason)
}

func TestVerifyAll_PreservesOrder(t *testing.T) {
	c := newChecker(t, poolQuotes(2000, 0.01, false, false), true)
	assets := []domain.Asset{sol(t), bonk(t), usdc(t)}
	res := c.VerifyAll(context.Background(), assets, 2)
	if assert.Len(t, res, 3) {
		for i, a := range assets {
			assert.Equal(t, a.Mint, res[i].Asset.Mint)
			assert.True(t, res[i].Tradeable)
		}
	}
}

func TestRoundTripLoss(t *testing.T) {
	tests := []struct {
		name     string
		in, out  uint64
		expected float64
	}{
		{"no loss", 1000, 1000, 0},
		{"five percent", 1000, 950, 0.05},
		{"gain", 1000, 1100, -0.1},
		{"zero input", 0, 10, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, pricing.RoundTripLoss(tc.in, tc.out), 1e-9)
		})
	}
}
