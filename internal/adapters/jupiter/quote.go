package jupiter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	quotePath          = "/swap/v1/quote"
	defaultSlippageBps = 50
)

// FetchQuote asks the aggregator for a swap quote. A response without a
// positive outAmount is treated like a network failure.
func (c *Client) FetchQuote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	if req.Amount == 0 {
		return domain.Quote{}, fmt.Errorf("jupiter.FetchQuote: zero amount: %w", domain.ErrValidation)
	}
	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = defaultSlippageBps
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippage))
	u := c.base + quotePath + "?" + q.Encode()

	var resp quoteResponse
	if err := c.get(ctx, c.quoteLimiter, u, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter.FetchQuote: %w", err)
	}
	return mapQuote(req, slippage, resp)
}

func mapQuote(req domain.QuoteRequest, slippage int, resp quoteResponse) (domain.Quote, error) {
	if resp.OutAmount == "" {
		return domain.Quote{}, fmt.Errorf("jupiter.FetchQuote: missing outAmount: %w", domain.ErrUpstreamUnavailable)
	}
	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil || out == 0 {
		return domain.Quote{}, fmt.Errorf("jupiter.FetchQuote: bad outAmount %q: %w", resp.OutAmount, domain.ErrUpstreamUnavailable)
	}

	in := req.Amount
	if resp.InAmount != "" {
		if v, err := strconv.ParseUint(resp.InAmount, 10, 64); err == nil && v > 0 {
			in = v
		}
	}
	impact, _ := strconv.ParseFloat(resp.PriceImpactPct, 64)
	if resp.SlippageBps > 0 {
		slippage = resp.SlippageBps
	}

	return domain.Quote{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: impact,
		SlippageBps:    slippage,
	}, nil
}
