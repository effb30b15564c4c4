package jupiter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const pricePath = "/price/v2"

// Name identifies the client as the primary oracle.
func (c *Client) Name() domain.PriceSourceName {
	return domain.SourceOracle
}

// FetchPrice returns the USD price of one whole unit of the asset.
func (c *Client) FetchPrice(ctx context.Context, asset domain.Asset) (float64, error) {
	u := fmt.Sprintf("%s%s?ids=%s", c.base, pricePath, url.QueryEscape(asset.Mint))

	var resp priceResponse
	if err := c.get(ctx, c.priceLimiter, u, &resp); err != nil {
		return 0, fmt.Errorf("jupiter.FetchPrice %s: %w", asset.Symbol, err)
	}

	entry, ok := resp.Data[asset.Mint]
	if !ok || entry == nil || entry.Price == "" {
		return 0, fmt.Errorf("jupiter.FetchPrice %s: no price in response: %w", asset.Symbol, domain.ErrUpstreamUnavailable)
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("jupiter.FetchPrice %s: bad price %q: %w", asset.Symbol, entry.Price, domain.ErrUpstreamUnavailable)
	}
	return price, nil
}
