package static

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Table is the last-resort price source: fixed prices from configuration.
type Table struct {
	prices map[string]float64 // mint → USD
}

// NewTable builds a table. Non-positive prices are ignored.
func NewTable(prices map[string]float64) *Table {
	t := &Table{prices: make(map[string]float64, len(prices))}
	for mint, p := range prices {
		if p > 0 {
			t.prices[mint] = p
		}
	}
	return t
}

// Name identifies the static table.
func (t *Table) Name() domain.PriceSourceName {
	return domain.SourceStatic
}

// FetchPrice returns the configured price for the asset.
func (t *Table) FetchPrice(_ context.Context, asset domain.Asset) (float64, error) {
	p, ok := t.prices[asset.Mint]
	if !ok {
		return 0, fmt.Errorf("static.FetchPrice %s: not in table: %w", asset.Symbol, domain.ErrUpstreamUnavailable)
	}
	return p, nil
}
