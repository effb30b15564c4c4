package pricing

// concurrent.go — worker pool for verifying a whole universe in parallel.
// Each verification costs up to three upstream calls; the client's rate
// limiter still bounds the aggregate request rate.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const defaultWorkers = 4

// VerifyAll runs Verify on every asset and returns results in input order.
// workers <= 0 uses a small fixed pool.
func (c *Checker) VerifyAll(ctx context.Context, assets []domain.Asset, workers int) []domain.Tradeability {
	if workers <= 0 {
		workers = defaultWorkers
	}

	type work struct {
		idx   int
		asset domain.Asset
	}

	results := make([]domain.Tradeability, len(assets))
	workCh := make(chan work, len(assets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				// Each index is written by exactly one worker.
				results[w.idx] = c.Verify(ctx, w.asset)
			}
		}()
	}

	for i, a := range assets {
		workCh <- work{idx: i, asset: a}
	}
	close(workCh)
	wg.Wait()

	tradeable := 0
	for _, r := range results {
		if r.Tradeable {
			tradeable++
		}
	}
	slog.Debug("pricing: universe verified",
		"assets", len(assets),
		"tradeable", tradeable,
		"workers", workers,
	)
	return results
}
