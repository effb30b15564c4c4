package notify

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// PrintTradeability prints the round-trip check for each asset.
func (c *Console) PrintTradeability(results []domain.Tradeability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := 0
	for _, r := range results {
		if r.Tradeable {
			ok++
		}
	}
	fmt.Fprintf(c.out, "\n[%s] tradeability: %d/%d assets pass\n", time.Now().Format("15:04:05"), ok, len(results))

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Asset", "Mint", "OK", "Round trip", "Reason")
	for _, r := range results {
		mark := "yes"
		if !r.Tradeable {
			mark = "NO"
		}
		loss := "-"
		if r.Reason == domain.ReasonNone || r.Reason == domain.ReasonExcessiveSlippage {
			loss = fmt.Sprintf("%.2f%%", r.ImpliedSlippagePercent*100)
		}
		reason := string(r.Reason)
		if reason == "" {
			reason = "-"
		}
		tbl.Append(r.Asset.Symbol, shortSig(r.Asset.Mint), mark, loss, reason)
	}
	tbl.Render()
}
